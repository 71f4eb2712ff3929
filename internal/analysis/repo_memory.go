package analysis

import (
	"context"
	"sync"
	"time"
)

// DefaultRetention is how long terminal jobs stay pollable before eviction.
const DefaultRetention = 24 * time.Hour

// MemoryRepo stores jobs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu        sync.RWMutex
	byID      map[string]Job
	retention time.Duration
}

// NewMemoryRepo constructs a MemoryRepo with the default retention.
func NewMemoryRepo() *MemoryRepo {
	return NewMemoryRepoWithRetention(DefaultRetention)
}

// NewMemoryRepoWithRetention constructs a MemoryRepo that evicts terminal
// jobs older than retention. A non-positive retention disables eviction.
func NewMemoryRepoWithRetention(retention time.Duration) *MemoryRepo {
	return &MemoryRepo{
		byID:      make(map[string]Job),
		retention: retention,
	}
}

// Create stores the job. Expired terminal jobs are swept on each create so
// the table does not grow without bound.
func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictExpiredLocked(time.Now().UTC())
	r.byID[job.ID] = job
	return nil
}

// GetByID returns a job by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.byID[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// UpdateStage moves the job to the given status/step. Progress is clamped so
// it never decreases across successive updates.
func (r *MemoryRepo) UpdateStage(ctx context.Context, jobID, status, step string, progress int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Status = status
	job.Step = step
	if progress > job.Progress {
		job.Progress = progress
	}
	now := time.Now().UTC()
	if job.StartedAt == nil && status != StatusCreated {
		job.StartedAt = &now
	}
	job.UpdatedAt = now
	r.byID[jobID] = job
	return nil
}

// Complete marks the job completed with its result.
func (r *MemoryRepo) Complete(ctx context.Context, jobID string, result *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	job.Status = StatusCompleted
	job.Step = StepCompleted
	job.Progress = ProgressCompleted
	job.Result = result
	job.ErrorMessage = nil
	job.CompletedAt = &now
	job.UpdatedAt = now
	r.byID[jobID] = job
	return nil
}

// Fail marks the job errored with a message and clears any partial result.
func (r *MemoryRepo) Fail(ctx context.Context, jobID, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	job.Status = StatusError
	job.Step = StepError
	job.Result = nil
	job.ErrorMessage = &message
	job.CompletedAt = &now
	job.UpdatedAt = now
	r.byID[jobID] = job
	return nil
}

func (r *MemoryRepo) evictExpiredLocked(now time.Time) {
	if r.retention <= 0 {
		return
	}
	cutoff := now.Add(-r.retention)
	for id, job := range r.byID {
		if job.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(r.byID, id)
		}
	}
}

var _ Repo = (*MemoryRepo)(nil)
