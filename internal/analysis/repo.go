package analysis

import "context"

// Repo defines persistence operations for analysis jobs. Implementations
// must keep per-record access data-race-free: the job's background task
// writes while pollers read concurrently.
type Repo interface {
	Create(ctx context.Context, job Job) error
	GetByID(ctx context.Context, jobID string) (Job, error)
	// UpdateStage moves a job to the given status/step/progress. Progress
	// never decreases; a lower value than the stored one is ignored.
	UpdateStage(ctx context.Context, jobID, status, step string, progress int) error
	Complete(ctx context.Context, jobID string, result *Report) error
	Fail(ctx context.Context, jobID, message string) error
}
