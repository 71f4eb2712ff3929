package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new job.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO analysis_jobs (
	id, script, upload_date, channel_name, channel_handle, channel_id,
	status, step, progress, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.DB.ExecContext(ctx, query,
		job.ID,
		job.Script,
		job.UploadDate,
		job.ChannelName,
		job.ChannelHandle,
		job.ChannelID,
		job.Status,
		job.Step,
		job.Progress,
		job.CreatedAt,
		job.CreatedAt,
	)
	return err
}

// GetByID returns a job by ID.
func (r *PGRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	const query = `
SELECT id, script, upload_date, channel_name, channel_handle, channel_id,
       status, step, progress, result, error_message,
       created_at, updated_at, started_at, completed_at
FROM analysis_jobs
WHERE id = $1
LIMIT 1`

	var (
		job          Job
		result       sql.NullString
		errorMessage sql.NullString
		startedAt    sql.NullTime
		completedAt  sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID,
		&job.Script,
		&job.UploadDate,
		&job.ChannelName,
		&job.ChannelHandle,
		&job.ChannelID,
		&job.Status,
		&job.Step,
		&job.Progress,
		&result,
		&errorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}

	if result.Valid && result.String != "" {
		var report Report
		if err := json.Unmarshal([]byte(result.String), &report); err != nil {
			return Job{}, fmt.Errorf("decode job result id=%s: %w", jobID, err)
		}
		job.Result = &report
	}
	if errorMessage.Valid {
		msg := errorMessage.String
		job.ErrorMessage = &msg
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return job, nil
}

// UpdateStage moves the job to the given status/step. GREATEST keeps the
// stored progress monotonic.
func (r *PGRepo) UpdateStage(ctx context.Context, jobID, status, step string, progress int) error {
	const query = `
UPDATE analysis_jobs
SET status = $2,
    step = $3,
    progress = GREATEST(progress, $4),
    started_at = COALESCE(started_at, $5),
    updated_at = $5
WHERE id = $1`
	return r.exec(ctx, query, jobID, status, step, progress, time.Now().UTC())
}

// Complete marks the job completed with its result.
func (r *PGRepo) Complete(ctx context.Context, jobID string, result *Report) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode job result id=%s: %w", jobID, err)
	}
	const query = `
UPDATE analysis_jobs
SET status = $2,
    step = $3,
    progress = $4,
    result = $5,
    error_message = NULL,
    completed_at = $6,
    updated_at = $6
WHERE id = $1`
	return r.exec(ctx, query, jobID, StatusCompleted, StepCompleted, ProgressCompleted, string(payload), time.Now().UTC())
}

// Fail marks the job errored with a message.
func (r *PGRepo) Fail(ctx context.Context, jobID, message string) error {
	const query = `
UPDATE analysis_jobs
SET status = $2,
    step = $3,
    result = NULL,
    error_message = $4,
    completed_at = $5,
    updated_at = $5
WHERE id = $1`
	return r.exec(ctx, query, jobID, StatusError, StepError, message, time.Now().UTC())
}

func (r *PGRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)
