package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/printforge/printforge/internal/domain"
)

// Job statuses.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// JobTypeRenderDesign identifies render jobs; the payload is a
// RenderDesignPayload.
const JobTypeRenderDesign = "render_design"

// DefaultMaxAttempts bounds retries for render jobs.
const DefaultMaxAttempts = 3

// Job is one queued unit of background work.
type Job struct {
	ID           uuid.UUID
	JobType      string
	Payload      []byte
	Status       string
	Priority     int32
	Attempts     int32
	MaxAttempts  int32
	ScheduledAt  time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage *string
	CreatedAt    time.Time
}

// RenderDesignPayload is the payload for render jobs.
type RenderDesignPayload struct {
	DesignID uuid.UUID `json:"design_id"`
}

const jobColumns = `
	id, job_type, payload, status, priority, attempts, max_attempts,
	scheduled_at, started_at, completed_at, error_message, created_at`

// EnqueueJobParams configures a job insertion.
type EnqueueJobParams struct {
	JobType     string
	Payload     any
	Priority    int32
	MaxAttempts int32
	ScheduledAt time.Time
}

// EnqueueJob inserts a pending job. When called on a transaction-bound
// Queries the job becomes visible to workers at commit.
func (q *Queries) EnqueueJob(ctx context.Context, params EnqueueJobParams) (*Job, error) {
	const op = "repository.enqueue_job"

	payloadJSON, err := json.Marshal(params.Payload)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to marshal payload")
	}

	if params.MaxAttempts <= 0 {
		params.MaxAttempts = DefaultMaxAttempts
	}
	if params.ScheduledAt.IsZero() {
		params.ScheduledAt = time.Now().UTC()
	}

	var job Job
	err = q.db.QueryRow(ctx, `
		INSERT INTO jobs (id, job_type, payload, status, priority, attempts, max_attempts, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, NOW())
		RETURNING `+jobColumns,
		uuid.New(), params.JobType, payloadJSON, JobStatusPending,
		params.Priority, params.MaxAttempts, params.ScheduledAt,
	).Scan(
		&job.ID, &job.JobType, &job.Payload, &job.Status, &job.Priority,
		&job.Attempts, &job.MaxAttempts, &job.ScheduledAt,
		&job.StartedAt, &job.CompletedAt, &job.ErrorMessage, &job.CreatedAt,
	)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to enqueue job")
	}
	return &job, nil
}

// EnqueueRenderJob enqueues a render job keyed by design id.
func (q *Queries) EnqueueRenderJob(ctx context.Context, designID uuid.UUID) error {
	_, err := q.EnqueueJob(ctx, EnqueueJobParams{
		JobType: JobTypeRenderDesign,
		Payload: RenderDesignPayload{DesignID: designID},
	})
	return err
}

// DequeueJob locks and returns the next runnable job. SKIP LOCKED lets
// concurrent workers dequeue without contending on the same row. Returns
// pgx.ErrNoRows (wrapped) when no job is runnable; callers check with
// errors.Is.
func (q *Queries) DequeueJob(ctx context.Context) (*Job, error) {
	var job Job
	err := q.db.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE status = $1 AND scheduled_at <= NOW()
		ORDER BY priority DESC, scheduled_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`,
		JobStatusPending,
	).Scan(
		&job.ID, &job.JobType, &job.Payload, &job.Status, &job.Priority,
		&job.Attempts, &job.MaxAttempts, &job.ScheduledAt,
		&job.StartedAt, &job.CompletedAt, &job.ErrorMessage, &job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateJobStarted marks a job as running.
func (q *Queries) UpdateJobStarted(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		UPDATE jobs SET status = $2, started_at = NOW(), attempts = attempts + 1
		WHERE id = $1`,
		id, JobStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("mark job started: %w", err)
	}
	return nil
}

// UpdateJobCompleted marks a job as successfully completed.
func (q *Queries) UpdateJobCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		UPDATE jobs SET status = $2, completed_at = NOW(), error_message = NULL
		WHERE id = $1`,
		id, JobStatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	return nil
}

// RescheduleJob returns a failed job to pending after a retry delay.
func (q *Queries) RescheduleJob(ctx context.Context, id uuid.UUID, errorMessage string, delay time.Duration) error {
	_, err := q.db.Exec(ctx, `
		UPDATE jobs SET
			status = $2,
			error_message = $3,
			scheduled_at = NOW() + make_interval(secs => $4)
		WHERE id = $1`,
		id, JobStatusPending, errorMessage, delay.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("reschedule job: %w", err)
	}
	return nil
}

// UpdateJobFailed abandons a job permanently.
func (q *Queries) UpdateJobFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	_, err := q.db.Exec(ctx, `
		UPDATE jobs SET status = $2, completed_at = NOW(), error_message = $3
		WHERE id = $1`,
		id, JobStatusFailed, errorMessage,
	)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}

// RecoverStaleJobs returns jobs that have been running longer than the
// threshold to pending. Handles workers that crashed mid-job.
func (q *Queries) RecoverStaleJobs(ctx context.Context, threshold time.Duration) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE jobs SET status = $1, started_at = NULL
		WHERE status = $2
		  AND started_at < NOW() - make_interval(secs => $3)`,
		JobStatusPending, JobStatusRunning, threshold.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
