// Package worker runs the background job pool that drives the render
// pipeline. Jobs live in Postgres; delivery is at-least-once with bounded
// retries, exponential backoff with jitter, and a per-job wall-clock
// timeout. A periodic sweep recovers jobs (and rendering leases) orphaned
// by crashed workers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/printforge/printforge/internal/metrics"
	"github.com/printforge/printforge/internal/repository"
)

// Worker manages background job processing with concurrent workers.
type Worker struct {
	queries  *repository.Queries
	handlers map[string]JobHandler
	config   Config
	logger   *slog.Logger

	// Synchronization
	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New creates a new Worker with the given configuration.
// The worker must be started with Start() and stopped with Stop().
func New(queries *repository.Queries, config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		queries:  queries,
		handlers: make(map[string]JobHandler),
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Register adds a job handler to the worker.
// The handler's Type() must be unique. Call this before Start().
func (w *Worker) Register(handler JobHandler) {
	jobType := handler.Type()
	if _, exists := w.handlers[jobType]; exists {
		w.logger.Warn("Overwriting existing handler", "job_type", jobType)
	}
	w.handlers[jobType] = handler
	w.logger.Debug("Registered job handler", "job_type", jobType)
}

// Start begins processing jobs with the configured number of concurrent
// workers, plus a sweeper goroutine that recovers stale work.
func (w *Worker) Start(ctx context.Context) {
	w.sweepStale(ctx)

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i+1)
	}

	w.wg.Add(1)
	go w.runSweeper(ctx)

	w.logger.Info("Worker started", "concurrency", w.config.Concurrency)
}

// Stop signals all workers to stop and waits for them to finish.
// It respects the configured ShutdownTimeout.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopCh)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Worker shutdown timeout exceeded, some jobs may still be running")
	}
}

// runSweeper periodically recovers stale jobs and stale rendering leases.
func (w *Worker) runSweeper(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.StaleThreshold)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweepStale(ctx)
		}
	}
}

// sweepStale releases designs stuck in rendering back to draft, then
// returns stale running jobs to pending. Designs first, so a re-queued
// job finds a claimable design.
func (w *Worker) sweepStale(ctx context.Context) {
	released, err := w.queries.ReleaseStaleRenders(ctx, w.config.StaleThreshold)
	if err != nil {
		w.logger.Error("Failed to release stale renders", "error", err)
	} else if released > 0 {
		w.logger.Warn("Released stale rendering leases", "count", released, "threshold", w.config.StaleThreshold)
	}

	recovered, err := w.queries.RecoverStaleJobs(ctx, w.config.StaleThreshold)
	if err != nil {
		w.logger.Error("Failed to recover stale jobs", "error", err)
	} else if recovered > 0 {
		w.logger.Warn("Recovered stale jobs", "count", recovered, "threshold", w.config.StaleThreshold)
	}
}

// runWorker is the main loop for a worker goroutine.
// It continuously polls for jobs until stopCh is closed.
func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger := w.logger.With("worker_id", workerID)
	logger.Debug("Worker started")

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			logger.Debug("Worker stopping")
			return
		case <-ticker.C:
			// Drain available jobs before going back to sleep.
			for {
				err := w.processNextJob(ctx, logger)
				if err != nil {
					if !errors.Is(err, pgx.ErrNoRows) {
						logger.Error("Failed to process job", "error", err)
					}
					break
				}
			}
		}
	}
}

// processNextJob attempts to dequeue and execute a single job.
// Returns pgx.ErrNoRows if no jobs are available.
func (w *Worker) processNextJob(ctx context.Context, logger *slog.Logger) error {
	// Dequeue and mark running in one transaction; the row lock from
	// FOR UPDATE SKIP LOCKED is held until commit.
	tx, qtx, err := w.queries.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	job, err := qtx.DequeueJob(ctx)
	if err != nil {
		return err // pgx.ErrNoRows when the queue is empty
	}
	if err := qtx.UpdateJobStarted(ctx, job.ID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit dequeue: %w", err)
	}

	logger = logger.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts+1)
	logger.Info("Processing job")
	start := time.Now()

	if err := w.executeJob(ctx, job); err != nil {
		logger.Error("Job failed", "error", err)
		w.markJobFailed(ctx, job, err)
		metrics.JobFailed(job.JobType)
		return nil
	}

	if err := w.queries.UpdateJobCompleted(ctx, job.ID); err != nil {
		logger.Error("Failed to mark job as completed", "error", err)
		return err
	}

	logger.Info("Job completed", "duration", time.Since(start))
	metrics.JobCompleted(job.JobType, time.Since(start))
	return nil
}

// executeJob runs the appropriate handler for the job with a timeout context.
func (w *Worker) executeJob(ctx context.Context, job *repository.Job) error {
	handler, ok := w.handlers[job.JobType]
	if !ok {
		// No handler registered - this is a permanent error
		return NewPermanentError(fmt.Errorf("no handler registered for job type: %s", job.JobType))
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	return handler.Handle(jobCtx, job.Payload)
}

// markJobFailed applies the retry policy after a handler error. Permanent
// errors and exhausted attempts abandon the job; anything else is
// rescheduled with exponential backoff and jitter. Attempts was already
// bumped when the job started.
func (w *Worker) markJobFailed(ctx context.Context, job *repository.Job, jobErr error) {
	attempts := job.Attempts + 1
	errorMessage := jobErr.Error()

	if IsPermanent(jobErr) {
		w.logger.Warn("Job failed with permanent error, will not retry", "job_id", job.ID, "error", errorMessage)
		if err := w.queries.UpdateJobFailed(ctx, job.ID, errorMessage); err != nil {
			w.logger.Error("Failed to mark job as failed", "job_id", job.ID, "error", err)
		}
		return
	}

	if attempts >= job.MaxAttempts {
		w.logger.Warn("Job exhausted retries", "job_id", job.ID, "attempts", attempts, "error", errorMessage)
		if err := w.queries.UpdateJobFailed(ctx, job.ID, errorMessage); err != nil {
			w.logger.Error("Failed to mark job as failed", "job_id", job.ID, "error", err)
		}
		return
	}

	delay := retryDelay(w.config.RetryBaseDelay, int(attempts))
	if err := w.queries.RescheduleJob(ctx, job.ID, errorMessage, delay); err != nil {
		w.logger.Error("Failed to reschedule job", "job_id", job.ID, "error", err)
		return
	}
	w.logger.Info("Job rescheduled", "job_id", job.ID, "attempt", attempts, "delay", delay)
	metrics.JobRetried(job.JobType)
}

// retryDelay computes base * 2^(attempt-1) with up to 25% random jitter
// added, capped at one hour.
func retryDelay(base time.Duration, attempt int) time.Duration {
	const maxDelay = time.Hour

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			delay = maxDelay
			break
		}
	}

	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	delay += jitter
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
