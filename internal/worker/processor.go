package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/boq-ai/internal/worker/domain"
)

// settleTimeout bounds status writes made after the job context ended
const settleTimeout = 5 * time.Second

// processJob claims a job, runs the takeoff under a timeout with heartbeats and
// records the outcome. The returned error drives the ACK/NACK decision.
func (w *Worker) processJob(ctx context.Context, jobID string) error {
	job, err := w.store.ClaimJob(ctx, jobID, w.workerID)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) {
			w.logger.Warn("Job already claimed, skipping", slog.String("job_id", jobID))
			return err
		}
		return domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	jobCtx := ctx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(jobCtx, job.JobID, heartbeatDone)
	defer close(heartbeatDone)

	start := time.Now()
	result, runErr := w.takeoff.Run(jobCtx, job)

	// The job context may be gone; final writes get their own deadline.
	writeCtx, cancelWrite := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancelWrite()

	if runErr == nil {
		if err := w.store.CompleteJob(writeCtx, job.JobID, result); err != nil {
			w.logger.Error("Failed to mark job finished",
				slog.String("job_id", job.JobID),
				slog.String("error", err.Error()),
			)
			return domain.NewRetryableError(err)
		}
		w.logger.Info("Job finished",
			slog.String("job_id", job.JobID),
			slog.String("file_name", job.FileName),
			slog.Int("items", len(result.Items)),
			slog.Duration("duration", time.Since(start)),
		)
		return nil
	}

	// Shutdown: hand the job back so another worker picks it up.
	if ctx.Err() != nil {
		if err := w.store.ReleaseJob(writeCtx, job.JobID); err != nil {
			w.logger.Error("Failed to release job on shutdown",
				slog.String("job_id", job.JobID),
				slog.String("error", err.Error()),
			)
		}
		return domain.NewRetryableError(runErr)
	}

	w.logger.Error("Takeoff failed",
		slog.String("job_id", job.JobID),
		slog.Int("attempt", job.Attempts),
		slog.String("error", runErr.Error()),
	)

	var retryable *domain.RetryableError
	if errors.As(runErr, &retryable) && job.Attempts < w.maxAttempts {
		if err := w.store.ReleaseJob(writeCtx, job.JobID); err != nil {
			w.logger.Error("Failed to release job for retry",
				slog.String("job_id", job.JobID),
				slog.String("error", err.Error()),
			)
		} else {
			w.logger.Info("Job will be retried",
				slog.String("job_id", job.JobID),
				slog.Int("attempt", job.Attempts),
				slog.Int("max_attempts", w.maxAttempts),
			)
			return runErr
		}
	}

	if err := w.store.FailJob(writeCtx, job.JobID, failureMessage(runErr)); err != nil {
		w.logger.Error("Failed to mark job failed",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	}

	if retryable != nil {
		return fmt.Errorf("%w: %v", domain.ErrMaxAttemptsExceeded, runErr)
	}
	return runErr
}

// failureMessage is what the client sees for a failed job
func failureMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "processing timed out"
	case errors.Is(err, domain.ErrInvalidDrawing):
		return err.Error()
	default:
		return "processing failed"
	}
}

// sendJobHeartbeat periodically updates the job's heartbeat timestamp
func (w *Worker) sendJobHeartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.UpdateJobHeartbeat(ctx, jobID); err != nil {
				w.logger.Warn("Failed to update job heartbeat",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
