package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/boq-ai/internal/worker/domain"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ClaimJob moves a queued job to started with optimistic locking on the status.
// Returns ErrJobAlreadyClaimed if the job is not queued.
func (s *Storage) ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error) {
	query := `
		UPDATE boq_jobs
		SET status = $1,
		    worker_id = $2,
		    attempts = attempts + 1,
		    started_at = NOW(),
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status = $4
		RETURNING job_id, file_name, stored_path, standard, status, worker_id, attempts
	`

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, domain.JobStatusStarted, workerID, jobID, domain.JobStatusQueued)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim job - already claimed or not found",
				slog.String("job_id", jobID),
				slog.String("worker_id", workerID),
			)
			return nil, domain.ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	s.logger.Info("Job claimed",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
		slog.Int("attempt", job.Attempts),
	)

	return &job, nil
}

// CompleteJob stores the takeoff result and marks the job finished
func (s *Storage) CompleteJob(ctx context.Context, jobID string, result *domain.Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
		UPDATE boq_jobs
		SET status = $1,
		    result = $2::jsonb,
		    error_message = '',
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3 AND status = $4
	`
	return s.transition(ctx, query, jobID, domain.JobStatusFinished, domain.JobStatusFinished, string(resultJSON), jobID, domain.JobStatusStarted)
}

// FailJob marks a started job failed with a message for the client
func (s *Storage) FailJob(ctx context.Context, jobID, message string) error {
	query := `
		UPDATE boq_jobs
		SET status = $1,
		    error_message = $2,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3 AND status = $4
	`
	return s.transition(ctx, query, jobID, domain.JobStatusFailed, domain.JobStatusFailed, message, jobID, domain.JobStatusStarted)
}

// ReleaseJob returns a started job to the queue so a retry can claim it
func (s *Storage) ReleaseJob(ctx context.Context, jobID string) error {
	query := `
		UPDATE boq_jobs
		SET status = $1,
		    worker_id = NULL,
		    updated_at = NOW()
		WHERE job_id = $2 AND status = $3
	`
	return s.transition(ctx, query, jobID, domain.JobStatusQueued, domain.JobStatusQueued, jobID, domain.JobStatusStarted)
}

func (s *Storage) transition(ctx context.Context, query, jobID, to string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job %s is not started: %w", jobID, domain.ErrJobAlreadyClaimed)
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", to),
	)
	return nil
}

// UpdateJobHeartbeat updates the last_heartbeat_at timestamp for a running job
func (s *Storage) UpdateJobHeartbeat(ctx context.Context, jobID string) error {
	query := `
		UPDATE boq_jobs
		SET last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $1 AND status = $2
	`

	result, err := s.db.ExecContext(ctx, query, jobID, domain.JobStatusStarted)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Job heartbeat update - no rows affected (job may not be running)",
			slog.String("job_id", jobID),
		)
	}

	return nil
}
