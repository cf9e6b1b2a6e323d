package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/boq-ai/internal/api/domain"
	"github.com/cuongbtq/boq-ai/internal/api/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS boq_jobs (
	job_id            UUID PRIMARY KEY,
	file_name         TEXT        NOT NULL,
	stored_path       TEXT        NOT NULL,
	standard          TEXT        NOT NULL,
	status            TEXT        NOT NULL,
	result            JSONB,
	error_message     TEXT        NOT NULL DEFAULT '',
	worker_id         TEXT,
	attempts          INTEGER     NOT NULL DEFAULT 0,
	started_at        TIMESTAMPTZ,
	completed_at      TIMESTAMPTZ,
	last_heartbeat_at TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_boq_jobs_created ON boq_jobs (created_at DESC, job_id DESC);
CREATE INDEX IF NOT EXISTS idx_boq_jobs_status ON boq_jobs (status);
`

const jobColumns = `
	job_id, file_name, stored_path, standard, status,
	COALESCE(result, 'null'::jsonb) AS result, error_message,
	created_at, updated_at
`

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		db: db,
	}
}

// EnsureSchema creates the jobs table if it does not exist yet
func (s *Storage) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create boq_jobs schema: %w", err)
	}
	return nil
}

func (s *Storage) CreateJob(ctx context.Context, job *model.Job) error {
	query := `
		INSERT INTO boq_jobs (
			job_id, file_name, stored_path, standard,
			status, created_at, updated_at
		) VALUES (
			:job_id, :file_name, :stored_path, :standard,
			:status, :created_at, :updated_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// MarkFailed records a job that could not be handed to the queue
func (s *Storage) MarkFailed(ctx context.Context, jobID, message string) error {
	query := `
		UPDATE boq_jobs
		SET status = $1, error_message = $2, completed_at = NOW(), updated_at = NOW()
		WHERE job_id = $3
	`
	if _, err := s.db.ExecContext(ctx, query, domain.JobStatusFailed, message, jobID); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	query := `SELECT ` + jobColumns + ` FROM boq_jobs WHERE job_id = $1`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

type JobFilter struct {
	Status   string
	PageSize int
	Cursor   *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns up to PageSize+1 jobs, newest first; the extra row tells
// the caller whether another page exists.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM boq_jobs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []model.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}
