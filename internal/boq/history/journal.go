package history

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/cuongbtq/boq-ai/internal/boq/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS job_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	client_key  TEXT    NOT NULL,
	server_id   TEXT    NOT NULL DEFAULT '',
	file_name   TEXT    NOT NULL,
	status      TEXT    NOT NULL,
	progress    INTEGER NOT NULL,
	error       TEXT    NOT NULL DEFAULT '',
	item_count  INTEGER NOT NULL DEFAULT 0,
	recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_job_events_client_key ON job_events (client_key, id);
`

// Entry is one committed job record.
type Entry struct {
	ID         int64     `db:"id"`
	ClientKey  string    `db:"client_key"`
	ServerID   string    `db:"server_id"`
	FileName   string    `db:"file_name"`
	Status     string    `db:"status"`
	Progress   int       `db:"progress"`
	Error      string    `db:"error"`
	ItemCount  int       `db:"item_count"`
	RecordedAt time.Time `db:"recorded_at"`
}

// Journal is an append-only audit trail of job records in SQLite.
// It implements registry.Observer.
type Journal struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open opens (or creates) the journal at path. ":memory:" is accepted for tests.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	// One connection keeps an in-memory database alive and avoids lock errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &Journal{db: db, logger: logger}, nil
}

// JobChanged appends next to the journal.
func (j *Journal) JobChanged(_, next domain.Job) {
	if err := j.Append(context.Background(), next); err != nil {
		j.logger.Error("Failed to append job history",
			slog.String("client_key", next.ClientKey),
			slog.String("error", err.Error()),
		)
	}
}

// Append records one job snapshot.
func (j *Journal) Append(ctx context.Context, job domain.Job) error {
	items := 0
	if job.Result != nil {
		items = len(job.Result.Items)
	}
	entry := Entry{
		ClientKey:  job.ClientKey,
		ServerID:   job.ServerID,
		FileName:   job.FileName,
		Status:     job.Status.String(),
		Progress:   job.UploadProgress,
		Error:      job.Error,
		ItemCount:  items,
		RecordedAt: job.UpdatedAt.UTC(),
	}
	_, err := j.db.NamedExecContext(ctx, `
		INSERT INTO job_events (client_key, server_id, file_name, status, progress, error, item_count, recorded_at)
		VALUES (:client_key, :server_id, :file_name, :status, :progress, :error, :item_count, :recorded_at)
	`, entry)
	if err != nil {
		return fmt.Errorf("failed to insert job event: %w", err)
	}
	return nil
}

// List returns the trail for one job, oldest first.
func (j *Journal) List(ctx context.Context, clientKey string) ([]Entry, error) {
	var entries []Entry
	err := j.db.SelectContext(ctx, &entries, `
		SELECT id, client_key, server_id, file_name, status, progress, error, item_count, recorded_at
		FROM job_events
		WHERE client_key = ?
		ORDER BY id
	`, clientKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list job events: %w", err)
	}
	return entries, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
