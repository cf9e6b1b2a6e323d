package model

import (
	"encoding/json"
	"time"
)

// Job is one row of the boq_jobs table
type Job struct {
	JobID        string          `db:"job_id"`
	FileName     string          `db:"file_name"`
	StoredPath   string          `db:"stored_path"`
	Standard     string          `db:"standard"`
	Status       string          `db:"status"`
	Result       json.RawMessage `db:"result"`
	ErrorMessage string          `db:"error_message"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}
