package dto

import (
	"encoding/json"

	"github.com/cuongbtq/boq-ai/internal/workbook"
)

type CreateJobResponse struct {
	JobID string `json:"job_id"`
}

// StatusResponse is the GET /status/:job_id body. Result is null until the
// job is finished; Error is set only for failed jobs.
type StatusResponse struct {
	JobID  string          `json:"job_id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

type ListJobsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID     string `json:"job_id"`
	FileName  string `json:"file_name"`
	Standard  string `json:"standard"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type GenerateExcelRequest struct {
	BoqItems []workbook.Row `json:"boqItems"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
