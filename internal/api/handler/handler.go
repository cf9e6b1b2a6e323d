package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/cuongbtq/boq-ai/internal/api/model"
	"github.com/cuongbtq/boq-ai/internal/api/storage"
)

// JobStore persists BoQ jobs
type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) error
	MarkFailed(ctx context.Context, jobID, message string) error
	GetJobByID(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.Job, error)
}

// DrawingSaver stores uploaded drawings
type DrawingSaver interface {
	Save(jobID, fileName string, r io.Reader) (string, error)
	Remove(jobID string) error
}

// Publisher hands job messages to the worker queue
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger        *slog.Logger
	Jobs          JobStore
	Drawings      DrawingSaver
	Publisher     Publisher
	Health        HealthChecker
	MaxUploadSize int64
	ServiceName   string
}

// JobHandler handles BoQ job HTTP requests
type JobHandler struct {
	logger        *slog.Logger
	jobs          JobStore
	drawings      DrawingSaver
	publisher     Publisher
	maxUploadSize int64
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:        deps.Logger,
		jobs:          deps.Jobs,
		drawings:      deps.Drawings,
		publisher:     deps.Publisher,
		maxUploadSize: deps.MaxUploadSize,
	}
}

// ExcelHandler renders priced BoQ items as a spreadsheet
type ExcelHandler struct {
	logger *slog.Logger
}

// NewExcelHandler creates a new ExcelHandler instance
func NewExcelHandler(deps *Dependencies) *ExcelHandler {
	return &ExcelHandler{logger: deps.Logger}
}
