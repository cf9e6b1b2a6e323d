package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/boq-ai/internal/api/domain"
	"github.com/cuongbtq/boq-ai/internal/api/dto"
	"github.com/cuongbtq/boq-ai/internal/api/model"
	"github.com/cuongbtq/boq-ai/internal/api/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type jobMessage struct {
	JobID string `json:"job_id"`
}

// SubmitDrawing handles POST /api/boq
// Stores the uploaded drawing, records a queued job and hands it to the workers
func (h *JobHandler) SubmitDrawing(c *gin.Context) {
	if h.maxUploadSize > 0 {
		if c.Request.ContentLength > h.maxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "File too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "File too large"})
			return
		}
		h.logger.Warn("No file received in the request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "No file provided"})
		return
	}
	if fh.Filename == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "No file provided"})
		return
	}

	standard, err := domain.NormalizeStandard(c.PostForm("standard"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Unknown measurement standard"})
		return
	}

	ctx := c.Request.Context()
	jobID := uuid.New().String()

	src, err := fh.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to read uploaded file"})
		return
	}
	defer src.Close()

	storedPath, err := h.drawings.Save(jobID, fh.Filename, src)
	if err != nil {
		h.logger.Error("Failed to store drawing",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to store drawing"})
		return
	}

	h.logger.Info("Received drawing",
		slog.String("job_id", jobID),
		slog.String("file_name", fh.Filename),
		slog.Int64("size", fh.Size),
		slog.String("stored_path", storedPath),
		slog.String("standard", standard),
	)

	now := time.Now().UTC()
	job := model.Job{
		JobID:      jobID,
		FileName:   fh.Filename,
		StoredPath: storedPath,
		Standard:   standard,
		Status:     domain.JobStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.jobs.CreateJob(ctx, &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		if rmErr := h.drawings.Remove(jobID); rmErr != nil {
			h.logger.Warn("Failed to remove orphaned drawing",
				slog.String("job_id", jobID),
				slog.String("error", rmErr.Error()),
			)
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create job"})
		return
	}

	body, _ := json.Marshal(jobMessage{JobID: jobID})
	if err := h.publisher.PublishWithRetry(ctx, body, "application/json"); err != nil {
		h.logger.Error("Failed to enqueue job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		if markErr := h.jobs.MarkFailed(ctx, jobID, "failed to enqueue job"); markErr != nil {
			h.logger.Error("Failed to mark job failed",
				slog.String("job_id", jobID),
				slog.String("error", markErr.Error()),
			)
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to enqueue job"})
		return
	}

	h.logger.Info("Job enqueued", slog.String("job_id", jobID))
	c.JSON(http.StatusAccepted, dto.CreateJobResponse{JobID: jobID})
}

// GetStatus handles GET /status/:job_id
func (h *JobHandler) GetStatus(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Job not found"})
		return
	}

	job, err := h.jobs.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Job not found"})
			return
		}
		h.logger.Error("Failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get job"})
		return
	}

	resp := dto.StatusResponse{
		JobID:  job.JobID,
		Status: job.Status,
	}
	switch job.Status {
	case domain.JobStatusFinished:
		resp.Result = job.Result
	case domain.JobStatusFailed:
		resp.Error = job.ErrorMessage
	}

	c.JSON(http.StatusOK, resp)
}

// ListJobs handles GET /api/jobs
// Lists jobs newest first with optional status filter and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid query parameters"})
		return
	}

	if req.Status != "" && !domain.IsValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid status filter"})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	req.PageSize = min(req.PageSize, maxPageSize)

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid cursor"})
		return
	}

	jobs, err := h.jobs.ListJobs(c.Request.Context(), storage.JobFilter{
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list jobs"})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	out := make([]dto.JobDTO, len(jobs))
	for i, job := range jobs {
		out[i] = dto.JobDTO{
			JobID:     job.JobID,
			FileName:  job.FileName,
			Standard:  job.Standard,
			Status:    job.Status,
			Error:     job.ErrorMessage,
			CreatedAt: job.CreatedAt.Format(time.RFC3339),
			UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
		}
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(storage.JobCursor{CreatedAt: last.CreatedAt, JobID: last.JobID})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       out,
		NextCursor: nextCursor,
	})
}
