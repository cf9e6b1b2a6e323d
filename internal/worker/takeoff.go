package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cuongbtq/boq-ai/internal/worker/domain"
)

// Takeoff turns a stored drawing into a bill of quantities
type Takeoff interface {
	Run(ctx context.Context, job *domain.Job) (*domain.Result, error)
}

var drawingExtensions = []string{".dwg", ".dxf", ".zip"}

// MockTakeoff stands in for the CAD parser: after Delay it returns a single
// placeholder line item for any readable drawing.
type MockTakeoff struct {
	Delay time.Duration
}

func (m MockTakeoff) Run(ctx context.Context, job *domain.Job) (*domain.Result, error) {
	ext := strings.ToLower(filepath.Ext(job.FileName))
	if !slices.Contains(drawingExtensions, ext) {
		return nil, fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidDrawing, ext)
	}

	if _, err := os.Stat(job.StoredPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: drawing file is missing", domain.ErrInvalidDrawing)
		}
		return nil, domain.NewRetryableError(fmt.Errorf("stat drawing: %w", err))
	}

	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("takeoff canceled: %w", ctx.Err())
		}
	}

	return &domain.Result{
		File: job.FileName,
		Items: []domain.LineItem{
			{ItemCode: "A001", Description: "Mock Item", Quantity: 1, Unit: "m"},
		},
	}, nil
}
