package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/cuongbtq/boq-ai/internal/boq/client"
	"github.com/cuongbtq/boq-ai/internal/boq/registry"
)

// Uploader transfers a file and resolves to the server job id.
type Uploader interface {
	Upload(ctx context.Context, up client.UploadRequest, onProgress client.ProgressFunc) (string, error)
}

// QueuedFunc is invoked once a job has a server id, to attach its poller.
type QueuedFunc func(clientKey, serverID string)

// Config holds dispatcher dependencies
type Config struct {
	Logger   *slog.Logger
	Registry *registry.Registry
	Uploader Uploader
	Standard string
	OnQueued QueuedFunc
}

// Dispatcher registers jobs and runs their uploads. It never retries:
// re-submitting is a user action.
type Dispatcher struct {
	logger   *slog.Logger
	registry *registry.Registry
	uploader Uploader
	standard string
	onQueued QueuedFunc
}

// Submission identifies a job created by Submit.
type Submission struct {
	ClientKey string
	ServerID  string
}

// New creates a Dispatcher.
func New(cfg *Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger:   logger,
		registry: cfg.Registry,
		uploader: cfg.Uploader,
		standard: cfg.Standard,
		onQueued: cfg.OnQueued,
	}
}

// Submit registers f and uploads it. On failure the job is left failed and
// the error returned; the submission still carries the client key.
func (d *Dispatcher) Submit(ctx context.Context, f File) (Submission, error) {
	key := d.registry.Create(f.Name)
	sub := Submission{ClientKey: key}

	serverID, err := d.transfer(ctx, key, f)
	if err != nil {
		d.logger.Error("Upload failed",
			slog.String("client_key", key),
			slog.String("file_name", f.Name),
			slog.String("error", err.Error()),
		)
		if failErr := d.registry.Fail(key, err); failErr != nil {
			d.logger.Warn("Failed to mark job as failed",
				slog.String("client_key", key),
				slog.String("error", failErr.Error()),
			)
		}
		return sub, err
	}

	if err := d.registry.MarkQueued(key, serverID); err != nil {
		if failErr := d.registry.Fail(key, err); failErr != nil {
			d.logger.Warn("Failed to mark job as failed",
				slog.String("client_key", key),
				slog.String("error", failErr.Error()),
			)
		}
		return sub, fmt.Errorf("recording server id: %w", err)
	}
	sub.ServerID = serverID

	d.logger.Info("Upload complete",
		slog.String("client_key", key),
		slog.String("server_id", serverID),
		slog.String("file_name", f.Name),
	)

	if d.onQueued != nil {
		d.onQueued(key, serverID)
	}
	return sub, nil
}

func (d *Dispatcher) transfer(ctx context.Context, key string, f File) (string, error) {
	if f.Open == nil {
		return "", errors.New("file has no content source")
	}
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()

	onProgress := func(sent, total int64) {
		if total <= 0 {
			return
		}
		pct := int(math.Round(float64(sent) / float64(total) * 100))
		if err := d.registry.SetProgress(key, pct); err != nil {
			d.logger.Debug("Progress update ignored",
				slog.String("client_key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	return d.uploader.Upload(ctx, client.UploadRequest{
		FileName: f.Name,
		Size:     f.Size,
		Content:  rc,
		Standard: d.standard,
	}, onProgress)
}
