package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/boq-ai/internal/boq/client"
	"github.com/cuongbtq/boq-ai/internal/boq/domain"
	"github.com/cuongbtq/boq-ai/internal/boq/registry"
)

// DefaultInterval is the gap between two status queries for one job.
const DefaultInterval = 2 * time.Second

var errJobTimeout = errors.New("job did not reach a terminal status in time")

// StatusSource answers status queries for a server job id.
type StatusSource interface {
	Status(ctx context.Context, jobID string) (client.StatusReport, error)
}

// Config holds poller configuration
type Config struct {
	Logger   *slog.Logger
	Registry *registry.Registry
	Source   StatusSource
	Interval time.Duration
	// MaxErrors is how many consecutive transport errors are tolerated
	// before the job fails. Zero fails on the first one.
	MaxErrors int
	// JobTimeout bounds how long a job may stay non-terminal. Zero disables it.
	JobTimeout time.Duration
}

// Poller runs one status loop per job and owns each loop's cancel handle.
type Poller struct {
	logger     *slog.Logger
	registry   *registry.Registry
	source     StatusSource
	interval   time.Duration
	maxErrors  int
	jobTimeout time.Duration

	mu      sync.Mutex
	handles map[string]*handle
	wg      sync.WaitGroup
}

// handle is the cancellation handle owned by one loop.
type handle struct {
	cancel context.CancelFunc
}

// New creates a Poller. A non-positive interval defaults to DefaultInterval.
func New(cfg *Config) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		logger:     logger,
		registry:   cfg.Registry,
		source:     cfg.Source,
		interval:   interval,
		maxErrors:  max(cfg.MaxErrors, 0),
		jobTimeout: cfg.JobTimeout,
		handles:    make(map[string]*handle),
	}
}

// Start attaches a loop to serverID. Starting an already polled job is a no-op.
func (p *Poller) Start(ctx context.Context, serverID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.handles[serverID]; ok {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	if p.jobTimeout > 0 {
		var cancelTimeout context.CancelFunc
		loopCtx, cancelTimeout = context.WithTimeoutCause(loopCtx, p.jobTimeout, errJobTimeout)
		parentCancel := cancel
		cancel = func() {
			cancelTimeout()
			parentCancel()
		}
	}
	h := &handle{cancel: cancel}
	p.handles[serverID] = h

	p.wg.Add(1)
	go p.loop(loopCtx, serverID, h)

	p.logger.Debug("Status polling started",
		slog.String("server_id", serverID),
		slog.Duration("interval", p.interval),
	)
}

// Stop cancels the loop for serverID, if any.
func (p *Poller) Stop(serverID string) {
	p.mu.Lock()
	h, ok := p.handles[serverID]
	delete(p.handles, serverID)
	p.mu.Unlock()

	if ok {
		h.cancel()
	}
}

// release drops h if it is still the registered handle for serverID.
func (p *Poller) release(serverID string, h *handle) {
	p.mu.Lock()
	if p.handles[serverID] == h {
		delete(p.handles, serverID)
	}
	p.mu.Unlock()
	h.cancel()
}

// StopAll cancels every loop.
func (p *Poller) StopAll() {
	p.mu.Lock()
	handles := p.handles
	p.handles = make(map[string]*handle)
	p.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
}

// Active returns the number of running loops.
func (p *Poller) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// Wait blocks until every loop has returned.
func (p *Poller) Wait() {
	p.wg.Wait()
}

func (p *Poller) loop(ctx context.Context, serverID string, h *handle) {
	defer p.wg.Done()
	defer p.release(serverID, h)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			p.handleCancel(ctx, serverID)
			return
		case <-ticker.C:
		}

		if p.pollOnce(ctx, serverID, &failures) {
			p.logger.Debug("Status polling stopped",
				slog.String("server_id", serverID),
			)
			return
		}
	}
}

// pollOnce issues one status query and applies it. It reports whether the
// loop must stop.
func (p *Poller) pollOnce(ctx context.Context, serverID string, failures *int) bool {
	job, err := p.registry.Get(serverID)
	if err != nil || job.IsDone() {
		return true
	}

	report, err := p.source.Status(ctx, serverID)
	if ctx.Err() != nil {
		p.handleCancel(ctx, serverID)
		return true
	}
	if err != nil {
		var transportErr *domain.TransportError
		if errors.As(err, &transportErr) && *failures < p.maxErrors {
			*failures++
			p.logger.Warn("Status query failed, will retry",
				slog.String("server_id", serverID),
				slog.Int("attempt", *failures),
				slog.Int("max_errors", p.maxErrors),
				slog.String("error", err.Error()),
			)
			return false
		}
		p.fail(serverID, err)
		return true
	}
	*failures = 0

	switch report.Status {
	case domain.StatusQueued, domain.StatusStarted:
		if err := p.registry.SetStatus(serverID, report.Status); err != nil {
			if errors.Is(err, domain.ErrTerminal) {
				return true
			}
			p.logger.Warn("Ignoring status report",
				slog.String("server_id", serverID),
				slog.String("status", report.Status.String()),
				slog.String("error", err.Error()),
			)
		}
		return false

	case domain.StatusFinished:
		if report.Result == nil {
			p.fail(serverID, &domain.FormatError{Field: "result.items"})
			return true
		}
		if err := p.registry.SetResult(serverID, *report.Result); err != nil && !errors.Is(err, domain.ErrTerminal) {
			p.logger.Error("Failed to record job result",
				slog.String("server_id", serverID),
				slog.String("error", err.Error()),
			)
			p.fail(serverID, err)
		}
		return true

	case domain.StatusFailed:
		msg := report.Error
		if msg == "" {
			msg = "processing failed on the server"
		}
		p.fail(serverID, &domain.ServerError{StatusCode: 200, Message: msg})
		return true

	default:
		p.fail(serverID, &domain.FormatError{Field: "status", Detail: fmt.Sprintf("unexpected value %q", report.Status)})
		return true
	}
}

// handleCancel fails the job only when its own timeout fired; shutdown
// cancellation leaves the record untouched.
func (p *Poller) handleCancel(ctx context.Context, serverID string) {
	if errors.Is(context.Cause(ctx), errJobTimeout) {
		p.fail(serverID, fmt.Errorf("%w (after %s)", errJobTimeout, p.jobTimeout))
	}
}

func (p *Poller) fail(serverID string, cause error) {
	if err := p.registry.Fail(serverID, cause); err != nil && !errors.Is(err, domain.ErrTerminal) {
		p.logger.Error("Failed to mark job as failed",
			slog.String("server_id", serverID),
			slog.String("error", err.Error()),
		)
	}
}
