package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/boq-ai/internal/boq/dispatcher"
	"github.com/cuongbtq/boq-ai/internal/boq/domain"
	"github.com/cuongbtq/boq-ai/internal/boq/poller"
	"github.com/cuongbtq/boq-ai/internal/boq/registry"
)

// Config holds orchestrator configuration
type Config struct {
	Logger        *slog.Logger
	Uploader      dispatcher.Uploader
	Source        poller.StatusSource
	Notifier      Notifier
	Standard      string
	PollInterval  time.Duration
	MaxPollErrors int
	JobTimeout    time.Duration
}

// Orchestrator is the single owner of a session's jobs: it dispatches
// uploads, attaches pollers, and reports terminal outcomes.
type Orchestrator struct {
	logger     *slog.Logger
	registry   *registry.Registry
	dispatcher *dispatcher.Dispatcher
	poller     *poller.Poller
	notifier   Notifier

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	changed chan struct{}
}

// New wires a registry, dispatcher and poller together.
func New(cfg *Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}

	ctx, cancel := context.WithCancel(context.Background())
	reg := registry.New(logger)

	o := &Orchestrator{
		logger:   logger,
		registry: reg,
		notifier: notifier,
		ctx:      ctx,
		cancel:   cancel,
		changed:  make(chan struct{}),
	}

	o.poller = poller.New(&poller.Config{
		Logger:     logger,
		Registry:   reg,
		Source:     cfg.Source,
		Interval:   cfg.PollInterval,
		MaxErrors:  cfg.MaxPollErrors,
		JobTimeout: cfg.JobTimeout,
	})

	o.dispatcher = dispatcher.New(&dispatcher.Config{
		Logger:   logger,
		Registry: reg,
		Uploader: cfg.Uploader,
		Standard: cfg.Standard,
		OnQueued: func(_, serverID string) {
			o.poller.Start(o.ctx, serverID)
		},
	})

	reg.Observe(registry.ObserverFunc(o.jobChanged))
	return o
}

// Registry exposes the job store, e.g. to attach further observers.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// Jobs returns a snapshot of every job in submission order.
func (o *Orchestrator) Jobs() []domain.Job {
	return o.registry.All()
}

// Submit uploads one file and attaches a poller when the upload succeeds.
func (o *Orchestrator) Submit(ctx context.Context, f dispatcher.File) (dispatcher.Submission, error) {
	return o.dispatcher.Submit(ctx, f)
}

// SubmitAll uploads files concurrently. A failing upload never cancels its
// siblings; the returned error joins every individual failure.
func (o *Orchestrator) SubmitAll(ctx context.Context, files []dispatcher.File) ([]dispatcher.Submission, error) {
	subs := make([]dispatcher.Submission, len(files))
	errs := make([]error, len(files))

	var g errgroup.Group
	for i, f := range files {
		g.Go(func() error {
			sub, err := o.dispatcher.Submit(ctx, f)
			subs[i] = sub
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", f.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return subs, errors.Join(errs...)
}

// Wait blocks until every job created so far is terminal, or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) error {
	for {
		ch := o.changedChan()
		if allDone(o.registry.All()) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Await blocks until the job addressed by ref is terminal and returns it.
func (o *Orchestrator) Await(ctx context.Context, ref string) (domain.Job, error) {
	for {
		ch := o.changedChan()
		job, err := o.registry.Get(ref)
		if err != nil {
			return domain.Job{}, err
		}
		if job.IsDone() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ch:
		}
	}
}

// Close stops every poll loop and waits for them to return. Jobs that are
// still running keep their last recorded status.
func (o *Orchestrator) Close() {
	o.cancel()
	o.poller.StopAll()
	o.poller.Wait()
}

func (o *Orchestrator) jobChanged(prev, next domain.Job) {
	if !prev.IsDone() && next.IsDone() {
		o.poller.Stop(next.ServerID)
		o.notifier.Notify(notificationFor(next))
	}

	o.mu.Lock()
	close(o.changed)
	o.changed = make(chan struct{})
	o.mu.Unlock()
}

func (o *Orchestrator) changedChan() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.changed
}

func allDone(jobs []domain.Job) bool {
	for _, j := range jobs {
		if !j.IsDone() {
			return false
		}
	}
	return true
}
