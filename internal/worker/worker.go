package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/boq-ai/internal/worker/domain"
)

// JobStore is the worker's view of the jobs table
type JobStore interface {
	ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error)
	CompleteJob(ctx context.Context, jobID string, result *domain.Result) error
	FailJob(ctx context.Context, jobID, message string) error
	ReleaseJob(ctx context.Context, jobID string) error
	UpdateJobHeartbeat(ctx context.Context, jobID string) error
}

// Queue delivers job messages
type Queue interface {
	Qos(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Store             JobStore
	Queue             Queue
	Takeoff           Takeoff
	WorkerID          string
	Concurrency       int
	PrefetchCount     int
	MaxAttempts       int
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
}

// Worker consumes BoQ jobs from the queue and runs takeoffs with a goroutine pool
type Worker struct {
	logger            *slog.Logger
	store             JobStore
	queue             Queue
	takeoff           Takeoff
	workerID          string
	concurrency       int
	prefetchCount     int
	maxAttempts       int
	jobTimeout        time.Duration
	heartbeatInterval time.Duration

	jobsChan chan *task
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// task is a parsed delivery waiting for a pool goroutine
type task struct {
	jobID    string
	delivery amqp.Delivery
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	workerID := cfg.WorkerID
	if workerID == "" {
		host, _ := os.Hostname()
		workerID = host + "-" + uuid.NewString()[:8]
	}

	concurrency := max(cfg.Concurrency, 1)
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}

	return &Worker{
		logger:            cfg.Logger.With(slog.String("worker_id", workerID)),
		store:             cfg.Store,
		queue:             cfg.Queue,
		takeoff:           cfg.Takeoff,
		workerID:          workerID,
		concurrency:       concurrency,
		prefetchCount:     prefetch,
		maxAttempts:       maxAttempts,
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: heartbeat,
		jobsChan:          make(chan *task),
		stopChan:          make(chan struct{}),
	}
}

// Start subscribes to the queue, spawns the pool and blocks until ctx is done
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
		slog.Int("max_attempts", w.maxAttempts),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.startMessageDispatcher(ctx, deliveries)
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("Worker context canceled, stopping...")
	case <-w.stopChan:
	}
	return nil
}

// Stop signals every goroutine to finish and waits for them
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// shouldRequeueJob determines if a failed delivery should go back to the queue
func shouldRequeueJob(err error) bool {
	switch {
	case errors.Is(err, domain.ErrMaxAttemptsExceeded),
		errors.Is(err, domain.ErrInvalidMessage),
		errors.Is(err, domain.ErrInvalidDrawing):
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
