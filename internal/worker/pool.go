package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/boq-ai/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned",
		slog.Int("worker_count", w.concurrency),
	)
}

// workerLoop processes tasks until the dispatcher closes jobsChan
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)

	for t := range w.jobsChan {
		w.logger.Debug("Worker received job",
			slog.String("worker_name", workerName),
			slog.String("job_id", t.jobID),
		)

		err := w.processJob(ctx, t.jobID)
		w.settle(t, err)
	}
}

// settle ACKs or NACKs a delivery according to the processing outcome
func (w *Worker) settle(t *task, err error) {
	if err == nil || errors.Is(err, domain.ErrJobAlreadyClaimed) {
		// A job that is no longer queued was handled by an earlier delivery.
		if ackErr := t.delivery.Ack(false); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("job_id", t.jobID),
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	requeue := shouldRequeueJob(err)
	if nackErr := t.delivery.Nack(false, requeue); nackErr != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("job_id", t.jobID),
			slog.String("error", nackErr.Error()),
		)
		return
	}

	w.logger.Info("Message NACKed",
		slog.String("job_id", t.jobID),
		slog.Bool("requeue", requeue),
		slog.String("error", err.Error()),
	)
}
