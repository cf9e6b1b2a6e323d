package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/boq-ai/internal/worker/domain"
)

// setupConsumer sets QoS and starts consuming with the worker id as tag
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	// Unacknowledged messages per consumer; keeps one worker from hoarding the queue.
	if err := w.queue.Qos(w.prefetchCount); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := w.queue.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("Queue consumer started",
		slog.Int("prefetch_count", w.prefetchCount),
	)

	return deliveries, nil
}

// parseMessage extracts and validates the job id of a delivery
func parseMessage(body []byte) (string, error) {
	var msg domain.JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}
	if _, err := uuid.Parse(msg.JobID); err != nil {
		return "", fmt.Errorf("%w: job_id %q is not a UUID", domain.ErrInvalidMessage, msg.JobID)
	}
	return msg.JobID, nil
}

// startMessageDispatcher hands deliveries to the pool until ctx ends or the
// delivery channel closes
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer close(w.jobsChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("Queue delivery channel closed")
				return
			}

			jobID, err := parseMessage(delivery.Body)
			if err != nil {
				w.logger.Error("Dropping malformed message",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				// Malformed messages go to the dead-letter queue, if one is bound.
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			select {
			case w.jobsChan <- &task{jobID: jobID, delivery: delivery}:
				w.logger.Debug("Job dispatched to worker pool",
					slog.String("job_id", jobID),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return
			case <-w.stopChan:
				_ = delivery.Nack(false, true)
				return
			}
		}
	}
}
