package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"ml-prediction-pipeline/internal/config"
	"ml-prediction-pipeline/internal/domain/model"
	queueport "ml-prediction-pipeline/internal/domain/ports/queue"
	"ml-prediction-pipeline/internal/infra/logging"
	"ml-prediction-pipeline/internal/worker"
)

var _ queueport.TaskConsumer = (*Consumer)(nil)

// Consumer pulls tasks off the durable queue and drives them through the
// handler. The broker's native requeue is never used: retries are modeled
// as fresh messages with an incremented counter, and exhaustion finalizes
// the prediction so the refund path always fires.
type Consumer struct {
	client    *Client
	queue     string
	ttl       time.Duration
	maxLength int
	handler   queueport.MessageHandler
	publisher queueport.TaskPublisher
	finalizer worker.Finalizer
	log       *zerolog.Logger
}

func NewConsumer(
	client *Client,
	cfg config.BrokerConfig,
	handler queueport.MessageHandler,
	publisher queueport.TaskPublisher,
	finalizer worker.Finalizer,
	log *zerolog.Logger,
) *Consumer {
	return &Consumer{
		client:    client,
		queue:     cfg.Queue,
		ttl:       cfg.MessageTTL,
		maxLength: cfg.MaxLength,
		handler:   handler,
		publisher: publisher,
		finalizer: finalizer,
		log:       log,
	}
}

// Start consumes until ctx is cancelled or the transport dies. Cancellation
// stops the intake of new deliveries only: processing happens inline and the
// in-flight delivery runs to completion, persists its terminal outcome and is
// acked before Start returns.
func (c *Consumer) Start(ctx context.Context) error {
	ch, err := c.client.Channel()
	if err != nil {
		return fmt.Errorf("consumer channel: %w", err)
	}
	if err := declareQueue(ch, c.queue, c.ttl, c.maxLength); err != nil {
		return fmt.Errorf("consumer queue declare: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.log.Info().Str("queue", c.queue).Msg("started consuming")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Str("queue", c.queue).Msg("stopped consuming")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed by broker")
			}
			c.process(ctx, d)
		}
	}
}

// process never lets one message take down the loop.
func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	// The loop context only governs the intake of deliveries. Shutdown must
	// not abort the task mid-flight: a cancelled context would kill the
	// inference call, refuse the retry republish and fail the finalizing
	// transaction, stranding a charged prediction in Processing after the ack.
	ctx = context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("panic while processing delivery")
			_ = d.Nack(false, false)
		}
	}()

	task, err := model.TaskMessageFromJSON(d.Body)
	if err != nil {
		// Undecodable bodies carry no prediction to settle; ack and drop.
		c.log.Error().Err(err).Msg("dropping malformed message")
		_ = d.Ack(false)
		return
	}

	ctx = logging.WithTaskID(ctx, task.TaskID)
	ctx = logging.WithPredictionID(ctx, task.PredictionID)
	ctx = logging.WithUserID(ctx, task.UserID)

	logging.With(ctx, c.log).Info().
		Int("retry", task.RetryCount).
		Msg("received task")

	done := c.handler(ctx, task)
	if !done {
		c.handleFailure(ctx, task)
	}

	// Ack regardless: retries ride a new message, never a redelivery.
	_ = d.Ack(false)
}

func (c *Consumer) handleFailure(ctx context.Context, task model.TaskMessage) {
	if task.CanRetry() {
		retry := task.IncrementRetry()
		c.log.Warn().
			Str("prediction_id", task.PredictionID).
			Int("retry", retry.RetryCount).
			Int("max_retries", retry.MaxRetries).
			Msg("task failed, scheduling retry")
		if !c.publisher.Publish(ctx, retry) {
			// The retry is lost; settle the prediction now rather than
			// stranding it in Processing.
			c.log.Error().Str("prediction_id", task.PredictionID).Msg("failed to republish retry")
			c.finalize(ctx, task, "task processing failed and retry could not be published")
		}
		return
	}

	c.log.Error().
		Str("prediction_id", task.PredictionID).
		Int("max_retries", task.MaxRetries).
		Msg("task failed permanently, retries exhausted")
	c.finalize(ctx, task, fmt.Sprintf("task processing failed after %d attempts", task.MaxRetries+1))
}

// finalize routes exhaustion through the same reconciliation path as any
// worker failure. It is a no-op when the worker already settled the
// prediction.
func (c *Consumer) finalize(ctx context.Context, task model.TaskMessage, reason string) {
	c.finalizer.Handle(ctx, worker.Result{
		TaskID:       task.TaskID,
		PredictionID: task.PredictionID,
		Success:      false,
		Err:          reason,
	})
}
