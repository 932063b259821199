package rabbitmq

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"ml-prediction-pipeline/internal/config"
	"ml-prediction-pipeline/internal/domain/model"
	queueport "ml-prediction-pipeline/internal/domain/ports/queue"
	"ml-prediction-pipeline/internal/infra/metrics"
)

// The queue carries broker message priorities up to HIGH.
const maxQueuePriority = 10

var _ queueport.TaskPublisher = (*Publisher)(nil)

// Publisher turns a TaskMessage into a durable, priority-tagged queue entry.
type Publisher struct {
	client    *Client
	queue     string
	ttl       time.Duration
	maxLength int
	log       *zerolog.Logger
}

func NewPublisher(client *Client, cfg config.BrokerConfig, log *zerolog.Logger) *Publisher {
	return &Publisher{
		client:    client,
		queue:     cfg.Queue,
		ttl:       cfg.MessageTTL,
		maxLength: cfg.MaxLength,
		log:       log,
	}
}

// Publish never returns an error. A false return means dispatch is unknown or
// failed; the caller leaves the prediction Pending rather than rolling back.
func (p *Publisher) Publish(ctx context.Context, task model.TaskMessage) bool {
	if err := ctx.Err(); err != nil {
		p.log.Error().Err(err).Str("task_id", task.TaskID).Msg("publish aborted")
		metrics.IncPublishFailure()
		return false
	}

	ch, err := p.client.Channel()
	if err != nil {
		p.log.Error().Err(err).Str("task_id", task.TaskID).Msg("failed to obtain channel for publish")
		metrics.IncPublishFailure()
		return false
	}

	if err := declareQueue(ch, p.queue, p.ttl, p.maxLength); err != nil {
		p.log.Error().Err(err).Str("queue", p.queue).Msg("queue declare failed")
		metrics.IncPublishFailure()
		return false
	}

	body, err := task.ToJSON()
	if err != nil {
		p.log.Error().Err(err).Str("task_id", task.TaskID).Msg("task serialization failed")
		metrics.IncPublishFailure()
		return false
	}

	err = ch.Publish(
		"",      // default exchange
		p.queue, // routing key equals the queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Priority:     uint8(task.Priority),
			MessageId:    task.TaskID,
			Timestamp:    task.CreatedAt,
			Body:         body,
		},
	)
	if err != nil {
		p.log.Error().Err(err).Str("task_id", task.TaskID).Msg("publish failed")
		metrics.IncPublishFailure()
		return false
	}

	metrics.IncPublished(task.Priority.String())
	p.log.Info().
		Str("prediction_id", task.PredictionID).
		Str("priority", task.Priority.String()).
		Int("retry", task.RetryCount).
		Msg("task published")
	return true
}

// declareQueue is idempotent: the broker accepts re-declaration with
// identical arguments. TTL and max length make overflow the broker's
// problem, not the application's.
func declareQueue(ch *amqp.Channel, name string, ttl time.Duration, maxLength int) error {
	_, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-message-ttl":  int32(ttl / time.Millisecond),
			"x-max-length":   int32(maxLength),
			"x-max-priority": int32(maxQueuePriority),
		},
	)
	return err
}
