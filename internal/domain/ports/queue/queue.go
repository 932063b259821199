package queue

import (
	"context"

	"ml-prediction-pipeline/internal/domain/model"
)

// MessageHandler processes one delivered task. It returns true when the task
// reached a terminal outcome (completed, or failed with nothing left to do)
// and false when it failed transiently and may be republished for retry.
type MessageHandler func(ctx context.Context, task model.TaskMessage) bool

// TaskPublisher enqueues a task. Publish never returns an error: transport
// failures are logged and reported as false, and the caller must treat false
// as "dispatch unknown, prediction remains pending".
type TaskPublisher interface {
	Publish(ctx context.Context, task model.TaskMessage) bool
}

// TaskConsumer drives deliveries through a MessageHandler until the context
// is cancelled or the transport fails.
type TaskConsumer interface {
	Start(ctx context.Context) error
}
