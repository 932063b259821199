package adapter

import (
	"context"
	"errors"

	"ml-prediction-pipeline/internal/domain/model"
)

// Failure categories an inference call can produce. Adapters wrap these so
// callers can classify with errors.Is while still logging the full cause.
var (
	ErrTimeout           = errors.New("ml backend timed out")
	ErrUnreachable       = errors.New("ml backend unreachable")
	ErrBadStatus         = errors.New("ml backend returned non-success status")
	ErrMalformedResponse = errors.New("ml backend returned malformed response")
)

// MLServiceAdapter is the contract to the external inference backend.
type MLServiceAdapter interface {
	// Chat sends the ordered turns (history plus the new user turn last)
	// and returns the assistant's text content.
	Chat(ctx context.Context, modelID string, turns []model.ChatTurn) (string, error)
	// HealthCheck reports whether the backend answers at all.
	HealthCheck(ctx context.Context) error
}
