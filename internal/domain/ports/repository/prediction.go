package repository

import (
	"context"

	"ml-prediction-pipeline/internal/domain/model"
)

// PredictionRepository persists predictions and their status transitions.
type PredictionRepository interface {
	// Save upserts the prediction.
	Save(ctx context.Context, qx any, p *model.Prediction) error
	// FindByID returns domain.ErrNotFound when no row exists.
	FindByID(ctx context.Context, qx any, id string) (*model.Prediction, error)
	// FindByIDForUpdate locks the row for the duration of the enclosing
	// transaction. Callers must pass a live tx handle.
	FindByIDForUpdate(ctx context.Context, qx any, id string) (*model.Prediction, error)
	// MarkProcessing claims a non-terminal prediction for a worker. It
	// returns domain.ErrPredictionFinalized when the row is already
	// terminal and domain.ErrNotFound when it does not exist.
	MarkProcessing(ctx context.Context, qx any, id string) error
}
