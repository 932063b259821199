package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ml-prediction-pipeline/internal/domain"
	"ml-prediction-pipeline/internal/domain/model"
	"ml-prediction-pipeline/internal/domain/ports/repository"
)

var _ repository.PredictionRepository = (*predictionRepo)(nil)

type predictionRepo struct {
	pool *pgxpool.Pool
}

func NewPredictionRepo(pool *pgxpool.Pool) *predictionRepo {
	return &predictionRepo{pool: pool}
}

func (r *predictionRepo) Save(ctx context.Context, qx any, p *model.Prediction) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = time.Now().UTC()

	input, err := json.Marshal(p.Input)
	if err != nil {
		return err
	}
	var result []byte
	if p.Result != nil {
		if result, err = json.Marshal(p.Result); err != nil {
			return err
		}
	}

	const q = `
INSERT INTO predictions (id, user_id, model_id, input_data, result, status, cost_charged, error_message, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
  result = EXCLUDED.result,
  status = EXCLUDED.status,
  error_message = EXCLUDED.error_message,
  updated_at = EXCLUDED.updated_at;`

	_, err = execSQL(ctx, r.pool, qx, q,
		p.ID, p.UserID, p.ModelID, input, result, p.Status, p.CostCharged, nullIfEmpty(p.ErrorMessage), p.CreatedAt, p.UpdatedAt)
	return err
}

const predictionColumns = `
SELECT id, user_id, model_id, input_data, result, status, cost_charged, COALESCE(error_message, ''), created_at, updated_at
  FROM predictions`

func (r *predictionRepo) FindByID(ctx context.Context, qx any, id string) (*model.Prediction, error) {
	row, err := pickRow(ctx, r.pool, qx, predictionColumns+` WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanPrediction(row)
}

func (r *predictionRepo) FindByIDForUpdate(ctx context.Context, qx any, id string) (*model.Prediction, error) {
	row, err := pickRow(ctx, r.pool, qx, predictionColumns+` WHERE id=$1 FOR UPDATE;`, id)
	if err != nil {
		return nil, err
	}
	return scanPrediction(row)
}

// MarkProcessing claims the row only while it is not terminal; retried and
// redelivered tasks must not drag a finalized prediction back into flight.
func (r *predictionRepo) MarkProcessing(ctx context.Context, qx any, id string) error {
	const q = `
UPDATE predictions
   SET status=$2, updated_at=now()
 WHERE id=$1 AND status IN ($3, $4);`

	tag, err := execSQL(ctx, r.pool, qx, q, id,
		model.PredictionStatusProcessing, model.PredictionStatusPending, model.PredictionStatusProcessing)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.FindByID(ctx, qx, id); err != nil {
			return err
		}
		return domain.ErrPredictionFinalized
	}
	return nil
}

func scanPrediction(row pgx.Row) (*model.Prediction, error) {
	var (
		p          model.Prediction
		statusStr  string
		inputRaw   []byte
		resultRaw  []byte
	)
	err := row.Scan(&p.ID, &p.UserID, &p.ModelID, &inputRaw, &resultRaw, &statusStr, &p.CostCharged, &p.ErrorMessage, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	p.Status = model.PredictionStatus(statusStr)
	if len(inputRaw) > 0 {
		if err := json.Unmarshal(inputRaw, &p.Input); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	if len(resultRaw) > 0 {
		var res model.PredictionResult
		if err := json.Unmarshal(resultRaw, &res); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		p.Result = &res
	}
	return &p, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
