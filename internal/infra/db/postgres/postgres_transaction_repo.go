package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"ml-prediction-pipeline/internal/domain/model"
	"ml-prediction-pipeline/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

// Save is insert-only. Ledger rows are never updated or deleted.
func (r *transactionRepo) Save(ctx context.Context, qx any, t *model.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = model.TransactionStatusCompleted
	}

	const q = `
INSERT INTO transactions (id, user_id, type, amount, status, description, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

	_, err := execSQL(ctx, r.pool, qx, q, t.ID, t.UserID, t.Type, t.Amount, t.Status, t.Description, t.CreatedAt)
	return err
}

func (r *transactionRepo) ListByUserID(ctx context.Context, qx any, userID string) ([]*model.Transaction, error) {
	const q = `
SELECT id, user_id, type, amount, status, COALESCE(description, ''), created_at
  FROM transactions WHERE user_id=$1 ORDER BY created_at;`

	rows, err := pickRows(ctx, r.pool, qx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Transaction
	for rows.Next() {
		var (
			t       model.Transaction
			typeStr string
			stStr   string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &typeStr, &t.Amount, &stStr, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Type = model.TransactionType(typeStr)
		t.Status = model.TransactionStatus(stStr)
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *transactionRepo) SumByUserID(ctx context.Context, qx any, userID string) (float64, error) {
	row, err := pickRow(ctx, r.pool, qx, `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id=$1;`, userID)
	if err != nil {
		return 0, err
	}
	var sum float64
	if err := row.Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}
