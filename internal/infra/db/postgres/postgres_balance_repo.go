package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ml-prediction-pipeline/internal/domain"
	"ml-prediction-pipeline/internal/domain/model"
	"ml-prediction-pipeline/internal/domain/ports/repository"
)

var _ repository.BalanceRepository = (*balanceRepo)(nil)

type balanceRepo struct {
	pool *pgxpool.Pool
}

func NewBalanceRepo(pool *pgxpool.Pool) *balanceRepo {
	return &balanceRepo{pool: pool}
}

func (r *balanceRepo) FindByUserID(ctx context.Context, qx any, userID string) (*model.UserBalance, error) {
	const q = `
SELECT id, user_id, balance, created_at, updated_at
  FROM user_balances WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, userID)
	if err != nil {
		return nil, err
	}
	var b model.UserBalance
	if err := row.Scan(&b.ID, &b.UserID, &b.Balance, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *balanceRepo) Save(ctx context.Context, qx any, b *model.UserBalance) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.UpdatedAt = time.Now().UTC()

	const q = `
INSERT INTO user_balances (id, user_id, balance, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET
  balance = EXCLUDED.balance,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, qx, q, b.ID, b.UserID, b.Balance, b.CreatedAt, b.UpdatedAt)
	return err
}

// DeductIfSufficient is a single conditional update: the balance check and
// the decrement are one statement, so concurrent deductions for the same
// user cannot observe a stale balance.
func (r *balanceRepo) DeductIfSufficient(ctx context.Context, qx any, userID string, amount float64) (bool, error) {
	const q = `
UPDATE user_balances
   SET balance = balance - $2, updated_at = now()
 WHERE user_id = $1 AND balance >= $2;`

	tag, err := execSQL(ctx, r.pool, qx, q, userID, amount)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *balanceRepo) Credit(ctx context.Context, qx any, userID string, amount float64) (bool, error) {
	const q = `
UPDATE user_balances
   SET balance = balance + $2, updated_at = now()
 WHERE user_id = $1;`

	tag, err := execSQL(ctx, r.pool, qx, q, userID, amount)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
