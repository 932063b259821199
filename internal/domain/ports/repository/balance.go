package repository

import (
	"context"

	"ml-prediction-pipeline/internal/domain/model"
)

// BalanceRepository is the only reader/writer of user balance rows.
type BalanceRepository interface {
	// FindByUserID returns domain.ErrNotFound when the user has no row.
	FindByUserID(ctx context.Context, qx any, userID string) (*model.UserBalance, error)
	Save(ctx context.Context, qx any, b *model.UserBalance) error
	// DeductIfSufficient atomically decrements the balance when it covers
	// amount. It reports false, without mutation, when it does not.
	DeductIfSufficient(ctx context.Context, qx any, userID string, amount float64) (bool, error)
	// Credit increments an existing balance row. It reports false when the
	// user has no row.
	Credit(ctx context.Context, qx any, userID string, amount float64) (bool, error)
}

// TransactionRepository appends and reads immutable ledger rows.
type TransactionRepository interface {
	Save(ctx context.Context, qx any, t *model.Transaction) error
	ListByUserID(ctx context.Context, qx any, userID string) ([]*model.Transaction, error)
	// SumByUserID returns the signed sum of a user's ledger rows, which must
	// equal their current balance.
	SumByUserID(ctx context.Context, qx any, userID string) (float64, error)
}
