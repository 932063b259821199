package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ml-prediction-pipeline/internal/domain"
	"ml-prediction-pipeline/internal/domain/model"
	"ml-prediction-pipeline/internal/domain/ports/repository"
	"ml-prediction-pipeline/internal/infra/metrics"
)

// BalanceUseCase is the only writer of user balance. Every mutation is
// paired with an immutable ledger row in the same database transaction, so
// the signed sum of a user's transactions always equals their balance.
type BalanceUseCase interface {
	GetBalance(ctx context.Context, userID string) (float64, error)
	HasSufficientBalance(ctx context.Context, userID string, amount float64) (bool, error)
	// Deduct charges amount and appends an ml_request row. It reports false
	// without mutation when the balance does not cover amount.
	Deduct(ctx context.Context, userID string, amount float64, description string) (bool, error)
	// DeductTx is Deduct joining an enclosing transaction.
	DeductTx(ctx context.Context, tx repository.Tx, userID string, amount float64, description string) (bool, error)
	// Refund credits amount and appends a refund row.
	Refund(ctx context.Context, userID string, amount float64, description string) error
	// RefundTx is Refund joining an enclosing transaction.
	RefundTx(ctx context.Context, tx repository.Tx, userID string, amount float64, description string) error
	// Deposit credits amount, creating the balance row when absent.
	Deposit(ctx context.Context, userID string, amount float64, description string) error
}

var _ BalanceUseCase = (*balanceUC)(nil)

type balanceUC struct {
	balances     repository.BalanceRepository
	transactions repository.TransactionRepository
	tm           repository.TransactionManager
	log          *zerolog.Logger
}

func NewBalanceUseCase(
	balances repository.BalanceRepository,
	transactions repository.TransactionRepository,
	tm repository.TransactionManager,
	log *zerolog.Logger,
) *balanceUC {
	return &balanceUC{balances: balances, transactions: transactions, tm: tm, log: log}
}

func (u *balanceUC) GetBalance(ctx context.Context, userID string) (float64, error) {
	b, err := u.balances.FindByUserID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return b.Balance, nil
}

func (u *balanceUC) HasSufficientBalance(ctx context.Context, userID string, amount float64) (bool, error) {
	balance, err := u.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

func (u *balanceUC) Deduct(ctx context.Context, userID string, amount float64, description string) (bool, error) {
	var ok bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		ok, err = u.DeductTx(ctx, tx, userID, amount, description)
		return err
	})
	return ok, err
}

func (u *balanceUC) DeductTx(ctx context.Context, tx repository.Tx, userID string, amount float64, description string) (bool, error) {
	if amount <= 0 {
		return false, domain.ErrInvalidArgument
	}
	ok, err := u.balances.DeductIfSufficient(ctx, tx, userID, amount)
	if err != nil {
		return false, fmt.Errorf("deduct balance: %w", err)
	}
	if !ok {
		metrics.IncDeductRefusal()
		u.log.Warn().Str("user_id", userID).Float64("amount", amount).Msg("deduct refused, insufficient balance")
		return false, nil
	}
	t := &model.Transaction{
		UserID:      userID,
		Type:        model.TransactionTypeMLRequest,
		Amount:      -amount,
		Status:      model.TransactionStatusCompleted,
		Description: description,
	}
	if err := u.transactions.Save(ctx, tx, t); err != nil {
		return false, fmt.Errorf("record ml_request transaction: %w", err)
	}
	return true, nil
}

func (u *balanceUC) Refund(ctx context.Context, userID string, amount float64, description string) error {
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return u.RefundTx(ctx, tx, userID, amount, description)
	})
}

func (u *balanceUC) RefundTx(ctx context.Context, tx repository.Tx, userID string, amount float64, description string) error {
	if amount <= 0 {
		return domain.ErrInvalidArgument
	}
	ok, err := u.balances.Credit(ctx, tx, userID, amount)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	if !ok {
		return fmt.Errorf("refund %s: %w", userID, domain.ErrNotFound)
	}
	t := &model.Transaction{
		UserID:      userID,
		Type:        model.TransactionTypeRefund,
		Amount:      amount,
		Status:      model.TransactionStatusCompleted,
		Description: description,
	}
	if err := u.transactions.Save(ctx, tx, t); err != nil {
		return fmt.Errorf("record refund transaction: %w", err)
	}
	u.log.Info().Str("user_id", userID).Float64("amount", amount).Msg("refund issued")
	return nil
}

func (u *balanceUC) Deposit(ctx context.Context, userID string, amount float64, description string) error {
	if amount <= 0 {
		return domain.ErrInvalidArgument
	}
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := u.balances.Credit(ctx, tx, userID, amount)
		if err != nil {
			return err
		}
		if !ok {
			b := &model.UserBalance{UserID: userID, Balance: amount}
			if err := u.balances.Save(ctx, tx, b); err != nil {
				return err
			}
		}
		t := &model.Transaction{
			UserID:      userID,
			Type:        model.TransactionTypeDeposit,
			Amount:      amount,
			Status:      model.TransactionStatusCompleted,
			Description: description,
		}
		return u.transactions.Save(ctx, tx, t)
	})
}
