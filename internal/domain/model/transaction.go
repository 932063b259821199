package model

import "time"

type TransactionType string

const (
	TransactionTypeDeposit   TransactionType = "deposit"
	TransactionTypeWithdraw  TransactionType = "withdraw"
	TransactionTypeMLRequest TransactionType = "ml_request"
	TransactionTypeRefund    TransactionType = "refund"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is an append-only ledger row. Debits carry a negative amount,
// credits a positive one; the signed sum per user equals their balance.
type Transaction struct {
	ID          string
	UserID      string
	Type        TransactionType
	Amount      float64
	Status      TransactionStatus
	Description string
	CreatedAt   time.Time
}
