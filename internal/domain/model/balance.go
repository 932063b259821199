package model

import "time"

// UserBalance holds the single balance row per user. Only the ledger writes
// it; non-negativity is enforced by the conditional deduct, not the schema.
type UserBalance struct {
	ID        string
	UserID    string
	Balance   float64
	CreatedAt time.Time
	UpdatedAt time.Time
}
