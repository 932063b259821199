package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidExecContext  = errors.New("invalid exec context")
	ErrReadDatabaseRow     = errors.New("failed to read database row")
	ErrEmptyMessage        = errors.New("message cannot be empty")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrRateLimited         = errors.New("too many requests")
	ErrPredictionFinalized = errors.New("prediction already in a terminal state")
)
