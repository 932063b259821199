package model

import "time"

type PredictionStatus string

const (
	PredictionStatusPending    PredictionStatus = "pending"
	PredictionStatusProcessing PredictionStatus = "processing"
	PredictionStatusCompleted  PredictionStatus = "completed"
	PredictionStatusFailed     PredictionStatus = "failed"
)

// IsTerminal reports whether no further status transition may occur.
func (s PredictionStatus) IsTerminal() bool {
	return s == PredictionStatusCompleted || s == PredictionStatusFailed
}

// PredictionInput snapshots what was submitted, persisted as JSONB.
type PredictionInput struct {
	Message             string     `json:"message"`
	ConversationHistory []ChatTurn `json:"conversation_history,omitempty"`
}

// PredictionResult is the structured outcome payload, persisted as JSONB.
type PredictionResult struct {
	Response         string `json:"response,omitempty"`
	ProcessingTimeMS int64  `json:"processing_time_ms,omitempty"`
	Error            string `json:"error,omitempty"`
}

type Prediction struct {
	ID           string
	UserID       string
	ModelID      string
	Input        PredictionInput
	Result       *PredictionResult
	Status       PredictionStatus
	CostCharged  float64
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
