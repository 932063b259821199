package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"ml-prediction-pipeline/internal/domain"
)

// TaskPriority maps to the broker's numeric message priority.
type TaskPriority int

const (
	PriorityLow    TaskPriority = 1
	PriorityNormal TaskPriority = 5
	PriorityHigh   TaskPriority = 10
)

func (p TaskPriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

// ChatTurn is one entry of a conversation history.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DefaultMaxRetries bounds how many times a failed task is republished.
const DefaultMaxRetries = 3

// TaskMessage is the wire unit of work. It is a value type: once published
// it is never mutated, a retry is a fresh copy with the counter bumped.
type TaskMessage struct {
	TaskID              string       `json:"task_id"`
	PredictionID        string       `json:"prediction_id"`
	UserID              string       `json:"user_id"`
	Message             string       `json:"message"`
	ConversationHistory []ChatTurn   `json:"conversation_history"`
	ModelID             string       `json:"model_id"`
	Priority            TaskPriority `json:"priority"`
	CreatedAt           time.Time    `json:"created_at"`
	RetryCount          int          `json:"retry_count"`
	MaxRetries          int          `json:"max_retries"`
}

// NewTaskMessage builds a first-attempt task. The message is trimmed and must
// be non-empty; history may be nil.
func NewTaskMessage(predictionID, userID, modelID, message string, history []ChatTurn, priority TaskPriority) (TaskMessage, error) {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return TaskMessage{}, domain.ErrEmptyMessage
	}
	if priority != PriorityLow && priority != PriorityNormal && priority != PriorityHigh {
		priority = PriorityNormal
	}
	return TaskMessage{
		TaskID:              uuid.NewString(),
		PredictionID:        predictionID,
		UserID:              userID,
		Message:             msg,
		ConversationHistory: cloneHistory(history),
		ModelID:             modelID,
		Priority:            priority,
		CreatedAt:           time.Now().UTC(),
		RetryCount:          0,
		MaxRetries:          DefaultMaxRetries,
	}, nil
}

func cloneHistory(history []ChatTurn) []ChatTurn {
	if history == nil {
		return nil
	}
	out := make([]ChatTurn, len(history))
	copy(out, history)
	return out
}

// CanRetry reports whether the task has republish attempts left.
func (t TaskMessage) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

// IncrementRetry returns a copy with the retry counter bumped. The receiver
// is left untouched; the copy shares no history storage with it.
func (t TaskMessage) IncrementRetry() TaskMessage {
	next := t
	next.ConversationHistory = cloneHistory(t.ConversationHistory)
	next.RetryCount++
	return next
}

// ToJSON serializes the task to its queue wire format.
func (t TaskMessage) ToJSON() ([]byte, error) {
	return json.Marshal(t)
}

// TaskMessageFromJSON decodes a queue payload into a fresh task value.
func TaskMessageFromJSON(body []byte) (TaskMessage, error) {
	var t TaskMessage
	if err := json.Unmarshal(body, &t); err != nil {
		return TaskMessage{}, err
	}
	if t.MaxRetries <= 0 {
		t.MaxRetries = DefaultMaxRetries
	}
	return t, nil
}
