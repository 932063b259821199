package worker

import (
	"fmt"
	"strings"

	"ml-prediction-pipeline/internal/domain/model"
)

// ValidationResult accumulates the verdicts of one or more validators.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

func (r *ValidationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

// Merge combines two results: valid only if both are, errors concatenated.
func (r ValidationResult) Merge(other ValidationResult) ValidationResult {
	return ValidationResult{
		Valid:  r.Valid && other.Valid,
		Errors: append(append([]string{}, r.Errors...), other.Errors...),
	}
}

func (r ValidationResult) ErrorMessage() string {
	return strings.Join(r.Errors, "; ")
}

// TaskValidator is a stateless pass/fail check over a task.
type TaskValidator interface {
	Validate(task model.TaskMessage) ValidationResult
}

const (
	maxMessageLength = 10000
	maxHistoryLength = 100
)

var allowedRoles = map[string]struct{}{
	"user":      {},
	"assistant": {},
	"system":    {},
}

// MessageValidator enforces the message length bounds.
type MessageValidator struct{}

func (MessageValidator) Validate(task model.TaskMessage) ValidationResult {
	result := ValidationResult{Valid: true}
	msg := strings.TrimSpace(task.Message)

	if msg == "" {
		result.AddError("message cannot be empty")
		return result
	}
	if len(msg) > maxMessageLength {
		result.AddError(fmt.Sprintf("message exceeds maximum length of %d", maxMessageLength))
	}
	return result
}

// HistoryValidator enforces the shape of each conversation turn.
type HistoryValidator struct{}

func (HistoryValidator) Validate(task model.TaskMessage) ValidationResult {
	result := ValidationResult{Valid: true}
	history := task.ConversationHistory

	if len(history) > maxHistoryLength {
		result.AddError(fmt.Sprintf("conversation history exceeds maximum length of %d", maxHistoryLength))
		return result
	}

	for idx, turn := range history {
		if turn.Role == "" {
			result.AddError(fmt.Sprintf("history item %d missing 'role' field", idx))
		} else if _, ok := allowedRoles[turn.Role]; !ok {
			result.AddError(fmt.Sprintf("history item %d has invalid role", idx))
		}
		if turn.Content == "" {
			result.AddError(fmt.Sprintf("history item %d missing 'content' field", idx))
		}
	}
	return result
}

// CompositeValidator merges the results of all configured validators.
type CompositeValidator struct {
	validators []TaskValidator
}

func NewCompositeValidator(validators ...TaskValidator) *CompositeValidator {
	return &CompositeValidator{validators: validators}
}

// NewTaskValidator returns the standard validator set for ML tasks.
func NewTaskValidator() *CompositeValidator {
	return NewCompositeValidator(MessageValidator{}, HistoryValidator{})
}

func (c *CompositeValidator) Validate(task model.TaskMessage) ValidationResult {
	result := ValidationResult{Valid: true}
	for _, v := range c.validators {
		result = result.Merge(v.Validate(task))
	}
	return result
}
