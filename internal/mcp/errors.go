package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpggio/attemptlog/internal/domain/attempt"
	"github.com/rpggio/attemptlog/internal/domain/template"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

// Error renders the error as JSON so clients can decode the tool error text.
func (e *APIError) Error() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return string(data)
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}

	var durations *attempt.InconsistentDurationsError
	switch {
	case errors.As(err, &durations):
		return &APIError{
			Code:         "INCONSISTENT_DURATIONS",
			Message:      "duration must equal productive plus paused time",
			Details:      durations,
			RecoveryHint: "Recompute the totals",
		}
	case errors.Is(err, attempt.ErrAttemptNotFound):
		return &APIError{Code: "ATTEMPT_NOT_FOUND", Message: "attempt not found", RecoveryHint: "Check ID spelling"}
	case errors.Is(err, attempt.ErrAttemptInactive):
		return &APIError{Code: "ATTEMPT_INACTIVE", Message: "attempt is not active", RecoveryHint: "Use undo_or_retry_attempt to start over"}
	case errors.Is(err, attempt.ErrAttemptInvalidated):
		return &APIError{Code: "ATTEMPT_INVALIDATED", Message: "attempt was hard undone", RecoveryHint: "Create a new attempt for the entity"}
	case errors.Is(err, attempt.ErrActiveAttemptExists):
		return &APIError{Code: "ACTIVE_ATTEMPT_EXISTS", Message: "an attempt for this entity is already in progress", RecoveryHint: "Finish or stop it first"}
	case errors.Is(err, attempt.ErrUnknownEntity):
		return &APIError{Code: "UNKNOWN_ENTITY", Message: "entity is neither a task nor a routine", RecoveryHint: "Create the template first"}
	case errors.Is(err, attempt.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	case errors.Is(err, template.ErrTemplateNotFound):
		return &APIError{Code: "TEMPLATE_NOT_FOUND", Message: "template not found", RecoveryHint: "Check ID spelling"}
	case errors.Is(err, template.ErrDuplicateID):
		return &APIError{Code: "DUPLICATE_ID", Message: "a task or routine with this ID already exists"}
	case errors.Is(err, template.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	default:
		return nil
	}
}

// toolError converts a service error into the error returned from a tool
// handler. Unmapped errors pass through unchanged.
func toolError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
