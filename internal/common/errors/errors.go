// Package errors provides standardized error handling for the notification core.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Configuration errors: the operation cannot proceed and the error is
	// surfaced to the caller as-is.
	ErrCodeCredentialMissing ErrorCode = "CREDENTIAL_MISSING"

	// Not-found errors: reported as structured failure results, never panics.
	ErrCodeNotificationNotFound ErrorCode = "NOTIFICATION_NOT_FOUND"
	ErrCodeUserNotFound         ErrorCode = "USER_NOT_FOUND"

	// Persistence errors: caught at the boundary of each mutating operation.
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"

	// Channel errors: never abort notification creation, only the ledger
	// records them.
	ErrCodeChannelSendFailed ErrorCode = "CHANNEL_SEND_FAILED"

	ErrCodeInvalidFilter ErrorCode = "INVALID_FILTER"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewCredentialMissingError creates a non-retryable configuration error
// naming the credential that could not be resolved from any source.
func NewCredentialMissingError(key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCredentialMissing,
		Message:   "Credential could not be resolved from settings or environment",
		Details:   fmt.Sprintf("clave: %s", key),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationNotFoundError creates a non-retryable not-found error.
func NewNotificationNotFoundError(login string, id int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationNotFound,
		Message:   "Notification not found for recipient",
		Details:   fmt.Sprintf("login: %s, notificacionId: %d", login, id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserNotFoundError creates a non-retryable not-found error.
func NewUserNotFoundError(login string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUserNotFound,
		Message:   "User not found",
		Details:   fmt.Sprintf("login: %s", login),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceError creates a retryable database error.
func NewPersistenceError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceFailed,
		Message:   "Database error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewChannelSendFailedError creates a retryable outbound channel error.
func NewChannelSendFailedError(channel, recipient string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelSendFailed,
		Message:   "Outbound channel send failed",
		Details:   fmt.Sprintf("canal: %s, destino: %s, error: %s", channel, recipient, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidFilterError creates a non-retryable validation error.
func NewInvalidFilterError(filter string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidFilter,
		Message:   "Unsupported list filter",
		Details:   fmt.Sprintf("filtro: %s", filter),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Inspection Helpers
// ==========================

// CodeOf extracts the ErrorCode of a StandardError anywhere in the chain,
// or "" when the error is not a StandardError.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsNotFound reports whether err is one of the not-found codes.
func IsNotFound(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeNotificationNotFound || code == ErrCodeUserNotFound
}

// IsConfiguration reports whether err is a configuration error that must
// propagate to the caller.
func IsConfiguration(err error) bool {
	return CodeOf(err) == ErrCodeCredentialMissing
}
