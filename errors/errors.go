// Package errors provides the coded error type shared by the directory,
// its remote backends and the HTTP surface. Every error carries a
// machine-readable code, a retryable flag and an HTTP status mapping.
package errors

import (
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Discovery errors ---

// InvalidGbid creates an error for an empty or duplicate gbid.
func InvalidGbid(gbid, reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidGbid, Message: fmt.Sprintf("Invalid gbid %q: %s", gbid, reason),
		HTTPStatus: http.StatusBadRequest, Details: map[string]any{"gbid": gbid},
	}
}

// UnknownGbid creates an error for a gbid outside the configured set.
func UnknownGbid(gbid string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownGbid, Message: fmt.Sprintf("Unknown gbid %q", gbid),
		HTTPStatus: http.StatusBadRequest, Details: map[string]any{"gbid": gbid},
	}
}

// NoEntryForParticipant creates an error for an unknown participant id.
func NoEntryForParticipant(participantID string) *AppError {
	return &AppError{
		Code: ErrCodeNoEntryForParticipant, Message: fmt.Sprintf("No entry found for participant %s", participantID),
		HTTPStatus: http.StatusNotFound, Details: map[string]any{"participant_id": participantID},
	}
}

// NoEntryForSelectedBackends creates an error for entries registered only in unrequested gbids.
func NoEntryForSelectedBackends(gbids []string) *AppError {
	return &AppError{
		Code: ErrCodeNoEntryForSelectedBackends, Message: fmt.Sprintf("No entry found for selected backends %v", gbids),
		HTTPStatus: http.StatusNotFound, Details: map[string]any{"gbids": gbids},
	}
}

// --- Runtime errors ---

// ServiceUnavailable creates a new AppError for a service that is temporarily unavailable.
func ServiceUnavailable(service string) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: fmt.Sprintf("The %s is temporarily unavailable.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// ConnectionFailed creates a new AppError for a failed connection to a service.
func ConnectionFailed(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeConnectionFailed, Message: fmt.Sprintf("Unable to reach %s.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service}, Cause: cause,
	}
}

// Timeout creates a new AppError for an operation that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("The %s operation timed out.", operation),
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// Shutdown creates an error for work abandoned because the directory stopped.
func Shutdown(operation string) *AppError {
	return &AppError{
		Code: ErrCodeShutdown, Message: fmt.Sprintf("The directory stopped before %s completed.", operation),
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"operation": operation},
	}
}

// UnsupportedAddress creates an error for an address type a backend cannot serve.
func UnsupportedAddress(gbid string) *AppError {
	return &AppError{
		Code: ErrCodeUnsupportedAddress, Message: fmt.Sprintf("Address type not supported by backend %s", gbid),
		HTTPStatus: http.StatusBadGateway, Details: map[string]any{"gbid": gbid},
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}

// --- Request errors ---

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest, Details: map[string]any{"field": field},
	}
}

// Unauthorized creates a new AppError for unauthenticated access.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication required."
	}
	return &AppError{
		Code: ErrCodeUnauthorized, Message: reason,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// InvalidToken creates a new AppError for an invalid bearer token.
func InvalidToken() *AppError {
	return &AppError{
		Code: ErrCodeInvalidToken, Message: "Invalid authentication token.",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a new AppError for a denied registration or request.
func Forbidden(reason string) *AppError {
	if reason == "" {
		reason = "You don't have permission to perform this action."
	}
	return &AppError{
		Code: ErrCodeForbidden, Message: reason,
		HTTPStatus: http.StatusForbidden,
	}
}
