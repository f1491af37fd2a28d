package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Discovery errors reported by the directory and by remote directory backends.
const (
	// ErrCodeInvalidGbid indicates an empty or duplicate backend identifier.
	ErrCodeInvalidGbid ErrorCode = "INVALID_GBID"
	// ErrCodeUnknownGbid indicates a backend identifier that is not configured.
	ErrCodeUnknownGbid ErrorCode = "UNKNOWN_GBID"
	// ErrCodeNoEntryForParticipant indicates no entry exists for a participant id.
	ErrCodeNoEntryForParticipant ErrorCode = "NO_ENTRY_FOR_PARTICIPANT"
	// ErrCodeNoEntryForSelectedBackends indicates entries exist, but none in the requested backends.
	ErrCodeNoEntryForSelectedBackends ErrorCode = "NO_ENTRY_FOR_SELECTED_BACKENDS"
)

// Connection/Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeConnectionFailed indicates a failed connection to a service.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Lifecycle and transport errors
const (
	// ErrCodeShutdown indicates the directory stopped before the operation completed.
	ErrCodeShutdown ErrorCode = "SHUTDOWN"
	// ErrCodeUnsupportedAddress indicates a backend cannot deliver to the address type.
	ErrCodeUnsupportedAddress ErrorCode = "UNSUPPORTED_ADDRESS"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Authentication/Authorization errors
const (
	// ErrCodeUnauthorized indicates the request is unauthorized.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeForbidden indicates the request is forbidden.
	ErrCodeForbidden ErrorCode = "FORBIDDEN"
	// ErrCodeInvalidToken indicates the authentication token is invalid.
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeConnectionFailed:   true,
	ErrCodeTimeout:            true,
	ErrCodeInternal:           false,
}

var discoveryCodes = map[ErrorCode]bool{
	ErrCodeInvalidGbid:                true,
	ErrCodeUnknownGbid:                true,
	ErrCodeNoEntryForParticipant:      true,
	ErrCodeNoEntryForSelectedBackends: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

// IsDiscoveryCode reports whether code belongs to the discovery error family.
func IsDiscoveryCode(code ErrorCode) bool {
	return discoveryCodes[code]
}
