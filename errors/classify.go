package errors

import (
	"context"
	stderrors "errors"
	"net"
)

// CodeOf returns the code of the first AppError in err's chain, or an empty code.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsTimeout reports whether err is a timeout: a TIMEOUT AppError, an expired
// context deadline or a network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if CodeOf(err) == ErrCodeTimeout {
		return true
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

// IsDiscoveryError reports whether err belongs to the discovery error family.
func IsDiscoveryError(err error) bool {
	return IsDiscoveryCode(CodeOf(err))
}

// IsNotFound reports whether err means the participant is already gone.
func IsNotFound(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeNoEntryForParticipant || code == ErrCodeNoEntryForSelectedBackends
}
