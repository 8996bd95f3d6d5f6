package live

import (
	"errors"
	"fmt"
)

// RuntimeError is an error raised while managing live queries.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// WatchID identifies the affected watch, when there is one.
	WatchID string

	// Collection names the watched collection.
	Collection string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeSubscribeFailed indicates the adapter refused a subscription.
	ErrCodeSubscribeFailed RuntimeErrorCode = "SUBSCRIBE_FAILED"

	// ErrCodeUnknownWatch indicates a watch id that is not registered.
	ErrCodeUnknownWatch RuntimeErrorCode = "UNKNOWN_WATCH"

	// ErrCodeMergeFailed indicates rows could not be merged into state.
	ErrCodeMergeFailed RuntimeErrorCode = "MERGE_FAILED"

	// ErrCodeStopped indicates the engine no longer accepts work.
	ErrCodeStopped RuntimeErrorCode = "STOPPED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Collection != "" {
		msg += fmt.Sprintf(" (collection=%s", e.Collection)
		if e.WatchID != "" {
			msg += ", watch=" + e.WatchID
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsSubscribeError reports whether err is a subscription failure.
// Uses errors.As to handle wrapped errors.
func IsSubscribeError(err error) bool {
	return hasCode(err, ErrCodeSubscribeFailed)
}

// IsUnknownWatch reports whether err names an unregistered watch.
func IsUnknownWatch(err error) bool {
	return hasCode(err, ErrCodeUnknownWatch)
}

// IsStopped reports whether err came from a stopped engine.
func IsStopped(err error) bool {
	return hasCode(err, ErrCodeStopped)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
