package engine

import (
	"errors"
	"fmt"
)

// Error represents a fault surfaced synchronously by an Engine operation.
//
// Errors include:
//   - Invalid argument: ChangeState called without a usable updater
//   - Unknown event: Publish/Subscribe/AddDependencies on a missing event
//   - Depth exceeded: too many nested ChangeState calls from subscribers
//
// No operation retries or recovers internally; the caller decides.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Event names the affected event, if any.
	Event string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates ChangeState got neither a usable
	// patch nor a usable transform.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// ErrCodeUnknownEvent indicates an operation targeted an event that was
	// never created (or has since been deleted).
	ErrCodeUnknownEvent ErrorCode = "UNKNOWN_EVENT"

	// ErrCodeDepthExceeded indicates nested ChangeState calls exceeded the
	// configured maximum depth.
	ErrCodeDepthExceeded ErrorCode = "DEPTH_EXCEEDED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("%s: %s (event=%s)", e.Code, e.Message, e.Event)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvalidArgument returns true if err is an invalid argument error.
// Uses errors.As to handle wrapped errors.
func IsInvalidArgument(err error) bool {
	return hasCode(err, ErrCodeInvalidArgument)
}

// IsUnknownEvent returns true if err is an unknown event error.
// Uses errors.As to handle wrapped errors.
func IsUnknownEvent(err error) bool {
	return hasCode(err, ErrCodeUnknownEvent)
}

// IsDepthExceeded returns true if err is a depth exceeded error.
// Uses errors.As to handle wrapped errors.
func IsDepthExceeded(err error) bool {
	return hasCode(err, ErrCodeDepthExceeded)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// NewInvalidArgumentError creates an Error for a rejected updater.
func NewInvalidArgumentError(message string) *Error {
	return &Error{
		Code:    ErrCodeInvalidArgument,
		Message: message,
	}
}

// NewUnknownEventError creates an Error for a missing event.
func NewUnknownEventError(event string) *Error {
	return &Error{
		Code:    ErrCodeUnknownEvent,
		Message: "event does not exist",
		Event:   event,
	}
}

// NewDepthExceededError creates an Error for runaway nested updates.
func NewDepthExceededError(depth, maxDepth int) *Error {
	return &Error{
		Code:    ErrCodeDepthExceeded,
		Message: fmt.Sprintf("nested state changes exceeded max depth (%d > %d)", depth, maxDepth),
		Details: map[string]string{
			"depth":     fmt.Sprintf("%d", depth),
			"max_depth": fmt.Sprintf("%d", maxDepth),
		},
	}
}
