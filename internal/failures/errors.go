// Package failures defines the synchronous errors returned by scheduling operations and the
// asynchronous failure causes attached to job events and execution records.
package failures

import "github.com/pkg/errors"

var (
	// ErrInvalidArgument is returned for malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotEnoughResources is returned when a request can never be satisfied.
	ErrNotEnoughResources = errors.New("not enough resources")
	// ErrNotAllowed is returned when an operation is invalid for the current state.
	ErrNotAllowed = errors.New("operation not allowed")
)

// InvalidArgument wraps ErrInvalidArgument with a formatted message.
func InvalidArgument(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}

// NotEnoughResources wraps ErrNotEnoughResources with a formatted message.
func NotEnoughResources(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNotEnoughResources, format, args...)
}

// NotAllowed wraps ErrNotAllowed with a formatted message.
func NotAllowed(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNotAllowed, format, args...)
}

// CauseOf translates a synchronous error into the failure cause delivered asynchronously for it.
func CauseOf(err error) Cause {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotEnoughResources):
		return NotEnoughResourcesCause{Detail: err.Error()}
	case errors.Is(err, ErrNotAllowed):
		return NotAllowedCause{Detail: err.Error()}
	default:
		return ComputationError{Err: err}
	}
}
