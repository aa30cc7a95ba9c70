// Package apperror defines the error kinds shared by the booking core,
// the store adapter and the HTTP layer.  Each kind is a sentinel so
// callers branch with errors.Is; *Error carries the human-readable
// message and the underlying cause.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or out-of-range input.  Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrAuthentication marks a signature or credential mismatch.
	ErrAuthentication = errors.New("authentication failed")
	// ErrStoreRead marks a failure reading from the store.
	ErrStoreRead = errors.New("store read failed")
	// ErrStoreWrite marks a failure writing to the store.
	ErrStoreWrite = errors.New("store write failed")
	// ErrNotFound marks a missing room, reservation or account.
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks an operation on a resource the caller may not touch.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict marks a write that collides with existing state.
	ErrConflict = errors.New("conflict")
)

// Error pairs a kind with a message and an optional cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func Validation(msg string) error { return newError(ErrValidation, msg, nil) }

func Validationf(format string, args ...any) error {
	return newError(ErrValidation, fmt.Sprintf(format, args...), nil)
}

func Authentication(msg string) error { return newError(ErrAuthentication, msg, nil) }

func NotFound(msg string) error { return newError(ErrNotFound, msg, nil) }

func Forbidden(msg string) error { return newError(ErrForbidden, msg, nil) }

func Conflict(msg string) error { return newError(ErrConflict, msg, nil) }

// StoreRead wraps a transport failure on a read path.  A nil cause yields nil.
func StoreRead(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return newError(ErrStoreRead, op, cause)
}

// StoreWrite wraps a transport failure on a write path.  A nil cause yields nil.
func StoreWrite(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return newError(ErrStoreWrite, op, cause)
}

// Message returns the human-readable part of err when it is an *Error,
// otherwise fallback.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	var c *CapacityError
	if errors.As(err, &c) {
		return c.Error()
	}
	return fallback
}

// CapacityError reports a booking request that does not fit the slot.
// It is a validation error and carries the seats still available so the
// client can offer a smaller party.
type CapacityError struct {
	Remaining int
}

func (e *CapacityError) Error() string {
	remaining := e.Remaining
	if remaining < 0 {
		remaining = 0
	}
	return fmt.Sprintf("Only %d seat(s) left.", remaining)
}

func (e *CapacityError) Unwrap() error { return ErrValidation }
