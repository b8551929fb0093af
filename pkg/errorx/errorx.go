package errorx

import (
	"context"
	"errors"
	"fmt"
)

// GENERAL ERROR:

// GeneralError - General App Error.
type GeneralError struct {
	message string
	err     error
}

// NewGeneralError - GeneralError constructor.
func NewGeneralError(msg string, args ...any) *GeneralError {
	return &GeneralError{message: fmt.Sprintf(msg, args...), err: nil}
}

// NewGeneralErrorWrapper - GeneralError constructor for wrapper of another error.
func NewGeneralErrorWrapper(err error, msg string, args ...any) *GeneralError {
	return &GeneralError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (ge *GeneralError) Error() string {
	if ge.err != nil {
		return fmt.Sprintf("%s # Error wrap: %v", ge.message, ge.err)
	}

	return ge.message
}

// Unwrap - return the wrapped error.
func (ge *GeneralError) Unwrap() error {
	return ge.err
}

// DATABASE ERROR

// DatabaseError - error raised by the database backend, or while talking to it.
type DatabaseError struct {
	message string
	err     error
}

// NewDatabaseError - DatabaseError constructor.
func NewDatabaseError(msg string, args ...any) *DatabaseError {
	return &DatabaseError{message: fmt.Sprintf(msg, args...), err: nil}
}

// NewDatabaseErrorWrapper - DatabaseError constructor for wrapper of another error.
func NewDatabaseErrorWrapper(err error, msg string, args ...any) *DatabaseError {
	return &DatabaseError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (de *DatabaseError) Error() string {
	if de.err != nil {
		return fmt.Sprintf("%s: %v", de.message, de.err)
	}

	return de.message
}

// Unwrap - return the wrapped backend error, so that errors.As can reach driver specific types.
func (de *DatabaseError) Unwrap() error {
	return de.err
}

// USAGE ERROR

// UsageError - the caller used the API in a way that can never succeed.
// Usage errors are fatal: they are never retried and never reach the database.
type UsageError struct {
	message string
	err     error
}

// NewUsageError - UsageError constructor.
func NewUsageError(msg string, args ...any) *UsageError {
	return &UsageError{message: fmt.Sprintf(msg, args...)}
}

// NewUsageErrorWrapper - UsageError constructor for wrapper of another error.
func NewUsageErrorWrapper(err error, msg string, args ...any) *UsageError {
	return &UsageError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (ue *UsageError) Error() string {
	if ue.err != nil {
		return fmt.Sprintf("usage error: %s: %v", ue.message, ue.err)
	}

	return "usage error: " + ue.message
}

// Unwrap - return the wrapped error.
func (ue *UsageError) Unwrap() error {
	return ue.err
}

// IsUsageError reports whether any error in err's chain is a UsageError.
func IsUsageError(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

// CANCELLATION ERROR

// CancellationError - the operation was cancelled between two attempts.
// It carries both the context error and the error of the last attempt.
type CancellationError struct {
	cause   error
	lastErr error
}

// NewCancellationError - CancellationError constructor.
func NewCancellationError(cause, lastErr error) *CancellationError {
	if cause == nil {
		cause = context.Canceled
	}

	return &CancellationError{cause: cause, lastErr: lastErr}
}

// Error - return the error string.
func (ce *CancellationError) Error() string {
	if ce.lastErr != nil {
		return fmt.Sprintf("operation cancelled: %v (last attempt: %v)", ce.cause, ce.lastErr)
	}

	return fmt.Sprintf("operation cancelled: %v", ce.cause)
}

// Unwrap - both the context error and the last attempt error are part of the chain.
func (ce *CancellationError) Unwrap() []error {
	if ce.lastErr == nil {
		return []error{ce.cause}
	}

	return []error{ce.cause, ce.lastErr}
}

// LastAttemptError - the error returned by the attempt that preceded the cancellation.
func (ce *CancellationError) LastAttemptError() error {
	return ce.lastErr
}

// IsCancellationError reports whether any error in err's chain is a CancellationError.
func IsCancellationError(err error) bool {
	var ce *CancellationError
	return errors.As(err, &ce)
}
