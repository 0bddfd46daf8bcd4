package errors

import (
	"context"
	stderrors "errors"
)

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Wrap normalizes any error into an AppError. Nil stays nil, an AppError
// anywhere in the chain is returned as-is, context cancellation becomes
// CANCELLED, and anything else becomes INTERNAL_ERROR with the original
// error preserved as cause.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return Cancelled("run").WithCause(err)
	}
	return Internal(err)
}

// CodeOf returns the ErrorCode of err, or empty when err carries none.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// IsRetryable reports whether err may be retried. Plain errors without a
// code are not retryable; classify them first (see ClassifyIO).
func IsRetryable(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Retryable
	}
	return false
}

// IsCancelled reports whether err represents cancellation, either as a
// CANCELLED AppError or as a raw context error.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return CodeOf(err) == ErrCodeCancelled
}
