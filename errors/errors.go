package errors

import (
	"fmt"
	"net/http"
)

// StatusClientClosedRequest is the non-standard status popularized by nginx
// for requests the client abandoned. AIP-193 maps CANCELLED onto it.
const StatusClientClosedRequest = 499

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

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
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

// --- Constructors ---

// InvalidArgument creates a new AppError for a structurally invalid parameter.
// param names the offending parameter and may be empty for request-level faults.
func InvalidArgument(param, reason string) *AppError {
	details := make(map[string]any)
	if param != "" {
		details["param"] = param
	}
	return &AppError{
		Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("Invalid argument: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Cancelled creates a new AppError for an operation stopped by its caller
// or by a deadline before it completed.
func Cancelled(operation string) *AppError {
	return &AppError{
		Code: ErrCodeCancelled, Message: "The operation was cancelled before it completed.",
		HTTPStatus: StatusClientClosedRequest, Retryable: false,
		Details: map[string]any{"operation": operation},
	}
}

// UserFunction creates a new AppError for a failure inside a caller-supplied
// function. stage names the stage that invoked it (map, filter, reduce, ...).
func UserFunction(stage string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeUserFunction, Message: fmt.Sprintf("The %s function failed.", stage),
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false,
		Details: map[string]any{"stage": stage}, Cause: cause,
	}
}

// TransientIO creates a new AppError for an I/O fault that may succeed on retry.
func TransientIO(op, path string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeTransientIO, Message: fmt.Sprintf("A transient I/O error interrupted %s. Please try again.", op),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"op": op, "path": path}, Cause: cause,
	}
}

// PermanentIO creates a new AppError for an I/O fault that retrying cannot fix.
func PermanentIO(op, path string, cause error) *AppError {
	return &AppError{
		Code: ErrCodePermanentIO, Message: fmt.Sprintf("An I/O error stopped %s.", op),
		HTTPStatus: http.StatusInternalServerError, Retryable: false,
		Details: map[string]any{"op": op, "path": path}, Cause: cause,
	}
}

// PathSecurity creates a new AppError for a path outside the allow-list.
// The message never echoes filesystem layout beyond the rejected path itself.
func PathSecurity(path, reason string) *AppError {
	return &AppError{
		Code: ErrCodePathSecurity, Message: "The requested path is not allowed.",
		HTTPStatus: http.StatusForbidden, Retryable: false,
		Details: map[string]any{"path": path, "reason": reason},
	}
}

// Unauthorized creates a new AppError for unauthorized access.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication required."
	}
	return &AppError{
		Code: ErrCodeUnauthorized, Message: reason,
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// RunLimitExceeded creates a new AppError for a full concurrent-run bulkhead.
func RunLimitExceeded(limit int) *AppError {
	return &AppError{
		Code: ErrCodeRunLimitExceeded, Message: "Too many concurrent runs. Please wait a moment and try again.",
		HTTPStatus: http.StatusTooManyRequests, Retryable: false,
		Details: map[string]any{"limit": limit},
	}
}

// RateLimited creates a new AppError for a client over its request budget.
func RateLimited(limit int) *AppError {
	return &AppError{
		Code: ErrCodeRateLimited, Message: "Rate limit exceeded. Please slow down and try again.",
		HTTPStatus: http.StatusTooManyRequests, Retryable: false,
		Details: map[string]any{"requests_per_minute": limit},
	}
}

// Internal creates a new AppError for an internal server error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again or contact support.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
