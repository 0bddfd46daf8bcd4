package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Argument and lifecycle outcomes
const (
	// ErrCodeInvalidArgument indicates a structurally invalid parameter or request.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeCancelled indicates the operation was cancelled before completion.
	// Cancellation is a distinct outcome, not a failure.
	ErrCodeCancelled ErrorCode = "CANCELLED"
)

// User-supplied function failures
const (
	// ErrCodeUserFunction indicates a caller-supplied transform, predicate,
	// or reducer returned an error. Fatal: never retried.
	ErrCodeUserFunction ErrorCode = "USER_FUNCTION_ERROR"
)

// I/O errors, split by recoverability
const (
	// ErrCodeTransientIO indicates an I/O fault that may succeed on retry.
	ErrCodeTransientIO ErrorCode = "TRANSIENT_IO"
	// ErrCodePermanentIO indicates an I/O fault that will not succeed on retry.
	ErrCodePermanentIO ErrorCode = "PERMANENT_IO"
	// ErrCodePathSecurity indicates a file path outside the configured allow-list.
	ErrCodePathSecurity ErrorCode = "PATH_SECURITY"
)

// Boundary errors
const (
	// ErrCodeUnauthorized indicates the request is not authenticated.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeRunLimitExceeded indicates the concurrent-run ceiling was reached.
	ErrCodeRunLimitExceeded ErrorCode = "RUN_LIMIT_EXCEEDED"
	// ErrCodeRateLimited indicates the per-client request rate was exceeded.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Only transient I/O may be retried. Everything else either cannot succeed
// on a second attempt (invalid arguments, permanent I/O, user functions) or
// must surface to the caller unchanged (cancellation, security, auth).
var retryableCodes = map[ErrorCode]bool{
	ErrCodeTransientIO: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
