// Package errors provides the structured error taxonomy for streamkit.
// It implements coded error types with HTTP status mapping, retryable
// detection, and cause preservation following RFC 7807 and Google AIP-193.
//
// The taxonomy separates the ways a pipeline run can end badly: caller
// mistakes (INVALID_ARGUMENT), failures inside caller-supplied functions
// (USER_FUNCTION_ERROR), I/O faults split by recoverability (TRANSIENT_IO
// vs PERMANENT_IO), and boundary rejections (PATH_SECURITY, UNAUTHORIZED,
// RUN_LIMIT_EXCEEDED). Cancellation (CANCELLED) is a distinct outcome
// rather than a failure: a caller that stops a run sees CANCELLED, never a
// truncated result presented as success.
//
// Only TRANSIENT_IO is retryable. A user function that failed once will
// fail again on the same input, so it is never retried.
package errors
