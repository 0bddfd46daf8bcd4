package errors

// ErrorResponse is the JSON structure returned to clients following RFC 7807.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains the error details sent to clients.
type ErrorBody struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// ToResponse converts an AppError to an ErrorResponse for JSON serialization.
// The Cause chain stays server-side; clients see code, message, and details.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:      e.Code,
			Message:   e.Message,
			Retryable: e.Retryable,
			Details:   e.Details,
		},
	}
}

// ResponseFor normalizes any error into an ErrorResponse. Non-AppError values
// pass through Wrap first, so plain errors surface as INTERNAL_ERROR.
func ResponseFor(err error) ErrorResponse {
	return Wrap(err).ToResponse()
}

// StatusFor returns the HTTP status an error should be served with.
func StatusFor(err error) int {
	return Wrap(err).HTTPStatus
}
