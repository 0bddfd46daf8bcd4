// Package validation provides input validation for streamkit request types.
//
// It supports both struct tag validation (using the validator library) and
// programmatic validation with error collection. Both paths produce an
// INVALID_ARGUMENT AppError whose details carry the per-field failures.
//
// # Struct Tag Validation
//
//	type RunRequest struct {
//	    Action    string `json:"action" validate:"required"`
//	    ChunkSize int    `json:"chunkSize" validate:"omitempty,gte=1"`
//	}
//	err := validation.Validate(req)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("transform", req.Params.Transform)
//	v.Min("batchSize", req.Params.BatchSize, 1)
//	err := v.Validate()
package validation
