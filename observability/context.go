package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RunObservation tracks one pipeline run across its span and metrics.
type RunObservation struct {
	Action    string
	RunID     string
	StartTime time.Time
	Metrics   *RunMetrics
}

// NewRunObservation creates a run observation.
// If metrics is nil, metric recording is silently skipped.
func NewRunObservation(action, runID string, metrics *RunMetrics) *RunObservation {
	return &RunObservation{
		Action:    action,
		RunID:     runID,
		StartTime: time.Now(),
		Metrics:   metrics,
	}
}

// runObservationKey is the context key for RunObservation.
type runObservationKey struct{}

// WithRunObservation stores a RunObservation in the context.
func WithRunObservation(ctx context.Context, ro *RunObservation) context.Context {
	return context.WithValue(ctx, runObservationKey{}, ro)
}

// RunObservationFromContext retrieves the RunObservation from context, or nil.
func RunObservationFromContext(ctx context.Context) *RunObservation {
	if ro, ok := ctx.Value(runObservationKey{}).(*RunObservation); ok {
		return ro
	}
	return nil
}

// Start starts the run span and records the run-start metric.
func (ro *RunObservation) Start(ctx context.Context) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, SpanRun)
	span.SetAttributes(
		attribute.String(AttrAction, ro.Action),
		attribute.String(AttrRunID, ro.RunID),
	)

	if ro.Metrics != nil {
		ro.Metrics.RecordRunStart(ctx)
	}
	return ctx, span
}

// End ends the span and records run-end metrics. chunks and bytes report the
// run's output volume; pass zero when the action produced none.
func (ro *RunObservation) End(ctx context.Context, span trace.Span, status string, chunks, bytes int64, err error) {
	duration := time.Since(ro.StartTime)

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}

	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrChunks, chunks),
		attribute.Int64(AttrBytes, bytes),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()

	if ro.Metrics != nil {
		ro.Metrics.RecordRunEnd(ctx, ro.Action, status, duration)
		ro.Metrics.RecordChunks(ctx, ro.Action, chunks)
		ro.Metrics.RecordBytes(ctx, ro.Action, bytes)
	}
}

// Duration returns the elapsed time since the run started.
func (ro *RunObservation) Duration() time.Duration {
	return time.Since(ro.StartTime)
}
