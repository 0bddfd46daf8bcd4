package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RunMetrics holds the metric instruments for pipeline runs.
type RunMetrics struct {
	runsTotal   metric.Int64Counter
	runsActive  metric.Int64UpDownCounter
	runDuration metric.Float64Histogram
	chunksTotal metric.Int64Counter
	bytesTotal  metric.Int64Counter
}

// NewRunMetrics creates the run instruments on the given meter.
func NewRunMetrics(meter metric.Meter) (*RunMetrics, error) {
	runsTotal, err := meter.Int64Counter("streamkit.runs",
		metric.WithDescription("Total number of pipeline runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating streamkit.runs counter: %w", err)
	}

	runsActive, err := meter.Int64UpDownCounter("streamkit.runs.active",
		metric.WithDescription("Number of currently executing runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating streamkit.runs.active gauge: %w", err)
	}

	runDuration, err := meter.Float64Histogram("streamkit.run.duration",
		metric.WithDescription("Duration of pipeline runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating streamkit.run.duration histogram: %w", err)
	}

	chunksTotal, err := meter.Int64Counter("streamkit.chunks",
		metric.WithDescription("Total chunks emitted by runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating streamkit.chunks counter: %w", err)
	}

	bytesTotal, err := meter.Int64Counter("streamkit.bytes.processed",
		metric.WithDescription("Total bytes processed by file runs"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating streamkit.bytes.processed counter: %w", err)
	}

	return &RunMetrics{
		runsTotal:   runsTotal,
		runsActive:  runsActive,
		runDuration: runDuration,
		chunksTotal: chunksTotal,
		bytesTotal:  bytesTotal,
	}, nil
}

// RecordRunStart increments the active run count.
func (m *RunMetrics) RecordRunStart(ctx context.Context) {
	m.runsActive.Add(ctx, 1)
}

// RecordRunEnd decrements active runs and records the completed run.
func (m *RunMetrics) RecordRunEnd(ctx context.Context, action, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrAction, action),
		attribute.String(AttrStatus, status),
	)
	m.runsActive.Add(ctx, -1)
	m.runsTotal.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrAction, action),
	))
}

// RecordChunks adds to the emitted-chunk count for an action.
func (m *RunMetrics) RecordChunks(ctx context.Context, action string, n int64) {
	if n <= 0 {
		return
	}
	m.chunksTotal.Add(ctx, n, metric.WithAttributes(
		attribute.String(AttrAction, action),
	))
}

// RecordBytes adds to the processed-byte count for an action.
func (m *RunMetrics) RecordBytes(ctx context.Context, action string, n int64) {
	if n <= 0 {
		return
	}
	m.bytesTotal.Add(ctx, n, metric.WithAttributes(
		attribute.String(AttrAction, action),
	))
}
