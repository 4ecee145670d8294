package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	apperrors "calheat/internal/errors"
	"calheat/internal/heatmap"
	"calheat/internal/infrastructure"
)

const (
	TracerName = "calheat.pipeline"
)

// Telemetry provides OpenTelemetry instrumentation for pipeline runs
type Telemetry struct {
	tracer  trace.Tracer
	metrics *infrastructure.HeatmapMetrics
}

// NewTelemetry creates telemetry backed by the given providers
func NewTelemetry(providers *infrastructure.OTelProviders) (*Telemetry, error) {
	metrics, err := infrastructure.CreateHeatmapMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create heatmap metrics: %w", err)
	}

	return &Telemetry{
		tracer:  providers.Tracer,
		metrics: metrics,
	}, nil
}

// NoopTelemetry traces through the global provider and records no metrics
func NoopTelemetry() *Telemetry {
	return &Telemetry{tracer: otel.Tracer(TracerName)}
}

// TraceRun creates a span for an entire cycle
func (t *Telemetry) TraceRun(ctx context.Context, runID string, req Request) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.column", req.Column),
			attribute.Int("run.offset", int(req.Offset)),
			attribute.String("run.month", req.Month),
			attribute.String("run.overflow", string(req.Overflow)),
			attribute.String("run.destination", req.Destination),
		),
	)
}

// TraceStage creates a span for one stage of a cycle
func (t *Telemetry) TraceStage(ctx context.Context, runID, stage string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "pipeline."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("stage", stage),
		),
	)
}

// EndStage closes a stage span with its outcome
func (t *Telemetry) EndStage(span trace.Span, start time.Time, err error) {
	span.SetAttributes(attribute.Float64("stage.duration_seconds", time.Since(start).Seconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// RecordAggregation records counted and skipped rows
func (t *Telemetry) RecordAggregation(ctx context.Context, result *heatmap.Result) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("aggregation.counted", result.Total),
		attribute.Int("aggregation.skipped", len(result.Skipped)),
		attribute.Int("aggregation.max_count", result.Max()),
	)
	if t.metrics == nil {
		return
	}

	t.metrics.RowsAggregated.Add(ctx, int64(result.Total))
	bySkipReason := make(map[heatmap.SkipReason]int64)
	for _, s := range result.Skipped {
		bySkipReason[s.Reason]++
	}
	for reason, n := range bySkipReason {
		t.metrics.RowsSkipped.Add(ctx, n, metric.WithAttributes(attribute.String("reason", string(reason))))
	}
}

// RecordDropped records days left out of the grid
func (t *Telemetry) RecordDropped(ctx context.Context, offset int, dropped []int) {
	if t.metrics == nil || len(dropped) == 0 {
		return
	}
	t.metrics.DaysDropped.Add(ctx, int64(len(dropped)),
		metric.WithAttributes(attribute.Int("offset", offset)))
}

// RecordRender records the render stage duration and output size
func (t *Telemetry) RecordRender(ctx context.Context, format string, duration time.Duration, bytes int64) {
	if t.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("format", format))
	t.metrics.RenderDuration.Record(ctx, duration.Seconds(), attrs)
	t.metrics.ImageBytesWritten.Add(ctx, bytes, attrs)
}

// RecordRunCompletion closes the run span and counts the cycle by outcome
func (t *Telemetry) RecordRunCompletion(ctx context.Context, span trace.Span, duration time.Duration, err error) {
	outcome := Outcome(err)
	span.SetAttributes(
		attribute.String("run.outcome", outcome),
		attribute.Float64("run.duration_seconds", duration.Seconds()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "run completed successfully")
	}

	if t.metrics != nil {
		t.metrics.CyclesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

// Outcome names the result of a cycle for metrics: "success" or the
// lower-cased error kind.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	if kind := apperrors.TypeOf(err); kind != "" {
		return strings.ToLower(string(kind))
	}
	return "internal"
}
