package observe

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the Flow tracer.
const tracerName = "github.com/stephenhungg/flow"

// Tracer returns the package-level [trace.Tracer] for Flow. It uses the
// globally registered [trace.TracerProvider].
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span and returns the updated context and span. The
// caller must call span.End() when done.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartStage opens a span for one pipeline stage and returns a done function
// that ends the span and records the elapsed seconds on hist, both tagged
// with the outcome passed to done. hist may be nil when only the span is
// wanted. The returned context carries the stage span.
func StartStage(ctx context.Context, name string, hist metric.Float64Histogram) (context.Context, func(status string)) {
	start := time.Now()
	ctx, span := StartSpan(ctx, name)
	return ctx, func(status string) {
		span.SetAttributes(attribute.String("status", status))
		span.End()
		if hist != nil {
			hist.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(attribute.String("status", status)))
		}
	}
}

// CorrelationID extracts the trace ID from the OTel span context in ctx.
// Returns the empty string when no active span with a valid trace ID exists.
// The trace ID doubles as the request correlation identifier.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns an [slog.Logger] enriched with trace_id and span_id from
// the OTel span context in ctx. When no active span is present, the returned
// logger is the default slog logger without extra attributes.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
