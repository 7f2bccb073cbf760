package util

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// WithTrace adds the trace and span ids of the span in ctx, if any, to the
// logger so request logs can be matched with exported traces.
func WithTrace(ctx context.Context, l *zap.SugaredLogger) *zap.SugaredLogger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return l
	}
	return l.With(
		zap.String("traceID", sc.TraceID().String()),
		zap.String("spanID", sc.SpanID().String()),
	)
}
