package util_test

import (
	"context"
	"testing"

	"github.com/sitegrid/sitegrid/internal/util"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core).Sugar()

	util.WithTrace(context.Background(), logger).Info("no span")
	require.Empty(t, logs.TakeAll()[0].Context)

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	util.WithTrace(ctx, logger).Info("with span")

	fields := logs.TakeAll()[0].ContextMap()
	require.Equal(t, span.SpanContext().TraceID().String(), fields["traceID"])
	require.Equal(t, span.SpanContext().SpanID().String(), fields["spanID"])
}
