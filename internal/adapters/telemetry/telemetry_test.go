package telemetry_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.trai.ch/monorun/internal/adapters/telemetry"
	"go.trai.ch/monorun/internal/core/ports"
	"go.trai.ch/monorun/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func attributeStatus(status string) attribute.KeyValue {
	return attribute.String(ports.StatusAttribute, status)
}

func TestOTelTracer_StreamsOutput(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var console bytes.Buffer
	tracer := telemetry.NewOTelTracer("test").WithOutput(&console)

	_, span := tracer.Start(context.Background(), "lib (build)")
	_, err := span.Write([]byte("compiling\ndone"))
	require.NoError(t, err)
	span.End()

	assert.Equal(t, "lib (build) │ compiling\nlib (build) │ done\n", console.String())
}

func TestOTelTracer_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	shutdown := telemetry.Setup(recorder)
	defer func() { _ = shutdown(context.Background()) }()

	tracer := telemetry.NewOTelTracer("test")
	ctx, root := tracer.Start(context.Background(), "run")
	tracer.EmitPlan(ctx, []string{"lib (build)", "app (build)"})

	_, span := tracer.Start(ctx, "lib (build)")
	span.SetAttribute(ports.StatusAttribute, "Failure")
	span.SetAttribute("exit_code", 2)
	span.SetAttribute("cacheable", true)
	span.RecordError(errors.New("boom"))
	_, _ = span.Write([]byte("log line"))
	span.End()
	root.End()

	ended := recorder.Ended()
	require.Len(t, ended, 2)

	op := ended[0]
	assert.Equal(t, "lib (build)", op.Name())
	assert.Equal(t, codes.Error, op.Status().Code)

	var events []string
	for _, e := range ended[1].Events() {
		events = append(events, e.Name)
	}
	assert.Contains(t, events, "plan_emitted")
}

func TestBridge_OnEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	bridge := telemetry.NewBridge(mockLogger)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(bridge))
	tracer := tp.Tracer("test")

	mockLogger.EXPECT().Info(gomock.Any()).Do(func(msg string) {
		assert.Contains(t, msg, "lib (build) Success in")
	}).Times(1)
	mockLogger.EXPECT().Warn(gomock.Any()).Do(func(msg string) {
		assert.Contains(t, msg, "app (build) Failure after")
		assert.Contains(t, msg, "exit status 1")
	}).Times(1)

	_, ok := tracer.Start(context.Background(), "lib (build)")
	ok.SetAttributes(attributeStatus("Success"))
	ok.End()

	_, failed := tracer.Start(context.Background(), "app (build)")
	failed.SetAttributes(attributeStatus("Failure"))
	failed.SetStatus(codes.Error, "exit status 1")
	failed.End()

	// Spans without a status are not reported.
	_, plain := tracer.Start(context.Background(), "run")
	plain.End()

	require.NoError(t, bridge.ForceFlush(context.Background()))
	require.NoError(t, bridge.Shutdown(context.Background()))
}

func TestBridge_NilLogger(_ *testing.T) {
	bridge := telemetry.NewBridge(nil)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(bridge))
	_, span := tp.Tracer("test").Start(context.Background(), "lib (build)")
	span.SetAttributes(attributeStatus("Success"))
	span.End()
}

func TestNoOpTracer(t *testing.T) {
	tracer := telemetry.NewNoOpTracer()
	ctx := context.Background()

	newCtx, span := tracer.Start(ctx, "noop")
	assert.Equal(t, ctx, newCtx)
	tracer.EmitPlan(ctx, []string{"a"})
	span.SetAttribute("k", "v")
	span.RecordError(errors.New("ignored"))
	n, err := span.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	span.End()
}
