package telemetry

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/muesli/termenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.trai.ch/monorun/internal/core/ports"
	"go.trai.ch/monorun/internal/ui/output"
	"go.trai.ch/monorun/internal/ui/style"
)

var _ ports.Tracer = (*OTelTracer)(nil)

// OTelTracer is a concrete implementation of ports.Tracer using OpenTelemetry.
// Output written to its spans is streamed line by line to an optional console writer,
// prefixed with the span name.
type OTelTracer struct {
	tracer trace.Tracer

	mu      sync.Mutex
	console *termenv.Output
}

// NewOTelTracer creates a new OTelTracer with the given instrumentation name.
func NewOTelTracer(name string) *OTelTracer {
	return &OTelTracer{tracer: otel.Tracer(name)}
}

// WithOutput streams span output to w.
func (t *OTelTracer) WithOutput(w io.Writer) *OTelTracer {
	t.mu.Lock()
	defer t.mu.Unlock()
	if w == nil {
		t.console = nil
		return t
	}
	t.console = output.New(w)
	return t
}

// Start creates a new span.
func (t *OTelTracer) Start(ctx context.Context, name string) (context.Context, ports.Span) {
	ctx, span := t.tracer.Start(ctx, name)

	t.mu.Lock()
	console := t.console
	t.mu.Unlock()

	var batcher *LineBatcher
	if console != nil {
		prefix := console.String(name + " │").Foreground(console.Color(string(style.Slate))).String()
		batcher = NewLineBatcher(0, 0, func(lines []string) {
			t.mu.Lock()
			defer t.mu.Unlock()
			for _, line := range lines {
				_, _ = fmt.Fprintf(console, "%s %s\n", prefix, line)
			}
		})
	}

	return ctx, &OTelSpan{span: span, batcher: batcher}
}

// EmitPlan records the planned operations as an event on the current span.
func (t *OTelTracer) EmitPlan(ctx context.Context, operationNames []string) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent("plan_emitted", trace.WithAttributes(
			attribute.StringSlice("operations", operationNames),
		))
	}
}

// OTelSpan is a concrete implementation of ports.Span using OpenTelemetry.
type OTelSpan struct {
	span    trace.Span
	batcher *LineBatcher
}

// End completes the span.
func (s *OTelSpan) End() {
	if s.batcher != nil {
		_ = s.batcher.Close()
	}
	s.span.End()
}

// RecordError records an error for the span.
func (s *OTelSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// SetAttribute adds a key-value pair to the span.
func (s *OTelSpan) SetAttribute(key string, value any) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	case []string:
		s.span.SetAttributes(attribute.StringSlice(key, v))
	case fmt.Stringer:
		s.span.SetAttributes(attribute.String(key, v.String()))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

// Write streams p to the console, or records it as a span event when no console is set.
func (s *OTelSpan) Write(p []byte) (n int, err error) {
	if s.batcher != nil {
		return s.batcher.Write(p)
	}
	s.span.AddEvent("log", trace.WithAttributes(attribute.String("message", string(p))))
	return len(p), nil
}
