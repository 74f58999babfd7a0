package ports

import (
	"context"
	"io"
)

//go:generate go run go.uber.org/mock/mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks

// Span attributes set by the executor on every operation span.
const (
	// StatusAttribute carries the operation's terminal status.
	StatusAttribute = "monorun.status"
	// RestoredAttribute is true when outputs came from the build cache.
	RestoredAttribute = "monorun.restored"
)

// Tracer is the entry point for creating spans.
type Tracer interface {
	// Start creates a new span.
	Start(ctx context.Context, name string) (context.Context, Span)
	// EmitPlan signals that a set of operations is planned for execution.
	EmitPlan(ctx context.Context, operationNames []string)
}

// Span represents a unit of work.
type Span interface {
	io.Writer
	// End completes the span.
	End()
	// RecordError records an error for the span.
	RecordError(err error)
	// SetAttribute adds a key-value pair to the span.
	SetAttribute(key string, value any)
}
