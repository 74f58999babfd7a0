// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"

	"go.trai.ch/monorun/internal/core/domain"
)

// OperationRunner executes the command of a single operation.
//
//go:generate go run go.uber.org/mock/mockgen -source=runner.go -destination=mocks/mock_runner.go -package=mocks
type OperationRunner interface {
	// Run executes op and reports its terminal status.
	//
	// Command output is streamed to output as it is produced and also
	// returned in RunResult.Output. Run never returns a non-terminal status.
	Run(ctx context.Context, op *domain.Operation, output io.Writer) domain.RunResult
}
