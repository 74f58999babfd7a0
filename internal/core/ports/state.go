package ports

import (
	"context"

	"go.trai.ch/monorun/internal/core/domain"
)

// ProjectStateProvider fingerprints the contents of a project.
//
//go:generate go run go.uber.org/mock/mockgen -source=state.go -destination=mocks/mock_state.go -package=mocks
type ProjectStateProvider interface {
	// Fingerprint returns a stable digest of the project's files.
	// ok is false when the state of the project cannot be determined.
	Fingerprint(ctx context.Context, project domain.ProjectRef) (fingerprint string, ok bool)
	// Invalidate forgets any memoized fingerprint of a project that contains path.
	Invalidate(path string)
}
