package ports

import (
	"context"

	"go.trai.ch/monorun/internal/core/domain"
)

// CacheProvider is one tier of the build cache.
//
//go:generate go run go.uber.org/mock/mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type CacheProvider interface {
	// Source names the tier.
	Source() domain.CacheSource
	// Get returns the blob stored under key. found is false on a miss.
	Get(ctx context.Context, key string) (blob []byte, found bool, err error)
	// Put stores blob under key.
	Put(ctx context.Context, key string, blob []byte) error
	// Writable reports whether Put may be called.
	Writable() bool
}
