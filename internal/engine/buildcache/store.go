// Package buildcache coordinates the local and cloud cache tiers.
package buildcache

import (
	"context"

	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/core/ports"
	"go.trai.ch/zerr"
)

// Store reads from the local tier first and falls back to the cloud tier.
// Tier failures are logged and treated as misses.
type Store struct {
	local  ports.CacheProvider
	cloud  ports.CacheProvider
	logger ports.Logger
}

// New creates a Store. cloud may be nil when no cloud tier is configured.
func New(local, cloud ports.CacheProvider, logger ports.Logger) *Store {
	return &Store{local: local, cloud: cloud, logger: logger}
}

// TryRestore looks up key in each tier. A cloud hit is written back to the
// local tier; Promoted reports whether that write succeeded.
func (s *Store) TryRestore(ctx context.Context, key string) (*domain.CacheEntry, bool) {
	if blob, ok := s.get(ctx, s.local, key); ok {
		return &domain.CacheEntry{Key: key, Blob: blob, Source: s.local.Source()}, true
	}

	if s.cloud == nil {
		return nil, false
	}
	blob, ok := s.get(ctx, s.cloud, key)
	if !ok {
		return nil, false
	}

	entry := &domain.CacheEntry{Key: key, Blob: blob, Source: s.cloud.Source()}
	if s.local.Writable() {
		entry.Promoted = s.put(ctx, s.local, key, blob)
	}
	return entry, true
}

// TrySave writes blob to the local tier and, when it accepts writes, the cloud tier.
// It reports whether the entry landed in at least one tier.
func (s *Store) TrySave(ctx context.Context, key string, blob []byte) bool {
	saved := false
	if s.local.Writable() && s.put(ctx, s.local, key, blob) {
		saved = true
	}
	if s.cloud != nil && s.cloud.Writable() && s.put(ctx, s.cloud, key, blob) {
		saved = true
	}
	return saved
}

// HasCloud reports whether a cloud tier is configured.
func (s *Store) HasCloud() bool {
	return s.cloud != nil
}

func (s *Store) get(ctx context.Context, tier ports.CacheProvider, key string) ([]byte, bool) {
	blob, found, err := tier.Get(ctx, key)
	if err != nil {
		s.report(zerr.Wrap(err, domain.ErrCacheReadFailed.Error()), tier, key)
		return nil, false
	}
	return blob, found
}

func (s *Store) put(ctx context.Context, tier ports.CacheProvider, key string, blob []byte) bool {
	if err := tier.Put(ctx, key, blob); err != nil {
		s.report(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), tier, key)
		return false
	}
	return true
}

func (s *Store) report(err error, tier ports.CacheProvider, key string) {
	if s.logger == nil {
		return
	}
	err = zerr.With(err, "tier", string(tier.Source()))
	s.logger.Error(zerr.With(err, "key", key))
}
