package cas

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.CacheProvider = (*LocalCache)(nil)

// LocalCache is the filesystem cache tier. Each key maps to one archive file,
// sharded by the first two characters of the key.
type LocalCache struct {
	dir string
}

// NewLocalCache creates a local cache rooted at dir.
func NewLocalCache(dir string) *LocalCache {
	return &LocalCache{dir: dir}
}

// Dir returns the cache directory.
func (c *LocalCache) Dir() string {
	return c.dir
}

// Source reports the local tier.
func (c *LocalCache) Source() domain.CacheSource {
	return domain.CacheSourceLocal
}

// Writable is always true for the local tier.
func (c *LocalCache) Writable() bool {
	return true
}

// Get reads the archive stored under key.
func (c *LocalCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	path := c.entryPath(key)
	//nolint:gosec // Path is derived from the cache directory and a sanitized key
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, zerr.With(zerr.Wrap(err, domain.ErrCacheReadFailed.Error()), "path", path)
	}
	return data, true, nil
}

// Put writes blob under key. Concurrent writers of the same key are safe;
// the last rename wins and every version is complete.
func (c *LocalCache) Put(_ context.Context, key string, blob []byte) error {
	path := c.entryPath(key)
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "path", path)
	}
	if err := writeFileAtomic(path, blob, domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "path", path)
	}
	return nil
}

func (c *LocalCache) entryPath(key string) string {
	name := sanitizeKey(key)
	if len(name) < 2 {
		return filepath.Join(c.dir, name+".tar.gz")
	}
	return filepath.Join(c.dir, name[:2], name+".tar.gz")
}

// sanitizeKey keeps keys usable as file names when a caller prefix contains separators.
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, key)
}
