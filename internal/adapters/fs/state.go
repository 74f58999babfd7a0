package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/core/ports"
)

// DefaultStateCacheSize bounds the number of memoized project fingerprints.
const DefaultStateCacheSize = 1024

var _ ports.ProjectStateProvider = (*StateProvider)(nil)

type fingerprintEntry struct {
	folder      string
	fingerprint string
}

// StateProvider fingerprints project folders by hashing their files.
// Results are memoized until Invalidate is called for a path inside the project.
type StateProvider struct {
	hasher *Hasher
	memo   *lru.Cache[string, fingerprintEntry]
}

// NewStateProvider creates a StateProvider holding at most size fingerprints.
func NewStateProvider(hasher *Hasher, size int) (*StateProvider, error) {
	if size <= 0 {
		size = DefaultStateCacheSize
	}
	memo, err := lru.New[string, fingerprintEntry](size)
	if err != nil {
		return nil, err
	}
	return &StateProvider{hasher: hasher, memo: memo}, nil
}

// Fingerprint returns the digest of all files in the project folder, excluding
// the project's output folders. ok is false if the folder is missing or unreadable.
func (p *StateProvider) Fingerprint(ctx context.Context, project domain.ProjectRef) (string, bool) {
	key := memoKey(project)
	if e, ok := p.memo.Get(key); ok {
		return e.fingerprint, true
	}

	info, err := os.Stat(project.Folder)
	if err != nil || !info.IsDir() {
		return "", false
	}

	digest := xxhash.New()
	for rel, err := range p.hasher.walker.WalkFiles(project.Folder, project.Excludes) {
		if err != nil || ctx.Err() != nil {
			return "", false
		}
		if err := p.hasher.hashFile(project.Folder, rel, digest); err != nil {
			return "", false
		}
	}

	fingerprint := fmt.Sprintf("%016x", digest.Sum64())
	p.memo.Add(key, fingerprintEntry{folder: filepath.Clean(project.Folder), fingerprint: fingerprint})
	return fingerprint, true
}

// Invalidate drops every memoized fingerprint whose project folder contains path.
func (p *StateProvider) Invalidate(path string) {
	path = filepath.Clean(path)
	for _, key := range p.memo.Keys() {
		e, ok := p.memo.Peek(key)
		if !ok {
			continue
		}
		if path == e.folder || strings.HasPrefix(path, e.folder+string(filepath.Separator)) {
			p.memo.Remove(key)
		}
	}
}

func memoKey(project domain.ProjectRef) string {
	excludes := slices.Clone(project.Excludes)
	slices.Sort(excludes)
	return filepath.Clean(project.Folder) + "\x00" + strings.Join(excludes, "\x00")
}
