// Package fs provides file system adapters for walking, hashing and fingerprinting files.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"

	"go.trai.ch/monorun/internal/core/domain"
)

// skippedDirs are never part of a project's state.
var skippedDirs = map[string]struct{}{
	".git":              {},
	".jj":               {},
	"node_modules":      {},
	domain.StateDirName: {},
}


// Walker provides file walking functionality.
type Walker struct{}

// NewWalker creates a new Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// WalkFiles yields every regular file below root in lexical order, as paths
// relative to root. VCS metadata, installed packages and monorun state are skipped.
// Entries of excludes are root-relative paths or patterns; matching directories
// are not descended into.
func (w *Walker) WalkFiles(root string, excludes []string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == root {
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}

			if w.excluded(d, rel, excludes) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if !d.Type().IsRegular() {
				return nil
			}

			if !yield(rel, nil) {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			yield("", err)
		}
	}
}

func (w *Walker) excluded(d fs.DirEntry, rel string, excludes []string) bool {
	if d.IsDir() {
		if _, ok := skippedDirs[d.Name()]; ok {
			return true
		}
	}

	rel = filepath.ToSlash(rel)
	for _, exclude := range excludes {
		pattern := filepath.ToSlash(filepath.Clean(exclude))
		if pattern == rel {
			return true
		}
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}
