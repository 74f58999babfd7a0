// Package watcher reports file changes below a workspace for watch mode.
package watcher

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Watcher = (*Watcher)(nil)

// skippedDirs are never watched, wherever they appear.
var skippedDirs = map[string]bool{
	".git":               true,
	".jj":                true,
	"node_modules":       true,
	domain.StateDirName: true,
}

const eventBuffer = 128

// Watcher watches a directory tree with fsnotify.
type Watcher struct {
	logger ports.Logger

	mu     sync.Mutex
	fsw    *fsnotify.Watcher
	skip   []string
	events chan ports.WatchEvent
	done   chan struct{}
}

// NewWatcher creates a Watcher. Nothing is watched until Start.
func NewWatcher(logger ports.Logger) *Watcher {
	return &Watcher{
		logger: logger,
		events: make(chan ports.WatchEvent, eventBuffer),
	}
}

// Start begins watching root recursively. Entries of skip are absolute
// directories whose subtrees are ignored, typically output folders.
func (w *Watcher) Start(ctx context.Context, root string, skip []string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return zerr.Wrap(err, "failed to create file watcher")
	}

	w.mu.Lock()
	w.fsw = fsw
	w.skip = make([]string, 0, len(skip))
	for _, s := range skip {
		w.skip = append(w.skip, filepath.Clean(s))
	}
	w.done = make(chan struct{})
	w.mu.Unlock()

	for dir := range w.directories(root) {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return zerr.With(zerr.Wrap(err, "failed to watch directory"), "path", dir)
		}
	}

	go w.loop(ctx, fsw)
	return nil
}

// Stop closes the underlying watcher. The event iterator ends afterwards.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	fsw := w.fsw
	w.fsw = nil
	w.mu.Unlock()

	if fsw == nil {
		return nil
	}
	return fsw.Close()
}

// Events yields changes until the watcher stops or its context ends.
func (w *Watcher) Events() iter.Seq[ports.WatchEvent] {
	return func(yield func(ports.WatchEvent) bool) {
		for ev := range w.events {
			if !yield(ev) {
				return
			}
		}
	}
}

func (w *Watcher) directories(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable directories are left unwatched.
				return nil //nolint:nilerr // keep walking
			}
			if !d.IsDir() {
				return nil
			}
			if w.ignored(path) {
				return fs.SkipDir
			}
			if !yield(path) {
				return fs.SkipAll
			}
			return nil
		})
	}
}

func (w *Watcher) ignored(path string) bool {
	if skippedDirs[filepath.Base(path)] {
		return true
	}
	return slices.ContainsFunc(w.skip, func(s string) bool {
		return path == s || strings.HasPrefix(path, s+string(filepath.Separator))
	})
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !w.forward(ctx, fsw, event) {
				return
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Error(zerr.Wrap(err, "file watcher error"))
			}
		}
	}
}

func (w *Watcher) forward(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	if w.ignored(event.Name) || w.ignored(filepath.Dir(event.Name)) {
		return true
	}

	op, ok := convert(event.Op)
	if !ok {
		return true
	}

	select {
	case w.events <- ports.WatchEvent{Path: event.Name, Operation: op}:
	case <-ctx.Done():
		return false
	}

	if op == ports.OpCreate {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			for dir := range w.directories(event.Name) {
				_ = fsw.Add(dir)
			}
		}
	}
	return true
}

func convert(op fsnotify.Op) (ports.WatchOp, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return ports.OpCreate, true
	case op.Has(fsnotify.Write):
		return ports.OpWrite, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return ports.OpRemove, true
	default:
		return 0, false
	}
}
