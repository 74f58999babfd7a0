package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/monorun/internal/adapters/watcher"
	"go.trai.ch/monorun/internal/core/ports"
)

func collect(w *watcher.Watcher) <-chan ports.WatchEvent {
	ch := make(chan ports.WatchEvent, 64)
	go func() {
		defer close(ch)
		for ev := range w.Events() {
			ch <- ev
		}
	}()
	return ch
}

func waitFor(t *testing.T, ch <-chan ports.WatchEvent, path string) ports.WatchEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			require.True(t, ok, "event stream closed before %s", path)
			if ev.Path == path {
				return ev
			}
		case <-deadline:
			t.Fatalf("no event for %s", path)
		}
	}
}

func TestWatcher_ReportsChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "packages", "lib"), 0o750))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	w := watcher.NewWatcher(nil)
	require.NoError(t, w.Start(ctx, root, nil))
	defer func() { _ = w.Stop() }()
	events := collect(w)

	file := filepath.Join(root, "packages", "lib", "index.ts")
	require.NoError(t, os.WriteFile(file, []byte("export {}"), 0o600))
	ev := waitFor(t, events, file)
	assert.Contains(t, []ports.WatchOp{ports.OpCreate, ports.OpWrite}, ev.Operation)

	require.NoError(t, os.Remove(file))
	for {
		ev = waitFor(t, events, file)
		if ev.Operation == ports.OpRemove {
			break
		}
	}
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	w := watcher.NewWatcher(nil)
	require.NoError(t, w.Start(ctx, root, nil))
	defer func() { _ = w.Stop() }()
	events := collect(w)

	dir := filepath.Join(root, "src")
	require.NoError(t, os.Mkdir(dir, 0o750))
	waitFor(t, events, dir)

	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)
	file := filepath.Join(dir, "main.ts")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	waitFor(t, events, file)
}

func TestWatcher_SkipsIgnoredTrees(t *testing.T) {
	root := t.TempDir()
	dist := filepath.Join(root, "dist")
	modules := filepath.Join(root, "node_modules")
	require.NoError(t, os.Mkdir(dist, 0o750))
	require.NoError(t, os.Mkdir(modules, 0o750))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	w := watcher.NewWatcher(nil)
	require.NoError(t, w.Start(ctx, root, []string{dist}))
	defer func() { _ = w.Stop() }()
	events := collect(w)

	require.NoError(t, os.WriteFile(filepath.Join(dist, "out.js"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(modules, "dep.js"), []byte("x"), 0o600))
	marker := filepath.Join(root, "marker")
	require.NoError(t, os.WriteFile(marker, []byte("x"), 0o600))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			assert.NotContains(t, ev.Path, "out.js")
			assert.NotContains(t, ev.Path, "dep.js")
			if ev.Path == marker {
				return
			}
		case <-deadline:
			t.Fatal("marker event never arrived")
		}
	}
}

func TestWatcher_ContextEndsStream(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(t.Context())

	w := watcher.NewWatcher(nil)
	require.NoError(t, w.Start(ctx, root, nil))
	events := collect(w)

	cancel()
	select {
	case _, ok := <-events:
		for ok {
			_, ok = <-events
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end after cancel")
	}
	assert.NoError(t, w.Stop())
}
