package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"go.trai.ch/monorun/internal/adapters/watcher" //nolint:depguard // Wired in app layer
	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/engine/executor"
	"go.trai.ch/zerr"
)

// trigger coalesces run requests that arrive while a run is in flight.
type trigger chan struct{}

func newTrigger() trigger {
	return make(trigger, 1)
}

func (t trigger) fire() {
	select {
	case t <- struct{}{}:
	default:
	}
}

// watch re-runs graph whenever files change or a worker requests a run, until ctx ends.
func (a *App) watch(
	ctx context.Context,
	ws *domain.Workspace,
	graph *domain.Graph,
	exec *executor.Executor,
	parallelism int,
	triggers trigger,
) error {
	debouncer := watcher.NewDebouncer(watcher.DefaultDebounceWindow, func(paths []string) {
		for _, path := range paths {
			a.logger.Debug("changed: " + path)
			a.state.Invalidate(path)
		}
		a.logger.Info(fmt.Sprintf("%d file(s) changed", len(paths)))
		triggers.fire()
	})
	defer debouncer.Stop()

	if err := a.watcher.Start(ctx, ws.Root, watchSkips(ws, graph)); err != nil {
		return zerr.Wrap(err, "failed to start watcher")
	}
	defer func() {
		_ = a.watcher.Stop()
	}()

	go func() {
		for event := range a.watcher.Events() {
			debouncer.Add(event.Path)
		}
	}()

	a.logger.Info("watching for changes")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-triggers:
			err := a.execute(ctx, exec, graph, parallelism)
			if err != nil && !errors.Is(err, domain.ErrBuildExecutionFailed) {
				return err
			}
		}
	}
}

// watchSkips lists the trees whose changes must not trigger a run: build outputs and the local cache.
func watchSkips(ws *domain.Workspace, graph *domain.Graph) []string {
	var skips []string
	if ws.Cache.LocalPath != "" {
		skips = append(skips, ws.Cache.LocalPath)
	}
	for op := range graph.Operations() {
		for _, out := range op.OutputFolders {
			skips = append(skips, filepath.Join(op.Folder, out))
		}
	}
	slices.Sort(skips)
	return slices.Compact(skips)
}
