// Package app implements the application layer for monorun.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/monorun/internal/adapters/cas"       //nolint:depguard // Wired in app layer
	"go.trai.ch/monorun/internal/adapters/cloud"     //nolint:depguard // Wired in app layer
	"go.trai.ch/monorun/internal/adapters/ipc"       //nolint:depguard // Wired in app layer
	"go.trai.ch/monorun/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/core/ports"
	"go.trai.ch/monorun/internal/engine/buildcache"
	"go.trai.ch/monorun/internal/engine/cachekey"
	"go.trai.ch/monorun/internal/engine/executor"
	"go.trai.ch/zerr"
)

// TracerName is the instrumentation name of operation spans.
const TracerName = "monorun"

// Dependencies are the adapters the App drives.
type Dependencies struct {
	ConfigLoader ports.ConfigLoader
	Logger       ports.Logger
	State        ports.ProjectStateProvider
	Hasher       ports.OutputHasher
	Store        ports.BuildInfoStore
	Archive      ports.ArchiveCodec
	Shell        ports.OperationRunner
	IPC          *ipc.Runner
	Watcher      ports.Watcher
	Bridge       *telemetry.Bridge
}

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	logger       ports.Logger
	state        ports.ProjectStateProvider
	hasher       ports.OutputHasher
	store        ports.BuildInfoStore
	archive      ports.ArchiveCodec
	shell        ports.OperationRunner
	ipc          *ipc.Runner
	watcher      ports.Watcher
	bridge       *telemetry.Bridge

	workDir string
	output  io.Writer
}

// New creates a new App instance.
func New(deps Dependencies) *App {
	return &App{
		configLoader: deps.ConfigLoader,
		logger:       deps.Logger,
		state:        deps.State,
		hasher:       deps.Hasher,
		store:        deps.Store,
		archive:      deps.Archive,
		shell:        deps.Shell,
		ipc:          deps.IPC,
		watcher:      deps.Watcher,
		bridge:       deps.Bridge,
		output:       os.Stdout,
	}
}

// WithWorkDir sets the directory the workspace file is searched from.
// It defaults to the process working directory.
func (a *App) WithWorkDir(dir string) *App {
	a.workDir = dir
	return a
}

// WithOutput sets where operation output is streamed.
func (a *App) WithOutput(w io.Writer) *App {
	a.output = w
	return a
}

// RunOptions configuration for the Run method.
type RunOptions struct {
	Phase       string
	To          []string
	Parallelism int
	NoCache     bool
	Watch       bool
}

// Run executes phase for the selected projects and their dependencies.
// In watch mode it keeps running until ctx ends, re-running the graph on changes.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	if opts.Phase == "" {
		return domain.ErrNoPhaseSpecified
	}

	ws, err := a.loadWorkspace()
	if err != nil {
		return err
	}

	graph, err := ws.BuildGraph(opts.Phase, opts.To)
	if err != nil {
		return err
	}

	parallelism := ws.Parallelism
	if opts.Parallelism > 0 {
		parallelism = opts.Parallelism
	}
	a.logger.Debug(fmt.Sprintf("workspace %s: %d operation(s), parallelism %d",
		ws.Root, graph.OperationCount(), parallelism))

	var processors []sdktrace.SpanProcessor
	if a.bridge != nil {
		processors = append(processors, a.bridge)
	}
	shutdown := telemetry.Setup(processors...)
	defer func() {
		_ = shutdown(context.WithoutCancel(ctx))
	}()
	tracer := telemetry.NewOTelTracer(TracerName).WithOutput(a.output)

	defer func() {
		_ = a.ipc.Close()
	}()

	exec := a.newExecutor(ctx, ws, graph, tracer, opts.NoCache)
	if !opts.Watch {
		return a.execute(ctx, exec, graph, parallelism)
	}

	// Persistent workers capture the hook when they start, so it goes in before the first run.
	triggers := newTrigger()
	a.ipc.SetPersistence(true)
	a.ipc.SetRequestRunHook(func(operation, requestor string) {
		a.logger.Info(fmt.Sprintf("%s requested a run of %s", requestor, operation))
		triggers.fire()
	})
	defer a.ipc.SetRequestRunHook(nil)

	err = a.execute(ctx, exec, graph, parallelism)
	if err != nil && !errors.Is(err, domain.ErrBuildExecutionFailed) {
		return err
	}
	return a.watch(ctx, ws, graph, exec, parallelism, triggers)
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	Cache bool
	State bool
}

// Clean removes the local build cache and the recorded build info.
func (a *App) Clean(_ context.Context, options CleanOptions) error {
	ws, err := a.loadWorkspace()
	if err != nil {
		return err
	}

	var errs error
	remove := func(path, name string) {
		a.logger.Info(fmt.Sprintf("removing %s...", name))
		if err := os.RemoveAll(path); err != nil {
			errs = errors.Join(errs, zerr.Wrap(err, "failed to remove "+name))
			return
		}
		a.logger.Info(fmt.Sprintf("removed %s", name))
	}

	if options.Cache {
		remove(ws.Cache.LocalPath, "local build cache")
	}
	if options.State {
		remove(filepath.Join(ws.Root, domain.DefaultStorePath()), "build info store")
	}
	return errs
}

func (a *App) loadWorkspace() (*domain.Workspace, error) {
	dir := a.workDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, zerr.Wrap(err, "failed to get working directory")
		}
		dir = wd
	}

	ws, err := a.configLoader.Load(dir)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	return ws, nil
}

func (a *App) newExecutor(
	ctx context.Context,
	ws *domain.Workspace,
	graph *domain.Graph,
	tracer ports.Tracer,
	noCache bool,
) *executor.Executor {
	runners := map[domain.RunnerKind]ports.OperationRunner{
		domain.RunnerShell: a.shell,
		domain.RunnerIPC:   a.ipc,
	}

	if noCache || !ws.Cache.Enabled {
		a.logger.Debug("build cache disabled")
		return executor.New(runners, tracer, a.logger)
	}

	keys := cachekey.NewBuilder(a.state, ws)
	if err := keys.Prepare(ctx, graph); err != nil {
		a.logger.Warn("fingerprinting interrupted: " + err.Error())
	}
	cache := buildcache.New(cas.NewLocalCache(ws.Cache.LocalPath), a.cloudTier(ws), a.logger)

	return executor.New(runners, tracer, a.logger,
		executor.WithCache(keys, cache, a.archive),
		executor.WithBuildInfo(a.store, a.hasher),
	)
}

// cloudTier returns the configured cloud provider, or nil when there is none or it is unusable.
func (a *App) cloudTier(ws *domain.Workspace) ports.CacheProvider {
	if ws.Cache.Cloud == nil {
		return nil
	}
	provider, err := cloud.New(*ws.Cache.Cloud)
	if err != nil {
		a.logger.Error(zerr.Wrap(err, "cloud cache disabled"))
		return nil
	}
	a.logger.Debug(fmt.Sprintf("cloud cache: bucket %s at %s", ws.Cache.Cloud.Bucket, ws.Cache.Cloud.Endpoint))
	return provider
}

func (a *App) execute(ctx context.Context, exec *executor.Executor, graph *domain.Graph, parallelism int) error {
	report, err := exec.Execute(ctx, graph, parallelism)
	if report == nil {
		return err
	}

	a.summarize(report)
	if !report.Succeeded() {
		return errors.Join(domain.ErrBuildExecutionFailed, err)
	}
	return nil
}
