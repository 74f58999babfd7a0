package app_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/monorun/internal/adapters/archive"
	"go.trai.ch/monorun/internal/adapters/cas"
	"go.trai.ch/monorun/internal/adapters/fs"
	"go.trai.ch/monorun/internal/adapters/ipc"
	"go.trai.ch/monorun/internal/adapters/shell"
	"go.trai.ch/monorun/internal/adapters/telemetry"
	"go.trai.ch/monorun/internal/app"
	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/core/ports"
	"go.trai.ch/monorun/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

type recordingLogger struct {
	mu    sync.Mutex
	infos []string
	warns []string
	errs  []error
}

func (l *recordingLogger) Debug(string) {}

func (l *recordingLogger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *recordingLogger) Warn(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func (l *recordingLogger) lastInfo() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.infos) == 0 {
		return ""
	}
	return l.infos[len(l.infos)-1]
}

type fixture struct {
	root    string
	ws      *domain.Workspace
	logger  *recordingLogger
	loader  *mocks.MockConfigLoader
	watcher *mocks.MockWatcher
	app     *app.App
}

func newFixture(t *testing.T, projects ...domain.Project) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	root := t.TempDir()
	for i := range projects {
		projects[i].Folder = filepath.Join(root, projects[i].Name)
		require.NoError(t, os.MkdirAll(projects[i].Folder, 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(projects[i].Folder, "src.txt"), []byte(projects[i].Name), 0o600))
	}

	ws := &domain.Workspace{
		Root:        root,
		Parallelism: 2,
		Cache: domain.CacheSettings{
			Enabled:   true,
			LocalPath: filepath.Join(root, ".monorun", "cache"),
		},
		Phases: map[string]domain.Phase{
			"build": {Name: "build", Upstream: []string{"build"}},
		},
		Projects: projects,
	}

	f := &fixture{
		root:    root,
		ws:      ws,
		logger:  &recordingLogger{},
		loader:  mocks.NewMockConfigLoader(ctrl),
		watcher: mocks.NewMockWatcher(ctrl),
	}
	f.loader.EXPECT().Load(root).Return(ws, nil).AnyTimes()

	walker := fs.NewWalker()
	state, err := fs.NewStateProvider(fs.NewHasher(walker), 0)
	require.NoError(t, err)
	store, err := cas.NewStore()
	require.NoError(t, err)

	f.app = app.New(app.Dependencies{
		ConfigLoader: f.loader,
		Logger:       f.logger,
		State:        state,
		Hasher:       fs.NewHasher(walker),
		Store:        store,
		Archive:      archive.New(),
		Shell:        shell.NewRunner(),
		IPC:          ipc.NewRunner(),
		Watcher:      f.watcher,
		Bridge:       telemetry.NewBridge(f.logger),
	}).WithWorkDir(root).WithOutput(io.Discard)
	return f
}

func (f *fixture) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.root, rel))
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) runCount(t *testing.T) int {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.root, "runs.log"))
	if errors.Is(err, os.ErrNotExist) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(data), "\n")
}

func TestApp_Run_NoPhase(t *testing.T) {
	f := newFixture(t)

	err := f.app.Run(context.Background(), app.RunOptions{})
	require.ErrorIs(t, err, domain.ErrNoPhaseSpecified)
}

func TestApp_Run_ConfigLoaderError(t *testing.T) {
	ctrl := gomock.NewController(t)
	loader := mocks.NewMockConfigLoader(ctrl)
	loader.EXPECT().Load("/nowhere").Return(nil, domain.ErrConfigNotFound)

	a := app.New(app.Dependencies{ConfigLoader: loader, Logger: &recordingLogger{}}).WithWorkDir("/nowhere")

	err := a.Run(context.Background(), app.RunOptions{Phase: "build"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to load configuration")
	assert.ErrorIs(t, err, domain.ErrConfigNotFound)
}

func TestApp_Run_UnknownPhase(t *testing.T) {
	f := newFixture(t, domain.Project{Name: "lib"})

	err := f.app.Run(context.Background(), app.RunOptions{Phase: "deploy"})
	assert.ErrorContains(t, err, domain.ErrPhaseNotFound.Error())
}

func TestApp_Run_CachesOutputs(t *testing.T) {
	f := newFixture(t, domain.Project{
		Name:          "lib",
		OutputFolders: []string{"dist"},
		Scripts:       map[string]string{"build": "mkdir -p dist && echo built > dist/out.txt && echo run >> ../runs.log"},
	})
	ctx := context.Background()
	opts := app.RunOptions{Phase: "build"}

	require.NoError(t, f.app.Run(ctx, opts))
	assert.Equal(t, 1, f.runCount(t))
	assert.Equal(t, "1 operation: 1 Success", f.logger.lastInfo())

	require.NoError(t, f.app.Run(ctx, opts))
	assert.Equal(t, 1, f.runCount(t), "unchanged outputs are not rebuilt")
	assert.Equal(t, "1 operation: 1 Skipped", f.logger.lastInfo())

	require.NoError(t, os.RemoveAll(filepath.Join(f.root, "lib", "dist")))
	require.NoError(t, f.app.Run(ctx, opts))
	assert.Equal(t, 1, f.runCount(t), "deleted outputs come back from the cache")
	assert.Equal(t, "built\n", f.read(t, "lib/dist/out.txt"))
	assert.Equal(t, "1 operation: 1 Skipped (1 restored)", f.logger.lastInfo())
}

func TestApp_Run_NoCache(t *testing.T) {
	f := newFixture(t, domain.Project{
		Name:    "lib",
		Scripts: map[string]string{"build": "echo run >> ../runs.log"},
	})
	ctx := context.Background()
	opts := app.RunOptions{Phase: "build", NoCache: true}

	require.NoError(t, f.app.Run(ctx, opts))
	require.NoError(t, f.app.Run(ctx, opts))

	assert.Equal(t, 2, f.runCount(t))
	assert.NoDirExists(t, f.ws.Cache.LocalPath)
}

func TestApp_Run_CacheDisabled(t *testing.T) {
	f := newFixture(t, domain.Project{
		Name:    "lib",
		Scripts: map[string]string{"build": "echo run >> ../runs.log"},
	})
	f.ws.Cache.Enabled = false
	ctx := context.Background()

	require.NoError(t, f.app.Run(ctx, app.RunOptions{Phase: "build"}))
	require.NoError(t, f.app.Run(ctx, app.RunOptions{Phase: "build"}))

	assert.Equal(t, 2, f.runCount(t))
}

func TestApp_Run_BuildExecutionFailed(t *testing.T) {
	f := newFixture(t,
		domain.Project{
			Name:    "lib",
			Scripts: map[string]string{"build": "exit 3"},
		},
		domain.Project{
			Name:      "app",
			DependsOn: []string{"lib"},
			Scripts:   map[string]string{"build": "echo run >> ../runs.log"},
		},
	)

	err := f.app.Run(context.Background(), app.RunOptions{Phase: "build"})
	require.ErrorIs(t, err, domain.ErrBuildExecutionFailed)
	assert.Equal(t, 0, f.runCount(t))

	assert.Equal(t, "2 operations: 1 Failure, 1 Blocked", f.logger.lastInfo())
	require.NotEmpty(t, f.logger.errs)
	assert.ErrorContains(t, f.logger.errs[0], domain.ErrCommandFailed.Error())

	var blocked bool
	for _, w := range f.logger.warns {
		if strings.HasPrefix(w, "app (build) did not run") {
			blocked = true
		}
	}
	assert.True(t, blocked, "blocked dependent is reported: %v", f.logger.warns)
}

func TestApp_Run_SelectsProjects(t *testing.T) {
	f := newFixture(t,
		domain.Project{Name: "lib", Scripts: map[string]string{"build": "echo lib >> ../runs.log"}},
		domain.Project{Name: "docs", Scripts: map[string]string{"build": "echo docs >> ../runs.log"}},
	)

	require.NoError(t, f.app.Run(context.Background(), app.RunOptions{Phase: "build", To: []string{"lib"}}))
	assert.Equal(t, "lib\n", f.read(t, "runs.log"))
}

func TestApp_Run_Watch(t *testing.T) {
	f := newFixture(t, domain.Project{
		Name:    "lib",
		Scripts: map[string]string{"build": "echo run >> ../runs.log"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{})
	src := filepath.Join(f.root, "lib", "src.txt")

	f.watcher.EXPECT().Start(gomock.Any(), f.root, []string{f.ws.Cache.LocalPath}).Return(nil)
	f.watcher.EXPECT().Stop().Return(nil)
	f.watcher.EXPECT().Events().Return(iter.Seq[ports.WatchEvent](func(yield func(ports.WatchEvent) bool) {
		select {
		case <-changed:
		case <-ctx.Done():
			return
		}
		if !yield(ports.WatchEvent{Path: src, Operation: ports.OpWrite}) {
			return
		}
		<-ctx.Done()
	}))

	done := make(chan error, 1)
	go func() {
		done <- f.app.Run(ctx, app.RunOptions{Phase: "build", Watch: true})
	}()

	require.Eventually(t, func() bool { return f.runCount(t) == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(src, []byte("edited"), 0o600))
	close(changed)
	require.Eventually(t, func() bool { return f.runCount(t) == 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch mode did not stop after cancellation")
	}
}

func TestApp_Clean(t *testing.T) {
	f := newFixture(t, domain.Project{Name: "lib"})

	cacheDir := f.ws.Cache.LocalPath
	stateDir := filepath.Join(f.root, domain.DefaultStorePath())
	require.NoError(t, os.MkdirAll(cacheDir, 0o750))
	require.NoError(t, os.MkdirAll(stateDir, 0o750))

	require.NoError(t, f.app.Clean(context.Background(), app.CleanOptions{Cache: true}))
	assert.NoDirExists(t, cacheDir)
	assert.DirExists(t, stateDir)

	require.NoError(t, f.app.Clean(context.Background(), app.CleanOptions{Cache: true, State: true}))
	assert.NoDirExists(t, stateDir)
	assert.Contains(t, f.logger.infos, "removing build info store...")
}
