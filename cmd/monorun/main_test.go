package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/monorun/internal/adapters/ipc"
	"go.trai.ch/monorun/internal/adapters/shell"
	"go.trai.ch/monorun/internal/app"
	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func provide(a *app.App, logger *mocks.MockLogger) ComponentProvider {
	return func(_ context.Context) (*app.Components, func(), error) {
		return &app.Components{App: a, Logger: logger}, func() {}, nil
	}
}

// TestRun_Success verifies that the run function returns 0 when the command succeeds.
func TestRun_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	application := app.New(app.Dependencies{
		ConfigLoader: mocks.NewMockConfigLoader(ctrl),
		Logger:       mockLogger,
	})

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stderr, provide(application, mockLogger))
	assert.Equal(t, 0, exitCode)
}

// TestRun_InitializationError verifies that run returns 1 when component initialization fails.
func TestRun_InitializationError(t *testing.T) {
	provider := func(_ context.Context) (*app.Components, func(), error) {
		return nil, nil, errors.New("init failed")
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stderr, provider)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error: init failed")
}

// TestRun_ExecutionError verifies that configuration errors are logged and exit with 1.
func TestRun_ExecutionError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLoader := mocks.NewMockConfigLoader(ctrl)
	mockLogger := mocks.NewMockLogger(ctrl)

	dir := t.TempDir()
	mockLoader.EXPECT().Load(dir).Return(nil, domain.ErrConfigNotFound)
	mockLogger.EXPECT().Error(gomock.Cond(func(err error) bool {
		return errors.Is(err, domain.ErrConfigNotFound)
	}))

	application := app.New(app.Dependencies{ConfigLoader: mockLoader, Logger: mockLogger})

	exitCode := run(context.Background(), []string{"run", "build"}, new(bytes.Buffer),
		provide(application, mockLogger), func(a *app.App) {
			a.WithWorkDir(dir)
		})

	assert.Equal(t, 1, exitCode)
}

// TestRun_BuildExecutionFailed verifies that failed operations exit with 1 without a second report.
func TestRun_BuildExecutionFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLoader := mocks.NewMockConfigLoader(ctrl)
	mockLogger := mocks.NewMockLogger(ctrl)

	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "lib"), 0o750))
	mockLoader.EXPECT().Load(root).Return(&domain.Workspace{
		Root:   root,
		Phases: map[string]domain.Phase{"build": {Name: "build"}},
		Projects: []domain.Project{{
			Name:    "lib",
			Folder:  filepath.Join(root, "lib"),
			Scripts: map[string]string{"build": "exit 2"},
		}},
	}, nil)

	mockLogger.EXPECT().Debug(gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Info(gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Warn(gomock.Any()).AnyTimes()
	// Only the run summary reports the failure.
	mockLogger.EXPECT().Error(gomock.Any()).Times(1)

	application := app.New(app.Dependencies{
		ConfigLoader: mockLoader,
		Logger:       mockLogger,
		Shell:        shell.NewRunner(),
		IPC:          ipc.NewRunner(),
	}).WithWorkDir(root).WithOutput(new(bytes.Buffer))

	exitCode := run(context.Background(), []string{"run", "build"}, new(bytes.Buffer), provide(application, mockLogger))
	assert.Equal(t, 1, exitCode)
}
