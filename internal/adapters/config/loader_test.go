package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/monorun/internal/adapters/config"
	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/core/ports/mocks"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

const fullWorkspace = `
version: "1"
parallelism: 3
cache:
  prefix: ci-
  cloud:
    endpoint: s3.example.com
    bucket: build-cache
    region: eu-west-1
    writeAllowed: false
phases:
  build: { upstream: [build] }
  test:  { self: [build], allowWarnings: true }
projects:
  - name: "@scope/lib"
    folder: packages/lib
    outputFolders: [lib, dist, dist/]
    scripts: { build: "tsc -p .", test: "jest" }
    persistent: [build]
    disableCache: [test]
    environment: { NODE_ENV: production }
  - name: app
    folder: packages/app
    dependsOn: ["@scope/lib"]
    scripts: { build: "vite build" }
`

func writeWorkspace(t *testing.T, content string, dirs ...string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, domain.WorkspaceFileName), []byte(content), 0o600))
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o750))
	}
	return root
}

func quietLoader(t *testing.T) *config.Loader {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Warn(gomock.Any()).AnyTimes()
	return config.NewLoader(log)
}

func TestLoader_Load_FullWorkspace(t *testing.T) {
	root := writeWorkspace(t, fullWorkspace, "packages/lib", "packages/app")

	ws, err := quietLoader(t).Load(root)
	require.NoError(t, err)

	assert.Equal(t, root, ws.Root)
	assert.Equal(t, 3, ws.Parallelism)

	assert.True(t, ws.Cache.Enabled)
	assert.Equal(t, filepath.Join(root, ".monorun", "cache"), ws.Cache.LocalPath)
	assert.Equal(t, "ci-", ws.Cache.Prefix)
	require.NotNil(t, ws.Cache.Cloud)
	assert.Equal(t, domain.CloudSettings{
		Endpoint: "s3.example.com",
		Bucket:   "build-cache",
		Region:   "eu-west-1",
		UseSSL:   true,
	}, *ws.Cache.Cloud)

	assert.Equal(t, domain.Phase{Name: "build", Upstream: []string{"build"}}, ws.Phases["build"])
	assert.Equal(t, domain.Phase{Name: "test", Self: []string{"build"}, AllowWarnings: true}, ws.Phases["test"])

	require.Len(t, ws.Projects, 2)
	lib := ws.Projects[0]
	assert.Equal(t, "@scope/lib", lib.Name)
	assert.Equal(t, filepath.Join(root, "packages", "lib"), lib.Folder)
	assert.Equal(t, []string{"dist", "lib"}, lib.OutputFolders)
	assert.Equal(t, []string{"build"}, lib.Persistent)
	assert.Equal(t, []string{"test"}, lib.DisableCache)
	assert.Equal(t, map[string]string{"NODE_ENV": "production"}, lib.Environment)

	app := ws.Projects[1]
	assert.Equal(t, []string{"@scope/lib"}, app.DependsOn)
}

func TestLoader_Load_Defaults(t *testing.T) {
	root := writeWorkspace(t, `
phases:
  build: {}
projects:
  - name: lib
`, "lib")

	ws, err := quietLoader(t).Load(root)
	require.NoError(t, err)

	assert.Equal(t, runtime.NumCPU(), ws.Parallelism)
	assert.True(t, ws.Cache.Enabled)
	assert.Nil(t, ws.Cache.Cloud)
	assert.Equal(t, filepath.Join(root, "lib"), ws.Projects[0].Folder, "folder defaults to the project name")
}

func TestLoader_Load_WalksUp(t *testing.T) {
	root := writeWorkspace(t, fullWorkspace, "packages/lib/src", "packages/app")

	ws, err := quietLoader(t).Load(filepath.Join(root, "packages", "lib", "src"))
	require.NoError(t, err)
	assert.Equal(t, root, ws.Root)
}

func TestLoader_Load_NotFound(t *testing.T) {
	_, err := quietLoader(t).Load(t.TempDir())
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrConfigNotFound.Error())
}

func TestLoader_Load_WarnsAboutMissingFolder(t *testing.T) {
	root := writeWorkspace(t, `
phases:
  build: {}
projects:
  - name: ghost
    scripts: { deploy: "ship it" }
`)

	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Warn(gomock.Cond(func(msg string) bool {
		return msg == "folder of project ghost does not exist: "+filepath.Join(root, "ghost")
	}))
	log.EXPECT().Warn("project ghost has a script for undeclared phase deploy")

	_, err := config.NewLoader(log).Load(root)
	require.NoError(t, err)
}

func TestLoader_Load_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected error
		meta     map[string]any
	}{
		{
			name:     "invalid yaml",
			content:  "projects: [",
			expected: domain.ErrConfigParseFailed,
		},
		{
			name:     "missing name",
			content:  "projects:\n  - folder: lib\n",
			expected: domain.ErrMissingProjectName,
			meta:     map[string]any{"index": 0},
		},
		{
			name:     "invalid name",
			content:  "projects:\n  - name: \"bad name\"\n",
			expected: domain.ErrInvalidProjectName,
			meta:     map[string]any{"project_name": "bad name"},
		},
		{
			name:     "duplicate name",
			content:  "projects:\n  - name: lib\n  - name: app\n  - name: lib\n",
			expected: domain.ErrDuplicateProjectName,
			meta:     map[string]any{"project_name": "lib", "first_occurrence": 0, "duplicate_at": 2},
		},
		{
			name:     "unknown dependency",
			content:  "projects:\n  - name: app\n    dependsOn: [lib]\n",
			expected: domain.ErrMissingDependency,
			meta:     map[string]any{"missing_dependency": "lib", "project": "app"},
		},
		{
			name:     "unknown phase reference",
			content:  "phases:\n  test: { self: [build] }\n",
			expected: domain.ErrPhaseNotFound,
			meta:     map[string]any{"phase": "build", "referenced_by": "test"},
		},
		{
			name:     "negative parallelism",
			content:  "parallelism: -2\n",
			expected: domain.ErrInvalidParallelism,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeWorkspace(t, tt.content)

			_, err := quietLoader(t).Load(root)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.expected.Error())

			if tt.meta != nil {
				var zErr *zerr.Error
				require.ErrorAs(t, err, &zErr)
				for k, v := range tt.meta {
					assert.Equal(t, v, zErr.Metadata()[k], "metadata %s", k)
				}
			}
		})
	}
}
