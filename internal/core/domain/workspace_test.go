package domain_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/monorun/internal/core/domain"
)

func sampleWorkspace() *domain.Workspace {
	return &domain.Workspace{
		Root: "/repo",
		Phases: map[string]domain.Phase{
			"build": {Name: "build", Upstream: []string{"build"}},
			"test":  {Name: "test", Self: []string{"build"}, AllowWarnings: true},
			"lint":  {Name: "lint"},
		},
		Projects: []domain.Project{
			{
				Name:          "lib",
				Folder:        "packages/lib",
				OutputFolders: []string{"dist"},
				Scripts:       map[string]string{"build": "tsc", "test": "jest"},
				DisableCache:  []string{"test"},
			},
			{
				Name:       "app",
				Folder:     "packages/app",
				DependsOn:  []string{"lib"},
				Scripts:    map[string]string{"build": "vite build"},
				Persistent: []string{"build"},
			},
			{
				Name:   "docs",
				Folder: "/abs/docs",
			},
		},
	}
}

func opNames(g *domain.Graph) []string {
	var names []string
	for op := range g.Operations() {
		names = append(names, op.Name.String())
	}
	return names
}

func TestWorkspace_BuildGraph_Upstream(t *testing.T) {
	ws := sampleWorkspace()

	g, err := ws.BuildGraph("build", []string{"app"})
	require.NoError(t, err)

	assert.Equal(t, []string{"lib (build)", "app (build)"}, opNames(g))

	app, ok := g.GetOperation(domain.NewInternedString("app (build)"))
	require.True(t, ok)
	assert.Equal(t, domain.NewInternedStrings([]string{"lib (build)"}), app.Dependencies)
	assert.Equal(t, domain.RunnerIPC, app.Runner)
	assert.Equal(t, filepath.Join("/repo", "packages/app"), app.Folder)
	assert.True(t, app.Cacheable)

	lib, _ := g.GetOperation(domain.NewInternedString("lib (build)"))
	assert.Equal(t, domain.RunnerShell, lib.Runner)
	assert.Equal(t, []string{"dist"}, lib.OutputFolders)
}

func TestWorkspace_BuildGraph_Self(t *testing.T) {
	ws := sampleWorkspace()

	g, err := ws.BuildGraph("test", []string{"lib"})
	require.NoError(t, err)
	assert.Equal(t, []string{"lib (test)", "lib (build)"}, opNames(g))

	test, _ := g.GetOperation(domain.NewInternedString("lib (test)"))
	assert.True(t, test.AllowWarnings)
	assert.False(t, test.Cacheable)
	assert.Equal(t, domain.NewInternedStrings([]string{"lib (build)"}), test.Dependencies)
}

func TestWorkspace_BuildGraph_AllProjects(t *testing.T) {
	ws := sampleWorkspace()

	g, err := ws.BuildGraph("lint", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"lib (lint)", "app (lint)", "docs (lint)"}, opNames(g))

	docs, _ := g.GetOperation(domain.NewInternedString("docs (lint)"))
	assert.Empty(t, docs.Command, "missing script yields an empty command")
	assert.Equal(t, "/abs/docs", docs.Folder)
}

func TestWorkspace_BuildGraph_Errors(t *testing.T) {
	t.Run("unknown phase", func(t *testing.T) {
		_, err := sampleWorkspace().BuildGraph("deploy", nil)
		assert.ErrorContains(t, err, domain.ErrPhaseNotFound.Error())
	})

	t.Run("unknown project", func(t *testing.T) {
		_, err := sampleWorkspace().BuildGraph("build", []string{"ghost"})
		assert.ErrorContains(t, err, domain.ErrProjectNotFound.Error())
	})

	t.Run("unknown dependency", func(t *testing.T) {
		ws := sampleWorkspace()
		ws.Projects[0].DependsOn = []string{"ghost"}
		_, err := ws.BuildGraph("build", nil)
		assert.ErrorContains(t, err, domain.ErrMissingDependency.Error())
	})

	t.Run("project cycle", func(t *testing.T) {
		ws := sampleWorkspace()
		ws.Projects[0].DependsOn = []string{"app"}
		_, err := ws.BuildGraph("build", nil)
		assert.ErrorContains(t, err, domain.ErrCycleDetected.Error())
	})
}
