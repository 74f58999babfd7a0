package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/monorun/internal/adapters/fs"
	"go.trai.ch/monorun/internal/core/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestWalker_WalkFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, ".git", "config"), "git config")
	writeFile(t, filepath.Join(tmpDir, "node_modules", "pkg", "index.js"), "module")
	writeFile(t, filepath.Join(tmpDir, ".monorun", "state", "x.json"), "{}")
	writeFile(t, filepath.Join(tmpDir, "dist", "out.js"), "out")
	writeFile(t, filepath.Join(tmpDir, "src", "main.ts"), "main")
	writeFile(t, filepath.Join(tmpDir, "README.md"), "# Readme")

	walker := fs.NewWalker()

	var files []string
	for rel, err := range walker.WalkFiles(tmpDir, []string{"dist"}) {
		require.NoError(t, err)
		files = append(files, filepath.ToSlash(rel))
	}

	assert.Equal(t, []string{"README.md", "src/main.ts"}, files)
}

func TestWalker_WalkFiles_MissingRoot(t *testing.T) {
	walker := fs.NewWalker()

	var gotErr error
	for _, err := range walker.WalkFiles(filepath.Join(t.TempDir(), "missing"), nil) {
		gotErr = err
	}
	assert.Error(t, gotErr)
}

func TestHasher_ComputeOutputHash(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dist", "a.js"), "a")
	writeFile(t, filepath.Join(root, "dist", "nested", "b.js"), "b")

	hasher := fs.NewHasher(fs.NewWalker())

	first, err := hasher.ComputeOutputHash(root, []string{"dist"})
	require.NoError(t, err)
	again, err := hasher.ComputeOutputHash(root, []string{"dist"})
	require.NoError(t, err)
	assert.Equal(t, first, again)

	writeFile(t, filepath.Join(root, "dist", "nested", "b.js"), "changed")
	changed, err := hasher.ComputeOutputHash(root, []string{"dist"})
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)

	t.Run("missing output folder is stable", func(t *testing.T) {
		h1, err := hasher.ComputeOutputHash(root, []string{"lib"})
		require.NoError(t, err)
		h2, err := hasher.ComputeOutputHash(root, []string{"lib"})
		require.NoError(t, err)
		assert.Equal(t, h1, h2)
	})

	t.Run("output order does not matter", func(t *testing.T) {
		writeFile(t, filepath.Join(root, "lib", "c.js"), "c")
		h1, err := hasher.ComputeOutputHash(root, []string{"dist", "lib"})
		require.NoError(t, err)
		h2, err := hasher.ComputeOutputHash(root, []string{"lib", "dist"})
		require.NoError(t, err)
		assert.Equal(t, h1, h2)
	})
}

func TestStateProvider_Fingerprint(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "packages", "lib")
	writeFile(t, filepath.Join(project, "src", "index.ts"), "export {}")
	writeFile(t, filepath.Join(project, "dist", "index.js"), "built")

	provider, err := fs.NewStateProvider(fs.NewHasher(fs.NewWalker()), 8)
	require.NoError(t, err)

	ref := domain.ProjectRef{Name: "lib", Folder: project, Excludes: []string{"dist"}}
	ctx := context.Background()

	first, ok := provider.Fingerprint(ctx, ref)
	require.True(t, ok)
	assert.NotEmpty(t, first)

	// Output changes never affect the fingerprint.
	writeFile(t, filepath.Join(project, "dist", "index.js"), "rebuilt")
	provider.Invalidate(filepath.Join(project, "dist", "index.js"))
	afterOutput, ok := provider.Fingerprint(ctx, ref)
	require.True(t, ok)
	assert.Equal(t, first, afterOutput)

	// Source changes are memoized until invalidated.
	writeFile(t, filepath.Join(project, "src", "index.ts"), "export const x = 1")
	memoized, ok := provider.Fingerprint(ctx, ref)
	require.True(t, ok)
	assert.Equal(t, first, memoized)

	provider.Invalidate(filepath.Join(project, "src", "index.ts"))
	fresh, ok := provider.Fingerprint(ctx, ref)
	require.True(t, ok)
	assert.NotEqual(t, first, fresh)
}

func TestStateProvider_InvalidateOtherProject(t *testing.T) {
	root := t.TempDir()
	lib := filepath.Join(root, "lib")
	libExtra := filepath.Join(root, "lib-extra")
	writeFile(t, filepath.Join(lib, "a.ts"), "a")
	writeFile(t, filepath.Join(libExtra, "b.ts"), "b")

	provider, err := fs.NewStateProvider(fs.NewHasher(fs.NewWalker()), 8)
	require.NoError(t, err)
	ctx := context.Background()
	ref := domain.ProjectRef{Name: "lib", Folder: lib}

	first, ok := provider.Fingerprint(ctx, ref)
	require.True(t, ok)

	writeFile(t, filepath.Join(lib, "a.ts"), "changed")
	provider.Invalidate(filepath.Join(libExtra, "b.ts"))

	got, ok := provider.Fingerprint(ctx, ref)
	require.True(t, ok)
	assert.Equal(t, first, got, "a sibling folder sharing a prefix must not invalidate")
}

func TestStateProvider_MissingFolder(t *testing.T) {
	provider, err := fs.NewStateProvider(fs.NewHasher(fs.NewWalker()), 0)
	require.NoError(t, err)

	_, ok := provider.Fingerprint(context.Background(), domain.ProjectRef{
		Name:   "ghost",
		Folder: filepath.Join(t.TempDir(), "ghost"),
	})
	assert.False(t, ok)
}
