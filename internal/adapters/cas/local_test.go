package cas_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/monorun/internal/adapters/cas"
	"go.trai.ch/monorun/internal/core/domain"
)

func TestLocalCache_PutGet(t *testing.T) {
	dir := t.TempDir()
	c := cas.NewLocalCache(dir)
	ctx := context.Background()

	assert.Equal(t, domain.CacheSourceLocal, c.Source())
	assert.True(t, c.Writable())

	_, found, err := c.Get(ctx, "deadbeef")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Put(ctx, "deadbeef", []byte("blob")))

	data, found, err := c.Get(ctx, "deadbeef")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("blob"), data)

	_, err = os.Stat(filepath.Join(dir, "de", "deadbeef.tar.gz"))
	assert.NoError(t, err)
}

func TestLocalCache_PrefixWithSeparator(t *testing.T) {
	dir := t.TempDir()
	c := cas.NewLocalCache(dir)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "team/a:1234", []byte("x")))
	data, found, err := c.Get(ctx, "team/a:1234")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("x"), data)
}

func TestLocalCache_ConcurrentWritersSameKey(t *testing.T) {
	dir := t.TempDir()
	c := cas.NewLocalCache(dir)
	ctx := context.Background()

	blobs := [][]byte{[]byte("aaaaaaaa"), []byte("bbbbbbbb"), []byte("cccccccc")}
	var wg sync.WaitGroup
	for _, b := range blobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Put(ctx, "samekey", b))
		}()
	}
	wg.Wait()

	data, found, err := c.Get(ctx, "samekey")
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, blobs, data, "stored blob must be one complete version")

	entries, err := os.ReadDir(filepath.Join(dir, "sa"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
