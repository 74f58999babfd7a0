package buildcache_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/monorun/internal/adapters/cas"
	"go.trai.ch/monorun/internal/core/domain"
	"go.trai.ch/monorun/internal/core/ports/mocks"
	"go.trai.ch/monorun/internal/engine/buildcache"
	"go.uber.org/mock/gomock"
)

func cloudTier(ctrl *gomock.Controller, writable bool) *mocks.MockCacheProvider {
	cloud := mocks.NewMockCacheProvider(ctrl)
	cloud.EXPECT().Source().Return(domain.CacheSourceCloud).AnyTimes()
	cloud.EXPECT().Writable().Return(writable).AnyTimes()
	return cloud
}

func TestStore_TryRestore_LocalHit(t *testing.T) {
	ctrl := gomock.NewController(t)
	local := cas.NewLocalCache(t.TempDir())
	require.NoError(t, local.Put(t.Context(), "k1", []byte("blob")))

	cloud := cloudTier(ctrl, true)
	// Cloud is not consulted on a local hit.
	store := buildcache.New(local, cloud, nil)

	entry, ok := store.TryRestore(t.Context(), "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("blob"), entry.Blob)
	assert.Equal(t, domain.CacheSourceLocal, entry.Source)
	assert.False(t, entry.Promoted)
}

func TestStore_TryRestore_CloudHitBackfillsLocal(t *testing.T) {
	ctrl := gomock.NewController(t)
	local := cas.NewLocalCache(t.TempDir())
	cloud := cloudTier(ctrl, false)
	cloud.EXPECT().Get(gomock.Any(), "k1").Return([]byte("remote"), true, nil)

	store := buildcache.New(local, cloud, nil)

	entry, ok := store.TryRestore(t.Context(), "k1")
	require.True(t, ok)
	assert.Equal(t, domain.CacheSourceCloud, entry.Source)
	assert.True(t, entry.Promoted)

	localOnly := buildcache.New(local, nil, nil)
	again, ok := localOnly.TryRestore(t.Context(), "k1")
	require.True(t, ok, "backfilled entry is served by the local tier")
	assert.Equal(t, []byte("remote"), again.Blob)
	assert.Equal(t, domain.CacheSourceLocal, again.Source)
}

func TestStore_TryRestore_Miss(t *testing.T) {
	ctrl := gomock.NewController(t)
	cloud := cloudTier(ctrl, true)
	cloud.EXPECT().Get(gomock.Any(), "k1").Return(nil, false, nil)

	store := buildcache.New(cas.NewLocalCache(t.TempDir()), cloud, nil)
	_, ok := store.TryRestore(t.Context(), "k1")
	assert.False(t, ok)

	_, ok = buildcache.New(cas.NewLocalCache(t.TempDir()), nil, nil).TryRestore(t.Context(), "k1")
	assert.False(t, ok)
}

func TestStore_TryRestore_TierErrorsAreMisses(t *testing.T) {
	ctrl := gomock.NewController(t)
	local := mocks.NewMockCacheProvider(ctrl)
	local.EXPECT().Source().Return(domain.CacheSourceLocal).AnyTimes()
	local.EXPECT().Get(gomock.Any(), "k1").Return(nil, false, errors.New("disk gone"))

	cloud := cloudTier(ctrl, false)
	cloud.EXPECT().Get(gomock.Any(), "k1").Return(nil, false, errors.New("timeout"))

	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Error(gomock.Any()).Times(2)

	_, ok := buildcache.New(local, cloud, logger).TryRestore(t.Context(), "k1")
	assert.False(t, ok)
}

func TestStore_TryRestore_BackfillFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	local := mocks.NewMockCacheProvider(ctrl)
	local.EXPECT().Source().Return(domain.CacheSourceLocal).AnyTimes()
	local.EXPECT().Writable().Return(true).AnyTimes()
	local.EXPECT().Get(gomock.Any(), "k1").Return(nil, false, nil)
	local.EXPECT().Put(gomock.Any(), "k1", []byte("remote")).Return(errors.New("read-only fs"))

	cloud := cloudTier(ctrl, false)
	cloud.EXPECT().Get(gomock.Any(), "k1").Return([]byte("remote"), true, nil)

	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Error(gomock.Any())

	entry, ok := buildcache.New(local, cloud, logger).TryRestore(t.Context(), "k1")
	require.True(t, ok, "a failed backfill does not turn a hit into a miss")
	assert.False(t, entry.Promoted)
}

func TestStore_TrySave(t *testing.T) {
	t.Run("read-only cloud is not written", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		local := cas.NewLocalCache(t.TempDir())
		cloud := cloudTier(ctrl, false)

		assert.True(t, buildcache.New(local, cloud, nil).TrySave(t.Context(), "k1", []byte("blob")))

		blob, found, err := local.Get(t.Context(), "k1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("blob"), blob)
	})

	t.Run("writable cloud is written", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		cloud := cloudTier(ctrl, true)
		cloud.EXPECT().Put(gomock.Any(), "k1", []byte("blob")).Return(nil)

		assert.True(t, buildcache.New(cas.NewLocalCache(t.TempDir()), cloud, nil).TrySave(t.Context(), "k1", []byte("blob")))
	})

	t.Run("every tier failing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		local := mocks.NewMockCacheProvider(ctrl)
		local.EXPECT().Source().Return(domain.CacheSourceLocal).AnyTimes()
		local.EXPECT().Writable().Return(true)
		local.EXPECT().Put(gomock.Any(), "k1", gomock.Any()).Return(errors.New("no space"))

		cloud := cloudTier(ctrl, true)
		cloud.EXPECT().Put(gomock.Any(), "k1", gomock.Any()).Return(errors.New("forbidden"))

		logger := mocks.NewMockLogger(ctrl)
		logger.EXPECT().Error(gomock.Any()).Times(2)

		assert.False(t, buildcache.New(local, cloud, logger).TrySave(t.Context(), "k1", []byte("blob")))
	})
}
