package warehouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheVersionInitialises(t *testing.T) {
	cache, _ := newTestCache(t)
	ver, err := cache.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), ver)
}

func TestCacheSnapshotLoadsOnceUntilBump(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	loads := 0
	loader := func(context.Context) ([]Item, error) {
		loads++
		return []Item{{ProductName: "Abacus", CurrentStock: int64(10 * loads)}}, nil
	}

	first, err := cache.FetchSnapshot(ctx, loader)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, int64(10), first[0].CurrentStock)

	// Second fetch hits the cached payload, not the loader.
	second, err := cache.FetchSnapshot(ctx, loader)
	require.NoError(t, err)
	assert.Equal(t, int64(10), second[0].CurrentStock)
	assert.Equal(t, 1, loads)

	// A stock write bumps the version and orphans the old key.
	require.NoError(t, cache.Bump(ctx))
	third, err := cache.FetchSnapshot(ctx, loader)
	require.NoError(t, err)
	assert.Equal(t, int64(20), third[0].CurrentStock)
	assert.Equal(t, 2, loads)
}

func TestCacheLoaderErrorPropagates(t *testing.T) {
	cache, _ := newTestCache(t)
	boom := errors.New("db down")
	_, err := cache.FetchSnapshot(context.Background(), func(context.Context) ([]Item, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
}

func TestNilCacheFallsThrough(t *testing.T) {
	var cache *Cache
	items, err := cache.FetchSnapshot(context.Background(), func(context.Context) ([]Item, error) {
		return []Item{{ProductName: "Abacus", CurrentStock: 3}}, nil
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NoError(t, cache.Bump(context.Background()))
}
