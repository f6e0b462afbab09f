package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/cache"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLocalStore_SetGet(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := cache.NewLocalStore(0, cache.WithClock(clock.Now))

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), value)

	for range 3 {
		again, ok, _ := store.Get(ctx, "k")
		require.True(t, ok)
		require.Equal(t, value, again)
	}

	clock.Advance(time.Minute + time.Millisecond)

	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, store.Len(), "expired entry is purged on read")
}

func TestLocalStore_NoExpiration(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := cache.NewLocalStore(0, cache.WithClock(clock.Now))

	require.NoError(t, store.Set(ctx, "forever", []byte("1"), cache.NoExpiration))
	clock.Advance(100 * 365 * 24 * time.Hour)

	ok, err := store.Has(ctx, "forever")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLocalStore_OverwriteDeleteClear(t *testing.T) {
	ctx := context.Background()
	store := cache.NewLocalStore(0)

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "a", []byte("2"), 0))
	require.NoError(t, store.Set(ctx, "b", []byte("3"), 0))

	value, _, _ := store.Get(ctx, "a")
	require.Equal(t, []byte("2"), value)

	require.NoError(t, store.Delete(ctx, "a"))
	ok, _ := store.Has(ctx, "a")
	require.False(t, ok)

	require.NoError(t, store.Clear(ctx))
	require.Zero(t, store.Len())
}

func TestLocalStore_GetAllSkipsExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := cache.NewLocalStore(0, cache.WithClock(clock.Now))

	require.NoError(t, store.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, store.Set(ctx, "long", []byte("2"), time.Hour))

	clock.Advance(2 * time.Second)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{"long": []byte("2")}, all)
	require.Equal(t, 1, store.Len())
}

func TestLocalStore_SweeperPurgesUnreadEntries(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := cache.NewLocalStore(5*time.Millisecond, cache.WithClock(clock.Now))
	t.Cleanup(store.Close)

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, store.Set(ctx, key, []byte(key), time.Second))
	}

	require.NoError(t, store.Set(ctx, "kept", []byte("x"), cache.NoExpiration))

	clock.Advance(time.Minute)

	require.Eventually(t, func() bool {
		return store.Len() == 1
	}, time.Second, 5*time.Millisecond)
}
