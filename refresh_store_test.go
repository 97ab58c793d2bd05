package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-jwtauth"
)

func TestMemoryRefreshStore(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: fixedNow}
	store := auth.NewMemoryRefreshStore().WithClock(clock.Now)

	require.NoError(t, store.Store(ctx, "1", "jti-1", fixedNow.Add(time.Hour)))
	require.NoError(t, store.Store(ctx, "1", "jti-2", fixedNow.Add(time.Minute)))
	assert.Equal(t, 2, store.Len())

	ok, err := store.Exists(ctx, "1", "jti-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, "2", "jti-1")
	require.NoError(t, err)
	assert.False(t, ok, "token is bound to its subject")

	require.NoError(t, store.Revoke(ctx, "2", "jti-1"))
	ok, _ = store.Exists(ctx, "1", "jti-1")
	assert.True(t, ok, "revoke with another subject is ignored")

	clock.Advance(2 * time.Minute)
	ok, err = store.Exists(ctx, "1", "jti-2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Revoke(ctx, "1", "jti-1"))
	ok, _ = store.Exists(ctx, "1", "jti-1")
	assert.False(t, ok)

	assert.NoError(t, store.Revoke(ctx, "1", "unknown"))
	assert.Equal(t, 0, store.Len())
}

func TestMemoryRefreshStoreSweepsExpiredEntriesOnStore(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: fixedNow}
	store := auth.NewMemoryRefreshStore().WithClock(clock.Now)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Store(ctx, "1", id, fixedNow.Add(time.Minute)))
	}
	require.NoError(t, store.Store(ctx, "1", "long", fixedNow.Add(time.Hour)))
	assert.Equal(t, 4, store.Len())

	clock.Advance(2 * time.Minute)
	require.NoError(t, store.Store(ctx, "2", "fresh", fixedNow.Add(time.Hour)))
	assert.Equal(t, 2, store.Len(), "never read tokens are dropped once expired")

	ok, err := store.Exists(ctx, "1", "long")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryRefreshStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryRefreshStore()
	expires := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			_ = store.Store(ctx, "1", id, expires)
			_, _ = store.Exists(ctx, "1", id)
			_ = store.Revoke(ctx, "1", id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, store.Len())
}
