package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpiresOnRead(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour)

	base := time.Unix(1_800_000_000, 0)
	c.now = func() time.Time { return base }

	require.NoError(t, c.MarkSynced(ctx, "EV-1"))

	st, err := c.Get(ctx, "EV-1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.Synced)
	assert.Equal(t, base, st.CheckedAt)

	// One second past the TTL the entry is gone.
	c.now = func() time.Time { return base.Add(time.Hour + time.Second) }
	st, err = c.Get(ctx, "EV-1")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestMemoryCacheMissAndClear(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)

	st, err := c.Get(ctx, "absent")
	require.NoError(t, err)
	assert.Nil(t, st)

	require.NoError(t, c.MarkSynced(ctx, "EV-1"))
	require.NoError(t, c.Clear(ctx))

	st, err = c.Get(ctx, "EV-1")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func newRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCache(rdb, ttl), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t, time.Hour)

	st, err := c.Get(ctx, "EV-1")
	require.NoError(t, err)
	assert.Nil(t, st, "miss before write")

	require.NoError(t, c.MarkSynced(ctx, "EV-1"))
	st, err = c.Get(ctx, "EV-1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.Synced)

	// Server-side TTL expiry
	mr.FastForward(time.Hour + time.Second)
	st, err = c.Get(ctx, "EV-1")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestRedisCacheCorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t, time.Hour)

	require.NoError(t, mr.Set("custodix:sync:EV-1", "not json"))

	st, err := c.Get(ctx, "EV-1")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestRedisCacheClearOnlyTouchesOwnKeys(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t, time.Hour)

	require.NoError(t, c.MarkSynced(ctx, "EV-1"))
	require.NoError(t, c.MarkSynced(ctx, "EV-2"))
	require.NoError(t, mr.Set("unrelated", "keep"))

	require.NoError(t, c.Clear(ctx))

	st, err := c.Get(ctx, "EV-1")
	require.NoError(t, err)
	assert.Nil(t, st)
	assert.True(t, mr.Exists("unrelated"))
}
