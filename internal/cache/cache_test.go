package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-assignment-api/internal/cache"
)

type entry struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func TestRedisCacheRoundTripAndEvict(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	c := cache.NewRedis(rdb, time.Minute, zerolog.Nop())
	ctx := context.Background()
	key := cache.StudentAssignmentsKey(42)
	require.Equal(t, "assignments:student:42", key)

	var got []entry
	found, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.Set(ctx, key, []entry{{ID: 1, Title: "Essay"}}))
	require.True(t, mr.Exists(key))
	require.Equal(t, time.Minute, mr.TTL(key))

	found, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Essay", got[0].Title)

	require.NoError(t, c.Evict(ctx, key, cache.StudentAssignmentsKey(43)))
	require.False(t, mr.Exists(key))
}

func TestRedisCacheExpires(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	c := cache.NewRedis(rdb, 0, zerolog.Nop())
	ctx := context.Background()
	key := cache.StudentAssignmentsKey(7)

	require.NoError(t, c.Set(ctx, key, []entry{{ID: 2}}))
	require.Equal(t, cache.DefaultTTL, mr.TTL(key))

	mr.FastForward(cache.DefaultTTL + time.Second)
	var got []entry
	found, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	require.False(t, found)
}

func TestNilRedisFallsBackToDisabled(t *testing.T) {
	c := cache.NewRedis(nil, time.Minute, zerolog.Nop())
	require.IsType(t, cache.Disabled{}, c)

	var got []entry
	found, err := c.Get(context.Background(), "k", &got)
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, c.Set(context.Background(), "k", got))
	require.NoError(t, c.Evict(context.Background(), "k"))
}
