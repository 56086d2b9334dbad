package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests share the package-level client, so they run sequentially against a
// fresh miniredis each.
func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

type cachedThing struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func TestGetSetJSON(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	var missing cachedThing
	found, err := GetJSON(ctx, "nope", &missing)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, "thing", cachedThing{ID: 7, Title: "seven"}, time.Minute))

	var got cachedThing
	found, err = GetJSON(ctx, "thing", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, cachedThing{ID: 7, Title: "seven"}, got)
}

func TestAside(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	fetches := 0
	fetch := func(dest *cachedThing) func() error {
		return func() error {
			fetches++
			*dest = cachedThing{ID: 1, Title: "fetched"}
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, Aside(ctx, "k", &first, time.Minute, fetch(&first)))
	assert.Equal(t, 1, fetches)
	assert.Equal(t, "fetched", first.Title)

	// Second read is served from the cache without another fetch.
	var second cachedThing
	require.NoError(t, Aside(ctx, "k", &second, time.Minute, fetch(&second)))
	assert.Equal(t, 1, fetches)
	assert.Equal(t, "fetched", second.Title)
}

func TestAsideFetchError(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	var dest cachedThing
	err := Aside(ctx, "k", &dest, time.Minute, func() error {
		return fmt.Errorf("db down")
	})
	require.Error(t, err)

	// Nothing was cached for the failed fetch.
	found, gerr := GetJSON(ctx, "k", &dest)
	require.NoError(t, gerr)
	assert.False(t, found)
}

func TestAsideWithoutRedis(t *testing.T) {
	SetClient(nil)
	ctx := context.Background()

	// Cache degraded: every read falls through to fetch.
	fetches := 0
	var dest cachedThing
	for i := 0; i < 3; i++ {
		require.NoError(t, Aside(ctx, "k", &dest, time.Minute, func() error {
			fetches++
			return nil
		}))
	}
	assert.Equal(t, 3, fetches)
}

func TestInvalidatePost(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, PostKey(3), cachedThing{ID: 3}, time.Minute))
	require.NoError(t, SetJSON(ctx, PostsListKey, []cachedThing{{ID: 3}}, time.Minute))

	InvalidatePost(ctx, 3)

	assert.False(t, mr.Exists(PostKey(3)))
	assert.False(t, mr.Exists(PostsListKey))
}
