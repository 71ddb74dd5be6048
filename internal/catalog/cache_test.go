package catalog

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kasir-kopi/internal/resilience"
)

func TestCacheBreakerTurnsOutageIntoMisses(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.SetJSON(ctx, productsCacheKey, []string{"espresso"}))
	var got []string
	ok, err := cache.GetJSON(ctx, productsCacheKey, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"espresso"}, got)

	breaker := resilience.NewBreaker("catalog-cache-test", 1, 1, time.Hour)
	cache.WithBreaker(breaker)
	mr.Close()
	_, err = cache.GetJSON(ctx, productsCacheKey, &got)
	require.Error(t, err)
	require.Equal(t, resilience.Open, breaker.State())

	ok, err = cache.GetJSON(ctx, productsCacheKey, &got)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, cache.SetJSON(ctx, productsCacheKey, []string{"latte"}))
}
