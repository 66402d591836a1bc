package infrastructure_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/infrastructure"
)

func newCache(t *testing.T) *infrastructure.RedisStatusCache {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := infrastructure.NewRedisStatusCache(infrastructure.RedisConfig{Addr: mr.Addr(), TTL: time.Minute})
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestRedisStatusCache_RoundTrip(t *testing.T) {
	cache := newCache(t)
	ctx := context.Background()

	_, ok, err := cache.GetStatus(ctx, "order-1")
	require.NoError(t, err)
	assert.False(t, ok, "miss before any write")

	require.NoError(t, cache.SetStatus(ctx, "order-1", domain.StatusConfirmed))

	status, ok, err := cache.GetStatus(ctx, "order-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StatusConfirmed, status)
}

func TestRedisStatusCache_Invalidate(t *testing.T) {
	cache := newCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetStatus(ctx, "order-1", domain.StatusReserved))
	require.NoError(t, cache.Invalidate(ctx, "order-1"))

	_, ok, err := cache.GetStatus(ctx, "order-1")
	require.NoError(t, err)
	assert.False(t, ok, "invalidated entry must miss")
}
