//go:build integration

package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadcolor/internal/config"
	"leadcolor/internal/logger"
	"leadcolor/internal/testinfra"
)

func TestRedisStore(t *testing.T) {
	client := testinfra.Redis(t)
	store := NewRedisStore(client)
	ctx := context.Background()
	key := Key("acme", "client")

	_, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	want := Token{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, store.Set(ctx, key, want, time.Minute))

	got, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	ttl, err := client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.InDelta(t, time.Minute.Seconds(), ttl.Seconds(), 2)

	require.NoError(t, store.Delete(ctx, key))
	_, found, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_CorruptValue(t *testing.T) {
	client := testinfra.Redis(t)
	store := NewRedisStore(client)
	ctx := context.Background()
	key := Key("acme", "client")

	require.NoError(t, client.Set(ctx, key, "not-json", time.Minute).Err())

	_, _, err := store.Get(ctx, key)
	assert.ErrorContains(t, err, "corrupt token")
}

func TestCache_WithRedisStore(t *testing.T) {
	client := testinfra.Redis(t)
	fetcher := &fakeFetcher{}
	store := NewCircuitBreakerStore(NewRedisStore(client), config.CircuitBreakerConfig{Enabled: true})
	ctx := context.Background()

	first := NewCache(fetcher, store, time.Minute, logger.NopLogger())
	second := NewCache(fetcher, store, time.Minute, logger.NopLogger())

	a, err := first.Get(ctx, "acme", "client")
	require.NoError(t, err)
	b, err := second.Get(ctx, "acme", "client")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}
