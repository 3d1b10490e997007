package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stream-indexer/internal/config"
	"github.com/stream-indexer/internal/models"
)

func newTestCache(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.CacheConfig{
		TokenTTL:  time.Hour,
		WalletTTL: 10 * time.Minute,
		StatusTTL: 5 * time.Second,
	}
	return NewCacheService(NewRedisCacheFromClient(client), cfg), mr
}

func TestWalletCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.GetWallet(ctx, "42")
	assert.False(t, ok)

	cache.SetWallet(ctx, "42", "0xabc")

	wallet, ok := cache.GetWallet(ctx, "42")
	require.True(t, ok)
	assert.Equal(t, "0xabc", wallet)
}

func TestWalletCacheExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.SetWallet(ctx, "42", "0xabc")
	mr.FastForward(11 * time.Minute)

	_, ok := cache.GetWallet(ctx, "42")
	assert.False(t, ok)
}

func TestTokenCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	token := &models.Token{
		Address:  "0x1",
		Symbol:   "APT",
		Name:     "Aptos Coin",
		Decimals: 8,
	}
	cache.SetToken(ctx, token)

	got, ok := cache.GetToken(ctx, "0x1")
	require.True(t, ok)
	assert.Equal(t, token, got)
}

func TestStatusCacheInvalidation(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.SetStatus(ctx, "all", []byte(`[]`))
	payload, ok := cache.GetStatus(ctx, "all")
	require.True(t, ok)
	assert.Equal(t, []byte(`[]`), payload)

	cache.InvalidateStatus(ctx, "all")
	_, ok = cache.GetStatus(ctx, "all")
	assert.False(t, ok)
}
