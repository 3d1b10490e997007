package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stream-indexer/internal/config"
	"github.com/stream-indexer/internal/logging"
	"github.com/stream-indexer/internal/models"
)

// Cache key prefixes. Format: <prefix>:<param>
const (
	cacheKeyWallet = "wallet:"
	cacheKeyToken  = "token:"
	cacheKeyStatus = "status:"
)

// CacheService provides the high-level caches over Redis: resolved wallets
// for the identity resolver, token metadata for the stats service, and sync
// status payloads for the read API. All reads are best-effort; a cache
// failure degrades to the underlying source, never to an error.
type CacheService struct {
	redis *RedisCache
	cfg   config.CacheConfig
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, cfg config.CacheConfig) *CacheService {
	return &CacheService{redis: redis, cfg: cfg}
}

// GetWallet returns the cached wallet for an account id, if any
func (c *CacheService) GetWallet(ctx context.Context, accountID string) (string, bool) {
	wallet, err := c.redis.Get(ctx, cacheKeyWallet+accountID)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.FromContext(ctx).WithError(err).Debug("Wallet cache read failed")
		}
		return "", false
	}
	return wallet, true
}

// SetWallet caches a resolved wallet for an account id
func (c *CacheService) SetWallet(ctx context.Context, accountID, wallet string) {
	if err := c.redis.Set(ctx, cacheKeyWallet+accountID, wallet, c.cfg.WalletTTL); err != nil {
		logging.FromContext(ctx).WithError(err).Debug("Wallet cache write failed")
	}
}

// GetToken returns cached token metadata, if any
func (c *CacheService) GetToken(ctx context.Context, address string) (*models.Token, bool) {
	data, err := c.redis.Get(ctx, cacheKeyToken+address)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.FromContext(ctx).WithError(err).Debug("Token cache read failed")
		}
		return nil, false
	}

	var token models.Token
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return nil, false
	}
	return &token, true
}

// SetToken caches token metadata
func (c *CacheService) SetToken(ctx context.Context, token *models.Token) {
	data, err := json.Marshal(token)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKeyToken+token.Address, data, c.cfg.TokenTTL); err != nil {
		logging.FromContext(ctx).WithError(err).Debug("Token cache write failed")
	}
}

// GetStatus returns a cached sync status payload for the read API
func (c *CacheService) GetStatus(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.redis.Get(ctx, cacheKeyStatus+key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.FromContext(ctx).WithError(err).Debug("Status cache read failed")
		}
		return nil, false
	}
	return []byte(data), true
}

// SetStatus caches a sync status payload with a short TTL
func (c *CacheService) SetStatus(ctx context.Context, key string, payload []byte) {
	ttl := c.cfg.StatusTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if err := c.redis.Set(ctx, cacheKeyStatus+key, payload, ttl); err != nil {
		logging.FromContext(ctx).WithError(err).Debug("Status cache write failed")
	}
}

// InvalidateStatus drops the cached status payloads after a sync run
func (c *CacheService) InvalidateStatus(ctx context.Context, keys ...string) {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = cacheKeyStatus + k
	}
	if err := c.redis.Del(ctx, full...); err != nil {
		logging.FromContext(ctx).WithError(err).Debug("Status cache invalidation failed")
	}
}
