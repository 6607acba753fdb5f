package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coinpilot/exchange-ledger/internal/platform/asset"
	"github.com/coinpilot/exchange-ledger/pkg/logger"
)

const (
	// DefaultTTL bounds staleness after an asset config change
	DefaultTTL = 5 * time.Minute

	// KeyPrefix is the prefix for asset cache keys
	KeyPrefix = "asset:"
)

// AssetCache is a Redis-backed cache over the asset registry
type AssetCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewAssetCache creates a new asset cache with the default TTL
func NewAssetCache(client *redis.Client, log *logger.Logger) *AssetCache {
	return &AssetCache{
		client: client,
		ttl:    DefaultTTL,
		logger: log.WithField("component", "asset_cache"),
	}
}

// NewAssetCacheWithTTL creates a new asset cache with a custom TTL
func NewAssetCacheWithTTL(client *redis.Client, ttl time.Duration, log *logger.Logger) *AssetCache {
	return &AssetCache{
		client: client,
		ttl:    ttl,
		logger: log.WithField("component", "asset_cache"),
	}
}

// cachedAsset is the wire shape stored in Redis. MinWithdrawal travels
// as a base-unit decimal string.
type cachedAsset struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Name           string    `json:"name"`
	ChainID        *string   `json:"chain_id,omitempty"`
	Decimals       int       `json:"decimals"`
	WithdrawFeeBps int64     `json:"withdraw_fee_bps"`
	MinWithdrawal  string    `json:"min_withdrawal"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Get retrieves a cached asset
func (c *AssetCache) Get(ctx context.Context, id string) (*asset.Asset, bool, error) {
	key := KeyPrefix + id

	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		c.logger.Debug("cache miss", "asset_id", id)
		return nil, false, nil
	}
	if err != nil {
		c.logger.Error("cache error", "operation", "get", "asset_id", id, "error", err)
		return nil, false, fmt.Errorf("failed to get cached asset: %w", err)
	}

	var cached cachedAsset
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached asset: %w", err)
	}

	minWithdrawal, ok := new(big.Int).SetString(cached.MinWithdrawal, 10)
	if !ok {
		return nil, false, fmt.Errorf("failed to parse cached min_withdrawal: invalid number")
	}

	c.logger.Debug("cache hit", "asset_id", id)
	return &asset.Asset{
		ID:             cached.ID,
		Symbol:         cached.Symbol,
		Name:           cached.Name,
		ChainID:        cached.ChainID,
		Decimals:       cached.Decimals,
		WithdrawFeeBps: cached.WithdrawFeeBps,
		MinWithdrawal:  minWithdrawal,
		IsActive:       cached.IsActive,
		CreatedAt:      cached.CreatedAt,
		UpdatedAt:      cached.UpdatedAt,
	}, true, nil
}

// Set stores an asset in the cache
func (c *AssetCache) Set(ctx context.Context, a *asset.Asset) error {
	key := KeyPrefix + a.ID

	minWithdrawal := "0"
	if a.MinWithdrawal != nil {
		minWithdrawal = a.MinWithdrawal.String()
	}

	data, err := json.Marshal(cachedAsset{
		ID:             a.ID,
		Symbol:         a.Symbol,
		Name:           a.Name,
		ChainID:        a.ChainID,
		Decimals:       a.Decimals,
		WithdrawFeeBps: a.WithdrawFeeBps,
		MinWithdrawal:  minWithdrawal,
		IsActive:       a.IsActive,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal asset: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Error("cache error", "operation", "set", "asset_id", a.ID, "error", err)
		return fmt.Errorf("failed to set cached asset: %w", err)
	}

	return nil
}

// Invalidate removes a cached asset after a registry change
func (c *AssetCache) Invalidate(ctx context.Context, id string) error {
	key := KeyPrefix + id

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Error("cache error", "operation", "del", "asset_id", id, "error", err)
		return fmt.Errorf("failed to invalidate cached asset: %w", err)
	}

	return nil
}
