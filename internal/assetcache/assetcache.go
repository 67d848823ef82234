// Package assetcache is a redis-backed read-through cache for asset metadata.
// It sits on the download path so repeated fetches of the same photo skip the
// relational store. Cache failures degrade to misses and never fail a request.
package assetcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/photoapp/internal/logger"
	"github.com/patric-chuzhbe/photoapp/internal/models"
)

// Cache caches asset metadata rows in redis with a configurable TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to redis and verifies the connection with a ping.
func New(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf(
			"in internal/assetcache/assetcache.go/New(): error while `client.Ping()` calling: %w",
			err,
		)
	}

	return &Cache{
		client: client,
		ttl:    ttl,
	}, nil
}

// GetAsset returns the cached asset and true on a hit.
// A nil Cache always misses, so consumers need no special casing
// when no redis is configured.
func (c *Cache) GetAsset(ctx context.Context, assetID int64) (*models.Asset, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, assetKey(assetID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Debugln("asset cache read failed", zap.Error(err))
		}

		return nil, false
	}

	var asset models.Asset
	if err := json.Unmarshal(data, &asset); err != nil {
		logger.Log.Debugln("asset cache entry is not decodable", zap.Error(err))

		return nil, false
	}

	return &asset, true
}

// SetAsset stores the asset under its id with the configured TTL.
func (c *Cache) SetAsset(ctx context.Context, asset *models.Asset) {
	if c == nil {
		return
	}

	data, err := json.Marshal(asset)
	if err != nil {
		logger.Log.Debugln("asset cache entry is not encodable", zap.Error(err))

		return
	}

	if err := c.client.Set(ctx, assetKey(asset.ID), data, c.ttl).Err(); err != nil {
		logger.Log.Debugln("asset cache write failed", zap.Error(err))
	}
}

// InvalidateAssets drops the cache entries of the given asset ids.
func (c *Cache) InvalidateAssets(ctx context.Context, assetIDs []int64) {
	if c == nil || len(assetIDs) == 0 {
		return
	}

	keys := make([]string, len(assetIDs))
	for i, assetID := range assetIDs {
		keys[i] = assetKey(assetID)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Log.Debugln("asset cache invalidation failed", zap.Error(err))
	}
}

// Close releases the redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

func assetKey(assetID int64) string {
	return fmt.Sprintf("asset:%d", assetID)
}
