// Package rediscache caches expensive read-side payloads (stats, graph
// snapshots, suggestion lists). A nil cache disables caching entirely.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/calegray/concepthub-backend/internal/platform/envutil"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
)

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

// NewFromEnv returns (nil, nil) when REDIS_ADDR is unset.
func NewFromEnv(log *logger.Logger) (*Cache, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, nil
	}
	serviceLog := log.With("service", "RedisCache")

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envutil.GetEnvAsInt("REDIS_DB", 0, log),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		serviceLog.Warn("Redis unreachable, caching disabled", "error", err)
		_ = rdb.Close()
		return nil, nil
	}

	ttlSeconds := envutil.GetEnvAsInt("REDIS_CACHE_TTL_SECONDS", 300, log)
	serviceLog.Info("Redis cache initialized", "addr", addr, "ttl_seconds", ttlSeconds)
	return &Cache{
		rdb: rdb,
		ttl: time.Duration(ttlSeconds) * time.Second,
		log: serviceLog,
	}, nil
}

// GetJSON loads and decodes a cached value. Returns false on miss.
func (c *Cache) GetJSON(ctx context.Context, key string, out interface{}) bool {
	if c == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("Cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Warn("Cache entry corrupt, dropping", "key", key, "error", err)
		_ = c.rdb.Del(ctx, key).Err()
		return false
	}
	return true
}

// SetJSON stores a value under the configured TTL. Failures are logged and
// swallowed; the cache is never load-bearing.
func (c *Cache) SetJSON(ctx context.Context, key string, val interface{}) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(val)
	if err != nil {
		c.log.Warn("Cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("Cache write failed", "key", key, "error", err)
	}
}

// Invalidate removes keys by exact name.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("Cache invalidation failed", "error", err)
	}
}

// InvalidatePrefix removes every key under a prefix.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) {
	if c == nil {
		return
	}
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.Warn("Cache scan failed", "prefix", prefix, "error", err)
		return
	}
	if len(keys) > 0 {
		if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
			c.log.Warn("Cache invalidation failed", "prefix", prefix, "error", err)
		}
	}
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
