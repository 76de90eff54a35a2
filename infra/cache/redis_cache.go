// Package cache stores the last fetched conversion rate in Redis so every
// instance quotes the same price.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const rateKey = "crypto-rate"

// RedisRateCache implements rate.Cache using Redis.
type RedisRateCache struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// NewRedisRateCache creates the cache under prefix.
func NewRedisRateCache(client redis.UniversalClient, prefix string, logger *slog.Logger) *RedisRateCache {
	return &RedisRateCache{client: client, prefix: prefix, logger: logger.With("component", "rate-cache-redis")}
}

func (r *RedisRateCache) key() string {
	return r.prefix + rateKey
}

// Get implements rate.Cache.
func (r *RedisRateCache) Get(ctx context.Context) (decimal.Decimal, bool, error) {
	val, err := r.client.Get(ctx, r.key()).Result()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("Redis cache miss", "key", r.key())
		return decimal.Decimal{}, false, nil
	}
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	d, err := decimal.NewFromString(val)
	if err != nil {
		r.logger.Error("Redis cache holds a malformed rate", "key", r.key(), "error", err)
		return decimal.Decimal{}, false, nil
	}
	return d, true, nil
}

// Set implements rate.Cache.
func (r *RedisRateCache) Set(ctx context.Context, d decimal.Decimal, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(), d.String(), ttl).Err()
}
