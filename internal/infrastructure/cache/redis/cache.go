package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/tdex-network/xswapd/internal/core/ports"
)

const keyPrefix = "xswap:price:"

type cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache returns a PriceCache shared through the redis server at url,
// ie. redis://localhost:6379/0.
func NewPriceCache(url string, ttl time.Duration) (ports.PriceCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewPriceCacheFromClient(redis.NewClient(opts), ttl), nil
}

func NewPriceCacheFromClient(rdb *redis.Client, ttl time.Duration) ports.PriceCache {
	return &cache{rdb, ttl}
}

func (c *cache) Get(ctx context.Context, key string) (decimal.Decimal, bool, error) {
	val, err := c.rdb.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	price, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("invalid cached price for %s: %w", key, err)
	}
	return price, true, nil
}

func (c *cache) Set(ctx context.Context, key string, price decimal.Decimal) error {
	return c.rdb.Set(ctx, keyPrefix+key, price.String(), c.ttl).Err()
}
