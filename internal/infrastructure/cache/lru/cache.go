package lrucache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
	"github.com/tdex-network/xswapd/internal/core/ports"
)

const defaultSize = 1024

type cache struct {
	lru *expirable.LRU[string, decimal.Decimal]
}

// NewPriceCache returns an in-process PriceCache holding up to size prices
// for ttl each.
func NewPriceCache(size int, ttl time.Duration) ports.PriceCache {
	if size <= 0 {
		size = defaultSize
	}
	return &cache{expirable.NewLRU[string, decimal.Decimal](size, nil, ttl)}
}

func (c *cache) Get(_ context.Context, key string) (decimal.Decimal, bool, error) {
	price, ok := c.lru.Get(key)
	return price, ok, nil
}

func (c *cache) Set(_ context.Context, key string, price decimal.Decimal) error {
	c.lru.Add(key, price)
	return nil
}
