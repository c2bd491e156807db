package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceOracle returns the USD price of a token.
type PriceOracle interface {
	GetUSDPrice(ctx context.Context, chainID, token string) (decimal.Decimal, error)
}

// PriceCache stores prices for a fixed TTL.
type PriceCache interface {
	Get(ctx context.Context, key string) (decimal.Decimal, bool, error)
	Set(ctx context.Context, key string, price decimal.Decimal) error
}
