package pricefeederinfra

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tdex-network/xswapd/internal/core/ports"
)

type staticOracle struct {
	prices map[string]decimal.Decimal
}

// NewStaticOracle returns a PriceOracle serving fixed prices, keyed by
// "{chainId}/{token}". Used by the sim network.
func NewStaticOracle(prices map[string]decimal.Decimal) ports.PriceOracle {
	normalized := make(map[string]decimal.Decimal, len(prices))
	for k, v := range prices {
		normalized[strings.ToLower(k)] = v
	}
	return &staticOracle{normalized}
}

func (o *staticOracle) GetUSDPrice(
	_ context.Context, chainID, token string,
) (decimal.Decimal, error) {
	price, ok := o.prices[strings.ToLower(chainID+"/"+token)]
	if !ok || !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s on chain %s", ErrPriceUnavailable, token, chainID)
	}
	return price, nil
}
