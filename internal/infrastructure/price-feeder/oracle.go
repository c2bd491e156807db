// Package pricefeederinfra implements the USD price oracle client:
//
//	GET {url}/{chainId}/{token} -> {"<token>": <usd price>}
package pricefeederinfra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/pkg/circuitbreaker"
	"github.com/tdex-network/xswapd/pkg/httputil"
)

var (
	// ErrPriceUnavailable is returned when the oracle has no price for the
	// requested token.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrOracleUnavailable is returned when the oracle cannot be reached or
	// the circuit breaker is open.
	ErrOracleUnavailable = errors.New("price oracle unavailable")
)

type oracle struct {
	url    string
	client *httputil.Client
	cb     *gobreaker.CircuitBreaker
}

// NewOracle returns a PriceOracle querying the oracle at url.
func NewOracle(url string, requestTimeout time.Duration) (ports.PriceOracle, error) {
	if len(url) <= 0 {
		return nil, fmt.Errorf("missing price oracle url")
	}
	return &oracle{
		url:    strings.TrimSuffix(url, "/"),
		client: httputil.NewClient(requestTimeout),
		cb: circuitbreaker.NewCircuitBreaker("price-oracle", func(err error) bool {
			return err == nil || errors.Is(err, ErrPriceUnavailable)
		}),
	}, nil
}

func (o *oracle) GetUSDPrice(
	ctx context.Context, chainID, token string,
) (decimal.Decimal, error) {
	res, err := o.cb.Execute(func() (interface{}, error) {
		return o.fetch(ctx, chainID, token)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) ||
			errors.Is(err, gobreaker.ErrTooManyRequests) {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrOracleUnavailable, err)
		}
		return decimal.Zero, err
	}
	return res.(decimal.Decimal), nil
}

func (o *oracle) fetch(
	ctx context.Context, chainID, token string,
) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/%s/%s", o.url, chainID, token)
	status, body, err := o.client.Get(ctx, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrOracleUnavailable, err)
	}
	if !httputil.IsSuccess(status) {
		if status == 404 {
			return decimal.Zero, fmt.Errorf("%w: %s on chain %s", ErrPriceUnavailable, token, chainID)
		}
		return decimal.Zero, fmt.Errorf(
			"%w: oracle returned %d", ErrOracleUnavailable, status,
		)
	}

	prices := make(map[string]decimal.Decimal)
	if err := json.Unmarshal(body, &prices); err != nil {
		return decimal.Zero, fmt.Errorf("invalid oracle response: %w", err)
	}
	for addr, price := range prices {
		if !strings.EqualFold(addr, token) {
			continue
		}
		if !price.IsPositive() {
			return decimal.Zero, fmt.Errorf(
				"%w: non positive price %s for %s", ErrPriceUnavailable, price, token,
			)
		}
		return price, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s on chain %s", ErrPriceUnavailable, token, chainID)
}
