// Package pricing derives exchange rates between the swapped assets from USD
// prices and builds the Dutch auction of new orders.
package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/pkg/auction"
)

var tenThousands = decimal.NewFromInt(10000)

type Config struct {
	// StartPremiumBps is added to the market rate to get the auction start
	// rate.
	StartPremiumBps uint64
	// EndDiscountBps is subtracted from the market rate to get the auction
	// end rate, ie. the worst rate the receiver accepts.
	EndDiscountBps  uint64
	AuctionDuration time.Duration
}

func (c Config) validate() error {
	if c.EndDiscountBps >= 10000 {
		return fmt.Errorf("end discount must be lower than 10000 bps")
	}
	if c.AuctionDuration < 0 {
		return fmt.Errorf("auction duration must not be negative")
	}
	return nil
}

type Service struct {
	oracle ports.PriceOracle
	cache  ports.PriceCache
	cfg    Config
}

func NewService(
	oracle ports.PriceOracle, cache ports.PriceCache, cfg Config,
) (*Service, error) {
	if oracle == nil {
		return nil, fmt.Errorf("missing price oracle")
	}
	if cache == nil {
		return nil, fmt.Errorf("missing price cache")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Service{oracle, cache, cfg}, nil
}

// USDPrice returns the USD price of the asset, served from cache when fresh.
func (s *Service) USDPrice(ctx context.Context, asset domain.Asset) (decimal.Decimal, error) {
	key := cacheKey(asset)
	price, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		log.WithError(err).Warnf("pricing: failed to read cached price for %s", asset)
	}
	if ok && price.IsPositive() {
		return price, nil
	}

	price, err = s.oracle.GetUSDPrice(ctx, asset.ChainID, asset.Address)
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.cache.Set(ctx, key, price); err != nil {
		log.WithError(err).Warnf("pricing: failed to cache price for %s", asset)
	}
	return price, nil
}

// MarketRate returns how many whole destination units one whole source unit
// is worth. Any failure is reported as domain.ErrRateUnknown.
func (s *Service) MarketRate(
	ctx context.Context, source, destination domain.Asset,
) (decimal.Decimal, error) {
	srcPrice, err := s.USDPrice(ctx, source)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %s", domain.ErrRateUnknown, source, err)
	}
	dstPrice, err := s.USDPrice(ctx, destination)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %s", domain.ErrRateUnknown, destination, err)
	}
	return srcPrice.Div(dstPrice), nil
}

// NewAuction returns the auction schedule for an order created at now
// together with the market rate it derives from.
func (s *Service) NewAuction(
	ctx context.Context, source, destination domain.Asset, now time.Time,
) (auction.Auction, decimal.Decimal, error) {
	rate, err := s.MarketRate(ctx, source, destination)
	if err != nil {
		return auction.Auction{}, decimal.Zero, err
	}

	a, err := auction.New(
		PlusBasisPoints(rate, s.cfg.StartPremiumBps),
		LessBasisPoints(rate, s.cfg.EndDiscountBps),
		now, s.cfg.AuctionDuration,
	)
	if err != nil {
		return auction.Auction{}, decimal.Zero, fmt.Errorf(
			"%w: %s", domain.ErrRateUnknown, err,
		)
	}
	return a, rate, nil
}

// PlusBasisPoints returns rate increased by bps basis points.
func PlusBasisPoints(rate decimal.Decimal, bps uint64) decimal.Decimal {
	return rate.Mul(tenThousands.Add(decimal.NewFromInt(int64(bps)))).Div(tenThousands)
}

// LessBasisPoints returns rate reduced by bps basis points.
func LessBasisPoints(rate decimal.Decimal, bps uint64) decimal.Decimal {
	return rate.Mul(tenThousands.Sub(decimal.NewFromInt(int64(bps)))).Div(tenThousands)
}

func cacheKey(asset domain.Asset) string {
	return strings.ToLower(fmt.Sprintf("%s/%s", asset.ChainID, asset.Address))
}
