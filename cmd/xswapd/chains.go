package main

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/xswapd/internal/config"
	"github.com/tdex-network/xswapd/internal/core/application/pricing"
	"github.com/tdex-network/xswapd/internal/core/application/resolver"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	lrucache "github.com/tdex-network/xswapd/internal/infrastructure/cache/lru"
	rediscache "github.com/tdex-network/xswapd/internal/infrastructure/cache/redis"
	"github.com/tdex-network/xswapd/internal/infrastructure/chain"
	"github.com/tdex-network/xswapd/internal/infrastructure/chain/simchain"
	pricefeederinfra "github.com/tdex-network/xswapd/internal/infrastructure/price-feeder"
)

type simEnv struct {
	network *simchain.Network
}

func newLiveChains(ctx context.Context) (*chainSet, error) {
	source, destination, err := chain.NewLiveClients(ctx, chain.LiveConfig{
		SourceRPCURL:        config.GetString(config.SourceRPCURLKey),
		SourceContract:      config.GetString(config.SourceEscrowContractKey),
		SourceToken:         config.GetString(config.SourceTokenKey),
		DestinationRPCURL:   config.GetString(config.DestinationRPCURLKey),
		DestinationPackage:  config.GetString(config.DestinationEscrowPkgKey),
		DestinationCoinType: config.GetString(config.DestinationCoinTypeKey),
		WalletURL:           config.GetString(config.WalletURLKey),
		WalletToken:         config.GetString(config.WalletTokenKey),
		RateLimit:           config.GetInt(config.RPCRateLimitKey),
		ReceiptTimeout:      config.GetDuration(config.ReceiptTimeoutKey),
		RequestTimeout:      config.GetDuration(config.ChainCallTimeoutKey),
	})
	if err != nil {
		return nil, err
	}

	oracle, err := pricefeederinfra.NewOracle(
		config.GetString(config.PriceOracleURLKey),
		config.GetDuration(config.ChainCallTimeoutKey),
	)
	if err != nil {
		return nil, fmt.Errorf("price oracle: %w", err)
	}

	return &chainSet{source: source, destination: destination, oracle: oracle}, nil
}

// newSimChains returns the maker clients of an in-process pair of chains,
// with the maker funded on the source chain and fixed USD prices.
func newSimChains() (*chainSet, error) {
	network := simchain.NewNetwork()

	makerSource := simchain.NewAddress(domain.ChainSource)
	source, err := network.Client(domain.ChainSource, makerSource)
	if err != nil {
		return nil, err
	}
	destination, err := network.Client(
		domain.ChainDestination, simchain.NewAddress(domain.ChainDestination),
	)
	if err != nil {
		return nil, err
	}

	funds, err := config.GetAmount(config.SimMakerFundsKey)
	if err != nil {
		return nil, err
	}
	network.Fund(domain.ChainSource, makerSource, funds)

	src, dst := config.GetSourceAsset(), config.GetDestinationAsset()
	oracle := pricefeederinfra.NewStaticOracle(map[string]decimal.Decimal{
		oracleKey(src): config.GetDecimal(config.SimSourceUSDPriceKey),
		oracleKey(dst): config.GetDecimal(config.SimDestinationUSDPriceKey),
	})

	return &chainSet{
		source:      source,
		destination: destination,
		oracle:      oracle,
		sim:         &simEnv{network},
	}, nil
}

func newPriceCache() (ports.PriceCache, error) {
	ttl := config.GetDuration(config.PriceCacheTTLKey)
	if url := config.GetString(config.RedisURLKey); len(url) > 0 {
		return rediscache.NewPriceCache(url, ttl)
	}
	return lrucache.NewPriceCache(config.GetInt(config.PriceCacheSizeKey), ttl), nil
}

func releasePolicy() domain.ReleasePolicy {
	return domain.ReleasePolicy(config.GetString(config.ReleasePolicyKey))
}

// premiumRates makes the embedded resolvers quote a better rate than the
// oracle one, so that they fill orders during the auction.
type premiumRates struct {
	rates resolver.RateSource
	bps   uint64
}

func (r premiumRates) MarketRate(
	ctx context.Context, source, destination domain.Asset,
) (decimal.Decimal, error) {
	rate, err := r.rates.MarketRate(ctx, source, destination)
	if err != nil {
		return decimal.Zero, err
	}
	return pricing.PlusBasisPoints(rate, r.bps), nil
}

// startSimResolvers runs the resolvers embedded in the daemon on the sim
// network. The returned func stops them.
func startSimResolvers(
	ctx context.Context, chains *chainSet, orderBook ports.OrderBook,
	rates resolver.RateSource,
) (func(), error) {
	if chains.sim == nil {
		return func() {}, nil
	}

	funds, err := config.GetAmount(config.SimResolverFundsKey)
	if err != nil {
		return nil, err
	}
	maxFill, err := config.GetAmount(config.ResolverMaxFillAmountKey)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	network := chains.sim.network
	rateSource := premiumRates{rates, config.GetUint64(config.SimResolverPremiumBpsKey)}

	for i := 0; i < config.GetInt(config.SimResolversKey); i++ {
		name := fmt.Sprintf("resolver-%d", i)
		agent, err := newSimResolver(network, name, funds, maxFill, orderBook, rateSource)
		if err != nil {
			log.WithError(err).Warnf("failed to create sim %s", name)
			continue
		}

		go func() {
			if err := agent.Run(ctx); err != nil {
				log.WithError(err).Warnf("sim %s stopped", agent.Name())
			}
		}()
		log.Debugf("started sim %s", name)
	}

	return cancel, nil
}

func newSimResolver(
	network *simchain.Network, name string, funds, maxFill *big.Int,
	orderBook ports.OrderBook, rates resolver.RateSource,
) (*resolver.Agent, error) {
	source, err := network.Client(
		domain.ChainSource, simchain.NewAddress(domain.ChainSource),
	)
	if err != nil {
		return nil, err
	}
	destination, err := network.Client(
		domain.ChainDestination, simchain.NewAddress(domain.ChainDestination),
	)
	if err != nil {
		return nil, err
	}
	network.Fund(domain.ChainDestination, destination.Address(), funds)

	return resolver.NewAgent(source, destination, orderBook, rates, resolver.Config{
		Name:               name,
		MinMarginBps:       config.GetUint64(config.ResolverMinMarginBpsKey),
		MaxFillAmount:      maxFill,
		SafetyMargin:       config.GetDuration(config.SafetyMarginKey),
		FillDeadlineBuffer: config.GetDuration(config.ResolverFillDeadlineBufferKey),
		PollInterval:       config.GetDuration(config.PollIntervalKey),
		ChainCallTimeout:   config.GetDuration(config.ChainCallTimeoutKey),
	})
}

func oracleKey(asset domain.Asset) string {
	return strings.ToLower(fmt.Sprintf("%s/%s", asset.ChainID, asset.Address))
}
