package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/xswapd/internal/config"
	"github.com/tdex-network/xswapd/internal/core/application/pricing"
	"github.com/tdex-network/xswapd/internal/core/application/resolver"
	"github.com/tdex-network/xswapd/internal/core/ports"
	lrucache "github.com/tdex-network/xswapd/internal/infrastructure/cache/lru"
	rediscache "github.com/tdex-network/xswapd/internal/infrastructure/cache/redis"
	"github.com/tdex-network/xswapd/internal/infrastructure/chain"
	remoteorderbook "github.com/tdex-network/xswapd/internal/infrastructure/orderbook/remote"
	pricefeederinfra "github.com/tdex-network/xswapd/internal/infrastructure/price-feeder"
)

func main() {
	if err := config.InitConfig(config.ComponentResolver); err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		log.WithError(err).Fatal("failed to connect to chains")
	}

	orderBook, err := remoteorderbook.NewOrderBook(
		config.GetString(config.OrderBookURLKey), config.GetDuration(config.PollIntervalKey),
	)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to order book")
	}
	defer orderBook.Close()

	oracle, err := pricefeederinfra.NewOracle(
		config.GetString(config.PriceOracleURLKey),
		config.GetDuration(config.ChainCallTimeoutKey),
	)
	if err != nil {
		log.WithError(err).Fatal("failed to create price oracle")
	}
	var cache ports.PriceCache
	ttl := config.GetDuration(config.PriceCacheTTLKey)
	if url := config.GetString(config.RedisURLKey); len(url) > 0 {
		if cache, err = rediscache.NewPriceCache(url, ttl); err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
	} else {
		cache = lrucache.NewPriceCache(config.GetInt(config.PriceCacheSizeKey), ttl)
	}
	pricingSvc, err := pricing.NewService(oracle, cache, pricing.Config{
		AuctionDuration: config.GetDuration(config.AuctionDurationKey),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to create pricing service")
	}

	resolverCfg := resolver.Config{
		Name:               config.GetString(config.ResolverNameKey),
		MinMarginBps:       config.GetUint64(config.ResolverMinMarginBpsKey),
		SafetyMargin:       config.GetDuration(config.SafetyMarginKey),
		FillDeadlineBuffer: config.GetDuration(config.ResolverFillDeadlineBufferKey),
		PollInterval:       config.GetDuration(config.PollIntervalKey),
		ChainCallTimeout:   config.GetDuration(config.ChainCallTimeoutKey),
	}
	maxFill, err := config.GetAmount(config.ResolverMaxFillAmountKey)
	if err != nil {
		log.WithError(err).Fatal("failed to read resolver config")
	}
	resolverCfg.MaxFillAmount = maxFill
	agent, err := resolver.NewAgent(source, destination, orderBook, pricingSvc, resolverCfg)
	if err != nil {
		log.WithError(err).Fatal("failed to create resolver")
	}

	go func() {
		if err := agent.Run(ctx); err != nil {
			log.WithError(err).Error("resolver stopped")
			cancel()
		}
	}()

	log.WithFields(log.Fields{
		"name":        agent.Name(),
		"source":      source.Address(),
		"destination": destination.Address(),
	}).Info("resolver started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	log.Info("shutting down resolver")
}
