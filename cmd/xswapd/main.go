package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/xswapd/internal/config"
	"github.com/tdex-network/xswapd/internal/core/application/orchestrator"
	"github.com/tdex-network/xswapd/internal/core/application/pricing"
	"github.com/tdex-network/xswapd/internal/core/ports"
	watermillorderbook "github.com/tdex-network/xswapd/internal/infrastructure/orderbook/watermill"
	timescheduler "github.com/tdex-network/xswapd/internal/infrastructure/scheduler/gocron"
	dbservice "github.com/tdex-network/xswapd/internal/infrastructure/storage/db"
	httpinterface "github.com/tdex-network/xswapd/internal/interfaces/http"
	"github.com/tdex-network/xswapd/pkg/stats"
)

func main() {
	if err := config.InitConfig(config.ComponentDaemon); err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.GetBool(config.EnableProfilerKey) {
		interval := time.Duration(config.GetInt(config.StatsIntervalKey)) * time.Second
		stats.EnableMemoryStatistics(ctx, interval, config.GetProfilerDir())
	}

	repoManager, err := dbservice.NewService(dbservice.ServiceConfig{
		DataStoreType:   config.GetString(config.DBTypeKey),
		LedgerStoreType: config.GetLedgerDBType(),
		Datadir:         config.GetDatadir(),
		SqlitePath:      config.GetSqliteLedgerPath(),
		BadgerLogger:    log.StandardLogger(),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to open storage")
	}
	defer repoManager.Close()

	vault, err := orchestrator.UnlockVault(
		ctx, repoManager.VaultRepository(), []byte(config.GetString(config.VaultPasswordKey)),
	)
	if err != nil {
		log.WithError(err).Fatal("failed to unlock secret vault")
	}

	var chains *chainSet
	if config.IsSimNetwork() {
		chains, err = newSimChains()
	} else {
		chains, err = newLiveChains(ctx)
	}
	if err != nil {
		log.WithError(err).Fatal("failed to connect to chains")
	}

	cache, err := newPriceCache()
	if err != nil {
		log.WithError(err).Fatal("failed to create price cache")
	}
	pricingSvc, err := pricing.NewService(chains.oracle, cache, pricing.Config{
		StartPremiumBps: config.GetUint64(config.AuctionStartPremiumBpsKey),
		EndDiscountBps:  config.GetUint64(config.AuctionEndDiscountBpsKey),
		AuctionDuration: config.GetDuration(config.AuctionDurationKey),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to create pricing service")
	}

	orderBook := watermillorderbook.NewOrderBook(nil)
	defer orderBook.Close()

	scheduler := timescheduler.NewScheduler()
	scheduler.Start()
	defer scheduler.Stop()

	orchestratorSvc, err := orchestrator.NewService(
		repoManager, chains.source, chains.destination, vault, pricingSvc,
		orderBook, scheduler, orchestrator.Config{
			SourceAsset:            config.GetSourceAsset(),
			DestinationAsset:       config.GetDestinationAsset(),
			SourceLockDuration:     config.GetDuration(config.SourceLockDurationKey),
			SafetyMargin:           config.GetDuration(config.SafetyMarginKey),
			CompletionThresholdBps: config.GetUint64(config.CompletionThresholdBpsKey),
			ReleasePolicy:          releasePolicy(),
			PollInterval:           config.GetDuration(config.PollIntervalKey),
			ChainCallTimeout:       config.GetDuration(config.ChainCallTimeoutKey),
		},
	)
	if err != nil {
		log.WithError(err).Fatal("failed to create orchestrator")
	}
	if err := orchestratorSvc.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start orchestrator")
	}
	defer orchestratorSvc.Stop()

	stopResolvers, err := startSimResolvers(ctx, chains, orderBook, pricingSvc)
	if err != nil {
		log.WithError(err).Fatal("failed to start sim resolvers")
	}
	defer stopResolvers()

	httpSvc, err := httpinterface.NewService(httpinterface.ServiceOpts{
		Address:  config.GetString(config.HTTPListeningAddrKey),
		SwapSvc:  orchestratorSvc,
		ReadOnly: config.GetBool(config.ReadOnlyAPIKey),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to create http interface")
	}
	if err := httpSvc.Start(); err != nil {
		log.WithError(err).Fatal("failed to start http interface")
	}
	defer httpSvc.Stop()

	log.WithFields(log.Fields{
		"network":     config.GetString(config.NetworkKey),
		"source":      chains.source.Address(),
		"destination": chains.destination.Address(),
	}).Info("swap daemon started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down daemon")
	cancel()
}

// chainSet groups the chain facing dependencies of the daemon, either real
// or simulated.
type chainSet struct {
	source      ports.EscrowClient
	destination ports.EscrowClient
	oracle      ports.PriceOracle
	sim         *simEnv
}
