package resolver_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/xswapd/internal/core/application/resolver"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/internal/infrastructure/chain/simchain"
	watermillorderbook "github.com/tdex-network/xswapd/internal/infrastructure/orderbook/watermill"
	"github.com/tdex-network/xswapd/pkg/auction"
	"github.com/tdex-network/xswapd/pkg/htlc"
)

const (
	pollInterval = 5 * time.Millisecond
	waitFor      = 5 * time.Second
	tick         = 10 * time.Millisecond
)

var (
	start        = time.Unix(1_700_000_000, 0)
	safetyMargin = 10 * time.Minute
	sourceAsset  = domain.Asset{
		Chain: domain.ChainSource, ChainID: "1", Address: "0xusdc", Symbol: "USDC", Decimals: 6,
	}
	destinationAsset = domain.Asset{
		Chain: domain.ChainDestination, ChainID: "101", Address: "0x2::usdc::USDC", Symbol: "USDC", Decimals: 6,
	}
)

type staticRates struct {
	rate decimal.Decimal
}

func (r staticRates) MarketRate(context.Context, domain.Asset, domain.Asset) (decimal.Decimal, error) {
	return r.rate, nil
}

type testEnv struct {
	clock    *simchain.ManualClock
	network  *simchain.Network
	book     ports.OrderBook
	maker    ports.EscrowClient
	receiver string
}

func newTestEnv(t *testing.T) *testEnv {
	clock := simchain.NewManualClock(start)
	network := simchain.NewNetwork(simchain.WithClock(clock.Now))
	book := watermillorderbook.NewOrderBook(clock.Now)
	t.Cleanup(book.Close)

	maker, err := network.Client(domain.ChainSource, simchain.NewAddress(domain.ChainSource))
	require.NoError(t, err)

	return &testEnv{
		clock:    clock,
		network:  network,
		book:     book,
		maker:    maker,
		receiver: simchain.NewAddress(domain.ChainDestination),
	}
}

// newOrder locks the source escrow of a new order and returns it with its
// secret, without publishing it.
func (e *testEnv) newOrder(t *testing.T, making int64) (domain.Order, htlc.Secret) {
	secret, err := htlc.Generate()
	require.NoError(t, err)

	a, err := auction.New(
		decimal.RequireFromString("2.02"), decimal.RequireFromString("1.99"),
		start, 2*time.Minute,
	)
	require.NoError(t, err)

	src, dst := domain.ComputeTimeLocks(start, time.Hour, safetyMargin)
	order, err := domain.NewOrder(domain.OrderArgs{
		Maker:               e.maker.Address(),
		Receiver:            e.receiver,
		SourceAsset:         sourceAsset,
		DestinationAsset:    destinationAsset,
		MakingAmount:        big.NewInt(making),
		HashLock:            htlc.Commit(secret),
		Auction:             a,
		SourceTimeLock:      src,
		DestinationTimeLock: dst,
		SafetyMargin:        safetyMargin,
		Now:                 start,
	})
	require.NoError(t, err)

	e.network.Fund(domain.ChainSource, e.maker.Address(), big.NewInt(making))
	rcpt, err := e.maker.Create(context.Background(), ports.CreateEscrowArgs{
		HashLock: order.HashLock,
		TimeLock: order.SourceTimeLock,
		Amount:   order.MakingAmount,
		OrderID:  order.ID,
	})
	require.NoError(t, err)
	order.SourceEscrowID = rcpt.EscrowID
	return *order, secret
}

type testAgent struct {
	*resolver.Agent
	source      ports.EscrowClient
	destination ports.EscrowClient
}

func (e *testEnv) newAgent(
	t *testing.T, name string, maxFill int64, rate string, funds int64,
) *testAgent {
	destination, err := e.network.Client(
		domain.ChainDestination, simchain.NewAddress(domain.ChainDestination),
	)
	require.NoError(t, err)
	e.network.Fund(domain.ChainDestination, destination.Address(), big.NewInt(funds))

	return e.startAgent(t, name, maxFill, rate, destination)
}

// runAgent starts a whole order agent signing on the destination chain with
// an existing wallet.
func (e *testEnv) runAgent(t *testing.T, name string, destination ports.EscrowClient) *testAgent {
	return e.startAgent(t, name, 0, "2.05", destination)
}

func (e *testEnv) startAgent(
	t *testing.T, name string, maxFill int64, rate string, destination ports.EscrowClient,
) *testAgent {
	source, err := e.network.Client(domain.ChainSource, simchain.NewAddress(domain.ChainSource))
	require.NoError(t, err)

	var max *big.Int
	if maxFill > 0 {
		max = big.NewInt(maxFill)
	}
	agent, err := resolver.NewAgent(
		source, destination, e.book,
		staticRates{decimal.RequireFromString(rate)},
		resolver.Config{
			Name:          name,
			MinMarginBps:  10,
			MaxFillAmount: max,
			SafetyMargin:  safetyMargin,
			PollInterval:  pollInterval,
			Now:           e.clock.Now,
		},
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		//nolint:errcheck
		agent.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &testAgent{agent, source, destination}
}

func (a *testAgent) requireState(t *testing.T, orderID string, want resolver.State) {
	require.Eventually(t, func() bool {
		got, ok := a.State(orderID)
		return ok && got == want
	}, waitFor, tick, "expected order %s to reach state %s", orderID, want)
}
