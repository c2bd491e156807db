package watermillorderbook_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	watermillorderbook "github.com/tdex-network/xswapd/internal/infrastructure/orderbook/watermill"
	"github.com/tdex-network/xswapd/pkg/auction"
	"github.com/tdex-network/xswapd/pkg/htlc"
)

func newOrder(t *testing.T, now time.Time, secret htlc.Secret) domain.Order {
	src, dst := domain.ComputeTimeLocks(now, time.Hour, 10*time.Minute)
	order, err := domain.NewOrder(domain.OrderArgs{
		Maker:    "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		Receiver: "0x" + "02",
		SourceAsset: domain.Asset{
			Chain: domain.ChainSource, Symbol: "ETH", Decimals: 18,
		},
		DestinationAsset: domain.Asset{
			Chain: domain.ChainDestination, Symbol: "SUI", Decimals: 9,
		},
		MakingAmount: big.NewInt(1_000_000),
		HashLock:     htlc.Commit(secret),
		Auction: auction.Auction{
			StartRate: decimal.NewFromInt(2000),
			EndRate:   decimal.NewFromInt(1900),
			StartTime: now,
			EndTime:   now.Add(5 * time.Minute),
		},
		SourceTimeLock:      src,
		DestinationTimeLock: dst,
		SafetyMargin:        10 * time.Minute,
		Now:                 now,
	})
	require.NoError(t, err)
	return *order
}

func receive[T any](t *testing.T, ch <-chan T) T {
	select {
	case v, ok := <-ch:
		require.True(t, ok)
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
	var zero T
	return zero
}

func TestOrderBook(t *testing.T) {
	t.Parallel()

	now := time.Now()
	book := watermillorderbook.NewOrderBook(nil)
	t.Cleanup(book.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	secret := htlc.Secret{1}
	first := newOrder(t, now, secret)
	require.NoError(t, book.PublishOrder(ctx, first))

	// late subscriber gets the snapshot first.
	orders, err := book.SubscribeOrders(ctx)
	require.NoError(t, err)
	got := receive(t, orders)
	require.Equal(t, first.ID, got.ID)
	require.Equal(t, first.HashLock, got.HashLock)
	require.Equal(t, first.MakingAmount.String(), got.MakingAmount.String())
	require.True(t, first.Auction.StartRate.Equal(got.Auction.StartRate))

	second := newOrder(t, now, htlc.Secret{2})
	require.NoError(t, book.PublishOrder(ctx, second))
	require.Equal(t, second.ID, receive(t, orders).ID)

	secrets, err := book.SubscribeSecrets(ctx)
	require.NoError(t, err)
	release := ports.SecretRelease{
		OrderID:   first.ID,
		HashLock:  first.HashLock,
		Secret:    secret,
		EscrowIDs: []string{"dst-1", "dst-2"},
	}
	require.NoError(t, book.PublishSecret(ctx, release))
	require.Equal(t, release, receive(t, secrets))

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-orders:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOrderBookEvictsExpiredOrders(t *testing.T) {
	t.Parallel()

	clock := time.Now()
	book := watermillorderbook.NewOrderBook(func() time.Time { return clock })
	t.Cleanup(book.Close)
	ctx := context.Background()

	order := newOrder(t, time.Now(), htlc.Secret{1})
	require.NoError(t, book.PublishOrder(ctx, order))

	clock = clock.Add(2 * time.Hour)

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	orders, err := book.SubscribeOrders(subCtx)
	require.NoError(t, err)

	select {
	case <-orders:
		t.Fatal("expired order must not be replayed")
	case <-time.After(50 * time.Millisecond):
	}
}
