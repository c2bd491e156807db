package simchain_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/internal/infrastructure/chain/simchain"
	"github.com/tdex-network/xswapd/pkg/htlc"
)

var start = time.Unix(1700000000, 0)

type fixture struct {
	network  *simchain.Network
	clock    *simchain.ManualClock
	maker    ports.EscrowClient
	resolver ports.EscrowClient
	secret   htlc.Secret
	hashLock htlc.HashLock
}

func newFixture(t *testing.T) fixture {
	clock := simchain.NewManualClock(start)
	network := simchain.NewNetwork(simchain.WithClock(clock.Now))

	maker, err := network.Client(domain.ChainSource, simchain.NewAddress(domain.ChainSource))
	require.NoError(t, err)
	resolver, err := network.Client(domain.ChainSource, simchain.NewAddress(domain.ChainSource))
	require.NoError(t, err)
	network.Fund(domain.ChainSource, maker.Address(), big.NewInt(1_000_000))

	secret, err := htlc.Generate()
	require.NoError(t, err)

	return fixture{network, clock, maker, resolver, secret, htlc.Commit(secret)}
}

func (f fixture) lock(t *testing.T, amount int64) ports.Receipt {
	rcpt, err := f.maker.Create(context.Background(), ports.CreateEscrowArgs{
		HashLock: f.hashLock,
		TimeLock: start.Add(time.Hour).Unix(),
		Amount:   big.NewInt(amount),
	})
	require.NoError(t, err)
	require.True(t, rcpt.IsConfirmed())
	return rcpt
}

func TestClientAddressValidation(t *testing.T) {
	t.Parallel()

	network := simchain.NewNetwork()
	_, err := network.Client(domain.ChainSource, "0x01")
	require.ErrorIs(t, err, domain.ErrInvalidSourceAddress)
	_, err = network.Client(domain.ChainDestination, simchain.NewAddress(domain.ChainSource))
	require.ErrorIs(t, err, domain.ErrInvalidDestinationAddress)
	_, err = network.Client("btc", simchain.NewAddress(domain.ChainSource))
	require.Error(t, err)

	c, err := network.Client(domain.ChainDestination, simchain.NewAddress(domain.ChainDestination))
	require.NoError(t, err)
	require.Equal(t, domain.Milliseconds, c.TimeUnit())
}

func TestCreate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	rcpt := f.lock(t, 600_000)
	require.Equal(t, "400000", f.network.BalanceOf(domain.ChainSource, f.maker.Address()).String())

	escrow, err := f.maker.GetEscrow(ctx, rcpt.EscrowID)
	require.NoError(t, err)
	require.Equal(t, domain.EscrowStatusCreated, escrow.Status)
	require.Equal(t, f.maker.Address(), escrow.Creator)

	status, err := f.maker.TxStatus(ctx, rcpt.TxHash)
	require.NoError(t, err)
	require.Equal(t, domain.TxStatusConfirmed, status)

	tests := []struct {
		name        string
		args        ports.CreateEscrowArgs
		expectedErr error
	}{
		{
			"insufficient funds",
			ports.CreateEscrowArgs{
				HashLock: f.hashLock, TimeLock: start.Add(time.Hour).Unix(),
				Amount: big.NewInt(400_001),
			},
			domain.ErrInsufficientFunds,
		},
		{
			"past time lock",
			ports.CreateEscrowArgs{
				HashLock: f.hashLock, TimeLock: start.Unix(), Amount: big.NewInt(1),
			},
			domain.ErrInvalidTimeLock,
		},
		{
			"zero amount",
			ports.CreateEscrowArgs{
				HashLock: f.hashLock, TimeLock: start.Add(time.Hour).Unix(),
				Amount: big.NewInt(0),
			},
			domain.ErrInvalidAmount,
		},
	}
	for _, tt := range tests {
		_, err := f.maker.Create(ctx, tt.args)
		require.ErrorIs(t, err, tt.expectedErr, tt.name)
	}
}

func TestPartialFills(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	rcpt := f.lock(t, 1_000_000)

	_, err := f.resolver.FillPartial(ctx, rcpt.EscrowID, big.NewInt(1), htlc.Secret{1})
	require.ErrorIs(t, err, domain.ErrSecretMismatch)

	_, err = f.resolver.FillPartial(ctx, rcpt.EscrowID, big.NewInt(600_000), f.secret)
	require.NoError(t, err)
	_, err = f.resolver.FillPartial(ctx, rcpt.EscrowID, big.NewInt(400_001), f.secret)
	require.ErrorIs(t, err, domain.ErrOverFill)
	_, err = f.resolver.FillPartial(ctx, rcpt.EscrowID, big.NewInt(400_000), f.secret)
	require.NoError(t, err)

	escrow, err := f.resolver.GetEscrow(ctx, rcpt.EscrowID)
	require.NoError(t, err)
	require.True(t, escrow.IsSettled())
	require.Equal(t, "1000000", escrow.FilledAmount().String())
	require.Equal(t, f.secret, *escrow.RevealedSecret)
	require.Equal(
		t, "1000000", f.network.BalanceOf(domain.ChainSource, f.resolver.Address()).String(),
	)

	_, err = f.resolver.FillPartial(ctx, rcpt.EscrowID, big.NewInt(1), f.secret)
	require.ErrorIs(t, err, domain.ErrEscrowSettled)
	_, err = f.maker.Refund(ctx, rcpt.EscrowID)
	require.ErrorIs(t, err, domain.ErrEscrowTerminal)
}

func TestConcurrentFillsNeverExceedTotal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rcpt := f.lock(t, 1_000_000)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.resolver.FillPartial(
				context.Background(), rcpt.EscrowID, big.NewInt(75_000), f.secret,
			)
		}()
	}
	wg.Wait()

	escrow, err := f.maker.GetEscrow(context.Background(), rcpt.EscrowID)
	require.NoError(t, err)
	require.Equal(t, "975000", escrow.FilledAmount().String())
	require.Equal(t, "25000", escrow.Remaining.String())
}

func TestRefund(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	rcpt := f.lock(t, 1_000_000)

	_, err := f.maker.Refund(ctx, rcpt.EscrowID)
	require.ErrorIs(t, err, domain.ErrNotYetExpired)

	_, err = f.resolver.FillPartial(ctx, rcpt.EscrowID, big.NewInt(250_000), f.secret)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)

	_, err = f.resolver.FillPartial(ctx, rcpt.EscrowID, big.NewInt(1), f.secret)
	require.ErrorIs(t, err, domain.ErrExpired)
	_, err = f.resolver.Refund(ctx, rcpt.EscrowID)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	refund, err := f.maker.Refund(ctx, rcpt.EscrowID)
	require.NoError(t, err)
	require.Equal(t, "750000", refund.Amount.String())
	require.Equal(t, "750000", f.network.BalanceOf(domain.ChainSource, f.maker.Address()).String())

	_, err = f.maker.Refund(ctx, rcpt.EscrowID)
	require.ErrorIs(t, err, domain.ErrEscrowRefunded)
}

func TestDestinationPaysBeneficiary(t *testing.T) {
	t.Parallel()

	clock := simchain.NewManualClock(start)
	network := simchain.NewNetwork(simchain.WithClock(clock.Now))
	resolver, err := network.Client(domain.ChainDestination, simchain.NewAddress(domain.ChainDestination))
	require.NoError(t, err)
	stranger, err := network.Client(domain.ChainDestination, simchain.NewAddress(domain.ChainDestination))
	require.NoError(t, err)
	receiver := simchain.NewAddress(domain.ChainDestination)
	network.Fund(domain.ChainDestination, resolver.Address(), big.NewInt(500))

	secret := htlc.Secret{42}
	ctx := context.Background()

	_, err = resolver.Create(ctx, ports.CreateEscrowArgs{
		HashLock: htlc.Commit(secret),
		TimeLock: start.Add(time.Hour).Unix(),
		Amount:   big.NewInt(500), Beneficiary: receiver,
	})
	require.ErrorIs(t, err, domain.ErrInvalidTimeLock)
	_, err = resolver.Create(ctx, ports.CreateEscrowArgs{
		HashLock: htlc.Commit(secret),
		TimeLock: start.Add(time.Hour).UnixMilli(),
		Amount:   big.NewInt(500),
	})
	require.ErrorIs(t, err, domain.ErrInvalidDestinationAddress)

	rcpt, err := resolver.Create(ctx, ports.CreateEscrowArgs{
		HashLock:    htlc.Commit(secret),
		TimeLock:    start.Add(time.Hour).UnixMilli(),
		Amount:      big.NewInt(500),
		Beneficiary: receiver,
		OrderID:     "order",
		ClaimAmount: big.NewInt(600_000),
	})
	require.NoError(t, err)

	_, err = stranger.FillPartial(ctx, rcpt.EscrowID, big.NewInt(500), secret)
	require.NoError(t, err)
	require.Equal(t, "500", network.BalanceOf(domain.ChainDestination, receiver).String())
	require.Zero(t, network.BalanceOf(domain.ChainDestination, stranger.Address()).Sign())

	escrows, err := stranger.FindEscrows(ctx, htlc.Commit(secret))
	require.NoError(t, err)
	require.Len(t, escrows, 1)
	require.Equal(t, "order", escrows[0].OrderID)
	require.Equal(t, "600000", escrows[0].ClaimAmount.String())
}

func TestFaults(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.network.FailNext(domain.ChainSource, simchain.OpCreate, domain.ErrNodeUnavailable)
	_, err := f.maker.Create(ctx, ports.CreateEscrowArgs{
		HashLock: f.hashLock, TimeLock: start.Add(time.Hour).Unix(), Amount: big.NewInt(10),
	})
	require.ErrorIs(t, err, domain.ErrNodeUnavailable)
	require.Empty(t, f.network.Escrows(domain.ChainSource))

	f.network.LoseNextResponse(domain.ChainSource, simchain.OpCreate)
	_, err = f.maker.Create(ctx, ports.CreateEscrowArgs{
		HashLock: f.hashLock, TimeLock: start.Add(time.Hour).Unix(), Amount: big.NewInt(10),
	})
	require.ErrorIs(t, err, domain.ErrRPCTimeout)
	escrows, err := f.maker.FindEscrows(ctx, f.hashLock)
	require.NoError(t, err)
	require.Len(t, escrows, 1)

	f.network.DelayReceipts(1)
	rcpt, err := f.resolver.FillPartial(ctx, escrows[0].ID, big.NewInt(10), f.secret)
	require.NoError(t, err)
	require.True(t, rcpt.IsPending())
	status, err := f.resolver.TxStatus(ctx, rcpt.TxHash)
	require.NoError(t, err)
	require.Equal(t, domain.TxStatusPending, status)
	status, err = f.resolver.TxStatus(ctx, rcpt.TxHash)
	require.NoError(t, err)
	require.Equal(t, domain.TxStatusConfirmed, status)

	f.network.FailNext(domain.ChainSource, simchain.OpRead, domain.ErrRPCTimeout)
	_, err = f.maker.Balance(ctx)
	require.ErrorIs(t, err, domain.ErrRPCTimeout)
	balance, err := f.maker.Balance(ctx)
	require.NoError(t, err)
	require.Equal(t, "999990", balance.String())
}
