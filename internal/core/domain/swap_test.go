package domain_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/pkg/htlc"
)

const thresholdBps = 10

func TestSwapHappyPath(t *testing.T) {
	order, secret := newTestOrder(t, 1_000_000_000_000_000_000, domain.ReleaseOnFullCoverage)
	swap := domain.NewSwap(*order, []byte("sealed"), thresholdBps, now)
	require.Equal(t, domain.SwapStatusInitiated, swap.Status)
	require.Equal(t, order.DestinationExpiry(), swap.RelevantExpiry())

	ok, err := swap.MarkReleasable(now)
	require.ErrorIs(t, err, domain.ErrSwapMustBeWaiting)
	require.False(t, ok)

	ok, err = swap.LockSource("escrow", "0xtx", now)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = swap.LockSource("other", "0xother", now)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "escrow", swap.SourceEscrowID)

	_, err = swap.WaitForDestination(now)
	require.NoError(t, err)

	added := swap.AddDestinationLock(domain.DestinationLock{
		EscrowID:    "d1",
		Creator:     "resolverA",
		Amount:      big.NewInt(600_000_000),
		ClaimAmount: big.NewInt(600_000_000_000_000_000),
	}, now)
	require.True(t, added)
	require.False(t, swap.AddDestinationLock(domain.DestinationLock{EscrowID: "d1"}, now))

	_, err = swap.MarkReleasable(now)
	require.ErrorIs(t, err, domain.ErrSwapInsufficientCoverage)

	swap.AddDestinationLock(domain.DestinationLock{
		EscrowID:    "d2",
		Creator:     "resolverB",
		Amount:      big.NewInt(400_000_000),
		ClaimAmount: big.NewInt(400_000_000_000_000_000),
	}, now)
	ok, err = swap.MarkReleasable(now)
	require.NoError(t, err)
	require.True(t, ok)

	wrong, _ := htlc.Generate()
	_, err = swap.ReleaseSecret(wrong, now)
	require.ErrorIs(t, err, domain.ErrHashLockMismatch)

	ok, err = swap.ReleaseSecret(secret, now)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, swap.IsSecretReleased())
	require.Equal(t, order.SourceExpiry(), swap.RelevantExpiry())

	_, err = swap.WaitForSourceClaims(now)
	require.NoError(t, err)

	_, err = swap.Complete(now)
	require.ErrorIs(t, err, domain.ErrSwapBelowThreshold)

	swap.UpdateSourceClaimed(big.NewInt(1_000_000_000_000_000_000), now)
	require.False(t, swap.UpdateSourceClaimed(big.NewInt(1), now))
	swap.MarkDestinationSettled("d1", big.NewInt(600_000_000), true, now)
	swap.MarkDestinationSettled("d2", big.NewInt(400_000_000), true, now)
	require.Equal(t, "1000000000", swap.DestinationDelivered.String())

	ok, err = swap.Complete(now)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, swap.IsTerminal())

	_, err = swap.Expire(now)
	require.ErrorIs(t, err, domain.ErrSwapTerminal)

	for i, l := range swap.Logs {
		require.Equal(t, i, l.Seq)
	}
	require.Len(t, swap.LogsFrom(len(swap.Logs)-1), 1)
}

func TestSwapReleaseOnFirstLock(t *testing.T) {
	order, _ := newTestOrder(t, 1_000_000_000, domain.ReleaseOnFirstLock)
	swap := domain.NewSwap(*order, nil, thresholdBps, now)
	swap.LockSource("escrow", "0xtx", now)
	swap.WaitForDestination(now)

	swap.AddDestinationLock(domain.DestinationLock{
		EscrowID: "d1", Amount: big.NewInt(1), ClaimAmount: big.NewInt(1),
	}, now)
	ok, err := swap.MarkReleasable(now)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSwapDestinationLocksCappedAtMakingAmount(t *testing.T) {
	order, _ := newTestOrder(t, 1_000_000, domain.ReleaseOnFullCoverage)
	swap := domain.NewSwap(*order, nil, thresholdBps, now)

	require.True(t, swap.AddDestinationLock(domain.DestinationLock{
		EscrowID: "d1", Amount: big.NewInt(1_212_000), ClaimAmount: big.NewInt(600_000),
	}, now))
	require.Equal(t, "400000", swap.UnlockedAmount().String())

	require.False(t, swap.AddDestinationLock(domain.DestinationLock{
		EscrowID: "d2", Amount: big.NewInt(2_020_000), ClaimAmount: big.NewInt(1_000_000),
	}, now))
	require.False(t, swap.AddDestinationLock(domain.DestinationLock{EscrowID: "d3"}, now))
	require.True(t, swap.AddDestinationLock(domain.DestinationLock{
		EscrowID: "d4", Amount: big.NewInt(808_000), ClaimAmount: big.NewInt(400_000),
	}, now))

	require.Len(t, swap.DestinationLocks, 2)
	require.Equal(t, "0", swap.UnlockedAmount().String())
	require.Equal(t, "1000000", swap.CoveredAmount().String())
}

func TestSwapExpiryAndRefund(t *testing.T) {
	order, _ := newTestOrder(t, 1_000_000_000, "")

	t.Run("refund", func(t *testing.T) {
		swap := domain.NewSwap(*order, nil, thresholdBps, now)
		swap.LockSource("escrow", "0xlock", now)

		_, err := swap.Refund("0xrefund", now)
		require.ErrorIs(t, err, domain.ErrSwapMustBeExpired)

		ok, err := swap.Expire(now.Add(time.Hour))
		require.NoError(t, err)
		require.True(t, ok)
		_, err = swap.LockSource("escrow", "0xlock", now)
		require.ErrorIs(t, err, domain.ErrSwapMustBeInitiated)

		ok, err = swap.Refund("0xrefund", now.Add(time.Hour))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, domain.SwapStatusRefunded, swap.Status)
		require.Contains(t, swap.TxHashes(), "0xrefund")

		ok, err = swap.Expire(now)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("settled source during refund", func(t *testing.T) {
		swap := domain.NewSwap(*order, nil, thresholdBps, now)
		swap.LockSource("escrow", "0xlock", now)
		swap.Expire(now)

		ok, err := swap.CompleteSettledSource(now)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, domain.SwapStatusCompleted, swap.Status)
		require.Equal(t, order.MakingAmount.String(), swap.SourceClaimed.String())
	})

	t.Run("attach source escrow found after expiry", func(t *testing.T) {
		swap := domain.NewSwap(*order, nil, thresholdBps, now)
		swap.SetPending(domain.TxActionCreate, "0xlock", now)

		_, err := swap.AttachSourceEscrow("escrow", "0xlock", now)
		require.ErrorIs(t, err, domain.ErrSwapMustBeExpired)

		swap.Expire(now)
		ok, err := swap.AttachSourceEscrow("escrow", "0xlock", now)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "escrow", swap.Order.SourceEscrowID)
		_, pending := swap.Pending(domain.TxActionCreate)
		require.False(t, pending)

		ok, err = swap.AttachSourceEscrow("other", "", now)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestSwapError(t *testing.T) {
	order, _ := newTestOrder(t, 1_000_000_000, "")
	swap := domain.NewSwap(*order, nil, thresholdBps, now)
	swap.LockSource("escrow", "0xlock", now)
	swap.SetPending(domain.TxActionRefund, "0xpending", now)

	err := domain.NewSwapError(swap, domain.ErrNodeUnavailable)
	require.ErrorIs(t, err, domain.ErrNodeUnavailable)
	require.True(t, domain.IsTransient(err))
	require.Contains(t, err.Error(), "SourceLocked")
	require.Contains(t, err.Error(), "0xlock")
	require.Contains(t, err.Error(), "0xpending")
}

func TestTxStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to domain.TxStatus
		allowed  bool
	}{
		{domain.TxStatusPending, domain.TxStatusConfirmed, true},
		{domain.TxStatusPending, domain.TxStatusFailed, true},
		{domain.TxStatusConfirmed, domain.TxStatusConfirmed, true},
		{domain.TxStatusConfirmed, domain.TxStatusPending, false},
		{domain.TxStatusFailed, domain.TxStatusConfirmed, false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}
