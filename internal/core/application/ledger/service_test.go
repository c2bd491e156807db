package ledger_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/xswapd/internal/core/application/ledger"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/infrastructure/storage/db/inmemory"
)

func newService(t *testing.T) *ledger.Service {
	now := time.Unix(1700000000, 0)
	svc, err := ledger.NewService(inmemory.NewTxRecordRepositoryImpl(), func() time.Time {
		now = now.Add(time.Second)
		return now
	})
	require.NoError(t, err)
	return svc
}

func TestRecordAndHistory(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := context.Background()

	records := []domain.TxRecord{
		{
			SwapID: "swap", Chain: domain.ChainSource, Action: domain.TxActionCreate,
			TxHash: "0x1", Direction: domain.TxDirectionSent, Amount: big.NewInt(1000),
		},
		{
			SwapID: "swap", Chain: domain.ChainDestination, Action: domain.TxActionSettle,
			TxHash: "0x2", Direction: domain.TxDirectionReceived, Amount: big.NewInt(600),
		},
		{
			SwapID: "swap", Chain: domain.ChainDestination, Action: domain.TxActionSettle,
			TxHash: "0x3", Direction: domain.TxDirectionReceived, Amount: big.NewInt(400),
			Status: domain.TxStatusConfirmed,
		},
		{
			SwapID: "other", Chain: domain.ChainSource, Action: domain.TxActionCreate,
			TxHash: "0x4", Direction: domain.TxDirectionSent, Amount: big.NewInt(1),
		},
	}
	for _, r := range records {
		require.NoError(t, svc.Record(ctx, r))
	}
	// idempotent on chain and hash
	dup := records[0]
	dup.Amount = big.NewInt(1)
	require.NoError(t, svc.Record(ctx, dup))

	history, err := svc.History(ctx, "swap")
	require.NoError(t, err)
	require.Len(t, history.Sent, 1)
	require.Len(t, history.Received, 2)
	require.Equal(t, "1000", history.Sent[0].Amount.String())
	require.Equal(t, domain.TxStatusPending, history.Sent[0].Status)
	require.Equal(t, "0x2", history.Received[0].TxHash)
	require.Equal(t, "0x3", history.Received[1].TxHash)

	pending, err := svc.Pending(ctx, "swap", domain.TxActionSettle)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "0x2", pending[0].TxHash)

	require.NoError(t, svc.UpdateStatus(ctx, domain.ChainDestination, "0x2", domain.TxStatusConfirmed))
	pending, err = svc.Pending(ctx, "swap", domain.TxActionSettle)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Record(ctx, domain.TxRecord{
		SwapID: "swap", Chain: domain.ChainSource, Action: domain.TxActionRefund,
		TxHash: "0x1", Direction: domain.TxDirectionReceived,
	}))

	require.NoError(t, svc.UpdateStatus(ctx, domain.ChainSource, "0x1", domain.TxStatusFailed))
	require.NoError(t, svc.UpdateStatus(ctx, domain.ChainSource, "0x1", domain.TxStatusFailed))
	require.ErrorIs(
		t, svc.UpdateStatus(ctx, domain.ChainSource, "0x1", domain.TxStatusConfirmed),
		domain.ErrInvalidTxStatusTransition,
	)
	require.ErrorIs(
		t, svc.UpdateStatus(ctx, domain.ChainSource, "0x9", domain.TxStatusConfirmed),
		domain.ErrTxRecordNotFound,
	)
}

func TestRecordValidation(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	tests := []domain.TxRecord{
		{Chain: domain.ChainSource, TxHash: "0x1"},
		{SwapID: "swap", Chain: domain.ChainSource},
		{SwapID: "swap", Chain: "btc", TxHash: "0x1"},
	}
	for _, r := range tests {
		require.ErrorIs(t, svc.Record(context.Background(), r), ledger.ErrInvalidRecord)
	}

	_, err := ledger.NewService(nil, nil)
	require.Error(t, err)
}
