package httpinterface_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tdex-network/xswapd/internal/core/application/orchestrator"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
)

type mockSwapService struct {
	mock.Mock
}

func (m *mockSwapService) InitiateSwap(
	ctx context.Context, args orchestrator.InitiateSwapArgs,
) (*domain.Swap, error) {
	res := m.Called(ctx, args)
	var swap *domain.Swap
	if a := res.Get(0); a != nil {
		swap = a.(*domain.Swap)
	}
	return swap, res.Error(1)
}

func (m *mockSwapService) GetSwapStatus(ctx context.Context, swapID string) (*domain.Swap, error) {
	res := m.Called(ctx, swapID)
	var swap *domain.Swap
	if a := res.Get(0); a != nil {
		swap = a.(*domain.Swap)
	}
	return swap, res.Error(1)
}

func (m *mockSwapService) ListSwaps(
	ctx context.Context, statuses ...domain.SwapStatus,
) ([]*domain.Swap, error) {
	res := m.Called(ctx, statuses)
	var swaps []*domain.Swap
	if a := res.Get(0); a != nil {
		swaps = a.([]*domain.Swap)
	}
	return swaps, res.Error(1)
}

func (m *mockSwapService) TxHistory(ctx context.Context, swapID string) (domain.TxHistory, error) {
	res := m.Called(ctx, swapID)
	return res.Get(0).(domain.TxHistory), res.Error(1)
}

func (m *mockSwapService) SubscribeLogs(
	ctx context.Context, swapID string, from int,
) (<-chan domain.LogEntry, error) {
	res := m.Called(ctx, swapID, from)
	var ch <-chan domain.LogEntry
	if a := res.Get(0); a != nil {
		ch = a.(<-chan domain.LogEntry)
	}
	return ch, res.Error(1)
}

func (m *mockSwapService) OpenOrders(ctx context.Context) ([]domain.Order, error) {
	res := m.Called(ctx)
	var orders []domain.Order
	if a := res.Get(0); a != nil {
		orders = a.([]domain.Order)
	}
	return orders, res.Error(1)
}

func (m *mockSwapService) RevealedSecret(
	ctx context.Context, orderID string,
) (ports.SecretRelease, error) {
	res := m.Called(ctx, orderID)
	return res.Get(0).(ports.SecretRelease), res.Error(1)
}
