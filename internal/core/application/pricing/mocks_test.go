package pricing_test

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) GetUSDPrice(
	ctx context.Context, chainID, token string,
) (decimal.Decimal, error) {
	args := m.Called(ctx, chainID, token)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}
