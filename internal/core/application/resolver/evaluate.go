package resolver

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/pkg/auction"
	"github.com/tdex-network/xswapd/pkg/mathutil"
)

// Decision is the outcome of the evaluation of an order.
type Decision struct {
	Skip   bool
	Reason string
	// SourceAmount is the slice of the making amount to claim.
	SourceAmount *big.Int
	// DestinationAmount is the amount to lock for the receiver.
	DestinationAmount *big.Int
	Rate              decimal.Decimal
}

func skip(format string, args ...interface{}) Decision {
	return Decision{Skip: true, Reason: fmt.Sprintf(format, args...)}
}

// Evaluate decides whether to fill the part of the order not yet covered by
// destination escrows. The fill is profitable if the destination amount
// owed at the current auction rate is lower than the value of the claimed
// source slice at marketRate, net of minMarginBps.
func Evaluate(
	order *domain.Order, covered *big.Int, marketRate decimal.Decimal,
	maxFillAmount *big.Int, minMarginBps uint64, now time.Time,
) Decision {
	remaining := mathutil.Sub(order.MakingAmount, mathutil.Clone(covered))
	if remaining.Sign() <= 0 {
		return skip("order fully covered")
	}

	slice := remaining
	if mathutil.IsPositive(maxFillAmount) {
		slice = mathutil.Min(remaining, maxFillAmount)
	}

	rate := order.RateAt(now)
	cost, err := order.DestinationAmountAt(slice, now)
	if err != nil {
		return skip("cannot price slice: %s", err)
	}
	value, err := auction.Convert(
		slice, marketRate, order.SourceAsset.Decimals, order.DestinationAsset.Decimals,
	)
	if err != nil {
		return skip("cannot value slice: %s", err)
	}

	if cost.Cmp(mathutil.LessBasisPoints(value, minMarginBps)) > 0 || cost.Cmp(value) >= 0 {
		return skip("unprofitable at rate %s: cost %s, value %s", rate, cost, value)
	}

	return Decision{
		SourceAmount:      slice,
		DestinationAmount: cost,
		Rate:              rate,
	}
}
