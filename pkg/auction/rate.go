// Package auction implements the Dutch auction rate schedule of an order and
// the integer conversions between the smallest units of the two swapped
// assets.
package auction

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNilAmount          = errors.New("amount must not be nil")
	ErrNegativeAmount     = errors.New("amount must not be negative")
	ErrInvalidRate        = errors.New("rate must be positive")
	ErrRateIncreasing     = errors.New("auction end rate must not exceed start rate")
	ErrInvalidAuctionTime = errors.New("auction end time must not precede start time")

	ten = big.NewInt(10)
)

// AuctionRate returns the rate at time now of a schedule that moves linearly
// from startRate at startTime to endRate at endTime. Outside the window the
// rate is held at the nearest bound, and a zero-length window jumps straight
// to endRate.
func AuctionRate(
	startRate, endRate decimal.Decimal, startTime, endTime, now time.Time,
) decimal.Decimal {
	if !endTime.After(startTime) {
		return endRate
	}
	if !now.After(startTime) {
		return startRate
	}
	if !now.Before(endTime) {
		return endRate
	}

	elapsed := decimal.NewFromInt(now.Sub(startTime).Milliseconds())
	window := decimal.NewFromInt(endTime.Sub(startTime).Milliseconds())
	if window.IsZero() {
		return endRate
	}

	delta := startRate.Sub(endRate).Mul(elapsed).Div(window)
	return startRate.Sub(delta)
}

// Convert returns amount*rate expressed in the smallest unit of the target
// asset, rounded down. The rate is in whole target units per whole source
// unit.
func Convert(
	amount *big.Int, rate decimal.Decimal, fromDecimals, toDecimals uint8,
) (*big.Int, error) {
	if err := validate(amount, rate); err != nil {
		return nil, err
	}

	num := new(big.Int).Mul(amount, rate.Coefficient())
	den := big.NewInt(1)

	exp := int64(rate.Exponent()) + int64(toDecimals) - int64(fromDecimals)
	scale(num, den, exp)

	return num.Quo(num, den), nil
}

// ConvertBack is the inverse of Convert: it returns the smallest source amount
// that converts to at least the given target amount at rate.
func ConvertBack(
	amount *big.Int, rate decimal.Decimal, fromDecimals, toDecimals uint8,
) (*big.Int, error) {
	if err := validate(amount, rate); err != nil {
		return nil, err
	}

	num := new(big.Int).Set(amount)
	den := new(big.Int).Set(rate.Coefficient())

	exp := -int64(rate.Exponent()) + int64(fromDecimals) - int64(toDecimals)
	scale(num, den, exp)

	return ceilDiv(num, den), nil
}

func validate(amount *big.Int, rate decimal.Decimal) error {
	if amount == nil {
		return ErrNilAmount
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if !rate.IsPositive() {
		return ErrInvalidRate
	}
	return nil
}

func scale(num, den *big.Int, exp int64) {
	if exp == 0 {
		return
	}
	if exp > 0 {
		num.Mul(num, new(big.Int).Exp(ten, big.NewInt(exp), nil))
		return
	}
	den.Mul(den, new(big.Int).Exp(ten, big.NewInt(-exp), nil))
}

func ceilDiv(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// Auction is the rate schedule attached to an order.
type Auction struct {
	StartRate decimal.Decimal
	EndRate   decimal.Decimal
	StartTime time.Time
	EndTime   time.Time
}

// New returns a schedule starting now and lasting for the given duration.
func New(startRate, endRate decimal.Decimal, now time.Time, duration time.Duration) (Auction, error) {
	a := Auction{
		StartRate: startRate,
		EndRate:   endRate,
		StartTime: now,
		EndTime:   now.Add(duration),
	}
	if err := a.Validate(); err != nil {
		return Auction{}, err
	}
	return a, nil
}

// RateAt returns the auction rate at the given time.
func (a Auction) RateAt(now time.Time) decimal.Decimal {
	return AuctionRate(a.StartRate, a.EndRate, a.StartTime, a.EndTime, now)
}

func (a Auction) Validate() error {
	if !a.StartRate.IsPositive() || !a.EndRate.IsPositive() {
		return ErrInvalidRate
	}
	if a.EndRate.GreaterThan(a.StartRate) {
		return ErrRateIncreasing
	}
	if a.EndTime.Before(a.StartTime) {
		return ErrInvalidAuctionTime
	}
	return nil
}

func (a Auction) String() string {
	return fmt.Sprintf(
		"%s -> %s over %s", a.StartRate, a.EndRate, a.EndTime.Sub(a.StartTime),
	)
}
