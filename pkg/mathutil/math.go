package mathutil

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	// TenThousands is the basis point denominator.
	TenThousands = big.NewInt(10000)

	bigZero = big.NewInt(0)
)

// ParseAmount parses a base-10 integer amount expressed in smallest units.
func ParseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return n, nil
}

// IsPositive returns whether x is not nil and strictly greater than zero.
func IsPositive(x *big.Int) bool {
	return x != nil && x.Sign() > 0
}

// Min returns a copy of the smaller of x and y.
func Min(x, y *big.Int) *big.Int {
	if x.Cmp(y) <= 0 {
		return new(big.Int).Set(x)
	}
	return new(big.Int).Set(y)
}

// Max returns a copy of the bigger of x and y.
func Max(x, y *big.Int) *big.Int {
	if x.Cmp(y) >= 0 {
		return new(big.Int).Set(x)
	}
	return new(big.Int).Set(y)
}

// Sum adds up the given amounts. Nil values are skipped.
func Sum(amounts ...*big.Int) *big.Int {
	z := new(big.Int)
	for _, a := range amounts {
		if a != nil {
			z.Add(z, a)
		}
	}
	return z
}

// Sub returns x - y, floored at zero.
func Sub(x, y *big.Int) *big.Int {
	z := new(big.Int).Sub(x, y)
	if z.Cmp(bigZero) < 0 {
		return new(big.Int)
	}
	return z
}

// Clone returns a copy of x, or zero if x is nil.
func Clone(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}

// ToDecimal converts an amount in smallest units into a decimal number of
// whole units. For display only.
func ToDecimal(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}
