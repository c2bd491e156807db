package mathutil

import "math/big"

// LessBasisPoints returns amount reduced by bps basis points (ie. 25 = 0.25%),
// rounding the reduction up so that the result never exceeds the exact value.
func LessBasisPoints(amount *big.Int, bps uint64) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	cut := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	cut = ceilDiv(cut, TenThousands)
	return Sub(amount, cut)
}

// PlusBasisPoints returns amount increased by bps basis points, rounding the
// increment down.
func PlusBasisPoints(amount *big.Int, bps uint64) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	inc := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	inc.Quo(inc, TenThousands)
	return inc.Add(inc, amount)
}

func ceilDiv(x, y *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(x, y, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
