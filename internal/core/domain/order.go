package domain

import (
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tdex-network/xswapd/pkg/auction"
	"github.com/tdex-network/xswapd/pkg/htlc"
	"github.com/tdex-network/xswapd/pkg/mathutil"
)

var salts = &saltGenerator{}

// ReleasePolicy tells when the maker releases the secret.
type ReleasePolicy string

const (
	// ReleaseOnFullCoverage releases the secret once validated destination
	// locks cover the whole order, net of the completion threshold.
	ReleaseOnFullCoverage ReleasePolicy = "full"
	// ReleaseOnFirstLock releases the secret as soon as one valid destination
	// lock is observed.
	ReleaseOnFirstLock ReleasePolicy = "any"
)

func (p ReleasePolicy) IsValid() bool {
	return p == ReleaseOnFullCoverage || p == ReleaseOnFirstLock
}

// Order is the immutable swap intent published to resolvers.
type Order struct {
	ID                  string
	Salt                uint64
	Maker               string
	Receiver            string
	SourceAsset         Asset
	DestinationAsset    Asset
	MakingAmount        *big.Int
	TakingAmount        *big.Int
	HashLock            htlc.HashLock
	Auction             auction.Auction
	SourceTimeLock      int64
	DestinationTimeLock int64
	SourceEscrowID      string
	ReleasePolicy       ReleasePolicy
	CreatedAt           int64
}

// OrderArgs are the inputs of NewOrder.
type OrderArgs struct {
	Maker               string
	Receiver            string
	SourceAsset         Asset
	DestinationAsset    Asset
	MakingAmount        *big.Int
	TakingAmount        *big.Int
	HashLock            htlc.HashLock
	Auction             auction.Auction
	SourceTimeLock      int64
	DestinationTimeLock int64
	SafetyMargin        time.Duration
	ReleasePolicy       ReleasePolicy
	Now                 time.Time
}

// NewOrder validates the given args and returns a new order with a fresh id
// and salt. Unless given, the taking amount is the making amount converted at
// the auction end rate, ie. the least the receiver accepts.
func NewOrder(args OrderArgs) (*Order, error) {
	if !mathutil.IsPositive(args.MakingAmount) {
		return nil, ErrInvalidAmount
	}
	if len(args.Maker) <= 0 {
		return nil, ErrInvalidSourceAddress
	}
	if len(args.Receiver) <= 0 {
		return nil, ErrInvalidDestinationAddress
	}
	if args.HashLock.IsZero() {
		return nil, ErrHashLockMismatch
	}
	if err := args.Auction.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateTimeLocks(
		args.SourceTimeLock, args.DestinationTimeLock, args.SafetyMargin,
	); err != nil {
		return nil, err
	}
	if !ChainSource.TimeUnit().ToTime(args.SourceTimeLock).After(args.Now) ||
		!ChainDestination.TimeUnit().ToTime(args.DestinationTimeLock).After(args.Now) {
		return nil, ErrInvalidTimeLock
	}

	takingAmount := args.TakingAmount
	if takingAmount == nil {
		var err error
		takingAmount, err = auction.Convert(
			args.MakingAmount, args.Auction.EndRate,
			args.SourceAsset.Decimals, args.DestinationAsset.Decimals,
		)
		if err != nil {
			return nil, err
		}
	}
	if !mathutil.IsPositive(takingAmount) {
		return nil, ErrInvalidAmount
	}

	policy := args.ReleasePolicy
	if policy == "" {
		policy = ReleaseOnFullCoverage
	}

	return &Order{
		ID:                  uuid.New().String(),
		Salt:                salts.next(args.Now),
		Maker:               args.Maker,
		Receiver:            args.Receiver,
		SourceAsset:         args.SourceAsset,
		DestinationAsset:    args.DestinationAsset,
		MakingAmount:        new(big.Int).Set(args.MakingAmount),
		TakingAmount:        new(big.Int).Set(takingAmount),
		HashLock:            args.HashLock,
		Auction:             args.Auction,
		SourceTimeLock:      args.SourceTimeLock,
		DestinationTimeLock: args.DestinationTimeLock,
		ReleasePolicy:       policy,
		CreatedAt:           args.Now.Unix(),
	}, nil
}

// ComputeTimeLocks returns the source time lock (seconds) expiring after the
// given duration and the destination time lock (milliseconds) expiring exactly
// one safety margin earlier.
func ComputeTimeLocks(
	now time.Time, sourceLockDuration, safetyMargin time.Duration,
) (int64, int64) {
	src := now.Add(sourceLockDuration).Unix()
	dst := time.Unix(src, 0).Add(-safetyMargin).UnixMilli()
	return src, dst
}

// ValidateTimeLocks checks that the destination lock (milliseconds) expires at
// least one safety margin before the source lock (seconds).
func ValidateTimeLocks(src, dst int64, safetyMargin time.Duration) error {
	if src <= 0 || dst <= 0 {
		return ErrInvalidTimeLock
	}
	dstExpiry := ChainDestination.TimeUnit().ToTime(dst)
	srcExpiry := ChainSource.TimeUnit().ToTime(src)
	if dstExpiry.Add(safetyMargin).After(srcExpiry) {
		return ErrTimeLockOrdering
	}
	return nil
}

// SourceExpiry returns the expiry of the source escrow.
func (o *Order) SourceExpiry() time.Time {
	return ChainSource.TimeUnit().ToTime(o.SourceTimeLock)
}

// DestinationExpiry returns the deadline for destination locks.
func (o *Order) DestinationExpiry() time.Time {
	return ChainDestination.TimeUnit().ToTime(o.DestinationTimeLock)
}

// RateAt returns the auction rate at the given time.
func (o *Order) RateAt(now time.Time) decimal.Decimal {
	return o.Auction.RateAt(now)
}

// DestinationAmount converts a slice of the making amount into the
// destination amount owed at the given rate.
func (o *Order) DestinationAmount(
	sourceAmount *big.Int, rate decimal.Decimal,
) (*big.Int, error) {
	return auction.Convert(
		sourceAmount, rate, o.SourceAsset.Decimals, o.DestinationAsset.Decimals,
	)
}

// MinDestinationAmount is the share of the taking amount owed for a slice of
// the making amount, rounded down.
func (o *Order) MinDestinationAmount(sourceAmount *big.Int) *big.Int {
	if !mathutil.IsPositive(sourceAmount) || !mathutil.IsPositive(o.MakingAmount) {
		return new(big.Int)
	}
	amount := new(big.Int).Mul(sourceAmount, o.TakingAmount)
	return amount.Quo(amount, o.MakingAmount)
}

// DestinationAmountAt is what a resolver must lock on the destination chain
// to claim the given slice of the making amount at time now.
func (o *Order) DestinationAmountAt(
	sourceAmount *big.Int, now time.Time,
) (*big.Int, error) {
	amount, err := o.DestinationAmount(sourceAmount, o.RateAt(now))
	if err != nil {
		return nil, err
	}
	return mathutil.Max(amount, o.MinDestinationAmount(sourceAmount)), nil
}

// SourceAmount is the smallest slice of the making amount worth at least the
// given destination amount at rate.
func (o *Order) SourceAmount(
	destinationAmount *big.Int, rate decimal.Decimal,
) (*big.Int, error) {
	return auction.ConvertBack(
		destinationAmount, rate, o.SourceAsset.Decimals, o.DestinationAsset.Decimals,
	)
}

// CompletionAmount returns amount net of the completion threshold, in basis
// points, tolerated as dust.
func CompletionAmount(amount *big.Int, thresholdBps uint64) *big.Int {
	return mathutil.LessBasisPoints(amount, thresholdBps)
}

// saltGenerator returns strictly increasing salts derived from the
// nanosecond clock.
type saltGenerator struct {
	lock sync.Mutex
	last uint64
}

func (g *saltGenerator) next(now time.Time) uint64 {
	g.lock.Lock()
	defer g.lock.Unlock()

	salt := uint64(now.UnixNano())
	if salt <= g.last {
		salt = g.last + 1
	}
	g.last = salt
	return salt
}
