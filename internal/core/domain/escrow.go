package domain

import (
	"math/big"
	"time"

	"github.com/tdex-network/xswapd/pkg/htlc"
	"github.com/tdex-network/xswapd/pkg/mathutil"
)

// EscrowStatus is the on-chain status of an escrow.
type EscrowStatus string

const (
	EscrowStatusCreated         EscrowStatus = "created"
	EscrowStatusPartiallyFilled EscrowStatus = "partially_filled"
	EscrowStatusSettled         EscrowStatus = "settled"
	EscrowStatusRefunded        EscrowStatus = "refunded"
)

// Fill is one claim against the remaining amount of an escrow.
type Fill struct {
	Filler    string
	Amount    *big.Int
	TxHash    string
	Timestamp int64
}

// Escrow mirrors an HTLC escrow object as read from one chain.
//
// Source escrows pay each filler, destination escrows always pay their
// Beneficiary whoever presents the secret. ClaimAmount and OrderID are only
// set for destination escrows and tell how much of the order's making amount
// the lock pays for.
type Escrow struct {
	ID             string
	Chain          Chain
	Creator        string
	Beneficiary    string
	HashLock       htlc.HashLock
	TimeLock       int64
	TotalAmount    *big.Int
	Remaining      *big.Int
	ClaimAmount    *big.Int
	OrderID        string
	Status         EscrowStatus
	Fills          []Fill
	RevealedSecret *htlc.Secret
	CreatedAt      int64
}

// EscrowArgs are the inputs of NewEscrow.
type EscrowArgs struct {
	ID          string
	Chain       Chain
	Creator     string
	Beneficiary string
	HashLock    htlc.HashLock
	TimeLock    int64
	Amount      *big.Int
	ClaimAmount *big.Int
	OrderID     string
	Now         time.Time
}

// NewEscrow applies the creation rules of the escrow contract.
func NewEscrow(args EscrowArgs) (*Escrow, error) {
	if !mathutil.IsPositive(args.Amount) {
		return nil, ErrInvalidAmount
	}
	if !args.Chain.TimeUnit().ToTime(args.TimeLock).After(args.Now) {
		return nil, ErrInvalidTimeLock
	}
	return &Escrow{
		ID:          args.ID,
		Chain:       args.Chain,
		Creator:     args.Creator,
		Beneficiary: args.Beneficiary,
		HashLock:    args.HashLock,
		TimeLock:    args.TimeLock,
		TotalAmount: new(big.Int).Set(args.Amount),
		Remaining:   new(big.Int).Set(args.Amount),
		ClaimAmount: mathutil.Clone(args.ClaimAmount),
		OrderID:     args.OrderID,
		Status:      EscrowStatusCreated,
		Fills:       make([]Fill, 0),
		CreatedAt:   args.Now.Unix(),
	}, nil
}

func (e *Escrow) IsTerminal() bool {
	return e.Status == EscrowStatusSettled || e.Status == EscrowStatusRefunded
}

func (e *Escrow) IsSettled() bool {
	return e.Status == EscrowStatusSettled
}

func (e *Escrow) IsRefunded() bool {
	return e.Status == EscrowStatusRefunded
}

// Expiry returns the time lock as a time.Time.
func (e *Escrow) Expiry() time.Time {
	return e.Chain.TimeUnit().ToTime(e.TimeLock)
}

// IsExpired returns whether the time lock has passed at the given time.
func (e *Escrow) IsExpired(now time.Time) bool {
	return !now.Before(e.Expiry())
}

// FilledAmount returns the sum of all fills.
func (e *Escrow) FilledAmount() *big.Int {
	total := new(big.Int)
	for _, f := range e.Fills {
		total.Add(total, f.Amount)
	}
	return total
}

// Payee returns who receives the funds of a fill executed by filler.
func (e *Escrow) Payee(filler string) string {
	if len(e.Beneficiary) > 0 {
		return e.Beneficiary
	}
	return filler
}

// ApplyFill executes a fill of the given amount presenting secret. The sum of
// all fills never exceeds the total amount.
func (e *Escrow) ApplyFill(
	filler string, amount *big.Int, secret htlc.Secret, txHash string, now time.Time,
) error {
	if err := e.terminalError(); err != nil {
		return err
	}
	if !mathutil.IsPositive(amount) {
		return ErrInvalidAmount
	}
	if !htlc.Verify(secret, e.HashLock) {
		return ErrSecretMismatch
	}
	if e.IsExpired(now) {
		return ErrExpired
	}
	if amount.Cmp(e.Remaining) > 0 {
		return ErrOverFill
	}

	e.Remaining = new(big.Int).Sub(e.Remaining, amount)
	e.Fills = append(e.Fills, Fill{
		Filler:    filler,
		Amount:    new(big.Int).Set(amount),
		TxHash:    txHash,
		Timestamp: now.Unix(),
	})
	if e.RevealedSecret == nil {
		s := secret
		e.RevealedSecret = &s
	}
	if e.Remaining.Sign() == 0 {
		e.Status = EscrowStatusSettled
	} else {
		e.Status = EscrowStatusPartiallyFilled
	}
	return nil
}

// ApplyRefund returns the remaining amount to the creator once the time lock
// has passed.
func (e *Escrow) ApplyRefund(caller string, now time.Time) (*big.Int, error) {
	if err := e.terminalError(); err != nil {
		return nil, err
	}
	if caller != e.Creator {
		return nil, ErrUnauthorized
	}
	if !e.IsExpired(now) {
		return nil, ErrNotYetExpired
	}

	refunded := new(big.Int).Set(e.Remaining)
	e.Status = EscrowStatusRefunded
	return refunded, nil
}

func (e *Escrow) terminalError() error {
	switch e.Status {
	case EscrowStatusSettled:
		return ErrEscrowSettled
	case EscrowStatusRefunded:
		return ErrEscrowRefunded
	default:
		return nil
	}
}

// Clone returns a deep copy of the escrow.
func (e *Escrow) Clone() *Escrow {
	c := *e
	c.TotalAmount = mathutil.Clone(e.TotalAmount)
	c.Remaining = mathutil.Clone(e.Remaining)
	if e.ClaimAmount != nil {
		c.ClaimAmount = mathutil.Clone(e.ClaimAmount)
	}
	c.Fills = make([]Fill, 0, len(e.Fills))
	for _, f := range e.Fills {
		f.Amount = mathutil.Clone(f.Amount)
		c.Fills = append(c.Fills, f)
	}
	if e.RevealedSecret != nil {
		s := *e.RevealedSecret
		c.RevealedSecret = &s
	}
	return &c
}
