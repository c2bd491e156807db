package ports

import (
	"context"
	"math/big"

	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/pkg/htlc"
)

// CreateEscrowArgs are the inputs of EscrowClient.Create. OrderID and
// ClaimAmount are only meaningful on the destination chain.
type CreateEscrowArgs struct {
	HashLock    htlc.HashLock
	TimeLock    int64
	Amount      *big.Int
	Beneficiary string
	OrderID     string
	ClaimAmount *big.Int
}

// Receipt is the outcome of a submitted escrow transaction. A Pending status
// means the outcome is unknown and must be re-queried, never assumed failed.
type Receipt struct {
	Chain    domain.Chain
	TxHash   string
	EscrowID string
	Status   domain.TxStatus
	Amount   *big.Int
}

func (r Receipt) IsConfirmed() bool {
	return r.Status == domain.TxStatusConfirmed
}

func (r Receipt) IsPending() bool {
	return r.Status == domain.TxStatusPending
}

// EscrowClient hides the calling convention of one chain's HTLC escrow
// contract. Mutating calls return typed chain rejections from the domain
// package. Callers re-query with GetEscrow, FindEscrows or TxStatus before
// retrying a mutating call whose outcome is unknown.
type EscrowClient interface {
	Chain() domain.Chain
	TimeUnit() domain.TimeUnit
	// Address returns the signing identity of the client on its chain.
	Address() string
	// ValidateAddress returns an error if addr is not a valid address on
	// the client's chain.
	ValidateAddress(addr string) error

	Create(ctx context.Context, args CreateEscrowArgs) (Receipt, error)
	FillPartial(
		ctx context.Context, escrowID string, amount *big.Int, secret htlc.Secret,
	) (Receipt, error)
	Refund(ctx context.Context, escrowID string) (Receipt, error)

	GetEscrow(ctx context.Context, escrowID string) (*domain.Escrow, error)
	FindEscrows(ctx context.Context, hashLock htlc.HashLock) ([]*domain.Escrow, error)
	TxStatus(ctx context.Context, txHash string) (domain.TxStatus, error)
	Balance(ctx context.Context) (*big.Int, error)
}
