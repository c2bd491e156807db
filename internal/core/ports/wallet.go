package ports

import (
	"context"
	"math/big"

	"github.com/tdex-network/xswapd/internal/core/domain"
)

// TxPayload is an unsigned contract call. EVM calls carry ABI encoded Data,
// Sui Move calls carry Function ("package::module::function"), TypeArgs and
// Args.
type TxPayload struct {
	Chain    domain.Chain
	To       string
	Function string
	Data     []byte
	Args     []interface{}
	TypeArgs []string
	Value    *big.Int
}

// Wallet is the external signing identity provider. Failures are reported
// as domain.ErrSigningRejected or domain.ErrWalletDisconnected.
type Wallet interface {
	Address(ctx context.Context, chain domain.Chain) (string, error)
	SignAndSubmit(ctx context.Context, payload TxPayload) (string, error)
}
