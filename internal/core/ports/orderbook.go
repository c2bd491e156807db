package ports

import (
	"context"

	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/pkg/htlc"
)

// SecretRelease is the publication of the secret of an order. EscrowIDs
// lists the destination escrows the maker accepted and settles, resolvers
// whose escrow is not listed must not claim the source escrow.
type SecretRelease struct {
	OrderID   string
	HashLock  htlc.HashLock
	Secret    htlc.Secret
	EscrowIDs []string
}

// OrderBook is the channel between the swap initiator and resolvers.
type OrderBook interface {
	PublishOrder(ctx context.Context, order domain.Order) error
	PublishSecret(ctx context.Context, release SecretRelease) error
	// SubscribeOrders streams published orders until ctx is done.
	SubscribeOrders(ctx context.Context) (<-chan domain.Order, error)
	// SubscribeSecrets streams released secrets until ctx is done.
	SubscribeSecrets(ctx context.Context) (<-chan SecretRelease, error)
	Close()
}
