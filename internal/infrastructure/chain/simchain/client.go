package simchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/pkg/htlc"
)

type client struct {
	network *Network
	chain   domain.Chain
	address string
}

func (c *client) Chain() domain.Chain {
	return c.chain
}

func (c *client) TimeUnit() domain.TimeUnit {
	return c.chain.TimeUnit()
}

func (c *client) Address() string {
	return c.address
}

func (c *client) ValidateAddress(addr string) error {
	return validateAddress(c.chain, addr)
}

func (c *client) Create(
	ctx context.Context, args ports.CreateEscrowArgs,
) (ports.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return ports.Receipt{}, err
	}
	n := c.network
	n.lock.Lock()
	defer n.lock.Unlock()

	f, hasFault := n.popFault(c.chain, OpCreate)
	if hasFault && !f.applied {
		return ports.Receipt{}, f.err
	}

	if c.chain == domain.ChainDestination || len(args.Beneficiary) > 0 {
		if err := validateAddress(c.chain, args.Beneficiary); err != nil {
			return ports.Receipt{}, err
		}
	}
	escrow, err := domain.NewEscrow(domain.EscrowArgs{
		ID:          n.nextID(c.chain, "escrow"),
		Chain:       c.chain,
		Creator:     c.address,
		Beneficiary: args.Beneficiary,
		HashLock:    args.HashLock,
		TimeLock:    args.TimeLock,
		Amount:      args.Amount,
		ClaimAmount: args.ClaimAmount,
		OrderID:     args.OrderID,
		Now:         n.now(),
	})
	if err != nil {
		return ports.Receipt{}, err
	}
	if err := n.debit(c.chain, c.address, args.Amount); err != nil {
		return ports.Receipt{}, err
	}

	l := n.ledgers[c.chain]
	l.escrows[escrow.ID] = escrow
	l.order = append(l.order, escrow.ID)

	hash, status := n.recordTx(c.chain)
	rcpt := ports.Receipt{
		Chain:    c.chain,
		TxHash:   hash,
		EscrowID: escrow.ID,
		Status:   status,
		Amount:   new(big.Int).Set(args.Amount),
	}
	if hasFault {
		return ports.Receipt{}, f.err
	}
	return rcpt, nil
}

func (c *client) FillPartial(
	ctx context.Context, escrowID string, amount *big.Int, secret htlc.Secret,
) (ports.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return ports.Receipt{}, err
	}
	n := c.network
	n.lock.Lock()
	defer n.lock.Unlock()

	f, hasFault := n.popFault(c.chain, OpFill)
	if hasFault && !f.applied {
		return ports.Receipt{}, f.err
	}

	escrow, err := n.escrow(c.chain, escrowID)
	if err != nil {
		return ports.Receipt{}, err
	}
	hash := n.nextID(c.chain, "tx")
	if err := escrow.ApplyFill(c.address, amount, secret, hash, n.now()); err != nil {
		return ports.Receipt{}, err
	}
	n.credit(c.chain, escrow.Payee(c.address), amount)

	// the fill carries its own hash, record it with the same one.
	status := domain.TxStatusConfirmed
	t := &tx{status: status}
	if n.pending > 0 {
		n.pending--
		t.pendingQueries = 1
		status = domain.TxStatusPending
	}
	n.ledgers[c.chain].txs[hash] = t

	if hasFault {
		return ports.Receipt{}, f.err
	}
	return ports.Receipt{
		Chain:    c.chain,
		TxHash:   hash,
		EscrowID: escrowID,
		Status:   status,
		Amount:   new(big.Int).Set(amount),
	}, nil
}

func (c *client) Refund(
	ctx context.Context, escrowID string,
) (ports.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return ports.Receipt{}, err
	}
	n := c.network
	n.lock.Lock()
	defer n.lock.Unlock()

	f, hasFault := n.popFault(c.chain, OpRefund)
	if hasFault && !f.applied {
		return ports.Receipt{}, f.err
	}

	escrow, err := n.escrow(c.chain, escrowID)
	if err != nil {
		return ports.Receipt{}, err
	}
	refunded, err := escrow.ApplyRefund(c.address, n.now())
	if err != nil {
		return ports.Receipt{}, err
	}
	n.credit(c.chain, escrow.Creator, refunded)

	hash, status := n.recordTx(c.chain)
	if hasFault {
		return ports.Receipt{}, f.err
	}
	return ports.Receipt{
		Chain:    c.chain,
		TxHash:   hash,
		EscrowID: escrowID,
		Status:   status,
		Amount:   refunded,
	}, nil
}

func (c *client) GetEscrow(
	ctx context.Context, escrowID string,
) (*domain.Escrow, error) {
	if err := c.beforeRead(ctx); err != nil {
		return nil, err
	}
	n := c.network
	n.lock.Lock()
	defer n.lock.Unlock()

	escrow, err := n.escrow(c.chain, escrowID)
	if err != nil {
		return nil, err
	}
	return escrow.Clone(), nil
}

func (c *client) FindEscrows(
	ctx context.Context, hashLock htlc.HashLock,
) ([]*domain.Escrow, error) {
	if err := c.beforeRead(ctx); err != nil {
		return nil, err
	}
	n := c.network
	n.lock.Lock()
	defer n.lock.Unlock()

	l := n.ledgers[c.chain]
	escrows := make([]*domain.Escrow, 0)
	for _, id := range l.order {
		if e := l.escrows[id]; e.HashLock == hashLock {
			escrows = append(escrows, e.Clone())
		}
	}
	return escrows, nil
}

func (c *client) TxStatus(ctx context.Context, txHash string) (domain.TxStatus, error) {
	if err := c.beforeRead(ctx); err != nil {
		return "", err
	}
	n := c.network
	n.lock.Lock()
	defer n.lock.Unlock()

	t, ok := n.ledgers[c.chain].txs[txHash]
	if !ok {
		return domain.TxStatusPending, nil
	}
	if t.pendingQueries > 0 {
		t.pendingQueries--
		return domain.TxStatusPending, nil
	}
	return t.status, nil
}

func (c *client) Balance(ctx context.Context) (*big.Int, error) {
	if err := c.beforeRead(ctx); err != nil {
		return nil, err
	}
	return c.network.BalanceOf(c.chain, c.address), nil
}

func (c *client) beforeRead(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := c.network
	n.lock.Lock()
	defer n.lock.Unlock()

	if f, ok := n.popFault(c.chain, OpRead); ok {
		return f.err
	}
	return nil
}

func (n *Network) escrow(chain domain.Chain, id string) (*domain.Escrow, error) {
	escrow, ok := n.ledgers[chain].escrows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrEscrowNotFound, id)
	}
	return escrow, nil
}
