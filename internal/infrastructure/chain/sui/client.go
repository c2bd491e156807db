// Package sui implements the escrow client of the destination chain on top
// of the escrow Move module:
//
//	escrow::create<T>(coin, hash_lock, time_lock_ms, beneficiary, order_id, claim_amount, amount, clock)
//	escrow::fill<T>(escrow, amount, secret, clock)
//	escrow::refund<T>(escrow, clock)
//
// Escrows are shared objects of type escrow::Escrow<T>; every creation emits
// an escrow::EscrowCreated event carrying the escrow id and the hash lock.
package sui

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/pkg/htlc"
)

const (
	module      = "escrow"
	clockObject = "0x6"

	defaultCoinType            = "0x2::sui::SUI"
	defaultReceiptTimeout      = time.Minute
	defaultReceiptPollInterval = time.Second
	eventPageSize              = 50
)

// escrow status codes of the Move module.
const (
	statusCreated uint64 = iota
	statusPartiallyFilled
	statusSettled
	statusRefunded
)

type Config struct {
	// Package is the object id of the published escrow package.
	Package string
	// CoinType is the type argument of the escrowed coin.
	CoinType            string
	RPC                 ports.ChainRPC
	Wallet              ports.Wallet
	ReceiptTimeout      time.Duration
	ReceiptPollInterval time.Duration
	// Now is used for local pre-checks, defaults to time.Now.
	Now func() time.Time
}

type escrowClient struct {
	pkg          string
	coinType     string
	address      string
	rpc          ports.ChainRPC
	wallet       ports.Wallet
	timeout      time.Duration
	pollInterval time.Duration
	now          func() time.Time
}

// NewEscrowClient returns an EscrowClient for the destination chain signing
// with the wallet's destination identity.
func NewEscrowClient(ctx context.Context, cfg Config) (ports.EscrowClient, error) {
	if err := ValidateAddress(cfg.Package); err != nil {
		return nil, fmt.Errorf("invalid escrow package: %w", err)
	}
	if cfg.RPC == nil {
		return nil, fmt.Errorf("missing rpc client")
	}
	if cfg.Wallet == nil {
		return nil, fmt.Errorf("missing wallet")
	}
	if len(cfg.CoinType) <= 0 {
		cfg.CoinType = defaultCoinType
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = defaultReceiptTimeout
	}
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = defaultReceiptPollInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	addr, err := cfg.Wallet.Address(ctx, domain.ChainDestination)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wallet address: %w", err)
	}
	if err := ValidateAddress(addr); err != nil {
		return nil, fmt.Errorf("invalid wallet address: %w", err)
	}

	return &escrowClient{
		pkg:          NormalizeAddress(cfg.Package),
		coinType:     cfg.CoinType,
		address:      NormalizeAddress(addr),
		rpc:          cfg.RPC,
		wallet:       cfg.Wallet,
		timeout:      cfg.ReceiptTimeout,
		pollInterval: cfg.ReceiptPollInterval,
		now:          cfg.Now,
	}, nil
}

func (c *escrowClient) Chain() domain.Chain {
	return domain.ChainDestination
}

func (c *escrowClient) TimeUnit() domain.TimeUnit {
	return domain.Milliseconds
}

func (c *escrowClient) Address() string {
	return c.address
}

func (c *escrowClient) ValidateAddress(addr string) error {
	return ValidateAddress(addr)
}

func (c *escrowClient) Create(
	ctx context.Context, args ports.CreateEscrowArgs,
) (ports.Receipt, error) {
	if args.Amount == nil || args.Amount.Sign() <= 0 {
		return ports.Receipt{}, domain.ErrInvalidAmount
	}
	if args.TimeLock <= c.now().UnixMilli() {
		return ports.Receipt{}, domain.ErrInvalidTimeLock
	}
	if err := ValidateAddress(args.Beneficiary); err != nil {
		return ports.Receipt{}, err
	}
	balance, err := c.Balance(ctx)
	if err != nil {
		return ports.Receipt{}, err
	}
	if balance.Cmp(args.Amount) < 0 {
		return ports.Receipt{}, domain.ErrInsufficientFunds
	}

	claimAmount := "0"
	if args.ClaimAmount != nil {
		claimAmount = args.ClaimAmount.String()
	}
	rcpt, err := c.submit(ctx, "create", []interface{}{
		args.HashLock.Hex(),
		fmt.Sprint(args.TimeLock),
		NormalizeAddress(args.Beneficiary),
		"0x" + hex.EncodeToString([]byte(args.OrderID)),
		claimAmount,
		args.Amount.String(),
		clockObject,
	}, args.Amount)
	if err != nil {
		return rcpt, err
	}
	rcpt.Amount = new(big.Int).Set(args.Amount)
	return rcpt, nil
}

func (c *escrowClient) FillPartial(
	ctx context.Context, escrowID string, amount *big.Int, secret htlc.Secret,
) (ports.Receipt, error) {
	escrow, err := c.GetEscrow(ctx, escrowID)
	if err != nil {
		return ports.Receipt{}, err
	}
	// Dry run the contract rules against the current object state.
	if err := escrow.Clone().ApplyFill(
		c.address, amount, secret, "", c.now(),
	); err != nil {
		return ports.Receipt{}, err
	}

	rcpt, err := c.submit(ctx, "fill", []interface{}{
		escrow.ID, amount.String(), secret.Hex(), clockObject,
	}, nil)
	rcpt.EscrowID = escrow.ID
	if err != nil {
		return rcpt, err
	}
	rcpt.Amount = new(big.Int).Set(amount)
	return rcpt, nil
}

func (c *escrowClient) Refund(
	ctx context.Context, escrowID string,
) (ports.Receipt, error) {
	escrow, err := c.GetEscrow(ctx, escrowID)
	if err != nil {
		return ports.Receipt{}, err
	}
	refunded, err := escrow.Clone().ApplyRefund(c.address, c.now())
	if err != nil {
		return ports.Receipt{}, err
	}

	rcpt, err := c.submit(ctx, "refund", []interface{}{escrow.ID, clockObject}, nil)
	rcpt.EscrowID = escrow.ID
	if err != nil {
		return rcpt, err
	}
	rcpt.Amount = refunded
	return rcpt, nil
}

func (c *escrowClient) GetEscrow(
	ctx context.Context, escrowID string,
) (*domain.Escrow, error) {
	if err := ValidateAddress(escrowID); err != nil {
		return nil, fmt.Errorf("%w: invalid escrow id %s", domain.ErrEscrowNotFound, escrowID)
	}

	var resp objectResponse
	opts := map[string]bool{"showContent": true, "showType": true}
	if err := c.rpc.Call(ctx, &resp, "sui_getObject", escrowID, opts); err != nil {
		return nil, err
	}
	if resp.Error != nil || resp.Data == nil || resp.Data.Content == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrEscrowNotFound, escrowID)
	}
	if !strings.Contains(resp.Data.Content.Type, fmt.Sprintf("::%s::Escrow<", module)) {
		return nil, fmt.Errorf(
			"%w: object %s is a %s", domain.ErrEscrowNotFound, escrowID,
			resp.Data.Content.Type,
		)
	}

	return c.toEscrow(NormalizeAddress(resp.Data.ObjectID), resp.Data.Content.Fields)
}

func (c *escrowClient) FindEscrows(
	ctx context.Context, hashLock htlc.HashLock,
) ([]*domain.Escrow, error) {
	query := map[string]string{
		"MoveEventType": fmt.Sprintf("%s::%s::EscrowCreated", c.pkg, module),
	}

	escrows := make([]*domain.Escrow, 0)
	var cursor interface{}
	for {
		var page eventPage
		if err := c.rpc.Call(
			ctx, &page, "suix_queryEvents", query, cursor, eventPageSize, false,
		); err != nil {
			return nil, err
		}

		for _, ev := range page.Data {
			if len(ev.ParsedJSON.HashLock) != htlc.SecretSize ||
				[htlc.SecretSize]byte(ev.ParsedJSON.HashLock) != hashLock {
				continue
			}
			escrow, err := c.GetEscrow(ctx, NormalizeAddress(ev.ParsedJSON.EscrowID))
			if err != nil {
				return nil, err
			}
			escrows = append(escrows, escrow)
		}

		if !page.HasNextPage || len(page.NextCursor) <= 0 ||
			string(page.NextCursor) == "null" {
			return escrows, nil
		}
		cursor = page.NextCursor
	}
}

func (c *escrowClient) TxStatus(
	ctx context.Context, txHash string,
) (domain.TxStatus, error) {
	block, err := c.txBlock(ctx, txHash)
	if err != nil {
		return "", err
	}
	if block == nil {
		return domain.TxStatusPending, nil
	}
	status, _ := block.status()
	return status, nil
}

func (c *escrowClient) Balance(ctx context.Context) (*big.Int, error) {
	var resp balanceResponse
	if err := c.rpc.Call(ctx, &resp, "suix_getBalance", c.address, c.coinType); err != nil {
		return nil, err
	}
	return resp.TotalBalance.Big(), nil
}

// submit has the wallet sign and execute the Move call and waits for its
// effects. The returned receipt is pending if the effects are not known in
// time.
func (c *escrowClient) submit(
	ctx context.Context, function string, args []interface{}, value *big.Int,
) (ports.Receipt, error) {
	rcpt := ports.Receipt{Chain: domain.ChainDestination}

	digest, err := c.wallet.SignAndSubmit(ctx, ports.TxPayload{
		Chain:    domain.ChainDestination,
		To:       c.pkg,
		Function: fmt.Sprintf("%s::%s::%s", c.pkg, module, function),
		Args:     args,
		TypeArgs: []string{c.coinType},
		Value:    value,
	})
	if err != nil {
		return rcpt, err
	}
	rcpt.TxHash = digest
	rcpt.Status = domain.TxStatusPending

	block, err := c.waitTxBlock(ctx, digest)
	if err != nil {
		if domain.IsTransient(err) || ctx.Err() != nil {
			log.WithError(err).Debugf("effects of tx %s still unknown", digest)
			return rcpt, nil
		}
		return rcpt, err
	}

	status, abortErr := block.status()
	rcpt.Status = status
	if status == domain.TxStatusFailed {
		return rcpt, abortErr
	}
	for _, change := range block.ObjectChanges {
		if change.Type == "created" &&
			strings.Contains(change.ObjectType, fmt.Sprintf("::%s::Escrow<", module)) {
			rcpt.EscrowID = NormalizeAddress(change.ObjectID)
			break
		}
	}
	return rcpt, nil
}

func (c *escrowClient) waitTxBlock(ctx context.Context, digest string) (*txBlock, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		block, err := c.txBlock(ctx, digest)
		if err != nil && !domain.IsTransient(err) {
			return nil, err
		}
		if block != nil {
			return block, nil
		}

		select {
		case <-ctx.Done():
			return nil, domain.ErrReceiptPending
		case <-ticker.C:
		}
	}
}

// txBlock returns nil if the node does not know the transaction yet.
func (c *escrowClient) txBlock(ctx context.Context, digest string) (*txBlock, error) {
	var block *txBlock
	opts := map[string]bool{"showEffects": true, "showObjectChanges": true}
	if err := c.rpc.Call(ctx, &block, "sui_getTransactionBlock", digest, opts); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if block != nil && block.Effects == nil {
		return nil, nil
	}
	return block, nil
}

func (c *escrowClient) toEscrow(id string, f escrowFields) (*domain.Escrow, error) {
	if len(f.HashLock) != htlc.SecretSize {
		return nil, fmt.Errorf("invalid hash lock length %d", len(f.HashLock))
	}

	escrow := &domain.Escrow{
		ID:          id,
		Chain:       domain.ChainDestination,
		Creator:     NormalizeAddress(f.Creator),
		Beneficiary: NormalizeAddress(f.Beneficiary),
		TimeLock:    f.TimeLock.Int64(),
		TotalAmount: f.Total.Big(),
		Remaining:   f.Remaining.Big(),
		OrderID:     string(f.OrderID),
		Status:      toEscrowStatus(f.Status.Big().Uint64()),
		Fills:       make([]domain.Fill, 0, len(f.Fills)),
		CreatedAt:   f.CreatedAt.Int64() / 1000,
	}
	copy(escrow.HashLock[:], f.HashLock)
	if claim := f.ClaimAmount.Big(); claim.Sign() > 0 {
		escrow.ClaimAmount = claim
	}
	if len(f.Secret) == htlc.SecretSize {
		var secret htlc.Secret
		copy(secret[:], f.Secret)
		escrow.RevealedSecret = &secret
	}
	for _, fill := range f.Fills {
		escrow.Fills = append(escrow.Fills, domain.Fill{
			Filler:    NormalizeAddress(fill.Fields.Filler),
			Amount:    fill.Fields.Amount.Big(),
			Timestamp: fill.Fields.Timestamp.Int64() / 1000,
		})
	}
	return escrow, nil
}

func (b *txBlock) status() (domain.TxStatus, error) {
	switch b.Effects.Status.Status {
	case "success":
		return domain.TxStatusConfirmed, nil
	case "failure":
		return domain.TxStatusFailed, mapAbort(b.Effects.Status.Error)
	default:
		return domain.TxStatusPending, nil
	}
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not find") ||
		strings.Contains(msg, "not found")
}

func toEscrowStatus(code uint64) domain.EscrowStatus {
	switch code {
	case statusPartiallyFilled:
		return domain.EscrowStatusPartiallyFilled
	case statusSettled:
		return domain.EscrowStatusSettled
	case statusRefunded:
		return domain.EscrowStatusRefunded
	default:
		return domain.EscrowStatusCreated
	}
}
