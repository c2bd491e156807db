// Package evm implements the escrow client of the source chain. Calls are
// ABI encoded by hand against the HTLC escrow contract:
//
//	create(bytes32 hashLock, uint256 timeLock, address beneficiary) payable
//	fill(bytes32 escrowId, uint256 amount, bytes32 secret)
//	refund(bytes32 escrowId)
//	getEscrow(bytes32 escrowId) view returns (address creator,
//	  address beneficiary, bytes32 hashLock, uint256 timeLock,
//	  uint256 totalAmount, uint256 remaining, uint8 status, bytes32 secret)
//	escrowsByHashLock(bytes32 hashLock) view returns (bytes32[])
//
//	event EscrowCreated(bytes32 indexed escrowId, bytes32 indexed hashLock,
//	  address indexed creator, uint256 amount, uint256 timeLock)
//	event EscrowFilled(bytes32 indexed escrowId, address indexed filler,
//	  uint256 amount)
package evm

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
	createSig            = "create(bytes32,uint256,address)"
	fillSig              = "fill(bytes32,uint256,bytes32)"
	refundSig            = "refund(bytes32)"
	getEscrowSig         = "getEscrow(bytes32)"
	escrowsByHashLockSig = "escrowsByHashLock(bytes32)"
	balanceOfSig         = "balanceOf(address)"

	escrowCreatedEvent = "EscrowCreated(bytes32,bytes32,address,uint256,uint256)"
	escrowFilledEvent  = "EscrowFilled(bytes32,address,uint256)"

	zeroAddress = "0x0000000000000000000000000000000000000000"

	defaultReceiptTimeout      = 2 * time.Minute
	defaultReceiptPollInterval = 2 * time.Second
)

// contract status codes returned by getEscrow.
const (
	statusNone uint64 = iota
	statusCreated
	statusPartiallyFilled
	statusSettled
	statusRefunded
)

var (
	escrowCreatedTopic = eventTopic(escrowCreatedEvent)
	escrowFilledTopic  = eventTopic(escrowFilledEvent)
)

type Config struct {
	// Contract is the address of the escrow contract.
	Contract string
	// Token is the optional ERC20 source token, empty for the native asset.
	Token               string
	RPC                 ports.ChainRPC
	Wallet              ports.Wallet
	ReceiptTimeout      time.Duration
	ReceiptPollInterval time.Duration
}

func (c Config) validate() error {
	if err := ValidateAddress(c.Contract); err != nil {
		return fmt.Errorf("invalid escrow contract: %w", err)
	}
	if len(c.Token) > 0 {
		if err := ValidateAddress(c.Token); err != nil {
			return fmt.Errorf("invalid token: %w", err)
		}
	}
	if c.RPC == nil {
		return fmt.Errorf("missing rpc client")
	}
	if c.Wallet == nil {
		return fmt.Errorf("missing wallet")
	}
	return nil
}

type escrowClient struct {
	contract     string
	token        string
	address      string
	rpc          ports.ChainRPC
	wallet       ports.Wallet
	timeout      time.Duration
	pollInterval time.Duration
}

// NewEscrowClient returns an EscrowClient for the source chain signing with
// the wallet's source identity.
func NewEscrowClient(ctx context.Context, cfg Config) (ports.EscrowClient, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = defaultReceiptTimeout
	}
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = defaultReceiptPollInterval
	}

	addr, err := cfg.Wallet.Address(ctx, domain.ChainSource)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wallet address: %w", err)
	}
	if err := ValidateAddress(addr); err != nil {
		return nil, fmt.Errorf("invalid wallet address: %w", err)
	}

	return &escrowClient{
		contract:     cfg.Contract,
		token:        cfg.Token,
		address:      addr,
		rpc:          cfg.RPC,
		wallet:       cfg.Wallet,
		timeout:      cfg.ReceiptTimeout,
		pollInterval: cfg.ReceiptPollInterval,
	}, nil
}

func (c *escrowClient) Chain() domain.Chain {
	return domain.ChainSource
}

func (c *escrowClient) TimeUnit() domain.TimeUnit {
	return domain.Seconds
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
	if args.TimeLock <= time.Now().Unix() {
		return ports.Receipt{}, domain.ErrInvalidTimeLock
	}
	beneficiary := zeroAddress
	if len(args.Beneficiary) > 0 {
		if err := ValidateAddress(args.Beneficiary); err != nil {
			return ports.Receipt{}, err
		}
		beneficiary = args.Beneficiary
	}

	data, err := encodeCall(createSig, args.HashLock, args.TimeLock, beneficiary)
	if err != nil {
		return ports.Receipt{}, err
	}
	rcpt, err := c.submit(ctx, data, args.Amount)
	if err != nil {
		return rcpt, err
	}
	rcpt.Amount = new(big.Int).Set(args.Amount)
	return rcpt, nil
}

func (c *escrowClient) FillPartial(
	ctx context.Context, escrowID string, amount *big.Int, secret htlc.Secret,
) (ports.Receipt, error) {
	id, err := parseEscrowID(escrowID)
	if err != nil {
		return ports.Receipt{}, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ports.Receipt{}, domain.ErrInvalidAmount
	}

	data, err := encodeCall(fillSig, id, amount, secret)
	if err != nil {
		return ports.Receipt{}, err
	}
	rcpt, err := c.submit(ctx, data, nil)
	rcpt.EscrowID = escrowID
	if err != nil {
		return rcpt, err
	}
	rcpt.Amount = new(big.Int).Set(amount)
	return rcpt, nil
}

func (c *escrowClient) Refund(
	ctx context.Context, escrowID string,
) (ports.Receipt, error) {
	id, err := parseEscrowID(escrowID)
	if err != nil {
		return ports.Receipt{}, err
	}
	escrow, err := c.GetEscrow(ctx, escrowID)
	if err != nil {
		return ports.Receipt{}, err
	}

	data, err := encodeCall(refundSig, id)
	if err != nil {
		return ports.Receipt{}, err
	}
	rcpt, err := c.submit(ctx, data, nil)
	rcpt.EscrowID = escrowID
	if err != nil {
		return rcpt, err
	}
	rcpt.Amount = escrow.Remaining
	return rcpt, nil
}

func (c *escrowClient) GetEscrow(
	ctx context.Context, escrowID string,
) (*domain.Escrow, error) {
	id, err := parseEscrowID(escrowID)
	if err != nil {
		return nil, err
	}
	data, err := encodeCall(getEscrowSig, id)
	if err != nil {
		return nil, err
	}

	var out string
	if err := c.rpc.Call(ctx, &out, "eth_call", c.callArgs(data, nil), "latest"); err != nil {
		return nil, mapRevert(err)
	}
	ws, err := words(out)
	if err != nil {
		return nil, err
	}
	if len(ws) < 8 {
		return nil, fmt.Errorf("invalid getEscrow return data")
	}

	status := wordToUint64(ws[6])
	if status == statusNone {
		return nil, fmt.Errorf("%w: %s", domain.ErrEscrowNotFound, escrowID)
	}

	escrow := &domain.Escrow{
		ID:          wordToHex(id),
		Chain:       domain.ChainSource,
		Creator:     wordToAddress(ws[0]),
		TimeLock:    int64(wordToUint64(ws[3])),
		TotalAmount: wordToBig(ws[4]),
		Remaining:   wordToBig(ws[5]),
		Status:      toEscrowStatus(status),
		Fills:       make([]domain.Fill, 0),
	}
	if beneficiary := wordToAddress(ws[1]); !sameAddress(beneficiary, zeroAddress) {
		escrow.Beneficiary = beneficiary
	}
	copy(escrow.HashLock[:], ws[2][:])
	if ws[7] != ([wordSize]byte{}) {
		secret := htlc.Secret(ws[7])
		escrow.RevealedSecret = &secret
	}

	fills, err := c.fills(ctx, id)
	if err != nil {
		return nil, err
	}
	escrow.Fills = fills
	return escrow, nil
}

func (c *escrowClient) FindEscrows(
	ctx context.Context, hashLock htlc.HashLock,
) ([]*domain.Escrow, error) {
	data, err := encodeCall(escrowsByHashLockSig, hashLock)
	if err != nil {
		return nil, err
	}
	var out string
	if err := c.rpc.Call(ctx, &out, "eth_call", c.callArgs(data, nil), "latest"); err != nil {
		return nil, mapRevert(err)
	}
	ids, err := decodeBytes32Array(out)
	if err != nil {
		return nil, err
	}

	escrows := make([]*domain.Escrow, 0, len(ids))
	for _, id := range ids {
		escrow, err := c.GetEscrow(ctx, wordToHex(id))
		if err != nil {
			return nil, err
		}
		escrows = append(escrows, escrow)
	}
	return escrows, nil
}

func (c *escrowClient) TxStatus(
	ctx context.Context, txHash string,
) (domain.TxStatus, error) {
	rcpt, err := c.receipt(ctx, txHash)
	if err != nil {
		return "", err
	}
	if rcpt == nil {
		return domain.TxStatusPending, nil
	}
	return rcpt.status(), nil
}

func (c *escrowClient) Balance(ctx context.Context) (*big.Int, error) {
	var out string
	if len(c.token) <= 0 {
		if err := c.rpc.Call(ctx, &out, "eth_getBalance", c.address, "latest"); err != nil {
			return nil, err
		}
		return hexToBig(out)
	}

	data, err := encodeCall(balanceOfSig, c.address)
	if err != nil {
		return nil, err
	}
	call := map[string]string{"to": c.token, "data": "0x" + hex.EncodeToString(data)}
	if err := c.rpc.Call(ctx, &out, "eth_call", call, "latest"); err != nil {
		return nil, err
	}
	ws, err := words(out)
	if err != nil {
		return nil, err
	}
	if len(ws) < 1 {
		return nil, fmt.Errorf("invalid balanceOf return data")
	}
	return wordToBig(ws[0]), nil
}

// submit dry-runs the call to surface contract reverts as typed errors,
// has the wallet sign and broadcast it and waits for the receipt. The
// returned receipt is pending if no receipt shows up in time.
func (c *escrowClient) submit(
	ctx context.Context, data []byte, value *big.Int,
) (ports.Receipt, error) {
	rcpt := ports.Receipt{Chain: domain.ChainSource}

	var out string
	if err := c.rpc.Call(ctx, &out, "eth_call", c.callArgs(data, value), "latest"); err != nil {
		return rcpt, mapRevert(err)
	}

	txHash, err := c.wallet.SignAndSubmit(ctx, ports.TxPayload{
		Chain: domain.ChainSource,
		To:    c.contract,
		Data:  data,
		Value: value,
	})
	if err != nil {
		return rcpt, err
	}
	rcpt.TxHash = txHash
	rcpt.Status = domain.TxStatusPending

	r, err := c.waitReceipt(ctx, txHash)
	if err != nil {
		if domain.IsTransient(err) || ctx.Err() != nil {
			log.WithError(err).Debugf("receipt of tx %s still unknown", txHash)
			return rcpt, nil
		}
		return rcpt, err
	}
	if r == nil {
		return rcpt, nil
	}

	rcpt.Status = r.status()
	if rcpt.Status == domain.TxStatusFailed {
		return rcpt, fmt.Errorf("transaction %s reverted", txHash)
	}
	for _, l := range r.Logs {
		if len(l.Topics) > 1 && l.Topics[0] == escrowCreatedTopic &&
			sameAddress(l.Address, c.contract) {
			rcpt.EscrowID = strings.ToLower(l.Topics[1])
			break
		}
	}
	return rcpt, nil
}

func (c *escrowClient) waitReceipt(ctx context.Context, txHash string) (*txReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		r, err := c.receipt(ctx, txHash)
		if err != nil && !domain.IsTransient(err) {
			return nil, err
		}
		if r != nil {
			return r, nil
		}

		select {
		case <-ctx.Done():
			return nil, domain.ErrReceiptPending
		case <-ticker.C:
		}
	}
}

func (c *escrowClient) receipt(ctx context.Context, txHash string) (*txReceipt, error) {
	var r *txReceipt
	if err := c.rpc.Call(ctx, &r, "eth_getTransactionReceipt", txHash); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *escrowClient) fills(ctx context.Context, id [wordSize]byte) ([]domain.Fill, error) {
	filter := map[string]interface{}{
		"fromBlock": "earliest",
		"toBlock":   "latest",
		"address":   c.contract,
		"topics":    []interface{}{escrowFilledTopic, wordToHex(id)},
	}
	var logs []txLog
	if err := c.rpc.Call(ctx, &logs, "eth_getLogs", filter); err != nil {
		return nil, err
	}

	fills := make([]domain.Fill, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) < 3 {
			continue
		}
		ws, err := words(l.Data)
		if err != nil || len(ws) < 1 {
			continue
		}
		filler, err := words(l.Topics[2])
		if err != nil || len(filler) != 1 {
			continue
		}
		fills = append(fills, domain.Fill{
			Filler: wordToAddress(filler[0]),
			Amount: wordToBig(ws[0]),
			TxHash: l.TxHash,
		})
	}
	return fills, nil
}

func (c *escrowClient) callArgs(data []byte, value *big.Int) map[string]string {
	args := map[string]string{
		"from": c.address,
		"to":   c.contract,
		"data": "0x" + hex.EncodeToString(data),
	}
	if value != nil && value.Sign() > 0 {
		args["value"] = bigToHex(value)
	}
	return args
}

type txLog struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
	TxHash  string   `json:"transactionHash"`
}

type txReceipt struct {
	TxHash string  `json:"transactionHash"`
	Status string  `json:"status"`
	Logs   []txLog `json:"logs"`
}

func (r *txReceipt) status() domain.TxStatus {
	switch r.Status {
	case "0x1":
		return domain.TxStatusConfirmed
	case "0x0":
		return domain.TxStatusFailed
	default:
		return domain.TxStatusPending
	}
}

func parseEscrowID(id string) ([wordSize]byte, error) {
	var out [wordSize]byte
	b, err := hex.DecodeString(strings.TrimPrefix(id, "0x"))
	if err != nil || len(b) != wordSize {
		return out, fmt.Errorf("%w: invalid escrow id %s", domain.ErrEscrowNotFound, id)
	}
	copy(out[:], b)
	return out, nil
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
