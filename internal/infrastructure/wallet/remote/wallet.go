// Package remotewallet talks to an external wallet provider that owns the
// signing keys of both chains:
//
//	GET  {url}/v1/address/{chain}  -> {"address": "0x..."}
//	POST {url}/v1/transactions     -> {"txHash": "0x..."}
//
// Rejections by the wallet owner are returned as domain.ErrSigningRejected,
// an unreachable provider as domain.ErrWalletDisconnected.
package remotewallet

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/pkg/httputil"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

const idempotencyHeader = "Idempotency-Key"

type Config struct {
	URL            string
	RequestTimeout time.Duration
	// Token, if set, is sent as bearer token.
	Token string
}

type txRequest struct {
	Chain    domain.Chain  `json:"chain"`
	To       string        `json:"to"`
	Function string        `json:"function,omitempty"`
	Data     string        `json:"data,omitempty"`
	Args     []interface{} `json:"args,omitempty"`
	TypeArgs []string      `json:"typeArgs,omitempty"`
	Value    string        `json:"value,omitempty"`
}

type txResponse struct {
	TxHash string `json:"txHash"`
}

type addressResponse struct {
	Address string `json:"address"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type wallet struct {
	url    string
	token  string
	client *httputil.Client

	lock      sync.RWMutex
	addresses map[domain.Chain]string
}

func NewWallet(cfg Config) (ports.Wallet, error) {
	if len(cfg.URL) <= 0 {
		return nil, fmt.Errorf("missing wallet url")
	}
	return &wallet{
		url:       strings.TrimSuffix(cfg.URL, "/"),
		token:     cfg.Token,
		client:    httputil.NewClient(cfg.RequestTimeout),
		addresses: make(map[domain.Chain]string),
	}, nil
}

func (w *wallet) Address(ctx context.Context, chain domain.Chain) (string, error) {
	w.lock.RLock()
	addr, ok := w.addresses[chain]
	w.lock.RUnlock()
	if ok {
		return addr, nil
	}

	url := fmt.Sprintf("%s/v1/address/%s", w.url, chain)
	status, body, err := w.client.Get(ctx, url, w.header(""))
	if err := checkResponse(status, body, err); err != nil {
		return "", err
	}

	var resp addressResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("invalid wallet response: %w", err)
	}
	if len(resp.Address) <= 0 {
		return "", fmt.Errorf("wallet has no %s address", chain)
	}

	w.lock.Lock()
	w.addresses[chain] = resp.Address
	w.lock.Unlock()
	return resp.Address, nil
}

func (w *wallet) SignAndSubmit(ctx context.Context, payload ports.TxPayload) (string, error) {
	req := txRequest{
		Chain:    payload.Chain,
		To:       payload.To,
		Function: payload.Function,
		Args:     payload.Args,
		TypeArgs: payload.TypeArgs,
	}
	if len(payload.Data) > 0 {
		req.Data = "0x" + hex.EncodeToString(payload.Data)
	}
	if payload.Value != nil && payload.Value.Sign() > 0 {
		req.Value = payload.Value.String()
	}

	key, err := IdempotencyKey(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1/transactions", w.url)
	status, body, err := w.client.Post(ctx, url, req, w.header(key))
	if err := checkResponse(status, body, err); err != nil {
		return "", err
	}

	var resp txResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("invalid wallet response: %w", err)
	}
	if len(resp.TxHash) <= 0 {
		return "", fmt.Errorf("wallet returned no tx hash")
	}

	log.WithFields(log.Fields{
		"chain": payload.Chain,
		"tx":    resp.TxHash,
	}).Debug("wallet submitted transaction")
	return resp.TxHash, nil
}

func (w *wallet) header(idempotencyKey string) map[string]string {
	header := make(map[string]string)
	if len(w.token) > 0 {
		header["Authorization"] = "Bearer " + w.token
	}
	if len(idempotencyKey) > 0 {
		header[idempotencyHeader] = idempotencyKey
	}
	return header
}

// IdempotencyKey derives a deterministic key for a payload with the native
// hash of its chain, keccak256 for the source and blake2b-256 for the
// destination. The wallet provider uses it to drop duplicate submissions.
func IdempotencyKey(payload ports.TxPayload) (string, error) {
	value := "0"
	if payload.Value != nil {
		value = new(big.Int).Set(payload.Value).String()
	}
	args, err := json.Marshal(payload.Args)
	if err != nil {
		return "", fmt.Errorf("invalid payload args: %w", err)
	}
	preimage := strings.Join([]string{
		string(payload.Chain), payload.To, payload.Function,
		hex.EncodeToString(payload.Data), string(args),
		strings.Join(payload.TypeArgs, ","), value,
	}, "|")

	if payload.Chain == domain.ChainDestination {
		sum := blake2b.Sum256([]byte(preimage))
		return hex.EncodeToString(sum[:]), nil
	}
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(preimage))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func checkResponse(status int, body []byte, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %s", domain.ErrWalletDisconnected, err)
	}
	if httputil.IsSuccess(status) {
		return nil
	}

	msg := strings.TrimSpace(string(body))
	var resp errorResponse
	if json.Unmarshal(body, &resp) == nil && len(resp.Error) > 0 {
		msg = resp.Error
	}

	switch {
	case status == http.StatusForbidden, status == http.StatusUnauthorized,
		status == http.StatusUnprocessableEntity, status == http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrSigningRejected, msg)
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", domain.ErrWalletDisconnected, msg)
	default:
		return fmt.Errorf("wallet error %d: %s", status, msg)
	}
}
