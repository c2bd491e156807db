// Package remoteorderbook is a read-only OrderBook polling the HTTP API of
// a swap daemon:
//
//	GET {url}/v1/orders             -> {"orders": [...]}
//	GET {url}/v1/orders/{id}/secret -> {"orderId", "hashLock", "secret", "escrowIds"}
package remoteorderbook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/pkg/htlc"
	"github.com/tdex-network/xswapd/pkg/httputil"
)

const defaultPollInterval = 2 * time.Second

// ErrReadOnly is returned when publishing to a remote order book.
var ErrReadOnly = errors.New("remote order book is read only")

type ordersResponse struct {
	Orders []domain.Order `json:"orders"`
}

type secretResponse struct {
	OrderID   string   `json:"orderId"`
	HashLock  string   `json:"hashLock"`
	Secret    string   `json:"secret"`
	EscrowIDs []string `json:"escrowIds"`
}

type orderBook struct {
	url          string
	client       *httputil.Client
	pollInterval time.Duration
}

func NewOrderBook(url string, pollInterval time.Duration) (ports.OrderBook, error) {
	if len(url) <= 0 {
		return nil, fmt.Errorf("missing order book url")
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &orderBook{
		url:          strings.TrimSuffix(url, "/"),
		client:       httputil.NewClient(0),
		pollInterval: pollInterval,
	}, nil
}

func (b *orderBook) PublishOrder(context.Context, domain.Order) error {
	return ErrReadOnly
}

func (b *orderBook) PublishSecret(context.Context, ports.SecretRelease) error {
	return ErrReadOnly
}

func (b *orderBook) SubscribeOrders(ctx context.Context) (<-chan domain.Order, error) {
	out := make(chan domain.Order)
	go func() {
		defer close(out)

		seen := make(map[string]struct{})
		b.poll(ctx, func() {
			orders, err := b.orders(ctx)
			if err != nil {
				log.WithError(err).Warn("order book: failed to fetch orders")
				return
			}
			for _, order := range orders {
				if _, ok := seen[order.ID]; ok {
					continue
				}
				seen[order.ID] = struct{}{}
				select {
				case out <- order:
				case <-ctx.Done():
					return
				}
			}
		})
	}()
	return out, nil
}

func (b *orderBook) SubscribeSecrets(ctx context.Context) (<-chan ports.SecretRelease, error) {
	out := make(chan ports.SecretRelease)
	go func() {
		defer close(out)

		released := make(map[string]struct{})
		b.poll(ctx, func() {
			orders, err := b.orders(ctx)
			if err != nil {
				log.WithError(err).Warn("order book: failed to fetch orders")
				return
			}
			for _, order := range orders {
				if _, ok := released[order.ID]; ok {
					continue
				}
				release, err := b.secret(ctx, order.ID)
				if err != nil {
					log.WithError(err).Debugf("order book: no secret for %s", order.ID)
					continue
				}
				if release == nil {
					continue
				}
				released[order.ID] = struct{}{}
				select {
				case out <- *release:
				case <-ctx.Done():
					return
				}
			}
		})
	}()
	return out, nil
}

func (b *orderBook) Close() {}

func (b *orderBook) poll(ctx context.Context, fn func()) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		fn()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (b *orderBook) orders(ctx context.Context) ([]domain.Order, error) {
	status, body, err := b.client.Get(ctx, b.url+"/v1/orders", nil)
	if err != nil {
		return nil, err
	}
	if !httputil.IsSuccess(status) {
		return nil, fmt.Errorf("order book returned %d: %s", status, string(body))
	}
	var resp ordersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("invalid orders response: %w", err)
	}
	return resp.Orders, nil
}

// secret returns nil if the secret of the order is not yet released.
func (b *orderBook) secret(ctx context.Context, orderID string) (*ports.SecretRelease, error) {
	url := fmt.Sprintf("%s/v1/orders/%s/secret", b.url, orderID)
	status, body, err := b.client.Get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if !httputil.IsSuccess(status) {
		return nil, fmt.Errorf("order book returned %d: %s", status, string(body))
	}

	var resp secretResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("invalid secret response: %w", err)
	}
	hashLock, err := htlc.ParseHashLock(resp.HashLock)
	if err != nil {
		return nil, err
	}
	secret, err := htlc.ParseSecret(resp.Secret)
	if err != nil {
		return nil, err
	}
	if !htlc.Verify(secret, hashLock) {
		return nil, fmt.Errorf("%w: order %s", domain.ErrSecretMismatch, orderID)
	}
	return &ports.SecretRelease{
		OrderID:   resp.OrderID,
		HashLock:  hashLock,
		Secret:    secret,
		EscrowIDs: resp.EscrowIDs,
	}, nil
}
