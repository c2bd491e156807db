// Package watermillorderbook is the in-process order book, a pub/sub on
// top of watermill's go channel. Late subscribers first receive a snapshot
// of the orders and secrets still live.
package watermillorderbook

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
)

const (
	ordersTopic  = "orders"
	secretsTopic = "secrets"

	outputBuffer = 64
)

type secretMessage struct {
	OrderID   string   `json:"orderId"`
	HashLock  string   `json:"hashLock"`
	Secret    string   `json:"secret"`
	EscrowIDs []string `json:"escrowIds,omitempty"`
}

type orderBook struct {
	pubsub *gochannel.GoChannel
	now    func() time.Time

	lock    sync.RWMutex
	orders  map[string]domain.Order
	secrets map[string]ports.SecretRelease
}

// NewOrderBook returns an in-process OrderBook. now is used to evict
// expired orders from the snapshot, defaults to time.Now.
func NewOrderBook(now func() time.Time) ports.OrderBook {
	if now == nil {
		now = time.Now
	}
	return &orderBook{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: outputBuffer}, NewLogger(),
		),
		now:     now,
		orders:  make(map[string]domain.Order),
		secrets: make(map[string]ports.SecretRelease),
	}
}

func (b *orderBook) PublishOrder(_ context.Context, order domain.Order) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return err
	}

	b.lock.Lock()
	b.orders[order.ID] = order
	b.lock.Unlock()

	return b.pubsub.Publish(ordersTopic, message.NewMessage(watermill.NewUUID(), payload))
}

func (b *orderBook) PublishSecret(_ context.Context, release ports.SecretRelease) error {
	payload, err := json.Marshal(secretMessage{
		OrderID:   release.OrderID,
		HashLock:  release.HashLock.Hex(),
		Secret:    release.Secret.Hex(),
		EscrowIDs: release.EscrowIDs,
	})
	if err != nil {
		return err
	}

	b.lock.Lock()
	b.secrets[release.OrderID] = release
	b.lock.Unlock()

	return b.pubsub.Publish(secretsTopic, message.NewMessage(watermill.NewUUID(), payload))
}

func (b *orderBook) SubscribeOrders(ctx context.Context) (<-chan domain.Order, error) {
	msgs, err := b.pubsub.Subscribe(ctx, ordersTopic)
	if err != nil {
		return nil, err
	}
	snapshot := b.liveOrders()

	out := make(chan domain.Order, len(snapshot)+outputBuffer)
	go func() {
		defer close(out)

		seen := make(map[string]struct{})
		for _, order := range snapshot {
			seen[order.ID] = struct{}{}
			out <- order
		}

		for msg := range msgs {
			var order domain.Order
			err := json.Unmarshal(msg.Payload, &order)
			msg.Ack()
			if err != nil {
				log.WithError(err).Warn("order book: skipping malformed order")
				continue
			}
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
	}()
	return out, nil
}

func (b *orderBook) SubscribeSecrets(ctx context.Context) (<-chan ports.SecretRelease, error) {
	msgs, err := b.pubsub.Subscribe(ctx, secretsTopic)
	if err != nil {
		return nil, err
	}
	snapshot := b.liveSecrets()

	out := make(chan ports.SecretRelease, len(snapshot)+outputBuffer)
	go func() {
		defer close(out)

		seen := make(map[string]struct{})
		for _, release := range snapshot {
			seen[release.OrderID] = struct{}{}
			out <- release
		}

		for msg := range msgs {
			release, err := decodeSecret(msg.Payload)
			msg.Ack()
			if err != nil {
				log.WithError(err).Warn("order book: skipping malformed secret")
				continue
			}
			if _, ok := seen[release.OrderID]; ok {
				continue
			}
			seen[release.OrderID] = struct{}{}

			select {
			case out <- release:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *orderBook) Close() {
	//nolint:errcheck
	b.pubsub.Close()
}

// liveOrders returns the orders whose source escrow is not yet expired and
// forgets the others along with their secrets.
func (b *orderBook) liveOrders() []domain.Order {
	b.lock.Lock()
	defer b.lock.Unlock()

	now := b.now()
	orders := make([]domain.Order, 0, len(b.orders))
	for id, order := range b.orders {
		if !now.Before(order.SourceExpiry()) {
			delete(b.orders, id)
			delete(b.secrets, id)
			continue
		}
		orders = append(orders, order)
	}
	return orders
}

func (b *orderBook) liveSecrets() []ports.SecretRelease {
	b.lock.RLock()
	defer b.lock.RUnlock()

	releases := make([]ports.SecretRelease, 0, len(b.secrets))
	for _, release := range b.secrets {
		releases = append(releases, release)
	}
	return releases
}
