// Package resolver implements a resolver agent: it watches the order book,
// locks destination funds for the receiver on the orders it finds
// profitable and claims its slice of the source escrow once the maker
// releases the secret.
package resolver

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/pkg/stats"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPollInterval     = 2 * time.Second
	defaultChainCallTimeout = 30 * time.Second
)

// RateSource returns the market rate between two assets in whole
// destination units per whole source unit.
type RateSource interface {
	MarketRate(ctx context.Context, source, destination domain.Asset) (decimal.Decimal, error)
}

type Config struct {
	Name string
	// MinMarginBps is the least profit, in basis points of the value of the
	// claimed slice, for an order to be filled.
	MinMarginBps uint64
	// MaxFillAmount caps the slice of the making amount filled per order.
	// Nil means no cap.
	MaxFillAmount *big.Int
	// SafetyMargin is the minimum time required between the destination
	// and the source time locks of an order.
	SafetyMargin time.Duration
	// FillDeadlineBuffer stops new destination locks when less than this
	// remains before the order destination time lock.
	FillDeadlineBuffer time.Duration
	PollInterval       time.Duration
	ChainCallTimeout   time.Duration
	Now                func() time.Time
}

func (c *Config) validate() error {
	if len(c.Name) <= 0 {
		return fmt.Errorf("missing resolver name")
	}
	if c.MinMarginBps >= 10000 {
		return fmt.Errorf("min margin must be lower than 10000 bps")
	}
	if c.MaxFillAmount != nil && c.MaxFillAmount.Sign() < 0 {
		return fmt.Errorf("max fill amount must not be negative")
	}
	if c.SafetyMargin < 0 || c.FillDeadlineBuffer < 0 {
		return fmt.Errorf("safety margin and fill deadline buffer must not be negative")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.ChainCallTimeout <= 0 {
		c.ChainCallTimeout = defaultChainCallTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

type Agent struct {
	cfg         Config
	source      ports.EscrowClient
	destination ports.EscrowClient
	orderBook   ports.OrderBook
	rates       RateSource
	secrets     *secretBox

	lock   sync.RWMutex
	states map[string]State
}

func NewAgent(
	source ports.EscrowClient,
	destination ports.EscrowClient,
	orderBook ports.OrderBook,
	rates RateSource,
	cfg Config,
) (*Agent, error) {
	if source == nil || source.Chain() != domain.ChainSource {
		return nil, fmt.Errorf("missing source chain escrow client")
	}
	if destination == nil || destination.Chain() != domain.ChainDestination {
		return nil, fmt.Errorf("missing destination chain escrow client")
	}
	if orderBook == nil {
		return nil, fmt.Errorf("missing order book")
	}
	if rates == nil {
		return nil, fmt.Errorf("missing rate source")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Agent{
		cfg:         cfg,
		source:      source,
		destination: destination,
		orderBook:   orderBook,
		rates:       rates,
		secrets:     newSecretBox(),
		states:      make(map[string]State),
	}, nil
}

func (a *Agent) Name() string {
	return a.cfg.Name
}

// State returns the progress of the agent on the order.
func (a *Agent) State(orderID string) (State, bool) {
	a.lock.RLock()
	defer a.lock.RUnlock()
	s, ok := a.states[orderID]
	return s, ok
}

// Run watches the order book until ctx is done, handling every new order
// in its own goroutine.
func (a *Agent) Run(ctx context.Context) error {
	orders, err := a.orderBook.SubscribeOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to orders: %w", err)
	}
	secrets, err := a.orderBook.SubscribeSecrets(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to secrets: %w", err)
	}

	log.WithFields(log.Fields{
		"resolver":    a.cfg.Name,
		"source":      a.source.Address(),
		"destination": a.destination.Address(),
	}).Info("resolver: watching order book")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for release := range secrets {
			a.secrets.accept(release.HashLock, release.Secret, release.EscrowIDs)
			if !a.secrets.put(release.HashLock, release.Secret) {
				log.WithFields(log.Fields{
					"resolver": a.cfg.Name,
					"order":    release.OrderID,
				}).Warn("resolver: published secret does not open the hash lock")
			}
		}
		return nil
	})
	g.Go(func() error {
		for order := range orders {
			if !a.watch(order.ID) {
				continue
			}
			order := order
			g.Go(func() error {
				a.handle(gctx, order)
				return nil
			})
		}
		return nil
	})
	return g.Wait()
}

// watch registers the order, returns false if already known.
func (a *Agent) watch(orderID string) bool {
	a.lock.Lock()
	defer a.lock.Unlock()

	if _, ok := a.states[orderID]; ok {
		return false
	}
	a.states[orderID] = StateWatching
	return true
}

func (a *Agent) setState(orderID string, state State) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.states[orderID] = state
}

func (a *Agent) handle(ctx context.Context, order domain.Order) {
	j := &job{
		agent: a,
		order: order,
		log: log.WithFields(log.Fields{
			"resolver": a.cfg.Name,
			"order":    order.ID,
		}),
	}

	state, reason := j.run(ctx)
	if ctx.Err() != nil {
		return
	}
	a.setState(order.ID, state)

	outcome := "done"
	if state == StateAbandoned {
		outcome = "abandoned"
		if !j.locked {
			outcome = "skipped"
		}
	}
	stats.ResolverOutcome(a.cfg.Name, outcome)
	j.log.WithField("state", state).Infof("resolver: order %s: %s", outcome, reason)
}

func (a *Agent) call(
	ctx context.Context, client ports.EscrowClient, op string,
	fn func(ctx context.Context) error,
) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.ChainCallTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	stats.ObserveChainCall(string(client.Chain()), op, start, err)
	return err
}

// sleep waits for one poll interval, returns false if ctx is done.
func (a *Agent) sleep(ctx context.Context) bool {
	t := time.NewTimer(a.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
