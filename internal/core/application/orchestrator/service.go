// Package orchestrator drives swaps on behalf of the maker: it locks the
// source funds, publishes the order, watches destination escrows, releases
// the secret once they cover the order and settles or refunds what is left.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/xswapd/internal/core/application/ledger"
	"github.com/tdex-network/xswapd/internal/core/application/pricing"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/pkg/htlc"
	"github.com/tdex-network/xswapd/pkg/mathutil"
	"github.com/tdex-network/xswapd/pkg/stats"
)

const (
	defaultPollInterval     = 2 * time.Second
	defaultChainCallTimeout = 30 * time.Second
)

var (
	ErrServiceNotStarted = errors.New("orchestrator service not started")

	openOrderStatuses = []domain.SwapStatus{
		domain.SwapStatusWaitingForDestinationActivity,
		domain.SwapStatusSecretReleasable,
		domain.SwapStatusSecretReleased,
		domain.SwapStatusWaitingForSourceClaims,
	}
	activeStatuses = []domain.SwapStatus{
		domain.SwapStatusInitiated,
		domain.SwapStatusSourceLocked,
		domain.SwapStatusWaitingForDestinationActivity,
		domain.SwapStatusSecretReleasable,
		domain.SwapStatusSecretReleased,
		domain.SwapStatusWaitingForSourceClaims,
		domain.SwapStatusExpired,
	}
)

type Config struct {
	SourceAsset      domain.Asset
	DestinationAsset domain.Asset
	// SourceLockDuration is the lifetime of the source escrow.
	SourceLockDuration time.Duration
	// SafetyMargin is the minimum time between the destination and the
	// source time locks.
	SafetyMargin           time.Duration
	CompletionThresholdBps uint64
	ReleasePolicy          domain.ReleasePolicy
	PollInterval           time.Duration
	ChainCallTimeout       time.Duration
	Now                    func() time.Time
}

func (c *Config) validate() error {
	if c.SourceAsset.Chain != domain.ChainSource {
		return fmt.Errorf("source asset must live on chain %s", domain.ChainSource)
	}
	if c.DestinationAsset.Chain != domain.ChainDestination {
		return fmt.Errorf("destination asset must live on chain %s", domain.ChainDestination)
	}
	if c.SafetyMargin <= 0 {
		return fmt.Errorf("safety margin must be positive")
	}
	if c.SourceLockDuration <= c.SafetyMargin {
		return fmt.Errorf("source lock duration must exceed the safety margin")
	}
	if c.CompletionThresholdBps >= 10000 {
		return fmt.Errorf("completion threshold must be lower than 10000 bps")
	}
	if c.ReleasePolicy == "" {
		c.ReleasePolicy = domain.ReleaseOnFullCoverage
	}
	if !c.ReleasePolicy.IsValid() {
		return fmt.Errorf("unknown release policy %q", c.ReleasePolicy)
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

// InitiateSwapArgs are the inputs of a new swap. DestinationAmount is the
// least amount the receiver accepts; when nil it is derived from the auction
// end rate.
type InitiateSwapArgs struct {
	SourceAmount       *big.Int
	DestinationAmount  *big.Int
	DestinationAddress string
	ReleasePolicy      domain.ReleasePolicy
}

type Service struct {
	cfg         Config
	repo        domain.SwapRepository
	ledger      *ledger.Service
	source      ports.EscrowClient
	destination ports.EscrowClient
	vault       *htlc.Vault
	pricing     *pricing.Service
	orderBook   ports.OrderBook
	scheduler   ports.SchedulerService
	broker      *logBroker

	lock    sync.Mutex
	ctx     context.Context
	drivers map[string]*driver
	wg      sync.WaitGroup
}

func NewService(
	repoManager ports.RepoManager,
	source ports.EscrowClient,
	destination ports.EscrowClient,
	vault *htlc.Vault,
	pricingSvc *pricing.Service,
	orderBook ports.OrderBook,
	scheduler ports.SchedulerService,
	cfg Config,
) (*Service, error) {
	if repoManager == nil {
		return nil, fmt.Errorf("missing repo manager")
	}
	if source == nil || source.Chain() != domain.ChainSource {
		return nil, fmt.Errorf("missing source chain escrow client")
	}
	if destination == nil || destination.Chain() != domain.ChainDestination {
		return nil, fmt.Errorf("missing destination chain escrow client")
	}
	if vault == nil {
		return nil, fmt.Errorf("missing secret vault")
	}
	if pricingSvc == nil {
		return nil, fmt.Errorf("missing pricing service")
	}
	if orderBook == nil {
		return nil, fmt.Errorf("missing order book")
	}
	if scheduler == nil {
		return nil, fmt.Errorf("missing scheduler")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ledgerSvc, err := ledger.NewService(repoManager.TxRecordRepository(), cfg.Now)
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:         cfg,
		repo:        repoManager.SwapRepository(),
		ledger:      ledgerSvc,
		source:      source,
		destination: destination,
		vault:       vault,
		pricing:     pricingSvc,
		orderBook:   orderBook,
		scheduler:   scheduler,
		broker:      newLogBroker(),
		drivers:     make(map[string]*driver),
	}, nil
}

// Start resumes every swap not yet in a terminal status.
func (s *Service) Start(ctx context.Context) error {
	s.lock.Lock()
	if s.ctx != nil {
		s.lock.Unlock()
		return fmt.Errorf("orchestrator service already started")
	}
	s.ctx = ctx
	s.lock.Unlock()

	swaps, err := s.repo.GetSwapsByStatus(ctx, activeStatuses...)
	if err != nil {
		return fmt.Errorf("failed to load swaps: %w", err)
	}
	for _, swap := range swaps {
		if swap.RevealedSecret != nil {
			s.vault.Reveal(*swap.RevealedSecret)
		}
		log.WithFields(log.Fields{
			"swap":   swap.ID,
			"status": swap.Status,
		}).Info("orchestrator: resuming swap")
		s.startDriver(swap)
	}
	return nil
}

// Stop halts every swap driver and waits for them to return. Swaps resume
// from their last persisted status on the next Start.
func (s *Service) Stop() {
	s.lock.Lock()
	for _, d := range s.drivers {
		d.cancel()
	}
	s.lock.Unlock()

	s.wg.Wait()
	s.broker.closeAll()
}

// InitiateSwap validates the inputs, commits to a fresh secret and starts
// driving the new swap. The returned swap is in Initiated status.
func (s *Service) InitiateSwap(
	ctx context.Context, args InitiateSwapArgs,
) (*domain.Swap, error) {
	if !s.isStarted() {
		return nil, ErrServiceNotStarted
	}
	if !mathutil.IsPositive(args.SourceAmount) {
		return nil, domain.ErrInvalidAmount
	}
	if args.DestinationAmount != nil && !mathutil.IsPositive(args.DestinationAmount) {
		return nil, domain.ErrInvalidAmount
	}
	if err := s.destination.ValidateAddress(args.DestinationAddress); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidDestinationAddress, err)
	}
	policy := args.ReleasePolicy
	if policy == "" {
		policy = s.cfg.ReleasePolicy
	}
	if !policy.IsValid() {
		return nil, fmt.Errorf("%w %q", domain.ErrUnknownReleasePolicy, policy)
	}

	now := s.cfg.Now()
	auction, rate, err := s.pricing.NewAuction(
		ctx, s.cfg.SourceAsset, s.cfg.DestinationAsset, now,
	)
	if err != nil {
		return nil, err
	}

	secret, hashLock, err := s.vault.Generate()
	if err != nil {
		return nil, err
	}
	sealed, err := s.vault.Seal(secret)
	if err != nil {
		return nil, err
	}

	srcTimeLock, dstTimeLock := domain.ComputeTimeLocks(
		now, s.cfg.SourceLockDuration, s.cfg.SafetyMargin,
	)
	order, err := domain.NewOrder(domain.OrderArgs{
		Maker:               s.source.Address(),
		Receiver:            args.DestinationAddress,
		SourceAsset:         s.cfg.SourceAsset,
		DestinationAsset:    s.cfg.DestinationAsset,
		MakingAmount:        args.SourceAmount,
		TakingAmount:        args.DestinationAmount,
		HashLock:            hashLock,
		Auction:             auction,
		SourceTimeLock:      srcTimeLock,
		DestinationTimeLock: dstTimeLock,
		SafetyMargin:        s.cfg.SafetyMargin,
		ReleasePolicy:       policy,
		Now:                 now,
	})
	if err != nil {
		return nil, err
	}

	swap := domain.NewSwap(*order, sealed, s.cfg.CompletionThresholdBps, now)
	swap.Log(now, "market rate %s, auction %s", rate, auction)
	if err := s.repo.AddSwap(ctx, swap); err != nil {
		return nil, err
	}
	stats.SwapTransition(swap.Status.String())

	log.WithFields(log.Fields{
		"swap":      swap.ID,
		"making":    order.MakingAmount,
		"taking":    order.TakingAmount,
		"receiver":  order.Receiver,
		"hash_lock": order.HashLock.Short(),
	}).Info("orchestrator: swap initiated")

	s.startDriver(swap)
	return swap, nil
}

// GetSwapStatus returns the current state of the swap.
func (s *Service) GetSwapStatus(ctx context.Context, swapID string) (*domain.Swap, error) {
	return s.repo.GetSwap(ctx, swapID)
}

// ListSwaps returns the swaps in any of the given statuses, or all of them.
func (s *Service) ListSwaps(
	ctx context.Context, statuses ...domain.SwapStatus,
) ([]*domain.Swap, error) {
	if len(statuses) <= 0 {
		return s.repo.GetAllSwaps(ctx)
	}
	return s.repo.GetSwapsByStatus(ctx, statuses...)
}

// TxHistory returns the ledger of the swap.
func (s *Service) TxHistory(ctx context.Context, swapID string) (domain.TxHistory, error) {
	if _, err := s.repo.GetSwap(ctx, swapID); err != nil {
		return domain.TxHistory{}, err
	}
	return s.ledger.History(ctx, swapID)
}

// SubscribeLogs streams the log entries of the swap starting from sequence
// number from. The channel is closed when ctx is done, when the swap
// reaches a terminal status or when the consumer falls too far behind.
func (s *Service) SubscribeLogs(
	ctx context.Context, swapID string, from int,
) (<-chan domain.LogEntry, error) {
	sub := s.broker.subscribe(swapID)
	swap, err := s.repo.GetSwap(ctx, swapID)
	if err != nil {
		s.broker.unsubscribe(swapID, sub)
		return nil, err
	}

	snapshot := swap.LogsFrom(from)
	out := make(chan domain.LogEntry, len(snapshot))
	next := from
	for _, entry := range snapshot {
		out <- entry
		next = entry.Seq + 1
	}

	if swap.IsTerminal() {
		s.broker.unsubscribe(swapID, sub)
		close(out)
		return out, nil
	}

	go func() {
		defer close(out)
		defer s.broker.unsubscribe(swapID, sub)

		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-sub:
				if !ok {
					return
				}
				if entry.Seq < next {
					continue
				}
				next = entry.Seq + 1
				select {
				case out <- entry:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// OpenOrders returns the orders whose source escrow is locked and still
// claimable.
func (s *Service) OpenOrders(ctx context.Context) ([]domain.Order, error) {
	swaps, err := s.repo.GetSwapsByStatus(ctx, openOrderStatuses...)
	if err != nil {
		return nil, err
	}

	now := s.cfg.Now()
	orders := make([]domain.Order, 0, len(swaps))
	for _, swap := range swaps {
		if !now.Before(swap.Order.SourceExpiry()) {
			continue
		}
		orders = append(orders, swap.Order)
	}
	return orders, nil
}

// RevealedSecret returns the secret of the order once released.
func (s *Service) RevealedSecret(
	ctx context.Context, orderID string,
) (ports.SecretRelease, error) {
	swap, err := s.repo.GetSwap(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrSwapNotFound) {
			return ports.SecretRelease{}, domain.ErrOrderNotFound
		}
		return ports.SecretRelease{}, err
	}
	if swap.RevealedSecret == nil {
		return ports.SecretRelease{}, domain.ErrSecretNotRevealed
	}
	return ports.SecretRelease{
		OrderID:   swap.Order.ID,
		HashLock:  swap.Order.HashLock,
		Secret:    *swap.RevealedSecret,
		EscrowIDs: swap.DestinationLockIDs(),
	}, nil
}

func (s *Service) isStarted() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.ctx != nil
}

func (s *Service) startDriver(swap *domain.Swap) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.drivers[swap.ID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	d := newDriver(s, swap.ID, cancel)
	s.drivers[swap.ID] = d
	stats.SetActiveSwaps(len(s.drivers))

	s.schedule(d, swap.RelevantExpiry())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.removeDriver(swap.ID)
		d.run(ctx)
	}()
}

func (s *Service) removeDriver(swapID string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if d, ok := s.drivers[swapID]; ok {
		d.cancel()
		delete(s.drivers, swapID)
	}
	stats.SetActiveSwaps(len(s.drivers))
}

// schedule wakes up the driver at the given time.
func (s *Service) schedule(d *driver, at time.Time) {
	if err := s.scheduler.ScheduleTaskOnce(at, d.poke); err != nil {
		log.WithError(err).WithField("swap", d.swapID).Warn(
			"orchestrator: failed to schedule expiry check",
		)
	}
}

// update commits changes to the swap through fn, then publishes the new log
// entries and counts status transitions.
func (s *Service) update(
	ctx context.Context, swapID string, fn func(*domain.Swap) error,
) (*domain.Swap, error) {
	var (
		updated *domain.Swap
		before  domain.SwapStatus
		seq     int
	)
	if err := s.repo.UpdateSwap(ctx, swapID, func(swap *domain.Swap) (*domain.Swap, error) {
		before = swap.Status
		seq = len(swap.Logs)
		if err := fn(swap); err != nil {
			return nil, err
		}
		if swap.Status != before {
			swap.ClearError()
		}
		updated = swap
		return swap, nil
	}); err != nil {
		return nil, err
	}

	entries := updated.LogsFrom(seq)
	for _, entry := range entries {
		log.WithFields(log.Fields{
			"swap":   swapID,
			"status": entry.Status,
		}).Info(entry.Message)
	}
	s.broker.publish(swapID, entries)

	if updated.Status != before {
		stats.SwapTransition(updated.Status.String())
		if updated.IsTerminal() {
			s.broker.closeSwap(swapID)
		}
	}
	return updated, nil
}

// call runs fn under the chain call timeout and observes its duration.
func (s *Service) call(
	ctx context.Context, client ports.EscrowClient, op string,
	fn func(ctx context.Context) error,
) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ChainCallTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	stats.ObserveChainCall(string(client.Chain()), op, start, err)
	return err
}
