package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/pkg/htlc"
)

// driver is the single writer of one swap. It advances the swap by one step
// at every tick or wake up until a terminal status is reached.
type driver struct {
	svc    *Service
	swapID string
	cancel context.CancelFunc
	wake   chan struct{}

	orderPublished  bool
	secretPublished bool
	rejected        map[string]struct{}
}

func newDriver(svc *Service, swapID string, cancel context.CancelFunc) *driver {
	return &driver{
		svc:      svc,
		swapID:   swapID,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
		rejected: make(map[string]struct{}),
	}
}

func (d *driver) poke() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *driver) run(ctx context.Context) {
	ticker := time.NewTicker(d.svc.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if done := d.step(ctx); done {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// step returns true once the swap is in a terminal status.
func (d *driver) step(ctx context.Context) bool {
	swap, err := d.svc.repo.GetSwap(ctx, d.swapID)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).WithField("swap", d.swapID).Warn(
				"orchestrator: failed to load swap",
			)
		}
		return errors.Is(err, domain.ErrSwapNotFound)
	}
	if swap.IsTerminal() {
		return true
	}

	if err := d.advance(ctx, swap); err != nil {
		if ctx.Err() != nil {
			return false
		}
		d.fail(ctx, swap, err)
	}
	return false
}

func (d *driver) advance(ctx context.Context, swap *domain.Swap) error {
	now := d.svc.cfg.Now()

	switch swap.Status {
	case domain.SwapStatusInitiated:
		if d.isExpired(swap, now) {
			return d.expire(ctx)
		}
		return d.lockSource(ctx, swap)
	case domain.SwapStatusSourceLocked:
		if d.isExpired(swap, now) {
			return d.expire(ctx)
		}
		return d.publishOrder(ctx, swap)
	case domain.SwapStatusWaitingForDestinationActivity:
		if d.isExpired(swap, now) {
			return d.expire(ctx)
		}
		if err := d.ensureOrderPublished(ctx, swap); err != nil {
			return err
		}
		return d.observeDestinationActivity(ctx, swap)
	case domain.SwapStatusSecretReleasable:
		if d.isExpired(swap, now) {
			return d.expire(ctx)
		}
		if err := d.ensureOrderPublished(ctx, swap); err != nil {
			return err
		}
		return d.releaseSecret(ctx, swap)
	case domain.SwapStatusSecretReleased, domain.SwapStatusWaitingForSourceClaims:
		if err := d.ensureOrderPublished(ctx, swap); err != nil {
			return err
		}
		current := swap
		updated, err := d.finalize(ctx, swap)
		if updated != nil {
			current = updated
		}
		if !current.IsTerminal() && d.isExpired(current, d.svc.cfg.Now()) {
			if err := d.expire(ctx); err != nil {
				return err
			}
		}
		return err
	case domain.SwapStatusExpired:
		return d.handleExpiry(ctx, swap)
	default:
		return fmt.Errorf("unexpected swap status %s", swap.Status)
	}
}

func (d *driver) isExpired(swap *domain.Swap, now time.Time) bool {
	return !now.Before(swap.RelevantExpiry())
}

func (d *driver) fail(ctx context.Context, swap *domain.Swap, err error) {
	swapErr := domain.NewSwapError(swap, err)
	entry := log.WithError(swapErr).WithField("swap", swap.ID)
	if domain.IsTransient(err) {
		entry.Debug("orchestrator: transient failure, retrying")
	} else {
		entry.Warn("orchestrator: swap step failed")
	}

	if swap.LastError == err.Error() {
		return
	}
	if _, uerr := d.svc.update(ctx, swap.ID, func(s *domain.Swap) error {
		s.Fail(err, d.svc.cfg.Now())
		return nil
	}); uerr != nil {
		log.WithError(uerr).WithField("swap", swap.ID).Warn(
			"orchestrator: failed to record swap error",
		)
	}
}

// lockSource creates the source escrow. The chain is re-queried for an
// escrow already committed to the hash lock before any submission.
func (d *driver) lockSource(ctx context.Context, swap *domain.Swap) error {
	svc := d.svc
	pendingHash, hasPending := swap.Pending(domain.TxActionCreate)
	if hasPending {
		status, err := d.txStatus(ctx, svc.source, pendingHash)
		if err != nil {
			return err
		}
		switch status {
		case domain.TxStatusPending:
			return nil
		case domain.TxStatusFailed:
			d.updateRecord(ctx, svc.source.Chain(), pendingHash, status)
			_, err := svc.update(ctx, swap.ID, func(s *domain.Swap) error {
				s.ClearPending(domain.TxActionCreate)
				s.Log(svc.cfg.Now(), "source lock tx %s failed", pendingHash)
				return nil
			})
			return err
		default:
			d.updateRecord(ctx, svc.source.Chain(), pendingHash, status)
		}
	}

	escrow, err := d.findSourceEscrow(ctx, swap)
	if err != nil {
		return err
	}
	if escrow != nil {
		return d.markSourceLocked(ctx, swap.ID, escrow.ID, pendingHash)
	}
	if hasPending {
		return fmt.Errorf(
			"%w: source lock tx %s confirmed", domain.ErrEscrowNotFound, pendingHash,
		)
	}

	var balance *big.Int
	if err := svc.call(ctx, svc.source, "balance", func(ctx context.Context) (err error) {
		balance, err = svc.source.Balance(ctx)
		return
	}); err != nil {
		return err
	}
	if balance.Cmp(swap.Order.MakingAmount) < 0 {
		return fmt.Errorf(
			"%w: have %s, need %s",
			domain.ErrInsufficientSourceBalance, balance, swap.Order.MakingAmount,
		)
	}

	var rcpt ports.Receipt
	if err := svc.call(ctx, svc.source, "create", func(ctx context.Context) (err error) {
		rcpt, err = svc.source.Create(ctx, ports.CreateEscrowArgs{
			HashLock: swap.Order.HashLock,
			TimeLock: swap.Order.SourceTimeLock,
			Amount:   swap.Order.MakingAmount,
			OrderID:  swap.Order.ID,
		})
		return
	}); err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			return fmt.Errorf("%w: %s", domain.ErrInsufficientSourceBalance, err)
		}
		return err
	}

	d.record(ctx, domain.TxRecord{
		SwapID:    swap.ID,
		Chain:     rcpt.Chain,
		Action:    domain.TxActionCreate,
		TxHash:    rcpt.TxHash,
		Direction: domain.TxDirectionSent,
		Status:    rcpt.Status,
		Amount:    swap.Order.MakingAmount,
	})

	switch {
	case rcpt.IsPending():
		_, err := svc.update(ctx, swap.ID, func(s *domain.Swap) error {
			s.SetPending(domain.TxActionCreate, rcpt.TxHash, svc.cfg.Now())
			return nil
		})
		return err
	case rcpt.IsConfirmed():
		return d.markSourceLocked(ctx, swap.ID, rcpt.EscrowID, rcpt.TxHash)
	default:
		return fmt.Errorf("source lock tx %s failed", rcpt.TxHash)
	}
}

func (d *driver) markSourceLocked(
	ctx context.Context, swapID, escrowID, txHash string,
) error {
	svc := d.svc
	if _, err := svc.update(ctx, swapID, func(s *domain.Swap) error {
		_, err := s.LockSource(escrowID, txHash, svc.cfg.Now())
		return err
	}); err != nil {
		return err
	}
	d.poke()
	return nil
}

// findSourceEscrow returns the live source escrow created by the maker for
// the swap hash lock, if any.
func (d *driver) findSourceEscrow(
	ctx context.Context, swap *domain.Swap,
) (*domain.Escrow, error) {
	svc := d.svc
	var escrows []*domain.Escrow
	if err := svc.call(ctx, svc.source, "find", func(ctx context.Context) (err error) {
		escrows, err = svc.source.FindEscrows(ctx, swap.Order.HashLock)
		return
	}); err != nil {
		return nil, err
	}
	for _, e := range escrows {
		if strings.EqualFold(e.Creator, svc.source.Address()) &&
			e.TotalAmount.Cmp(swap.Order.MakingAmount) == 0 {
			return e, nil
		}
	}
	return nil, nil
}

func (d *driver) publishOrder(ctx context.Context, swap *domain.Swap) error {
	svc := d.svc
	if err := svc.orderBook.PublishOrder(ctx, swap.Order); err != nil {
		return fmt.Errorf("failed to publish order: %w", err)
	}
	d.orderPublished = true

	_, err := svc.update(ctx, swap.ID, func(s *domain.Swap) error {
		_, err := s.WaitForDestination(svc.cfg.Now())
		return err
	})
	return err
}

// ensureOrderPublished publishes again the order of a resumed swap.
func (d *driver) ensureOrderPublished(ctx context.Context, swap *domain.Swap) error {
	if d.orderPublished {
		return nil
	}
	if err := d.svc.orderBook.PublishOrder(ctx, swap.Order); err != nil {
		return fmt.Errorf("failed to publish order: %w", err)
	}
	d.orderPublished = true
	return nil
}

// observeDestinationActivity validates the destination escrows committed to
// the swap hash lock and makes the secret releasable once they satisfy the
// release policy. Escrows are admitted in creation order while their claims
// fit in the making amount. The others are never settled and stay
// refundable by their creators.
func (d *driver) observeDestinationActivity(ctx context.Context, swap *domain.Swap) error {
	svc := d.svc
	var escrows []*domain.Escrow
	if err := svc.call(ctx, svc.destination, "find", func(ctx context.Context) (err error) {
		escrows, err = svc.destination.FindEscrows(ctx, swap.Order.HashLock)
		return
	}); err != nil {
		return err
	}
	sort.SliceStable(escrows, func(i, j int) bool {
		return escrows[i].CreatedAt < escrows[j].CreatedAt
	})

	now := svc.cfg.Now()
	known := make(map[string]struct{}, len(swap.DestinationLocks))
	for _, l := range swap.DestinationLocks {
		known[l.EscrowID] = struct{}{}
	}
	unlocked := swap.UnlockedAmount()

	locks := make([]domain.DestinationLock, 0)
	rejections := make(map[string]error)
	for _, e := range escrows {
		if _, ok := known[e.ID]; ok {
			continue
		}
		if _, ok := d.rejected[e.ID]; ok {
			continue
		}
		if err := validateDestinationLock(&swap.Order, e, svc.cfg.SafetyMargin, now); err != nil {
			d.rejected[e.ID] = struct{}{}
			rejections[e.ID] = err
			continue
		}
		if e.ClaimAmount.Cmp(unlocked) > 0 {
			d.rejected[e.ID] = struct{}{}
			rejections[e.ID] = fmt.Errorf(
				"claim of %s exceeds the %s left to lock for", e.ClaimAmount, unlocked,
			)
			continue
		}
		unlocked = new(big.Int).Sub(unlocked, e.ClaimAmount)
		locks = append(locks, domain.DestinationLock{
			EscrowID:    e.ID,
			Creator:     e.Creator,
			Amount:      e.TotalAmount,
			ClaimAmount: e.ClaimAmount,
			TimeLock:    e.TimeLock,
		})
	}
	if len(locks) <= 0 && len(rejections) <= 0 && !swap.IsCovered() {
		return nil
	}

	updated, err := svc.update(ctx, swap.ID, func(s *domain.Swap) error {
		for id, err := range rejections {
			s.Log(now, "rejected destination escrow %s: %s", id, err)
		}
		for _, l := range locks {
			s.AddDestinationLock(l, now)
		}
		if !s.IsCovered() {
			return nil
		}
		_, err := s.MarkReleasable(now)
		return err
	})
	if err != nil {
		return err
	}
	if updated.Status == domain.SwapStatusSecretReleasable {
		d.poke()
	}
	return nil
}

// releaseSecret reveals the secret and publishes it. The status change is
// persisted before the publication so that the secret is released once.
func (d *driver) releaseSecret(ctx context.Context, swap *domain.Swap) error {
	svc := d.svc
	secret, err := svc.vault.Open(swap.SealedSecret)
	if err != nil {
		return err
	}
	if !htlc.Verify(secret, swap.Order.HashLock) {
		return domain.ErrHashLockMismatch
	}
	secret = svc.vault.Reveal(secret)

	updated, err := svc.update(ctx, swap.ID, func(s *domain.Swap) error {
		_, err := s.ReleaseSecret(secret, svc.cfg.Now())
		return err
	})
	if err != nil {
		return err
	}
	svc.schedule(d, updated.RelevantExpiry())

	if err := d.ensureSecretPublished(ctx, updated); err != nil {
		return err
	}
	d.poke()
	return nil
}

func (d *driver) ensureSecretPublished(ctx context.Context, swap *domain.Swap) error {
	if d.secretPublished || swap.RevealedSecret == nil {
		return nil
	}
	if err := d.svc.orderBook.PublishSecret(ctx, ports.SecretRelease{
		OrderID:   swap.Order.ID,
		HashLock:  swap.Order.HashLock,
		Secret:    *swap.RevealedSecret,
		EscrowIDs: swap.DestinationLockIDs(),
	}); err != nil {
		return fmt.Errorf("failed to publish secret: %w", err)
	}
	d.secretPublished = true
	return nil
}

// finalize settles the destination locks still open, tracks the claims of
// the source escrow and completes the swap once both sides reached the
// completion threshold.
func (d *driver) finalize(ctx context.Context, swap *domain.Swap) (*domain.Swap, error) {
	svc := d.svc
	if err := d.ensureSecretPublished(ctx, swap); err != nil {
		return nil, err
	}

	deliveries, settleErr := d.settleDestinationLocks(ctx, swap)
	d.refreshPendingRecords(ctx, swap.ID, svc.destination, domain.TxActionSettle)

	var source *domain.Escrow
	if err := svc.call(ctx, svc.source, "get", func(ctx context.Context) (err error) {
		source, err = svc.source.GetEscrow(ctx, swap.SourceEscrowID)
		return
	}); err != nil {
		return nil, err
	}
	d.recordFills(ctx, swap.ID, source, domain.TxActionFill, domain.TxDirectionSent)

	updated, err := svc.update(ctx, swap.ID, func(s *domain.Swap) error {
		now := svc.cfg.Now()
		for _, dl := range deliveries {
			s.MarkDestinationSettled(dl.escrowID, dl.delivered, dl.settled, now)
		}
		s.UpdateSourceClaimed(source.FilledAmount(), now)
		if _, err := s.WaitForSourceClaims(now); err != nil {
			return err
		}
		if !s.IsFulfilled() {
			return nil
		}
		_, err := s.Complete(now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, settleErr
}

type delivery struct {
	escrowID  string
	delivered *big.Int
	settled   bool
}

// settleDestinationLocks fills the remaining amount of every unsettled
// destination lock. Funds always go to the receiver, so racing with a
// resolver settling the same escrow is harmless.
func (d *driver) settleDestinationLocks(
	ctx context.Context, swap *domain.Swap,
) ([]delivery, error) {
	svc := d.svc
	secret := *swap.RevealedSecret
	deliveries := make([]delivery, 0, len(swap.DestinationLocks))

	var firstErr error
	for _, lock := range swap.DestinationLocks {
		if lock.Settled {
			continue
		}

		escrow, err := d.getDestinationEscrow(ctx, lock.EscrowID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		now := svc.cfg.Now()
		if !escrow.IsTerminal() && escrow.Remaining.Sign() > 0 && !escrow.IsExpired(now) {
			if err := d.settle(ctx, swap.ID, escrow, secret); err != nil && firstErr == nil {
				firstErr = err
			}
			if fresh, err := d.getDestinationEscrow(ctx, lock.EscrowID); err == nil {
				escrow = fresh
			}
		}

		d.recordFills(ctx, swap.ID, escrow, domain.TxActionSettle, domain.TxDirectionReceived)
		deliveries = append(deliveries, delivery{
			escrowID:  escrow.ID,
			delivered: escrow.FilledAmount(),
			settled:   escrow.IsTerminal() || escrow.IsExpired(svc.cfg.Now()),
		})
	}
	return deliveries, firstErr
}

func (d *driver) settle(
	ctx context.Context, swapID string, escrow *domain.Escrow, secret htlc.Secret,
) error {
	svc := d.svc
	var rcpt ports.Receipt
	err := svc.call(ctx, svc.destination, "fill", func(ctx context.Context) (err error) {
		rcpt, err = svc.destination.FillPartial(ctx, escrow.ID, escrow.Remaining, secret)
		return
	})
	if err != nil {
		if errors.Is(err, domain.ErrOverFill) || domain.IsTerminalState(err) {
			return nil
		}
		return err
	}

	d.record(ctx, domain.TxRecord{
		SwapID:    swapID,
		Chain:     rcpt.Chain,
		Action:    domain.TxActionSettle,
		TxHash:    rcpt.TxHash,
		Direction: domain.TxDirectionReceived,
		Status:    rcpt.Status,
		Amount:    rcpt.Amount,
	})
	return nil
}

func (d *driver) getDestinationEscrow(
	ctx context.Context, escrowID string,
) (*domain.Escrow, error) {
	svc := d.svc
	var escrow *domain.Escrow
	err := svc.call(ctx, svc.destination, "get", func(ctx context.Context) (err error) {
		escrow, err = svc.destination.GetEscrow(ctx, escrowID)
		return
	})
	return escrow, err
}

func (d *driver) expire(ctx context.Context) error {
	svc := d.svc
	updated, err := svc.update(ctx, d.swapID, func(s *domain.Swap) error {
		_, err := s.Expire(svc.cfg.Now())
		return err
	})
	if err != nil {
		return err
	}
	svc.schedule(d, updated.Order.SourceExpiry())
	d.poke()
	return nil
}

// handleExpiry refunds the source escrow of an Expired swap once its time
// lock has passed. The escrow is always read first: a settled escrow
// completes the swap, a refunded one only needs to be recorded.
func (d *driver) handleExpiry(ctx context.Context, swap *domain.Swap) error {
	svc := d.svc

	if len(swap.SourceEscrowID) <= 0 {
		return d.expireWithoutSourceEscrow(ctx, swap)
	}

	var settleErr error
	if swap.RevealedSecret != nil {
		deliveries, err := d.settleDestinationLocks(ctx, swap)
		settleErr = err
		if len(deliveries) > 0 {
			if swap, err = svc.update(ctx, swap.ID, func(s *domain.Swap) error {
				for _, dl := range deliveries {
					s.MarkDestinationSettled(dl.escrowID, dl.delivered, dl.settled, svc.cfg.Now())
				}
				return nil
			}); err != nil {
				return err
			}
		}
	}

	refundHash, hasPending := swap.Pending(domain.TxActionRefund)
	if hasPending {
		status, err := d.txStatus(ctx, svc.source, refundHash)
		if err != nil {
			return err
		}
		if status == domain.TxStatusPending {
			return nil
		}
		d.updateRecord(ctx, svc.source.Chain(), refundHash, status)
		if status == domain.TxStatusFailed {
			if _, err := svc.update(ctx, swap.ID, func(s *domain.Swap) error {
				s.ClearPending(domain.TxActionRefund)
				s.Log(svc.cfg.Now(), "refund tx %s failed", refundHash)
				return nil
			}); err != nil {
				return err
			}
			refundHash = ""
		}
	}

	var escrow *domain.Escrow
	if err := svc.call(ctx, svc.source, "get", func(ctx context.Context) (err error) {
		escrow, err = svc.source.GetEscrow(ctx, swap.SourceEscrowID)
		return
	}); err != nil {
		return err
	}
	d.recordFills(ctx, swap.ID, escrow, domain.TxActionFill, domain.TxDirectionSent)

	now := svc.cfg.Now()
	switch {
	case escrow.IsSettled():
		_, err := svc.update(ctx, swap.ID, func(s *domain.Swap) error {
			s.UpdateSourceClaimed(escrow.FilledAmount(), now)
			_, err := s.CompleteSettledSource(now)
			return err
		})
		return err
	case escrow.IsRefunded():
		return d.markRefunded(ctx, swap.ID, refundHash, escrow.FilledAmount())
	case !escrow.IsExpired(now):
		return settleErr
	}

	var rcpt ports.Receipt
	if err := svc.call(ctx, svc.source, "refund", func(ctx context.Context) (err error) {
		rcpt, err = svc.source.Refund(ctx, escrow.ID)
		return
	}); err != nil {
		if errors.Is(err, domain.ErrNotYetExpired) {
			return nil
		}
		if domain.IsTerminalState(err) {
			// re-read the escrow at the next step
			d.poke()
			return nil
		}
		return err
	}

	d.record(ctx, domain.TxRecord{
		SwapID:    swap.ID,
		Chain:     rcpt.Chain,
		Action:    domain.TxActionRefund,
		TxHash:    rcpt.TxHash,
		Direction: domain.TxDirectionReceived,
		Status:    rcpt.Status,
		Amount:    rcpt.Amount,
	})

	switch {
	case rcpt.IsPending():
		_, err := svc.update(ctx, swap.ID, func(s *domain.Swap) error {
			s.SetPending(domain.TxActionRefund, rcpt.TxHash, svc.cfg.Now())
			return nil
		})
		return err
	case rcpt.IsConfirmed():
		return d.markRefunded(ctx, swap.ID, rcpt.TxHash, escrow.FilledAmount())
	default:
		return fmt.Errorf("refund tx %s failed", rcpt.TxHash)
	}
}

// expireWithoutSourceEscrow handles an Expired swap that never recorded its
// source escrow: it is either found on chain and refunded later, or there
// is nothing to refund.
func (d *driver) expireWithoutSourceEscrow(ctx context.Context, swap *domain.Swap) error {
	svc := d.svc
	pendingHash, hasPending := swap.Pending(domain.TxActionCreate)

	escrow, err := d.findSourceEscrow(ctx, swap)
	if err != nil {
		return err
	}
	if escrow != nil {
		if hasPending {
			d.updateRecord(ctx, svc.source.Chain(), pendingHash, domain.TxStatusConfirmed)
		}
		if _, err := svc.update(ctx, swap.ID, func(s *domain.Swap) error {
			_, err := s.AttachSourceEscrow(escrow.ID, pendingHash, svc.cfg.Now())
			return err
		}); err != nil {
			return err
		}
		d.poke()
		return nil
	}

	if hasPending {
		status, err := d.txStatus(ctx, svc.source, pendingHash)
		if err != nil {
			return err
		}
		if status == domain.TxStatusPending {
			return nil
		}
		d.updateRecord(ctx, svc.source.Chain(), pendingHash, status)
	}
	return d.markRefunded(ctx, swap.ID, "", nil)
}

func (d *driver) markRefunded(
	ctx context.Context, swapID, txHash string, claimed *big.Int,
) error {
	svc := d.svc
	_, err := svc.update(ctx, swapID, func(s *domain.Swap) error {
		now := svc.cfg.Now()
		s.UpdateSourceClaimed(claimed, now)
		_, err := s.Refund(txHash, now)
		return err
	})
	return err
}

func (d *driver) txStatus(
	ctx context.Context, client ports.EscrowClient, txHash string,
) (domain.TxStatus, error) {
	var status domain.TxStatus
	err := d.svc.call(ctx, client, "tx_status", func(ctx context.Context) (err error) {
		status, err = client.TxStatus(ctx, txHash)
		return
	})
	return status, err
}

// refreshPendingRecords re-queries the status of the pending ledger records
// of the given action.
func (d *driver) refreshPendingRecords(
	ctx context.Context, swapID string, client ports.EscrowClient, action domain.TxAction,
) {
	records, err := d.svc.ledger.Pending(ctx, swapID, action)
	if err != nil {
		log.WithError(err).WithField("swap", swapID).Warn(
			"orchestrator: failed to read pending records",
		)
		return
	}
	for _, r := range records {
		if r.Chain != client.Chain() {
			continue
		}
		status, err := d.txStatus(ctx, client, r.TxHash)
		if err != nil || status == domain.TxStatusPending {
			continue
		}
		d.updateRecord(ctx, r.Chain, r.TxHash, status)
	}
}

// recordFills adds the fills of an escrow to the ledger as confirmed.
func (d *driver) recordFills(
	ctx context.Context, swapID string, escrow *domain.Escrow,
	action domain.TxAction, direction domain.TxDirection,
) {
	for _, f := range escrow.Fills {
		if len(f.TxHash) <= 0 {
			continue
		}
		d.record(ctx, domain.TxRecord{
			SwapID:    swapID,
			Chain:     escrow.Chain,
			Action:    action,
			TxHash:    f.TxHash,
			Direction: direction,
			Status:    domain.TxStatusConfirmed,
			Amount:    f.Amount,
			Timestamp: f.Timestamp,
		})
		d.updateRecord(ctx, escrow.Chain, f.TxHash, domain.TxStatusConfirmed)
	}
}

func (d *driver) record(ctx context.Context, record domain.TxRecord) {
	if err := d.svc.ledger.Record(ctx, record); err != nil {
		log.WithError(err).WithField("swap", record.SwapID).Warn(
			"orchestrator: failed to record transaction",
		)
	}
}

func (d *driver) updateRecord(
	ctx context.Context, chain domain.Chain, txHash string, status domain.TxStatus,
) {
	if len(txHash) <= 0 {
		return
	}
	err := d.svc.ledger.UpdateStatus(ctx, chain, txHash, status)
	if err != nil && !errors.Is(err, domain.ErrTxRecordNotFound) {
		log.WithError(err).WithFields(log.Fields{
			"swap": d.swapID,
			"tx":   txHash,
		}).Warn("orchestrator: failed to update transaction status")
	}
}
