package resolver

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/pkg/htlc"
	"github.com/tdex-network/xswapd/pkg/mathutil"
)

var (
	errNotAccepted   = errors.New("destination escrow not accepted by the maker")
	errSourceClaimed = errors.New("source escrow claimed by others")
)

// job walks one order through the agent state machine.
type job struct {
	agent *Agent
	order domain.Order
	log   *log.Entry

	// locked is set once a destination escrow of the agent exists.
	locked   bool
	escrowID string
	slice    *big.Int
}

func (j *job) now() time.Time {
	return j.agent.cfg.Now()
}

func (j *job) setState(state State) {
	j.agent.setState(j.order.ID, state)
	j.log.WithField("state", state).Debug("resolver: order state changed")
}

func (j *job) run(ctx context.Context) (State, string) {
	j.setState(StateEvaluating)
	if err := j.validateOrder(ctx); err != nil {
		return StateAbandoned, err.Error()
	}

	own, err := j.findOwnEscrow(ctx)
	if err != nil {
		return StateAbandoned, err.Error()
	}
	if own != nil {
		j.locked, j.escrowID, j.slice = true, own.ID, own.ClaimAmount
	} else {
		decision, err := j.evaluate(ctx)
		if err != nil {
			return StateAbandoned, err.Error()
		}
		if decision.Skip {
			return StateAbandoned, decision.Reason
		}

		j.setState(StateFillingDestination)
		if err := j.lockDestination(ctx, decision); err != nil {
			return StateAbandoned, err.Error()
		}
	}

	j.setState(StateAwaitingSecret)
	secret, err := j.awaitSecret(ctx)
	if err != nil {
		return StateAbandoned, err.Error()
	}

	j.setState(StateClaimingSource)
	if !j.isAccepted(ctx) {
		return StateAbandoned, j.refundWhenExpired(ctx, errNotAccepted)
	}
	claimed, err := j.claimSource(ctx, secret)
	if err != nil {
		if errors.Is(err, domain.ErrSecretMismatch) {
			return StateAbandoned, j.refundWhenExpired(ctx, err)
		}
		return StateAbandoned, err.Error()
	}
	if claimed.Sign() <= 0 {
		return StateAbandoned, j.refundWhenExpired(ctx, errSourceClaimed)
	}

	j.settleDestination(ctx, secret, claimed)
	if claimed.Cmp(j.slice) < 0 {
		missing := new(big.Int).Sub(j.slice, claimed)
		reason := j.refundWhenExpired(ctx, fmt.Errorf("source escrow short of %s", missing))
		return StateDone, fmt.Sprintf("claimed %s of source escrow, %s", claimed, reason)
	}
	return StateDone, fmt.Sprintf("claimed %s of source escrow", claimed)
}

// isAccepted waits to know whether the maker accepted the own destination
// escrow. A secret learnt from the chain only does not tell, so unless the
// maker already took funds out of the own escrow the release from the order
// book is awaited until the escrow expires.
func (j *job) isAccepted(ctx context.Context) bool {
	a := j.agent
	for {
		if accepted, _ := a.secrets.acceptance(j.order.HashLock, j.escrowID); accepted {
			return true
		}
		own, err := j.ownEscrow(ctx)
		if err == nil {
			if own.FilledAmount().Sign() > 0 {
				return true
			}
			if own.IsTerminal() || own.IsExpired(j.now()) {
				return false
			}
		}
		if _, known := a.secrets.acceptance(j.order.HashLock, j.escrowID); known {
			return false
		}
		if !a.sleep(ctx) {
			return false
		}
	}
}

// validateOrder checks the order against its source escrow on chain.
func (j *job) validateOrder(ctx context.Context) error {
	a := j.agent
	if len(j.order.SourceEscrowID) <= 0 {
		return fmt.Errorf("order has no source escrow")
	}
	if err := domain.ValidateTimeLocks(
		j.order.SourceTimeLock, j.order.DestinationTimeLock, a.cfg.SafetyMargin,
	); err != nil {
		return err
	}
	if err := a.destination.ValidateAddress(j.order.Receiver); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidDestinationAddress, err)
	}

	var escrow *domain.Escrow
	if err := j.retry(ctx, func() error {
		return a.call(ctx, a.source, "get", func(ctx context.Context) (err error) {
			escrow, err = a.source.GetEscrow(ctx, j.order.SourceEscrowID)
			return
		})
	}); err != nil {
		return err
	}

	switch {
	case escrow.HashLock != j.order.HashLock:
		return domain.ErrHashLockMismatch
	case !strings.EqualFold(escrow.Creator, j.order.Maker):
		return fmt.Errorf("source escrow not created by the maker")
	case escrow.TotalAmount.Cmp(j.order.MakingAmount) != 0:
		return fmt.Errorf("source escrow amount does not match the order")
	case escrow.TimeLock != j.order.SourceTimeLock:
		return fmt.Errorf("source escrow time lock does not match the order")
	case escrow.IsTerminal():
		return domain.ErrEscrowTerminal
	case escrow.IsExpired(j.now()):
		return domain.ErrExpired
	}
	return nil
}

// findOwnEscrow returns the destination escrow the agent already locked for
// the order, if any.
func (j *job) findOwnEscrow(ctx context.Context) (*domain.Escrow, error) {
	escrows, err := j.destinationEscrows(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range escrows {
		if strings.EqualFold(e.Creator, j.agent.destination.Address()) &&
			(e.OrderID == "" || e.OrderID == j.order.ID) {
			return e, nil
		}
	}
	return nil, nil
}

func (j *job) destinationEscrows(ctx context.Context) ([]*domain.Escrow, error) {
	a := j.agent
	var escrows []*domain.Escrow
	err := j.retry(ctx, func() error {
		return a.call(ctx, a.destination, "find", func(ctx context.Context) (err error) {
			escrows, err = a.destination.FindEscrows(ctx, j.order.HashLock)
			return
		})
	})
	return escrows, err
}

// covered returns the part of the making amount already paid for by live
// destination escrows.
func (j *job) covered(escrows []*domain.Escrow) *big.Int {
	covered := new(big.Int)
	for _, e := range escrows {
		if e.IsRefunded() || !strings.EqualFold(e.Beneficiary, j.order.Receiver) {
			continue
		}
		if e.ClaimAmount != nil {
			covered.Add(covered, e.ClaimAmount)
		}
	}
	return covered
}

// evaluate waits for the auction to reach a profitable rate, the order to
// be fully covered or the fill deadline to pass.
func (j *job) evaluate(ctx context.Context) (Decision, error) {
	a := j.agent
	deadline := j.order.DestinationExpiry().Add(-a.cfg.FillDeadlineBuffer)

	for {
		now := j.now()
		if !now.Before(deadline) {
			return skip("fill deadline passed"), nil
		}

		escrows, err := j.destinationEscrows(ctx)
		if err != nil {
			return Decision{}, err
		}
		rate, err := a.rates.MarketRate(ctx, j.order.SourceAsset, j.order.DestinationAsset)
		if err != nil {
			j.log.WithError(err).Debug("resolver: market rate unavailable")
		} else {
			covered := j.covered(escrows)
			decision := Evaluate(
				&j.order, covered, rate, a.cfg.MaxFillAmount, a.cfg.MinMarginBps, now,
			)
			if !decision.Skip || covered.Cmp(j.order.MakingAmount) >= 0 {
				return decision, nil
			}
			j.log.Debugf("resolver: waiting, %s", decision.Reason)
		}

		if !a.sleep(ctx) {
			return Decision{}, ctx.Err()
		}
	}
}

// lockDestination creates the destination escrow for the receiver. When the
// outcome of a submission is unknown the chain is re-queried before any
// retry.
func (j *job) lockDestination(ctx context.Context, decision Decision) error {
	a := j.agent
	args := ports.CreateEscrowArgs{
		HashLock:    j.order.HashLock,
		TimeLock:    j.order.DestinationTimeLock,
		Amount:      decision.DestinationAmount,
		Beneficiary: j.order.Receiver,
		OrderID:     j.order.ID,
		ClaimAmount: decision.SourceAmount,
	}

	for {
		var rcpt ports.Receipt
		err := a.call(ctx, a.destination, "create", func(ctx context.Context) (err error) {
			rcpt, err = a.destination.Create(ctx, args)
			return
		})
		if err != nil && !domain.IsTransient(err) {
			return err
		}
		if err == nil && rcpt.IsConfirmed() {
			j.locked, j.escrowID, j.slice = true, rcpt.EscrowID, decision.SourceAmount
			j.log.WithFields(log.Fields{
				"escrow": rcpt.EscrowID,
				"amount": decision.DestinationAmount,
				"claim":  decision.SourceAmount,
				"rate":   decision.Rate,
			}).Info("resolver: destination escrow locked")
			return nil
		}
		if err == nil && !rcpt.IsPending() {
			return fmt.Errorf("destination lock tx %s failed", rcpt.TxHash)
		}

		// unknown outcome: wait for the escrow to show up on chain.
		for {
			if !a.sleep(ctx) {
				return ctx.Err()
			}
			own, ferr := j.findOwnEscrow(ctx)
			if ferr != nil {
				return ferr
			}
			if own != nil {
				j.locked, j.escrowID, j.slice = true, own.ID, own.ClaimAmount
				return nil
			}
			if err != nil || len(rcpt.TxHash) <= 0 {
				break
			}
			status, serr := a.destination.TxStatus(ctx, rcpt.TxHash)
			if serr == nil && status == domain.TxStatusFailed {
				return fmt.Errorf("destination lock tx %s failed", rcpt.TxHash)
			}
		}

		if !j.now().Before(j.order.DestinationExpiry()) {
			return domain.ErrExpired
		}
	}
}

// awaitSecret waits for the secret from the order book or from any
// destination escrow already filled with it. Once the own escrow expires it
// is refunded instead.
func (j *job) awaitSecret(ctx context.Context) (htlc.Secret, error) {
	a := j.agent
	ready := a.secrets.wait(j.order.HashLock)

	for {
		if secret, ok := a.secrets.get(j.order.HashLock); ok {
			return secret, nil
		}

		escrows, err := j.destinationEscrows(ctx)
		if err != nil {
			j.log.WithError(err).Debug("resolver: failed to read destination escrows")
		}
		for _, e := range escrows {
			if e.RevealedSecret != nil && a.secrets.put(j.order.HashLock, *e.RevealedSecret) {
				return *e.RevealedSecret, nil
			}
		}

		if !j.now().Before(j.order.DestinationExpiry()) {
			return htlc.Secret{}, errors.New(j.refundWhenExpired(ctx, domain.ErrSecretNotRevealed))
		}

		t := time.NewTimer(a.cfg.PollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return htlc.Secret{}, ctx.Err()
		case <-ready:
		case <-t.C:
		}
		t.Stop()
	}
}

// claimSource fills the source escrow for the slice paid on the
// destination chain. An OverFill is retried once with what is left.
func (j *job) claimSource(ctx context.Context, secret htlc.Secret) (*big.Int, error) {
	a := j.agent
	amount := new(big.Int).Set(j.slice)
	retried := false

	for {
		var rcpt ports.Receipt
		err := a.call(ctx, a.source, "fill", func(ctx context.Context) (err error) {
			rcpt, err = a.source.FillPartial(ctx, j.order.SourceEscrowID, amount, secret)
			return
		})

		switch {
		case err == nil && rcpt.IsConfirmed():
			return amount, nil
		case err == nil && rcpt.IsPending():
			status, serr := j.awaitTx(ctx, a.source, rcpt.TxHash)
			if serr != nil {
				return nil, serr
			}
			if status == domain.TxStatusConfirmed {
				return amount, nil
			}
		case err == nil:
			j.log.Warnf("resolver: source claim tx %s failed", rcpt.TxHash)
		case errors.Is(err, domain.ErrOverFill):
			if retried {
				return new(big.Int), nil
			}
			escrow, gerr := j.sourceEscrow(ctx)
			if gerr != nil {
				return nil, gerr
			}
			if escrow.Remaining.Sign() <= 0 {
				return new(big.Int), nil
			}
			amount = mathutil.Min(amount, escrow.Remaining)
			retried = true
			continue
		case domain.IsTerminalState(err):
			return new(big.Int), nil
		case errors.Is(err, domain.ErrSecretMismatch), errors.Is(err, domain.ErrExpired):
			return nil, err
		case !domain.IsTransient(err):
			return nil, err
		}

		// unknown or failed outcome: check for an own fill before retrying.
		escrow, gerr := j.sourceEscrow(ctx)
		if gerr == nil {
			for _, f := range escrow.Fills {
				if strings.EqualFold(f.Filler, a.source.Address()) {
					return f.Amount, nil
				}
			}
		}
		if !a.sleep(ctx) {
			return nil, ctx.Err()
		}
	}
}

func (j *job) sourceEscrow(ctx context.Context) (*domain.Escrow, error) {
	a := j.agent
	var escrow *domain.Escrow
	err := j.retry(ctx, func() error {
		return a.call(ctx, a.source, "get", func(ctx context.Context) (err error) {
			escrow, err = a.source.GetEscrow(ctx, j.order.SourceEscrowID)
			return
		})
	})
	return escrow, err
}

func (j *job) ownEscrow(ctx context.Context) (*domain.Escrow, error) {
	a := j.agent
	var escrow *domain.Escrow
	err := a.call(ctx, a.destination, "get", func(ctx context.Context) (err error) {
		escrow, err = a.destination.GetEscrow(ctx, j.escrowID)
		return
	})
	return escrow, err
}

// settleDestination delivers to the receiver the share of the own
// destination escrow paid for by the claimed amount of the source escrow.
// The maker may settle it first, which is fine.
func (j *job) settleDestination(ctx context.Context, secret htlc.Secret, claimed *big.Int) {
	a := j.agent
	escrow, err := j.ownEscrow(ctx)
	if err != nil {
		j.log.WithError(err).Warn("resolver: failed to read own destination escrow")
		return
	}
	if escrow.IsTerminal() || escrow.IsExpired(j.now()) {
		return
	}

	amount := settlementShare(escrow, claimed, j.slice)
	if amount.Sign() <= 0 {
		return
	}

	err = a.call(ctx, a.destination, "fill", func(ctx context.Context) error {
		_, err := a.destination.FillPartial(ctx, escrow.ID, amount, secret)
		return err
	})
	if err != nil && !errors.Is(err, domain.ErrOverFill) && !domain.IsTerminalState(err) {
		j.log.WithError(err).Warn("resolver: failed to settle own destination escrow")
	}
}

// settlementShare returns what is still to deliver from the escrow for a
// claim of claimed out of slice, capped by the escrow remaining amount.
func settlementShare(escrow *domain.Escrow, claimed, slice *big.Int) *big.Int {
	share := new(big.Int).Set(escrow.TotalAmount)
	if claimed.Cmp(slice) < 0 {
		share.Mul(share, claimed)
		share.Quo(share, slice)
	}
	share.Sub(share, escrow.FilledAmount())
	return mathutil.Min(share, escrow.Remaining)
}

// refundWhenExpired waits for the own destination escrow to expire and
// refunds it. It returns the reason the order was abandoned.
func (j *job) refundWhenExpired(ctx context.Context, cause error) string {
	a := j.agent
	if !j.locked {
		return cause.Error()
	}

	for {
		escrow, err := j.ownEscrow(ctx)
		if err == nil {
			if escrow.IsTerminal() {
				return fmt.Sprintf("%s, own destination escrow %s", cause, escrow.Status)
			}
			if escrow.IsExpired(j.now()) {
				var rcpt ports.Receipt
				err = a.call(ctx, a.destination, "refund", func(ctx context.Context) (err error) {
					rcpt, err = a.destination.Refund(ctx, j.escrowID)
					return
				})
				if err == nil {
					return fmt.Sprintf("%s, refunded %s in tx %s", cause, rcpt.Amount, rcpt.TxHash)
				}
				if domain.IsTerminalState(err) {
					continue
				}
			}
		}
		if err != nil && !errors.Is(err, domain.ErrNotYetExpired) {
			j.log.WithError(err).Debug("resolver: refund of own destination escrow failed")
		}
		if !a.sleep(ctx) {
			return ctx.Err().Error()
		}
	}
}

// awaitTx polls the status of a transaction until it is no longer pending.
func (j *job) awaitTx(
	ctx context.Context, client ports.EscrowClient, txHash string,
) (domain.TxStatus, error) {
	for {
		status, err := client.TxStatus(ctx, txHash)
		if err == nil && status != domain.TxStatusPending {
			return status, nil
		}
		if err != nil && !domain.IsTransient(err) {
			return "", err
		}
		if !j.agent.sleep(ctx) {
			return "", ctx.Err()
		}
	}
}

// retry runs fn until it succeeds or fails with a non transient error.
func (j *job) retry(ctx context.Context, fn func() error) error {
	for {
		err := fn()
		if err == nil || !domain.IsTransient(err) {
			return err
		}
		j.log.WithError(err).Debug("resolver: transient failure, retrying")
		if !j.agent.sleep(ctx) {
			return ctx.Err()
		}
	}
}
