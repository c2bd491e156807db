package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/pkg/mathutil"
)

// validateDestinationLock checks that a destination escrow pays the order
// receiver at least the end rate share of the taking amount, and that it
// expires at least one safety margin before the source escrow.
func validateDestinationLock(
	order *domain.Order, escrow *domain.Escrow, safetyMargin time.Duration, now time.Time,
) error {
	if escrow.HashLock != order.HashLock {
		return domain.ErrHashLockMismatch
	}
	if len(escrow.OrderID) > 0 && escrow.OrderID != order.ID {
		return fmt.Errorf("escrow is bound to order %s", escrow.OrderID)
	}
	if !strings.EqualFold(escrow.Beneficiary, order.Receiver) {
		return fmt.Errorf(
			"%w: escrow pays %s", domain.ErrInvalidDestinationAddress, escrow.Beneficiary,
		)
	}
	if escrow.IsRefunded() {
		return domain.ErrEscrowRefunded
	}
	if escrow.IsExpired(now) {
		return domain.ErrExpired
	}
	if err := domain.ValidateTimeLocks(
		order.SourceTimeLock, escrow.TimeLock, safetyMargin,
	); err != nil {
		return err
	}

	claim := escrow.ClaimAmount
	if !mathutil.IsPositive(claim) || claim.Cmp(order.MakingAmount) > 0 {
		return fmt.Errorf("%w: claim amount %s", domain.ErrInvalidAmount, claim)
	}
	if minAmount := order.MinDestinationAmount(claim); escrow.TotalAmount.Cmp(minAmount) < 0 {
		return fmt.Errorf(
			"%w: locked %s, expected at least %s for a claim of %s",
			domain.ErrInvalidAmount, escrow.TotalAmount, minAmount, claim,
		)
	}
	return nil
}
