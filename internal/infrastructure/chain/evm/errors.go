package evm

import (
	"fmt"
	"strings"

	"github.com/tdex-network/xswapd/internal/core/domain"
)

// revertReasons maps the revert strings of the escrow contract, and the
// node message for an underfunded sender, to domain errors.
var revertReasons = []struct {
	reason string
	err    error
}{
	{"SecretMismatch", domain.ErrSecretMismatch},
	{"OverFill", domain.ErrOverFill},
	{"NotYetExpired", domain.ErrNotYetExpired},
	{"Expired", domain.ErrExpired},
	{"InvalidTimeLock", domain.ErrInvalidTimeLock},
	{"AlreadySettled", domain.ErrEscrowSettled},
	{"AlreadyRefunded", domain.ErrEscrowRefunded},
	{"Unauthorized", domain.ErrUnauthorized},
	{"InvalidAmount", domain.ErrInvalidAmount},
	{"EscrowNotFound", domain.ErrEscrowNotFound},
	{"insufficient funds", domain.ErrInsufficientFunds},
	{"InsufficientFunds", domain.ErrInsufficientFunds},
}

func mapRevert(err error) error {
	if err == nil || domain.IsTransient(err) {
		return err
	}
	msg := err.Error()
	for _, r := range revertReasons {
		if strings.Contains(msg, r.reason) {
			return fmt.Errorf("%w: %s", r.err, msg)
		}
	}
	return err
}
