package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Input errors, rejected before any chain call.
var (
	// ErrInvalidAmount is returned for nil, zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrInvalidDestinationAddress is returned when the receiver address is not
	// valid for the destination chain.
	ErrInvalidDestinationAddress = errors.New("invalid destination address")
	ErrInvalidSourceAddress = errors.New("invalid source address")
	// ErrInvalidTimeLock is returned when a time lock is not strictly in the
	// future.
	ErrInvalidTimeLock = errors.New("time lock must be in the future")
	// ErrRateUnknown is returned when no exchange rate is available for a new
	// order.
	ErrRateUnknown = errors.New("exchange rate unknown")
	// ErrUnknownReleasePolicy is returned for a release policy other than
	// "full" or "any".
	ErrUnknownReleasePolicy = errors.New("unknown release policy")
)

// Chain rejections.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSecretMismatch    = errors.New("secret does not match hash lock")
	ErrOverFill          = errors.New("fill amount exceeds escrow remaining amount")
	ErrExpired           = errors.New("escrow time lock expired")
	ErrNotYetExpired     = errors.New("escrow time lock not yet expired")
	ErrUnauthorized      = errors.New("caller not authorized for escrow")
)

// Terminal-state violations.
var (
	ErrEscrowTerminal = errors.New("escrow is in a terminal state")
	ErrEscrowSettled  = fmt.Errorf("%w: settled", ErrEscrowTerminal)
	ErrEscrowRefunded = fmt.Errorf("%w: refunded", ErrEscrowTerminal)
)

// Protocol invariant violations.
var (
	ErrTimeLockOrdering = errors.New(
		"destination time lock plus safety margin exceeds source time lock",
	)
	ErrHashLockMismatch = errors.New("hash lock mismatch between chains")
)

// Transient infrastructure errors.
var (
	ErrNodeUnavailable = errors.New("chain node unavailable")
	ErrRPCTimeout      = errors.New("chain call timed out")
	ErrReceiptPending  = errors.New("transaction receipt not yet available")
)

// Wallet errors.
var (
	ErrSigningRejected    = errors.New("signing rejected by wallet")
	ErrWalletDisconnected = errors.New("wallet disconnected")
)

// Swap and repository errors.
var (
	ErrInsufficientSourceBalance = errors.New("insufficient source balance")
	ErrSwapNotFound              = errors.New("swap not found")
	ErrOrderNotFound             = errors.New("order not found")
	ErrEscrowNotFound            = errors.New("escrow not found")
	ErrTxRecordNotFound          = errors.New("transaction record not found")
	ErrSecretNotRevealed         = errors.New("secret not revealed")
	ErrSwapMustBeInitiated       = errors.New("swap must be initiated")
	ErrSwapMustBeSourceLocked    = errors.New("swap must have the source escrow locked")
	ErrSwapMustBeWaiting         = errors.New("swap must be waiting for destination activity")
	ErrSwapMustBeReleasable      = errors.New("swap must be in secret releasable status")
	ErrSwapMustBeReleased        = errors.New("swap must have the secret released")
	ErrSwapMustBeExpired         = errors.New("swap must be expired")
	ErrSwapTerminal              = errors.New("swap is in a terminal status")
	ErrSwapInsufficientCoverage  = errors.New("destination locks do not cover the order")
	ErrSwapBelowThreshold        = errors.New("claimed amounts below completion threshold")
	ErrInvalidTxStatusTransition = errors.New("invalid transaction status transition")
)

// IsTransient returns whether the error is a transient infrastructure failure
// that may be retried after re-querying chain state.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNodeUnavailable) ||
		errors.Is(err, ErrRPCTimeout) ||
		errors.Is(err, ErrReceiptPending) ||
		errors.Is(err, ErrWalletDisconnected)
}

// IsChainRejection returns whether the error was raised by the escrow logic
// on chain.
func IsChainRejection(err error) bool {
	for _, e := range []error{
		ErrInsufficientFunds, ErrSecretMismatch, ErrOverFill, ErrExpired,
		ErrNotYetExpired, ErrInvalidTimeLock, ErrUnauthorized,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// IsTerminalState returns whether the error reports a mutation attempted on
// a settled or refunded escrow.
func IsTerminalState(err error) bool {
	return errors.Is(err, ErrEscrowTerminal)
}

// SwapError is the user-visible failure of a swap: it always carries the
// status of the swap and the hashes of the transactions already submitted.
type SwapError struct {
	SwapID   string
	Status   SwapStatus
	TxHashes []string
	Err      error
}

func (e *SwapError) Error() string {
	msg := fmt.Sprintf("swap %s (%s): %s", e.SwapID, e.Status, e.Err)
	if len(e.TxHashes) > 0 {
		msg += fmt.Sprintf(" [txs: %s]", strings.Join(e.TxHashes, ", "))
	}
	return msg
}

func (e *SwapError) Unwrap() error {
	return e.Err
}

// NewSwapError wraps err with the current state of the swap.
func NewSwapError(s *Swap, err error) *SwapError {
	return &SwapError{
		SwapID:   s.ID,
		Status:   s.Status,
		TxHashes: s.TxHashes(),
		Err:      err,
	}
}
