package domain

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/tdex-network/xswapd/pkg/htlc"
	"github.com/tdex-network/xswapd/pkg/mathutil"
)

// DestinationLock is a destination escrow validated against the order.
type DestinationLock struct {
	EscrowID    string
	Creator     string
	Amount      *big.Int
	ClaimAmount *big.Int
	TimeLock    int64
	Delivered   *big.Int
	Settled     bool
}

// LogEntry is one human readable progress event of a swap.
type LogEntry struct {
	Seq       int
	Timestamp int64
	Status    SwapStatus
	Message   string
}

// Swap is the orchestrator-owned state of one swap attempt. It is mutated by
// a single writer.
type Swap struct {
	ID                     string
	Order                  Order
	Status                 SwapStatus
	SealedSecret           []byte
	RevealedSecret         *htlc.Secret
	SourceEscrowID         string
	SourceLockTx           string
	DestinationLocks       []DestinationLock
	SourceClaimed          *big.Int
	DestinationDelivered   *big.Int
	CompletionThresholdBps uint64
	PendingTxs             map[TxAction]string
	RefundTx               string
	Logs                   []LogEntry
	LastError              string
	CreatedAt              int64
	UpdatedAt              int64
	ReleasedAt             int64
	ExpiredAt              int64
	CompletedAt            int64
}

// NewSwap returns a swap in Initiated status for the given order. The secret
// is kept only in its sealed form until released.
func NewSwap(
	order Order, sealedSecret []byte, completionThresholdBps uint64, now time.Time,
) *Swap {
	s := &Swap{
		ID:                     order.ID,
		Order:                  order,
		Status:                 SwapStatusInitiated,
		SealedSecret:           sealedSecret,
		DestinationLocks:       make([]DestinationLock, 0),
		SourceClaimed:          new(big.Int),
		DestinationDelivered:   new(big.Int),
		CompletionThresholdBps: completionThresholdBps,
		PendingTxs:             make(map[TxAction]string),
		Logs:                   make([]LogEntry, 0),
		CreatedAt:              now.Unix(),
		UpdatedAt:              now.Unix(),
	}
	s.Log(now, "swap initiated: %s %s for at least %s %s, hash lock %s",
		order.MakingAmount, order.SourceAsset, order.TakingAmount,
		order.DestinationAsset, order.HashLock.Short(),
	)
	return s
}

func (s *Swap) IsTerminal() bool {
	return s.Status.IsTerminal()
}

func (s *Swap) IsExpired() bool {
	return s.Status == SwapStatusExpired
}

// IsSecretReleased returns whether the secret has been released, whatever
// the current status.
func (s *Swap) IsSecretReleased() bool {
	return s.RevealedSecret != nil
}

// LockSource brings an Initiated swap to the SourceLocked status.
func (s *Swap) LockSource(escrowID, txHash string, now time.Time) (bool, error) {
	if s.Status.onHappyPath(SwapStatusSourceLocked) {
		return true, nil
	}
	if s.Status != SwapStatusInitiated {
		return false, ErrSwapMustBeInitiated
	}

	s.SourceEscrowID = escrowID
	s.SourceLockTx = txHash
	s.Order.SourceEscrowID = escrowID
	delete(s.PendingTxs, TxActionCreate)
	s.transition(SwapStatusSourceLocked, now)
	s.Log(now, "source escrow %s locked in tx %s", escrowID, txHash)
	return true, nil
}

// WaitForDestination brings a SourceLocked swap to the
// WaitingForDestinationActivity status.
func (s *Swap) WaitForDestination(now time.Time) (bool, error) {
	if s.Status.onHappyPath(SwapStatusWaitingForDestinationActivity) {
		return true, nil
	}
	if s.Status != SwapStatusSourceLocked {
		return false, ErrSwapMustBeSourceLocked
	}

	s.transition(SwapStatusWaitingForDestinationActivity, now)
	s.Log(now, "order published, waiting for resolvers")
	return true, nil
}

// AddDestinationLock records a validated destination escrow. It returns false
// if the escrow was already known or if its claim does not fit in the part
// of the making amount not yet locked for.
func (s *Swap) AddDestinationLock(lock DestinationLock, now time.Time) bool {
	for _, l := range s.DestinationLocks {
		if l.EscrowID == lock.EscrowID {
			return false
		}
	}
	if lock.ClaimAmount == nil || lock.ClaimAmount.Cmp(s.UnlockedAmount()) > 0 {
		return false
	}
	if lock.Delivered == nil {
		lock.Delivered = new(big.Int)
	}
	s.DestinationLocks = append(s.DestinationLocks, lock)
	s.UpdatedAt = now.Unix()
	s.Log(now, "destination lock %s by %s: %s for a claim of %s",
		lock.EscrowID, lock.Creator, lock.Amount, lock.ClaimAmount,
	)
	return true
}

// DestinationLockIDs returns the ids of the accepted destination escrows.
func (s *Swap) DestinationLockIDs() []string {
	ids := make([]string, 0, len(s.DestinationLocks))
	for _, l := range s.DestinationLocks {
		ids = append(ids, l.EscrowID)
	}
	return ids
}

// UnlockedAmount is the part of the making amount no destination lock
// claims yet.
func (s *Swap) UnlockedAmount() *big.Int {
	claimed := new(big.Int)
	for _, l := range s.DestinationLocks {
		claimed.Add(claimed, l.ClaimAmount)
	}
	if claimed.Cmp(s.Order.MakingAmount) >= 0 {
		return new(big.Int)
	}
	return claimed.Sub(s.Order.MakingAmount, claimed)
}

// CoveredAmount is the part of the making amount paid for by validated
// destination locks, capped at the making amount.
func (s *Swap) CoveredAmount() *big.Int {
	covered := new(big.Int)
	for _, l := range s.DestinationLocks {
		covered.Add(covered, l.ClaimAmount)
	}
	return mathutil.Min(covered, s.Order.MakingAmount)
}

// IsCovered returns whether destination locks satisfy the release policy of
// the order.
func (s *Swap) IsCovered() bool {
	if len(s.DestinationLocks) <= 0 {
		return false
	}
	if s.Order.ReleasePolicy == ReleaseOnFirstLock {
		return true
	}
	required := CompletionAmount(s.Order.MakingAmount, s.CompletionThresholdBps)
	return s.CoveredAmount().Cmp(required) >= 0
}

// MarkReleasable brings a WaitingForDestinationActivity swap to the
// SecretReleasable status once destination locks cover the order.
func (s *Swap) MarkReleasable(now time.Time) (bool, error) {
	if s.Status.onHappyPath(SwapStatusSecretReleasable) {
		return true, nil
	}
	if s.Status != SwapStatusWaitingForDestinationActivity {
		return false, ErrSwapMustBeWaiting
	}
	if !s.IsCovered() {
		return false, ErrSwapInsufficientCoverage
	}

	s.transition(SwapStatusSecretReleasable, now)
	s.Log(now, "destination locks cover %s of %s, secret releasable",
		s.CoveredAmount(), s.Order.MakingAmount,
	)
	return true, nil
}

// ReleaseSecret brings a SecretReleasable swap to the SecretReleased status.
// The secret must open the order hash lock.
func (s *Swap) ReleaseSecret(secret htlc.Secret, now time.Time) (bool, error) {
	if s.Status.onHappyPath(SwapStatusSecretReleased) {
		return true, nil
	}
	if s.Status != SwapStatusSecretReleasable {
		return false, ErrSwapMustBeReleasable
	}
	if !htlc.Verify(secret, s.Order.HashLock) {
		return false, ErrHashLockMismatch
	}

	released := secret
	s.RevealedSecret = &released
	s.ReleasedAt = now.Unix()
	s.transition(SwapStatusSecretReleased, now)
	s.Log(now, "secret released")
	return true, nil
}

// WaitForSourceClaims brings a SecretReleased swap to the
// WaitingForSourceClaims status.
func (s *Swap) WaitForSourceClaims(now time.Time) (bool, error) {
	if s.Status.onHappyPath(SwapStatusWaitingForSourceClaims) {
		return true, nil
	}
	if s.Status != SwapStatusSecretReleased {
		return false, ErrSwapMustBeReleased
	}

	s.transition(SwapStatusWaitingForSourceClaims, now)
	s.Log(now, "waiting for resolvers to claim the source escrow")
	return true, nil
}

// UpdateSourceClaimed sets the amount claimed from the source escrow. The
// value never decreases.
func (s *Swap) UpdateSourceClaimed(claimed *big.Int, now time.Time) bool {
	if claimed == nil || claimed.Cmp(s.SourceClaimed) <= 0 {
		return false
	}
	s.SourceClaimed = new(big.Int).Set(claimed)
	s.UpdatedAt = now.Unix()
	s.Log(now, "source escrow claimed %s of %s", claimed, s.Order.MakingAmount)
	return true
}

// MarkDestinationSettled records the amount delivered to the receiver by a
// destination lock.
func (s *Swap) MarkDestinationSettled(
	escrowID string, delivered *big.Int, settled bool, now time.Time,
) bool {
	for i, l := range s.DestinationLocks {
		if l.EscrowID != escrowID {
			continue
		}
		if l.Settled || (delivered.Cmp(l.Delivered) <= 0 && settled == l.Settled) {
			return false
		}
		s.DestinationLocks[i].Delivered = new(big.Int).Set(delivered)
		s.DestinationLocks[i].Settled = settled

		total := new(big.Int)
		for _, l := range s.DestinationLocks {
			total.Add(total, l.Delivered)
		}
		s.DestinationDelivered = total
		s.UpdatedAt = now.Unix()
		s.Log(now, "destination escrow %s delivered %s to receiver", escrowID, delivered)
		return true
	}
	return false
}

// IsFulfilled returns whether both source claims and destination deliveries
// reached the order amounts net of the completion threshold.
func (s *Swap) IsFulfilled() bool {
	src := CompletionAmount(s.Order.MakingAmount, s.CompletionThresholdBps)
	dst := CompletionAmount(s.Order.TakingAmount, s.CompletionThresholdBps)
	return s.SourceClaimed.Cmp(src) >= 0 && s.DestinationDelivered.Cmp(dst) >= 0
}

// Complete brings the swap to the Completed status once fulfilled.
func (s *Swap) Complete(now time.Time) (bool, error) {
	if s.Status == SwapStatusCompleted {
		return true, nil
	}
	if s.Status != SwapStatusSecretReleased &&
		s.Status != SwapStatusWaitingForSourceClaims {
		return false, ErrSwapMustBeReleased
	}
	if !s.IsFulfilled() {
		return false, ErrSwapBelowThreshold
	}

	s.CompletedAt = now.Unix()
	s.transition(SwapStatusCompleted, now)
	s.Log(now, "swap completed: claimed %s, delivered %s",
		s.SourceClaimed, s.DestinationDelivered,
	)
	return true, nil
}

// CompleteSettledSource brings an Expired swap to the Completed status when
// the refund finds the source escrow already settled by resolvers.
func (s *Swap) CompleteSettledSource(now time.Time) (bool, error) {
	if s.Status == SwapStatusCompleted {
		return true, nil
	}
	if s.Status != SwapStatusExpired {
		return false, ErrSwapMustBeExpired
	}

	s.SourceClaimed = new(big.Int).Set(s.Order.MakingAmount)
	s.CompletedAt = now.Unix()
	s.transition(SwapStatusCompleted, now)
	s.Log(now, "source escrow found settled during refund, swap completed")
	if !s.IsFulfilled() {
		s.Log(now, "warning: destination delivered %s, expected at least %s",
			s.DestinationDelivered, s.Order.TakingAmount,
		)
	}
	return true, nil
}

// RelevantExpiry returns the deadline after which the swap expires: the
// destination time lock until the secret is released, the source one after.
func (s *Swap) RelevantExpiry() time.Time {
	if !s.IsSecretReleased() {
		return s.Order.DestinationExpiry()
	}
	return s.Order.SourceExpiry()
}

// AttachSourceEscrow records a source escrow found on chain for an Expired
// swap that never saw the receipt of its lock, so that it can be refunded.
func (s *Swap) AttachSourceEscrow(escrowID, txHash string, now time.Time) (bool, error) {
	if len(s.SourceEscrowID) > 0 {
		return s.SourceEscrowID == escrowID, nil
	}
	if s.Status != SwapStatusExpired {
		return false, ErrSwapMustBeExpired
	}

	s.SourceEscrowID = escrowID
	s.SourceLockTx = txHash
	s.Order.SourceEscrowID = escrowID
	delete(s.PendingTxs, TxActionCreate)
	s.UpdatedAt = now.Unix()
	s.Log(now, "found source escrow %s locked before expiry", escrowID)
	return true, nil
}

// Expire brings any non terminal swap to the Expired status.
func (s *Swap) Expire(now time.Time) (bool, error) {
	if s.Status == SwapStatusExpired || s.Status == SwapStatusRefunded {
		return true, nil
	}
	if s.IsTerminal() {
		return false, ErrSwapTerminal
	}

	from := s.Status
	s.ExpiredAt = now.Unix()
	s.transition(SwapStatusExpired, now)
	s.Log(now, "swap expired while %s", from)
	return true, nil
}

// Refund brings an Expired swap to the Refunded status. An empty txHash
// means there was nothing to refund.
func (s *Swap) Refund(txHash string, now time.Time) (bool, error) {
	if s.Status == SwapStatusRefunded {
		return true, nil
	}
	if s.Status != SwapStatusExpired {
		return false, ErrSwapMustBeExpired
	}

	s.RefundTx = txHash
	delete(s.PendingTxs, TxActionRefund)
	s.transition(SwapStatusRefunded, now)
	if len(txHash) > 0 {
		s.Log(now, "source escrow refunded in tx %s", txHash)
	} else {
		s.Log(now, "swap refunded, no source funds were locked")
	}
	return true, nil
}

// SetPending records the hash of a submitted but unconfirmed transaction.
func (s *Swap) SetPending(action TxAction, txHash string, now time.Time) {
	if s.PendingTxs == nil {
		s.PendingTxs = make(map[TxAction]string)
	}
	s.PendingTxs[action] = txHash
	s.UpdatedAt = now.Unix()
	s.Log(now, "%s tx %s pending", action, txHash)
}

// Pending returns the hash of the pending transaction for action, if any.
func (s *Swap) Pending(action TxAction) (string, bool) {
	h, ok := s.PendingTxs[action]
	return h, ok
}

func (s *Swap) ClearPending(action TxAction) {
	delete(s.PendingTxs, action)
}

// Fail records a non fatal error without changing the status.
func (s *Swap) Fail(err error, now time.Time) {
	if err == nil {
		return
	}
	s.LastError = err.Error()
	s.UpdatedAt = now.Unix()
	s.Log(now, "error: %s", err)
}

// ClearError resets the last recorded error.
func (s *Swap) ClearError() {
	s.LastError = ""
}

// Log appends a progress event.
func (s *Swap) Log(now time.Time, format string, args ...interface{}) LogEntry {
	entry := LogEntry{
		Seq:       len(s.Logs),
		Timestamp: now.UnixMilli(),
		Status:    s.Status,
		Message:   fmt.Sprintf(format, args...),
	}
	s.Logs = append(s.Logs, entry)
	return entry
}

// LogsFrom returns the log entries with sequence number >= seq.
func (s *Swap) LogsFrom(seq int) []LogEntry {
	if seq < 0 {
		seq = 0
	}
	if seq >= len(s.Logs) {
		return nil
	}
	out := make([]LogEntry, len(s.Logs)-seq)
	copy(out, s.Logs[seq:])
	return out
}

// TxHashes returns every transaction hash submitted for the swap.
func (s *Swap) TxHashes() []string {
	hashes := make([]string, 0)
	if len(s.SourceLockTx) > 0 {
		hashes = append(hashes, s.SourceLockTx)
	}
	if len(s.RefundTx) > 0 {
		hashes = append(hashes, s.RefundTx)
	}
	actions := make([]string, 0, len(s.PendingTxs))
	for a := range s.PendingTxs {
		actions = append(actions, string(a))
	}
	sort.Strings(actions)
	for _, a := range actions {
		hashes = append(hashes, s.PendingTxs[TxAction(a)])
	}
	return hashes
}

func (s *Swap) transition(status SwapStatus, now time.Time) {
	s.Status = status
	s.UpdatedAt = now.Unix()
}
