package domain

import (
	"math/big"
)

// TxAction is the escrow operation a transaction performs.
type TxAction string

const (
	TxActionCreate TxAction = "create"
	TxActionFill   TxAction = "fill"
	TxActionSettle TxAction = "settle"
	TxActionRefund TxAction = "refund"
)

// TxDirection tells whether funds left or reached the swap initiator.
type TxDirection string

const (
	TxDirectionSent     TxDirection = "sent"
	TxDirectionReceived TxDirection = "received"
)

// TxStatus is the confirmation status of a transaction.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

// CanTransitionTo returns whether moving from s to next is allowed: pending
// may become confirmed or failed, nothing else changes.
func (s TxStatus) CanTransitionTo(next TxStatus) bool {
	if s == next {
		return true
	}
	return s == TxStatusPending &&
		(next == TxStatusConfirmed || next == TxStatusFailed)
}

// TxRecord is an entry of the transaction ledger.
type TxRecord struct {
	ID        string
	SwapID    string
	Chain     Chain
	Action    TxAction
	TxHash    string
	Direction TxDirection
	Status    TxStatus
	Amount    *big.Int
	Timestamp int64
}

// TxRecordKey identifies a record by chain and hash.
func TxRecordKey(chain Chain, txHash string) string {
	return string(chain) + ":" + txHash
}

// TxHistory is the ledger of a swap split by direction.
type TxHistory struct {
	Sent     []TxRecord
	Received []TxRecord
}
