package domain

import "context"

// SwapRepository is the abstraction for any kind of database intended to
// persist Swaps.
type SwapRepository interface {
	// AddSwap inserts a new swap. Adding a swap with an existing id fails.
	AddSwap(ctx context.Context, swap *Swap) error
	// GetSwap returns the swap with the given id.
	GetSwap(ctx context.Context, swapID string) (*Swap, error)
	// GetAllSwaps returns every stored swap.
	GetAllSwaps(ctx context.Context) ([]*Swap, error)
	// GetSwapsByStatus returns the swaps in any of the given statuses.
	GetSwapsByStatus(ctx context.Context, statuses ...SwapStatus) ([]*Swap, error)
	// GetSwapByHashLock returns the swap committed to the given hash lock.
	GetSwapByHashLock(ctx context.Context, hashLock string) (*Swap, error)
	// UpdateSwap allows to commit multiple changes to the same swap in a
	// transactional way.
	UpdateSwap(
		ctx context.Context,
		swapID string,
		updateFn func(s *Swap) (*Swap, error),
	) error
}

// TxRecordRepository persists the transaction ledger.
type TxRecordRepository interface {
	// AddRecord appends a record. Records are identified by chain and tx
	// hash: adding a known one is a no-op.
	AddRecord(ctx context.Context, record TxRecord) error
	// UpdateRecordStatus moves a record from pending to confirmed or failed.
	UpdateRecordStatus(
		ctx context.Context, chain Chain, txHash string, status TxStatus,
	) error
	// GetRecord returns the record for chain and tx hash.
	GetRecord(ctx context.Context, chain Chain, txHash string) (*TxRecord, error)
	// GetRecordsForSwap returns the records of a swap ordered by timestamp.
	GetRecordsForSwap(ctx context.Context, swapID string) ([]TxRecord, error)
}

// VaultRepository persists the key parameters of the secret vault.
type VaultRepository interface {
	GetKeyParams(ctx context.Context) ([]byte, error)
	SetKeyParams(ctx context.Context, params []byte) error
}
