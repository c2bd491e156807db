package ports

import "github.com/tdex-network/xswapd/internal/core/domain"

// RepoManager holds all the repositories of the daemon.
type RepoManager interface {
	SwapRepository() domain.SwapRepository
	TxRecordRepository() domain.TxRecordRepository
	VaultRepository() domain.VaultRepository
	Close()
}
