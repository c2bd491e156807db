package inmemory

import (
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
)

type RepoManager struct {
	swapRepository     domain.SwapRepository
	txRecordRepository domain.TxRecordRepository
	vaultRepository    domain.VaultRepository
}

func NewRepoManager() ports.RepoManager {
	return &RepoManager{
		swapRepository:     NewSwapRepositoryImpl(),
		txRecordRepository: NewTxRecordRepositoryImpl(),
		vaultRepository:    NewVaultRepositoryImpl(),
	}
}

func (d *RepoManager) SwapRepository() domain.SwapRepository {
	return d.swapRepository
}

func (d *RepoManager) TxRecordRepository() domain.TxRecordRepository {
	return d.txRecordRepository
}

func (d *RepoManager) VaultRepository() domain.VaultRepository {
	return d.vaultRepository
}

func (d *RepoManager) Close() {}
