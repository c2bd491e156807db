package inmemory

import (
	"context"
	"sync"

	"github.com/tdex-network/xswapd/internal/core/domain"
)

type vaultRepositoryImpl struct {
	keyParams []byte
	locker    *sync.Mutex
}

func NewVaultRepositoryImpl() domain.VaultRepository {
	return &vaultRepositoryImpl{locker: &sync.Mutex{}}
}

func (r *vaultRepositoryImpl) GetKeyParams(_ context.Context) ([]byte, error) {
	r.locker.Lock()
	defer r.locker.Unlock()
	return r.keyParams, nil
}

func (r *vaultRepositoryImpl) SetKeyParams(_ context.Context, params []byte) error {
	r.locker.Lock()
	defer r.locker.Unlock()
	r.keyParams = append([]byte{}, params...)
	return nil
}
