package dbbadger

import (
	"context"
	"errors"

	"github.com/timshannon/badgerhold/v4"
	"github.com/tdex-network/xswapd/internal/core/domain"
)

const vaultKey = "vault"

type vaultData struct {
	KeyParams []byte
}

type vaultRepository struct {
	store *badgerhold.Store
}

func newVaultRepository(store *badgerhold.Store) domain.VaultRepository {
	return &vaultRepository{store}
}

func (r *vaultRepository) GetKeyParams(ctx context.Context) ([]byte, error) {
	var data vaultData
	if err := r.store.Get(vaultKey, &data); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return data.KeyParams, nil
}

func (r *vaultRepository) SetKeyParams(ctx context.Context, params []byte) error {
	return r.store.Upsert(vaultKey, vaultData{params})
}
