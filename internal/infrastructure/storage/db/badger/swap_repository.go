package dbbadger

import (
	"context"
	"errors"
	"sort"

	"github.com/dgraph-io/badger/v3"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type swapRepository struct {
	store *badgerhold.Store
}

func newSwapRepository(store *badgerhold.Store) domain.SwapRepository {
	return &swapRepository{store}
}

func (r *swapRepository) AddSwap(ctx context.Context, swap *domain.Swap) error {
	if err := r.store.Insert(swap.ID, *swap); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return errors.New("swap already exists")
		}
		return err
	}
	return nil
}

func (r *swapRepository) GetSwap(ctx context.Context, swapID string) (*domain.Swap, error) {
	var swap domain.Swap
	if err := r.store.Get(swapID, &swap); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrSwapNotFound
		}
		return nil, err
	}
	return &swap, nil
}

func (r *swapRepository) GetAllSwaps(ctx context.Context) ([]*domain.Swap, error) {
	return r.findSwaps(nil)
}

func (r *swapRepository) GetSwapsByStatus(
	ctx context.Context, statuses ...domain.SwapStatus,
) ([]*domain.Swap, error) {
	if len(statuses) <= 0 {
		return []*domain.Swap{}, nil
	}
	values := make([]interface{}, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, s)
	}
	return r.findSwaps(badgerhold.Where("Status").In(values...))
}

func (r *swapRepository) GetSwapByHashLock(
	ctx context.Context, hashLock string,
) (*domain.Swap, error) {
	query := badgerhold.Where("ID").MatchFunc(func(ra *badgerhold.RecordAccess) (bool, error) {
		switch s := ra.Record().(type) {
		case *domain.Swap:
			return s.Order.HashLock.Hex() == hashLock, nil
		case domain.Swap:
			return s.Order.HashLock.Hex() == hashLock, nil
		default:
			return false, nil
		}
	})
	swaps, err := r.findSwaps(query)
	if err != nil {
		return nil, err
	}
	if len(swaps) <= 0 {
		return nil, domain.ErrSwapNotFound
	}
	return swaps[0], nil
}

func (r *swapRepository) UpdateSwap(
	ctx context.Context,
	swapID string,
	updateFn func(s *domain.Swap) (*domain.Swap, error),
) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		var swap domain.Swap
		if err := r.store.TxGet(tx, swapID, &swap); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return domain.ErrSwapNotFound
			}
			return err
		}

		updatedSwap, err := updateFn(&swap)
		if err != nil {
			return err
		}

		return r.store.TxUpdate(tx, swapID, *updatedSwap)
	})
}

func (r *swapRepository) findSwaps(query *badgerhold.Query) ([]*domain.Swap, error) {
	var swaps []domain.Swap
	if err := r.store.Find(&swaps, query); err != nil {
		return nil, err
	}

	sort.SliceStable(swaps, func(i, j int) bool {
		return swaps[i].CreatedAt < swaps[j].CreatedAt
	})

	res := make([]*domain.Swap, 0, len(swaps))
	for i := range swaps {
		res = append(res, &swaps[i])
	}
	return res, nil
}
