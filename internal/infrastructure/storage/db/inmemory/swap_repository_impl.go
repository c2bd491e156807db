package inmemory

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/tdex-network/xswapd/internal/core/domain"
)

type swapInmemoryStore struct {
	swaps  map[string][]byte
	locker *sync.Mutex
}

type swapRepositoryImpl struct {
	store *swapInmemoryStore
}

// NewSwapRepositoryImpl returns a new inmemory SwapRepository implementation.
// Swaps are stored serialized so that callers never share state with the
// repository.
func NewSwapRepositoryImpl() domain.SwapRepository {
	return &swapRepositoryImpl{&swapInmemoryStore{
		swaps:  make(map[string][]byte),
		locker: &sync.Mutex{},
	}}
}

func (r swapRepositoryImpl) AddSwap(_ context.Context, swap *domain.Swap) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.swaps[swap.ID]; ok {
		return errors.New("swap already exists")
	}
	return r.put(swap)
}

func (r swapRepositoryImpl) GetSwap(_ context.Context, swapID string) (*domain.Swap, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return r.get(swapID)
}

func (r swapRepositoryImpl) GetAllSwaps(_ context.Context) ([]*domain.Swap, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return r.filter(func(*domain.Swap) bool { return true })
}

func (r swapRepositoryImpl) GetSwapsByStatus(
	_ context.Context, statuses ...domain.SwapStatus,
) ([]*domain.Swap, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return r.filter(func(s *domain.Swap) bool {
		for _, status := range statuses {
			if s.Status == status {
				return true
			}
		}
		return false
	})
}

func (r swapRepositoryImpl) GetSwapByHashLock(
	_ context.Context, hashLock string,
) (*domain.Swap, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	swaps, err := r.filter(func(s *domain.Swap) bool {
		return s.Order.HashLock.Hex() == hashLock
	})
	if err != nil {
		return nil, err
	}
	if len(swaps) <= 0 {
		return nil, domain.ErrSwapNotFound
	}
	return swaps[0], nil
}

func (r swapRepositoryImpl) UpdateSwap(
	_ context.Context,
	swapID string,
	updateFn func(s *domain.Swap) (*domain.Swap, error),
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	swap, err := r.get(swapID)
	if err != nil {
		return err
	}

	updatedSwap, err := updateFn(swap)
	if err != nil {
		return err
	}

	return r.put(updatedSwap)
}

func (r swapRepositoryImpl) get(swapID string) (*domain.Swap, error) {
	buf, ok := r.store.swaps[swapID]
	if !ok {
		return nil, domain.ErrSwapNotFound
	}
	var swap domain.Swap
	if err := json.Unmarshal(buf, &swap); err != nil {
		return nil, err
	}
	return &swap, nil
}

func (r swapRepositoryImpl) put(swap *domain.Swap) error {
	buf, err := json.Marshal(swap)
	if err != nil {
		return err
	}
	r.store.swaps[swap.ID] = buf
	return nil
}

func (r swapRepositoryImpl) filter(
	match func(s *domain.Swap) bool,
) ([]*domain.Swap, error) {
	swaps := make([]*domain.Swap, 0)
	for id := range r.store.swaps {
		swap, err := r.get(id)
		if err != nil {
			return nil, err
		}
		if match(swap) {
			swaps = append(swaps, swap)
		}
	}
	sort.SliceStable(swaps, func(i, j int) bool {
		if swaps[i].CreatedAt == swaps[j].CreatedAt {
			return swaps[i].ID < swaps[j].ID
		}
		return swaps[i].CreatedAt < swaps[j].CreatedAt
	})
	return swaps, nil
}
