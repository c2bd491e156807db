package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/pkg/mathutil"
)

type txRecordRepositoryImpl struct {
	records map[string]domain.TxRecord
	locker  *sync.RWMutex
}

// NewTxRecordRepositoryImpl returns a new inmemory TxRecordRepository
// implementation.
func NewTxRecordRepositoryImpl() domain.TxRecordRepository {
	return &txRecordRepositoryImpl{
		records: make(map[string]domain.TxRecord),
		locker:  &sync.RWMutex{},
	}
}

func (r *txRecordRepositoryImpl) AddRecord(_ context.Context, record domain.TxRecord) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	key := domain.TxRecordKey(record.Chain, record.TxHash)
	if _, ok := r.records[key]; ok {
		return nil
	}
	record.ID = key
	record.Amount = mathutil.Clone(record.Amount)
	r.records[key] = record
	return nil
}

func (r *txRecordRepositoryImpl) UpdateRecordStatus(
	_ context.Context, chain domain.Chain, txHash string, status domain.TxStatus,
) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	key := domain.TxRecordKey(chain, txHash)
	record, ok := r.records[key]
	if !ok {
		return domain.ErrTxRecordNotFound
	}
	if !record.Status.CanTransitionTo(status) {
		return domain.ErrInvalidTxStatusTransition
	}
	record.Status = status
	r.records[key] = record
	return nil
}

func (r *txRecordRepositoryImpl) GetRecord(
	_ context.Context, chain domain.Chain, txHash string,
) (*domain.TxRecord, error) {
	r.locker.RLock()
	defer r.locker.RUnlock()

	record, ok := r.records[domain.TxRecordKey(chain, txHash)]
	if !ok {
		return nil, domain.ErrTxRecordNotFound
	}
	record.Amount = mathutil.Clone(record.Amount)
	return &record, nil
}

func (r *txRecordRepositoryImpl) GetRecordsForSwap(
	_ context.Context, swapID string,
) ([]domain.TxRecord, error) {
	r.locker.RLock()
	defer r.locker.RUnlock()

	records := make([]domain.TxRecord, 0)
	for _, record := range r.records {
		if record.SwapID == swapID {
			record.Amount = mathutil.Clone(record.Amount)
			records = append(records, record)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Timestamp == records[j].Timestamp {
			return records[i].ID < records[j].ID
		}
		return records[i].Timestamp < records[j].Timestamp
	})
	return records, nil
}
