package dbbadger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v3"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type txRecordRepository struct {
	store *badgerhold.Store
}

func newTxRecordRepository(store *badgerhold.Store) domain.TxRecordRepository {
	return &txRecordRepository{store}
}

// Close releases the underlying store. Only standalone ledgers are closed
// this way, the repo manager closes its own stores.
func (r *txRecordRepository) Close() {
	r.store.Close()
}

func (r *txRecordRepository) AddRecord(ctx context.Context, record domain.TxRecord) error {
	key := domain.TxRecordKey(record.Chain, record.TxHash)
	record.ID = key
	if err := r.store.Insert(key, record); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return nil
		}
		return err
	}
	return nil
}

func (r *txRecordRepository) UpdateRecordStatus(
	ctx context.Context, chain domain.Chain, txHash string, status domain.TxStatus,
) error {
	key := domain.TxRecordKey(chain, txHash)
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		var record domain.TxRecord
		if err := r.store.TxGet(tx, key, &record); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return domain.ErrTxRecordNotFound
			}
			return err
		}
		if !record.Status.CanTransitionTo(status) {
			return domain.ErrInvalidTxStatusTransition
		}
		if record.Status == status {
			return nil
		}
		record.Status = status
		return r.store.TxUpdate(tx, key, record)
	})
}

func (r *txRecordRepository) GetRecord(
	ctx context.Context, chain domain.Chain, txHash string,
) (*domain.TxRecord, error) {
	var record domain.TxRecord
	if err := r.store.Get(domain.TxRecordKey(chain, txHash), &record); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrTxRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *txRecordRepository) GetRecordsForSwap(
	ctx context.Context, swapID string,
) ([]domain.TxRecord, error) {
	var records []domain.TxRecord
	query := badgerhold.Where("SwapID").Eq(swapID).SortBy("Timestamp")
	if err := r.store.Find(&records, query); err != nil {
		return nil, err
	}
	if records == nil {
		records = make([]domain.TxRecord, 0)
	}
	return records, nil
}
