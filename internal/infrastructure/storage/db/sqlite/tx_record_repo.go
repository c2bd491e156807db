package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/tdex-network/xswapd/internal/core/domain"
)

const createTxRecordTable = `
CREATE TABLE IF NOT EXISTS tx_record (
	id TEXT PRIMARY KEY,
	swap_id TEXT NOT NULL,
	chain TEXT NOT NULL,
	action TEXT NOT NULL,
	tx_hash TEXT NOT NULL,
	direction TEXT NOT NULL,
	status TEXT NOT NULL,
	amount TEXT NOT NULL,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tx_record_swap_id ON tx_record (swap_id);
`

const (
	insertTxRecord = `
INSERT OR IGNORE INTO tx_record
	(id, swap_id, chain, action, tx_hash, direction, status, amount, timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectTxRecordColumns = `
SELECT id, swap_id, chain, action, tx_hash, direction, status, amount, timestamp
FROM tx_record`
	updateTxRecordStatus = `UPDATE tx_record SET status = ? WHERE id = ?`
)

type txRecordRepository struct {
	db *sql.DB
}

// NewTxRecordRepository opens the ledger table in the given sqlite database.
// It accepts either a *sql.DB or the path of the db file.
func NewTxRecordRepository(config ...interface{}) (domain.TxRecordRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}

	var db *sql.DB
	switch v := config[0].(type) {
	case *sql.DB:
		db = v
	case string:
		var err error
		if db, err = OpenDb(v); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("cannot open tx record repository: invalid config")
	}

	if _, err := db.Exec(createTxRecordTable); err != nil {
		return nil, fmt.Errorf("failed to create tx record table: %w", err)
	}
	return &txRecordRepository{db}, nil
}

func (r *txRecordRepository) Close() {
	r.db.Close()
}

func (r *txRecordRepository) AddRecord(ctx context.Context, record domain.TxRecord) error {
	amount := "0"
	if record.Amount != nil {
		amount = record.Amount.String()
	}
	_, err := r.db.ExecContext(
		ctx, insertTxRecord,
		domain.TxRecordKey(record.Chain, record.TxHash), record.SwapID,
		string(record.Chain), string(record.Action), record.TxHash,
		string(record.Direction), string(record.Status), amount, record.Timestamp,
	)
	return err
}

func (r *txRecordRepository) UpdateRecordStatus(
	ctx context.Context, chain domain.Chain, txHash string, status domain.TxStatus,
) error {
	key := domain.TxRecordKey(chain, txHash)
	return execTx(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, selectTxRecordColumns+" WHERE id = ?", key)
		record, err := scanTxRecord(row)
		if err != nil {
			return err
		}
		if !record.Status.CanTransitionTo(status) {
			return domain.ErrInvalidTxStatusTransition
		}
		if record.Status == status {
			return nil
		}
		_, err = tx.ExecContext(ctx, updateTxRecordStatus, string(status), key)
		return err
	})
}

func (r *txRecordRepository) GetRecord(
	ctx context.Context, chain domain.Chain, txHash string,
) (*domain.TxRecord, error) {
	row := r.db.QueryRowContext(
		ctx, selectTxRecordColumns+" WHERE id = ?", domain.TxRecordKey(chain, txHash),
	)
	return scanTxRecord(row)
}

func (r *txRecordRepository) GetRecordsForSwap(
	ctx context.Context, swapID string,
) ([]domain.TxRecord, error) {
	rows, err := r.db.QueryContext(
		ctx, selectTxRecordColumns+" WHERE swap_id = ? ORDER BY timestamp, id", swapID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.TxRecord, 0)
	for rows.Next() {
		record, err := scanTxRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTxRecord(row scanner) (*domain.TxRecord, error) {
	var (
		record                           domain.TxRecord
		chain, action, direction, status string
		amount                           string
	)
	if err := row.Scan(
		&record.ID, &record.SwapID, &chain, &action, &record.TxHash,
		&direction, &status, &amount, &record.Timestamp,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTxRecordNotFound
		}
		return nil, err
	}

	value, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q for record %s", amount, record.ID)
	}
	record.Chain = domain.Chain(chain)
	record.Action = domain.TxAction(action)
	record.Direction = domain.TxDirection(direction)
	record.Status = domain.TxStatus(status)
	record.Amount = value
	return &record, nil
}
