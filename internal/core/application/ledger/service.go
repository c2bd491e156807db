// Package ledger keeps the append-only record of every transaction sent or
// received on behalf of a swap.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/xswapd/internal/core/domain"
)

var ErrInvalidRecord = errors.New("invalid transaction record")

type Service struct {
	repo domain.TxRecordRepository
	now  func() time.Time
}

func NewService(repo domain.TxRecordRepository, now func() time.Time) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("missing tx record repository")
	}
	if now == nil {
		now = time.Now
	}
	return &Service{repo, now}, nil
}

// Record appends a record to the ledger. Recording twice the same chain and
// tx hash is a no-op. Missing status defaults to pending.
func (s *Service) Record(ctx context.Context, record domain.TxRecord) error {
	if len(record.SwapID) <= 0 || len(record.TxHash) <= 0 || !record.Chain.IsValid() {
		return fmt.Errorf(
			"%w: swap %q chain %q hash %q",
			ErrInvalidRecord, record.SwapID, record.Chain, record.TxHash,
		)
	}
	if len(record.Status) <= 0 {
		record.Status = domain.TxStatusPending
	}
	if record.Timestamp <= 0 {
		record.Timestamp = s.now().Unix()
	}

	if err := s.repo.AddRecord(ctx, record); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"swap":   record.SwapID,
		"chain":  record.Chain,
		"action": record.Action,
		"tx":     record.TxHash,
		"status": record.Status,
	}).Debug("ledger: recorded transaction")
	return nil
}

// UpdateStatus moves a pending record to confirmed or failed. Setting the
// current status again is a no-op.
func (s *Service) UpdateStatus(
	ctx context.Context, chain domain.Chain, txHash string, status domain.TxStatus,
) error {
	return s.repo.UpdateRecordStatus(ctx, chain, txHash, status)
}

// History returns the records of a swap split by direction, oldest first.
func (s *Service) History(ctx context.Context, swapID string) (domain.TxHistory, error) {
	records, err := s.repo.GetRecordsForSwap(ctx, swapID)
	if err != nil {
		return domain.TxHistory{}, err
	}

	history := domain.TxHistory{
		Sent:     make([]domain.TxRecord, 0),
		Received: make([]domain.TxRecord, 0),
	}
	for _, r := range records {
		if r.Direction == domain.TxDirectionReceived {
			history.Received = append(history.Received, r)
			continue
		}
		history.Sent = append(history.Sent, r)
	}
	return history, nil
}

// Pending returns the records of a swap for the given action whose outcome
// is still unknown. Callers re-query these before retrying the action.
func (s *Service) Pending(
	ctx context.Context, swapID string, action domain.TxAction,
) ([]domain.TxRecord, error) {
	records, err := s.repo.GetRecordsForSwap(ctx, swapID)
	if err != nil {
		return nil, err
	}

	pending := make([]domain.TxRecord, 0)
	for _, r := range records {
		if r.Action == action && r.Status == domain.TxStatusPending {
			pending = append(pending, r)
		}
	}
	return pending, nil
}
