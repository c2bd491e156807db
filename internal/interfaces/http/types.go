package httpinterface

import (
	"math/big"

	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/pkg/mathutil"
)

type initiateSwapRequest struct {
	SourceAmount       string `json:"sourceAmount"`
	DestinationAmount  string `json:"destinationAmount,omitempty"`
	DestinationAddress string `json:"destinationAddress"`
	ReleasePolicy      string `json:"releasePolicy,omitempty"`
}

type assetInfo struct {
	Chain    string `json:"chain"`
	ChainID  string `json:"chainId"`
	Address  string `json:"address"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals uint8  `json:"decimals"`
}

type orderInfo struct {
	ID                  string    `json:"id"`
	Maker               string    `json:"maker"`
	Receiver            string    `json:"receiver"`
	SourceAsset         assetInfo `json:"sourceAsset"`
	DestinationAsset    assetInfo `json:"destinationAsset"`
	MakingAmount        string    `json:"makingAmount"`
	TakingAmount        string    `json:"takingAmount"`
	HashLock            string    `json:"hashLock"`
	StartRate           string    `json:"startRate"`
	EndRate             string    `json:"endRate"`
	AuctionStart        int64     `json:"auctionStart"`
	AuctionEnd          int64     `json:"auctionEnd"`
	SourceTimeLock      int64     `json:"sourceTimeLock"`
	DestinationTimeLock int64     `json:"destinationTimeLock"`
	ReleasePolicy       string    `json:"releasePolicy"`
}

type destinationLockInfo struct {
	EscrowID    string `json:"escrowId"`
	Creator     string `json:"creator"`
	Amount      string `json:"amount"`
	ClaimAmount string `json:"claimAmount"`
	TimeLock    int64  `json:"timeLock"`
	Delivered   string `json:"delivered"`
	Settled     bool   `json:"settled"`
}

type swapInfo struct {
	ID                   string                `json:"id"`
	Status               string                `json:"status"`
	Order                orderInfo             `json:"order"`
	SourceEscrowID       string                `json:"sourceEscrowId,omitempty"`
	SourceLockTx         string                `json:"sourceLockTx,omitempty"`
	DestinationLocks     []destinationLockInfo `json:"destinationLocks"`
	SourceClaimed        string                `json:"sourceClaimed"`
	DestinationDelivered string                `json:"destinationDelivered"`
	SecretRevealed       bool                  `json:"secretRevealed"`
	RefundTx             string                `json:"refundTx,omitempty"`
	LastError            string                `json:"lastError,omitempty"`
	CreatedAt            int64                 `json:"createdAt"`
	UpdatedAt            int64                 `json:"updatedAt"`
}

type logEntryInfo struct {
	Seq       int    `json:"seq"`
	Timestamp int64  `json:"timestamp"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type txRecordInfo struct {
	Chain     string `json:"chain"`
	Action    string `json:"action"`
	TxHash    string `json:"txHash"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

type txHistoryInfo struct {
	Sent     []txRecordInfo `json:"sent"`
	Received []txRecordInfo `json:"received"`
}

type secretInfo struct {
	OrderID   string   `json:"orderId"`
	HashLock  string   `json:"hashLock"`
	Secret    string   `json:"secret"`
	EscrowIDs []string `json:"escrowIds"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func amountString(amount *big.Int) string {
	return mathutil.Clone(amount).String()
}

func toAssetInfo(a domain.Asset) assetInfo {
	return assetInfo{
		Chain:    string(a.Chain),
		ChainID:  a.ChainID,
		Address:  a.Address,
		Symbol:   a.Symbol,
		Decimals: a.Decimals,
	}
}

func toOrderInfo(o domain.Order) orderInfo {
	return orderInfo{
		ID:                  o.ID,
		Maker:               o.Maker,
		Receiver:            o.Receiver,
		SourceAsset:         toAssetInfo(o.SourceAsset),
		DestinationAsset:    toAssetInfo(o.DestinationAsset),
		MakingAmount:        amountString(o.MakingAmount),
		TakingAmount:        amountString(o.TakingAmount),
		HashLock:            o.HashLock.Hex(),
		StartRate:           o.Auction.StartRate.String(),
		EndRate:             o.Auction.EndRate.String(),
		AuctionStart:        o.Auction.StartTime.Unix(),
		AuctionEnd:          o.Auction.EndTime.Unix(),
		SourceTimeLock:      o.SourceTimeLock,
		DestinationTimeLock: o.DestinationTimeLock,
		ReleasePolicy:       string(o.ReleasePolicy),
	}
}

func toSwapInfo(s *domain.Swap) swapInfo {
	locks := make([]destinationLockInfo, 0, len(s.DestinationLocks))
	for _, l := range s.DestinationLocks {
		locks = append(locks, destinationLockInfo{
			EscrowID:    l.EscrowID,
			Creator:     l.Creator,
			Amount:      amountString(l.Amount),
			ClaimAmount: amountString(l.ClaimAmount),
			TimeLock:    l.TimeLock,
			Delivered:   amountString(l.Delivered),
			Settled:     l.Settled,
		})
	}
	return swapInfo{
		ID:                   s.ID,
		Status:               s.Status.String(),
		Order:                toOrderInfo(s.Order),
		SourceEscrowID:       s.SourceEscrowID,
		SourceLockTx:         s.SourceLockTx,
		DestinationLocks:     locks,
		SourceClaimed:        amountString(s.SourceClaimed),
		DestinationDelivered: amountString(s.DestinationDelivered),
		SecretRevealed:       s.RevealedSecret != nil,
		RefundTx:             s.RefundTx,
		LastError:            s.LastError,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

func toLogEntryInfo(e domain.LogEntry) logEntryInfo {
	return logEntryInfo{
		Seq:       e.Seq,
		Timestamp: e.Timestamp,
		Status:    e.Status.String(),
		Message:   e.Message,
	}
}

func toTxRecordsInfo(records []domain.TxRecord) []txRecordInfo {
	list := make([]txRecordInfo, 0, len(records))
	for _, r := range records {
		list = append(list, txRecordInfo{
			Chain:     string(r.Chain),
			Action:    string(r.Action),
			TxHash:    r.TxHash,
			Status:    string(r.Status),
			Amount:    amountString(r.Amount),
			Timestamp: r.Timestamp,
		})
	}
	return list
}

func toSecretInfo(r ports.SecretRelease) secretInfo {
	return secretInfo{
		OrderID:   r.OrderID,
		HashLock:  r.HashLock.Hex(),
		Secret:    r.Secret.Hex(),
		EscrowIDs: r.EscrowIDs,
	}
}
