// Package chain wires the escrow clients of the real source and destination
// chains: one JSON-RPC transport per node and a shared signing wallet.
package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/internal/infrastructure/chain/evm"
	"github.com/tdex-network/xswapd/internal/infrastructure/chain/sui"
	"github.com/tdex-network/xswapd/internal/infrastructure/rpc/jsonrpc"
	remotewallet "github.com/tdex-network/xswapd/internal/infrastructure/wallet/remote"
)

type LiveConfig struct {
	SourceRPCURL        string
	SourceContract      string
	SourceToken         string
	DestinationRPCURL   string
	DestinationPackage  string
	DestinationCoinType string
	WalletURL           string
	WalletToken         string
	RateLimit           int
	ReceiptTimeout      time.Duration
	RequestTimeout      time.Duration
}

// NewLiveClients returns the escrow clients of the source and destination
// chains. Both sign through the same wallet provider.
func NewLiveClients(
	ctx context.Context, cfg LiveConfig,
) (source ports.EscrowClient, destination ports.EscrowClient, err error) {
	wallet, err := remotewallet.NewWallet(remotewallet.Config{
		URL:            cfg.WalletURL,
		Token:          cfg.WalletToken,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wallet: %w", err)
	}

	sourceRPC, err := jsonrpc.NewClient(jsonrpc.Config{
		URL:       cfg.SourceRPCURL,
		Timeout:   cfg.RequestTimeout,
		RateLimit: cfg.RateLimit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("source rpc: %w", err)
	}
	source, err = evm.NewEscrowClient(ctx, evm.Config{
		Contract:       cfg.SourceContract,
		Token:          cfg.SourceToken,
		RPC:            sourceRPC,
		Wallet:         wallet,
		ReceiptTimeout: cfg.ReceiptTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("source escrow client: %w", err)
	}

	destinationRPC, err := jsonrpc.NewClient(jsonrpc.Config{
		URL:       cfg.DestinationRPCURL,
		Timeout:   cfg.RequestTimeout,
		RateLimit: cfg.RateLimit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("destination rpc: %w", err)
	}
	destination, err = sui.NewEscrowClient(ctx, sui.Config{
		Package:        cfg.DestinationPackage,
		CoinType:       cfg.DestinationCoinType,
		RPC:            destinationRPC,
		Wallet:         wallet,
		ReceiptTimeout: cfg.ReceiptTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("destination escrow client: %w", err)
	}

	return source, destination, nil
}
