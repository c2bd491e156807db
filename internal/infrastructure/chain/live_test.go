package chain_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/infrastructure/chain"
	"github.com/tdex-network/xswapd/internal/infrastructure/chain/simchain"
)

func TestNewLiveClients(t *testing.T) {
	sourceAddr := simchain.NewAddress(domain.ChainSource)
	destinationAddr := simchain.NewAddress(domain.ChainDestination)

	wallet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := sourceAddr
		if strings.HasSuffix(r.URL.Path, string(domain.ChainDestination)) {
			addr = destinationAddr
		}
		fmt.Fprintf(w, `{"address":%q}`, addr)
	}))
	defer wallet.Close()

	cfg := chain.LiveConfig{
		SourceRPCURL:       "http://localhost:8545",
		SourceContract:     simchain.NewAddress(domain.ChainSource),
		DestinationRPCURL:  "http://localhost:9000",
		DestinationPackage: simchain.NewAddress(domain.ChainDestination),
		WalletURL:          wallet.URL,
	}

	source, destination, err := chain.NewLiveClients(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, domain.ChainSource, source.Chain())
	require.Equal(t, sourceAddr, source.Address())
	require.Equal(t, domain.ChainDestination, destination.Chain())
	require.Equal(t, destinationAddr, destination.Address())
}

func TestNewLiveClientsFails(t *testing.T) {
	valid := chain.LiveConfig{
		SourceRPCURL:       "http://localhost:8545",
		SourceContract:     simchain.NewAddress(domain.ChainSource),
		DestinationRPCURL:  "http://localhost:9000",
		DestinationPackage: simchain.NewAddress(domain.ChainDestination),
		WalletURL:          "http://127.0.0.1:1",
	}

	tests := []struct {
		name    string
		mutate  func(c *chain.LiveConfig)
		wantErr string
	}{
		{
			name:    "missing wallet url",
			mutate:  func(c *chain.LiveConfig) { c.WalletURL = "" },
			wantErr: "wallet",
		},
		{
			name:    "missing source rpc url",
			mutate:  func(c *chain.LiveConfig) { c.SourceRPCURL = "" },
			wantErr: "source rpc",
		},
		{
			name:    "invalid source contract",
			mutate:  func(c *chain.LiveConfig) { c.SourceContract = "0x123" },
			wantErr: "source escrow client",
		},
		{
			name:    "unreachable wallet",
			mutate:  func(c *chain.LiveConfig) {},
			wantErr: "source escrow client",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, _, err := chain.NewLiveClients(context.Background(), cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
