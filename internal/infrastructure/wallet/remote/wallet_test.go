package remotewallet_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	remotewallet "github.com/tdex-network/xswapd/internal/infrastructure/wallet/remote"
)

const makerAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func TestWallet(t *testing.T) {
	t.Parallel()

	var addressCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/address/evm":
			atomic.AddInt32(&addressCalls, 1)
			json.NewEncoder(w).Encode(map[string]string{"address": makerAddress})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/transactions":
			var req map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.NotEmpty(t, r.Header.Get("Idempotency-Key"))
			if req["value"] == "13" {
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(map[string]string{"error": "user rejected"})
				return
			}
			if req["chain"] == "sui" {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			require.Equal(t, "0xdeadbeef", req["data"])
			json.NewEncoder(w).Encode(map[string]string{"txHash": "0xabc"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	w, err := remotewallet.NewWallet(remotewallet.Config{
		URL: srv.URL + "/", Token: "secret-token", RequestTimeout: time.Second,
	})
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		addr, err := w.Address(ctx, domain.ChainSource)
		require.NoError(t, err)
		require.Equal(t, makerAddress, addr)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&addressCalls))

	_, err = w.Address(ctx, domain.ChainDestination)
	require.Error(t, err)

	hash, err := w.SignAndSubmit(ctx, ports.TxPayload{
		Chain: domain.ChainSource, To: makerAddress, Data: []byte{0xde, 0xad, 0xbe, 0xef},
		Value: big.NewInt(10),
	})
	require.NoError(t, err)
	require.Equal(t, "0xabc", hash)

	_, err = w.SignAndSubmit(ctx, ports.TxPayload{
		Chain: domain.ChainSource, To: makerAddress, Value: big.NewInt(13),
	})
	require.ErrorIs(t, err, domain.ErrSigningRejected)

	_, err = w.SignAndSubmit(ctx, ports.TxPayload{
		Chain: domain.ChainDestination, Function: "0x1::escrow::fill",
	})
	require.ErrorIs(t, err, domain.ErrWalletDisconnected)
	require.True(t, domain.IsTransient(err))
}

func TestWalletUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	w, err := remotewallet.NewWallet(remotewallet.Config{URL: url})
	require.NoError(t, err)

	_, err = w.Address(context.Background(), domain.ChainSource)
	require.ErrorIs(t, err, domain.ErrWalletDisconnected)

	_, err = remotewallet.NewWallet(remotewallet.Config{})
	require.Error(t, err)
}

func TestIdempotencyKey(t *testing.T) {
	t.Parallel()

	payload := ports.TxPayload{
		Chain: domain.ChainSource, To: makerAddress, Data: []byte{1, 2, 3},
		Value: big.NewInt(5),
	}
	k1, err := remotewallet.IdempotencyKey(payload)
	require.NoError(t, err)
	k2, err := remotewallet.IdempotencyKey(payload)
	require.NoError(t, err)
	require.Equal(t, k1, k2)
	require.Len(t, k1, 64)

	payload.Value = big.NewInt(6)
	k3, err := remotewallet.IdempotencyKey(payload)
	require.NoError(t, err)
	require.NotEqual(t, k1, k3)

	sui := ports.TxPayload{
		Chain: domain.ChainDestination, Function: "0x1::escrow::create",
		Args: []interface{}{"0x01", "10"}, TypeArgs: []string{"0x2::sui::SUI"},
	}
	k4, err := remotewallet.IdempotencyKey(sui)
	require.NoError(t, err)
	sui.Chain = domain.ChainSource
	k5, err := remotewallet.IdempotencyKey(sui)
	require.NoError(t, err)
	require.NotEqual(t, k4, k5)
}
