package sui

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/pkg/htlc"
)

var (
	testPackage  = "0x" + strings.Repeat("ab", 32)
	testResolver = "0x" + strings.Repeat("01", 32)
	testReceiver = "0x" + strings.Repeat("02", 32)
	testEscrowID = "0x" + strings.Repeat("0e", 32)
	testNow      = time.Unix(1700000000, 0)
)

type rpcHandler func(params []interface{}) (interface{}, error)

type fakeRPC struct {
	lock     sync.Mutex
	handlers map[string]rpcHandler
}

func (f *fakeRPC) Call(
	_ context.Context, result interface{}, method string, params ...interface{},
) error {
	f.lock.Lock()
	h, ok := f.handlers[method]
	f.lock.Unlock()
	if !ok {
		return fmt.Errorf("unexpected method %s", method)
	}
	out, err := h(params)
	if err != nil || out == nil {
		return err
	}
	buf, _ := json.Marshal(out)
	return json.Unmarshal(buf, result)
}

type fakeWallet struct {
	payloads []ports.TxPayload
}

func (w *fakeWallet) Address(context.Context, domain.Chain) (string, error) {
	return testResolver, nil
}

func (w *fakeWallet) SignAndSubmit(_ context.Context, p ports.TxPayload) (string, error) {
	w.payloads = append(w.payloads, p)
	return fmt.Sprintf("digest%d", len(w.payloads)), nil
}

func newTestClient(t *testing.T, rpc *fakeRPC, wallet *fakeWallet) *escrowClient {
	c, err := NewEscrowClient(context.Background(), Config{
		Package:             testPackage,
		RPC:                 rpc,
		Wallet:              wallet,
		ReceiptTimeout:      30 * time.Millisecond,
		ReceiptPollInterval: 5 * time.Millisecond,
		Now:                 func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return c.(*escrowClient)
}

func escrowObject(hashLock htlc.HashLock, remaining int64, status uint64) map[string]interface{} {
	hl := make([]int, 0, len(hashLock))
	for _, b := range hashLock {
		hl = append(hl, int(b))
	}
	return map[string]interface{}{
		"data": map[string]interface{}{
			"objectId": testEscrowID,
			"content": map[string]interface{}{
				"dataType": "moveObject",
				"type":     testPackage + "::escrow::Escrow<0x2::sui::SUI>",
				"fields": map[string]interface{}{
					"creator":      testResolver,
					"beneficiary":  testReceiver,
					"hash_lock":    hl,
					"time_lock":    fmt.Sprint(testNow.Add(time.Hour).UnixMilli()),
					"total":        "1000",
					"remaining":    fmt.Sprint(remaining),
					"claim_amount": "600000",
					"order_id":     "0x" + fmt.Sprintf("%x", "order-1"),
					"status":       status,
					"secret":       []int{},
					"created_at":   fmt.Sprint(testNow.UnixMilli()),
					"fills": []interface{}{
						map[string]interface{}{
							"fields": map[string]interface{}{
								"filler":       testResolver,
								"amount":       fmt.Sprint(1000 - remaining),
								"timestamp_ms": fmt.Sprint(testNow.UnixMilli()),
							},
						},
					},
				},
			},
		},
	}
}

func successBlock(created bool) rpcHandler {
	return func(params []interface{}) (interface{}, error) {
		block := map[string]interface{}{
			"digest":  params[0],
			"effects": map[string]interface{}{"status": map[string]string{"status": "success"}},
		}
		if created {
			block["objectChanges"] = []map[string]string{
				{"type": "mutated", "objectType": "0x2::coin::Coin<0x2::sui::SUI>", "objectId": "0x5"},
				{
					"type":       "created",
					"objectType": testPackage + "::escrow::Escrow<0x2::sui::SUI>",
					"objectId":   testEscrowID,
				},
			}
		}
		return block, nil
	}
}

func TestValidateAddress(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateAddress(testReceiver))
	for _, addr := range []string{
		"", "0x2", strings.Repeat("01", 32), testReceiver + "00", "0x" + strings.Repeat("zz", 32),
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	} {
		require.ErrorIs(t, ValidateAddress(addr), domain.ErrInvalidDestinationAddress)
	}
	require.Equal(
		t, "0x0000000000000000000000000000000000000000000000000000000000000002",
		NormalizeAddress("0x2"),
	)
}

func TestMapAbort(t *testing.T) {
	t.Parallel()

	location := `MoveAbort(MoveLocation { module: ModuleId { address: ab, name: Identifier("escrow") }, function: 2, instruction: 10, function_name: Some("fill") }, %d) in command 0`
	tests := []struct {
		code        int
		expectedErr error
	}{
		{1, domain.ErrSecretMismatch},
		{2, domain.ErrOverFill},
		{3, domain.ErrExpired},
		{4, domain.ErrNotYetExpired},
		{5, domain.ErrEscrowTerminal},
		{6, domain.ErrEscrowRefunded},
		{7, domain.ErrInvalidTimeLock},
		{8, domain.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		require.ErrorIs(t, mapAbort(fmt.Sprintf(location, tt.code)), tt.expectedErr)
	}
	require.ErrorIs(
		t, mapAbort("InsufficientCoinBalance in command 0"), domain.ErrInsufficientFunds,
	)
	require.Error(t, mapAbort("something else"))
}

func TestCreate(t *testing.T) {
	t.Parallel()

	rpc := &fakeRPC{handlers: map[string]rpcHandler{
		"suix_getBalance": func([]interface{}) (interface{}, error) {
			return map[string]string{"totalBalance": "5000"}, nil
		},
		"sui_getTransactionBlock": successBlock(true),
	}}
	wallet := &fakeWallet{}
	c := newTestClient(t, rpc, wallet)

	rcpt, err := c.Create(context.Background(), ports.CreateEscrowArgs{
		HashLock:    htlc.HashLock{1},
		TimeLock:    testNow.Add(time.Hour).UnixMilli(),
		Amount:      big.NewInt(1000),
		Beneficiary: testReceiver,
		OrderID:     "order-1",
		ClaimAmount: big.NewInt(600000),
	})
	require.NoError(t, err)
	require.True(t, rcpt.IsConfirmed())
	require.Equal(t, testEscrowID, rcpt.EscrowID)
	require.Equal(t, "digest1", rcpt.TxHash)

	require.Len(t, wallet.payloads, 1)
	payload := wallet.payloads[0]
	require.Equal(t, testPackage+"::escrow::create", payload.Function)
	require.Equal(t, []string{defaultCoinType}, payload.TypeArgs)
	require.Equal(t, "600000", payload.Args[4])

	_, err = c.Create(context.Background(), ports.CreateEscrowArgs{
		HashLock:    htlc.HashLock{1},
		TimeLock:    testNow.Add(time.Hour).UnixMilli(),
		Amount:      big.NewInt(5001),
		Beneficiary: testReceiver,
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = c.Create(context.Background(), ports.CreateEscrowArgs{
		HashLock:    htlc.HashLock{1},
		TimeLock:    testNow.Unix(),
		Amount:      big.NewInt(1),
		Beneficiary: testReceiver,
	})
	require.ErrorIs(t, err, domain.ErrInvalidTimeLock)
	require.Len(t, wallet.payloads, 1)
}

func TestGetEscrow(t *testing.T) {
	t.Parallel()

	hashLock := htlc.Commit(htlc.Secret{3})
	rpc := &fakeRPC{handlers: map[string]rpcHandler{
		"sui_getObject": func(params []interface{}) (interface{}, error) {
			if params[0] != testEscrowID {
				return map[string]interface{}{"error": map[string]string{"code": "notExists"}}, nil
			}
			return escrowObject(hashLock, 400, statusPartiallyFilled), nil
		},
	}}
	c := newTestClient(t, rpc, &fakeWallet{})

	escrow, err := c.GetEscrow(context.Background(), testEscrowID)
	require.NoError(t, err)
	require.Equal(t, domain.ChainDestination, escrow.Chain)
	require.Equal(t, hashLock, escrow.HashLock)
	require.Equal(t, testReceiver, escrow.Beneficiary)
	require.Equal(t, "order-1", escrow.OrderID)
	require.Equal(t, "600000", escrow.ClaimAmount.String())
	require.Equal(t, "400", escrow.Remaining.String())
	require.Equal(t, domain.EscrowStatusPartiallyFilled, escrow.Status)
	require.Nil(t, escrow.RevealedSecret)
	require.Len(t, escrow.Fills, 1)
	require.Equal(t, "600", escrow.Fills[0].Amount.String())
	require.True(t, testNow.Add(time.Hour).Equal(escrow.Expiry()))

	_, err = c.GetEscrow(context.Background(), "0x"+strings.Repeat("ff", 32))
	require.ErrorIs(t, err, domain.ErrEscrowNotFound)
	_, err = c.GetEscrow(context.Background(), "bad")
	require.ErrorIs(t, err, domain.ErrEscrowNotFound)
}

func TestFindEscrows(t *testing.T) {
	t.Parallel()

	hashLock := htlc.Commit(htlc.Secret{3})
	other := htlc.Commit(htlc.Secret{4})
	pages := 0
	rpc := &fakeRPC{handlers: map[string]rpcHandler{
		"suix_queryEvents": func(params []interface{}) (interface{}, error) {
			pages++
			if params[1] == nil {
				return map[string]interface{}{
					"data": []interface{}{
						map[string]interface{}{
							"parsedJson": map[string]interface{}{
								"escrow_id": testEscrowID, "hash_lock": other.Hex(),
							},
						},
					},
					"nextCursor":  map[string]string{"txDigest": "a", "eventSeq": "0"},
					"hasNextPage": true,
				}, nil
			}
			return map[string]interface{}{
				"data": []interface{}{
					map[string]interface{}{
						"parsedJson": map[string]interface{}{
							"escrow_id": testEscrowID, "hash_lock": hashLock.Hex(),
						},
					},
				},
				"nextCursor":  nil,
				"hasNextPage": false,
			}, nil
		},
		"sui_getObject": func([]interface{}) (interface{}, error) {
			return escrowObject(hashLock, 1000, statusCreated), nil
		},
	}}
	c := newTestClient(t, rpc, &fakeWallet{})

	escrows, err := c.FindEscrows(context.Background(), hashLock)
	require.NoError(t, err)
	require.Len(t, escrows, 1)
	require.Equal(t, 2, pages)
	require.Equal(t, domain.EscrowStatusCreated, escrows[0].Status)
}

func TestFillPartial(t *testing.T) {
	t.Parallel()

	secret := htlc.Secret{3}
	hashLock := htlc.Commit(secret)
	rpc := &fakeRPC{handlers: map[string]rpcHandler{
		"sui_getObject": func([]interface{}) (interface{}, error) {
			return escrowObject(hashLock, 400, statusPartiallyFilled), nil
		},
		"sui_getTransactionBlock": successBlock(false),
	}}
	wallet := &fakeWallet{}
	c := newTestClient(t, rpc, wallet)
	ctx := context.Background()

	_, err := c.FillPartial(ctx, testEscrowID, big.NewInt(1), htlc.Secret{9})
	require.ErrorIs(t, err, domain.ErrSecretMismatch)
	_, err = c.FillPartial(ctx, testEscrowID, big.NewInt(401), secret)
	require.ErrorIs(t, err, domain.ErrOverFill)
	require.Empty(t, wallet.payloads)

	rcpt, err := c.FillPartial(ctx, testEscrowID, big.NewInt(400), secret)
	require.NoError(t, err)
	require.True(t, rcpt.IsConfirmed())
	require.Equal(t, testEscrowID, rcpt.EscrowID)
	require.Equal(t, secret.Hex(), wallet.payloads[0].Args[2])

	_, err = c.Refund(ctx, testEscrowID)
	require.ErrorIs(t, err, domain.ErrNotYetExpired)
}

func TestFailedEffects(t *testing.T) {
	t.Parallel()

	secret := htlc.Secret{3}
	rpc := &fakeRPC{handlers: map[string]rpcHandler{
		"sui_getObject": func([]interface{}) (interface{}, error) {
			return escrowObject(htlc.Commit(secret), 400, statusPartiallyFilled), nil
		},
		"sui_getTransactionBlock": func(params []interface{}) (interface{}, error) {
			return map[string]interface{}{
				"digest": params[0],
				"effects": map[string]interface{}{"status": map[string]string{
					"status": "failure",
					"error":  "MoveAbort(MoveLocation { function_name: Some(\"fill\") }, 2) in command 0",
				}},
			}, nil
		},
	}}
	c := newTestClient(t, rpc, &fakeWallet{})

	rcpt, err := c.FillPartial(context.Background(), testEscrowID, big.NewInt(100), secret)
	require.ErrorIs(t, err, domain.ErrOverFill)
	require.Equal(t, domain.TxStatusFailed, rcpt.Status)
}

func TestPendingEffects(t *testing.T) {
	t.Parallel()

	secret := htlc.Secret{3}
	rpc := &fakeRPC{handlers: map[string]rpcHandler{
		"sui_getObject": func([]interface{}) (interface{}, error) {
			return escrowObject(htlc.Commit(secret), 400, statusPartiallyFilled), nil
		},
		"sui_getTransactionBlock": func([]interface{}) (interface{}, error) {
			return nil, fmt.Errorf("Could not find the referenced transaction")
		},
	}}
	c := newTestClient(t, rpc, &fakeWallet{})

	rcpt, err := c.FillPartial(context.Background(), testEscrowID, big.NewInt(100), secret)
	require.NoError(t, err)
	require.True(t, rcpt.IsPending())

	status, err := c.TxStatus(context.Background(), rcpt.TxHash)
	require.NoError(t, err)
	require.Equal(t, domain.TxStatusPending, status)
}
