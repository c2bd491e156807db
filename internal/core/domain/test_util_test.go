package domain_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/pkg/auction"
	"github.com/tdex-network/xswapd/pkg/htlc"
)

var (
	now          = time.Unix(1_700_000_000, 0)
	safetyMargin = 10 * time.Minute
	sourceAsset  = domain.Asset{
		Chain: domain.ChainSource, ChainID: "1", Address: "0xtoken", Decimals: 18,
	}
	destinationAsset = domain.Asset{
		Chain: domain.ChainDestination, ChainID: "sui", Address: "0x2::sui::SUI", Decimals: 9,
	}
)

func newTestOrder(
	t *testing.T, making int64, policy domain.ReleasePolicy,
) (*domain.Order, htlc.Secret) {
	secret, err := htlc.Generate()
	require.NoError(t, err)

	a, err := auction.New(
		decimal.RequireFromString("1.1"), decimal.NewFromInt(1), now, 5*time.Minute,
	)
	require.NoError(t, err)

	src, dst := domain.ComputeTimeLocks(now, time.Hour, safetyMargin)
	order, err := domain.NewOrder(domain.OrderArgs{
		Maker:               "0xmaker",
		Receiver:            "0xreceiver",
		SourceAsset:         sourceAsset,
		DestinationAsset:    destinationAsset,
		MakingAmount:        big.NewInt(making),
		HashLock:            htlc.Commit(secret),
		Auction:             a,
		SourceTimeLock:      src,
		DestinationTimeLock: dst,
		SafetyMargin:        safetyMargin,
		ReleasePolicy:       policy,
		Now:                 now,
	})
	require.NoError(t, err)
	return order, secret
}
