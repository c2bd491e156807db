package resolver_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/xswapd/internal/core/application/resolver"
)

func TestEvaluate(t *testing.T) {
	env := newTestEnv(t)
	order, _ := env.newOrder(t, 1_000_000)

	tests := []struct {
		name           string
		covered        int64
		marketRate     string
		maxFill        int64
		marginBps      uint64
		at             time.Time
		skip           bool
		expectedSlice  string
		expectedAmount string
	}{
		{
			name:           "fill whole order",
			marketRate:     "2.05",
			marginBps:      10,
			at:             start,
			expectedSlice:  "1000000",
			expectedAmount: "2020000",
		},
		{
			name:           "capped by max fill",
			marketRate:     "2.05",
			maxFill:        600_000,
			marginBps:      10,
			at:             start,
			expectedSlice:  "600000",
			expectedAmount: "1212000",
		},
		{
			name:           "fill what is not yet covered",
			covered:        700_000,
			marketRate:     "2.05",
			maxFill:        600_000,
			marginBps:      10,
			at:             start,
			expectedSlice:  "300000",
			expectedAmount: "606000",
		},
		{
			name:           "profitable once the auction decays",
			marketRate:     "2",
			marginBps:      10,
			at:             start.Add(2 * time.Minute),
			expectedSlice:  "1000000",
			expectedAmount: "1990000",
		},
		{
			name:       "fully covered",
			covered:    1_000_000,
			marketRate: "2.05",
			at:         start,
			skip:       true,
		},
		{
			name:       "unprofitable",
			marketRate: "2",
			marginBps:  10,
			at:         start,
			skip:       true,
		},
		{
			name:       "below min margin",
			marketRate: "2.03",
			marginBps:  100,
			at:         start,
			skip:       true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var maxFill *big.Int
			if tt.maxFill > 0 {
				maxFill = big.NewInt(tt.maxFill)
			}
			decision := resolver.Evaluate(
				&order, big.NewInt(tt.covered), decimal.RequireFromString(tt.marketRate),
				maxFill, tt.marginBps, tt.at,
			)
			if tt.skip {
				require.True(t, decision.Skip)
				require.NotEmpty(t, decision.Reason)
				return
			}
			require.False(t, decision.Skip, decision.Reason)
			require.Equal(t, tt.expectedSlice, decision.SourceAmount.String())
			require.Equal(t, tt.expectedAmount, decision.DestinationAmount.String())
		})
	}
}

func TestStateIsFinal(t *testing.T) {
	require.True(t, resolver.StateDone.IsFinal())
	require.True(t, resolver.StateAbandoned.IsFinal())
	require.False(t, resolver.StateAwaitingSecret.IsFinal())
	require.Equal(t, "ClaimingSource", resolver.StateClaimingSource.String())
}
