package evm_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/infrastructure/chain/evm"
)

func TestValidateAddress(t *testing.T) {
	t.Parallel()

	valid := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		"0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED",
	}
	for _, addr := range valid {
		addr := addr
		t.Run(addr, func(t *testing.T) {
			require.NoError(t, evm.ValidateAddress(addr))
			require.Equal(t, valid[0], evm.ChecksumAddress(strings.ToLower(valid[0])))
		})
	}

	invalid := []string{
		"",
		"5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAe",
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAedaa",
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeZ",
		"0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	}
	for _, addr := range invalid {
		addr := addr
		t.Run("invalid "+addr, func(t *testing.T) {
			require.ErrorIs(t, evm.ValidateAddress(addr), domain.ErrInvalidSourceAddress)
		})
	}
}
