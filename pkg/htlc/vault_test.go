package htlc_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/xswapd/pkg/htlc"
)

var password = []byte("vault-password")

func TestVaultSealOpen(t *testing.T) {
	vault, err := htlc.NewVault(password)
	require.NoError(t, err)

	secret, hashLock, err := vault.Generate()
	require.NoError(t, err)
	require.Equal(t, htlc.Commit(secret), hashLock)

	sealed, err := vault.Seal(secret)
	require.NoError(t, err)
	require.NotContains(t, string(sealed), string(secret[:]))

	opened, err := vault.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, secret, opened)

	t.Run("restore from key params", func(t *testing.T) {
		restored, err := htlc.OpenVault(vault.KeyParams(), password)
		require.NoError(t, err)

		opened, err := restored.Open(sealed)
		require.NoError(t, err)
		require.Equal(t, secret, opened)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := htlc.OpenVault(vault.KeyParams(), []byte("wrong"))
		require.ErrorIs(t, err, htlc.ErrInvalidPassword)
	})

	t.Run("locked", func(t *testing.T) {
		other, err := htlc.NewVault(password)
		require.NoError(t, err)
		other.Lock()

		_, err = other.Seal(secret)
		require.ErrorIs(t, err, htlc.ErrVaultLocked)
		_, err = other.Open(sealed)
		require.ErrorIs(t, err, htlc.ErrVaultLocked)
	})

	t.Run("empty password", func(t *testing.T) {
		_, err := htlc.NewVault(nil)
		require.ErrorIs(t, err, htlc.ErrVaultLocked)
	})
}

func TestVaultReveal(t *testing.T) {
	vault, err := htlc.NewVault(password)
	require.NoError(t, err)

	secret, hashLock, err := vault.Generate()
	require.NoError(t, err)
	require.False(t, vault.IsRevealed(hashLock))

	wg := &sync.WaitGroup{}
	results := make([]htlc.Secret, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = vault.Reveal(secret)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.Equal(t, secret, r)
	}
	require.True(t, vault.IsRevealed(hashLock))

	revealed, ok := vault.Revealed(hashLock)
	require.True(t, ok)
	require.Equal(t, secret, revealed)
}
