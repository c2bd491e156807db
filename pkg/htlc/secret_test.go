package htlc_test

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/xswapd/pkg/htlc"
)

func TestCommit(t *testing.T) {
	t.Run("known vector", func(t *testing.T) {
		var zero htlc.Secret
		// keccak256 of 32 zero bytes.
		expected := "290decd9548b62a8d60345a988386fc84ba6bc95484008f6362f93160ef3e563"
		h := htlc.Commit(zero)
		require.Equal(t, expected, hex.EncodeToString(h[:]))
	})

	t.Run("deterministic", func(t *testing.T) {
		secret, err := htlc.Generate()
		require.NoError(t, err)
		require.Equal(t, htlc.Commit(secret), htlc.Commit(secret))
		require.True(t, htlc.Verify(secret, htlc.Commit(secret)))
	})

	t.Run("distinct secrets", func(t *testing.T) {
		seen := make(map[htlc.HashLock]struct{})
		for i := 0; i < 100; i++ {
			secret, err := htlc.Generate()
			require.NoError(t, err)
			require.False(t, secret.IsZero())

			h := htlc.Commit(secret)
			_, ok := seen[h]
			require.False(t, ok)
			seen[h] = struct{}{}
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		a, _ := htlc.Generate()
		b, _ := htlc.Generate()
		require.False(t, htlc.Verify(b, htlc.Commit(a)))
	})
}

func TestEncoding(t *testing.T) {
	secret, err := htlc.Generate()
	require.NoError(t, err)
	hashLock := htlc.Commit(secret)

	parsedLock, err := htlc.ParseHashLock(hashLock.Hex())
	require.NoError(t, err)
	require.Equal(t, hashLock, parsedLock)

	parsedSecret, err := htlc.ParseSecret(secret.Hex())
	require.NoError(t, err)
	require.Equal(t, secret, parsedSecret)

	buf, err := json.Marshal(struct {
		HashLock htlc.HashLock
		Secret   htlc.Secret
	}{hashLock, secret})
	require.NoError(t, err)

	var decoded struct {
		HashLock htlc.HashLock
		Secret   htlc.Secret
	}
	require.NoError(t, json.Unmarshal(buf, &decoded))
	require.Equal(t, hashLock, decoded.HashLock)
	require.Equal(t, secret, decoded.Secret)

	require.NotContains(t, secret.String(), secret.Hex()[2:])

	_, err = htlc.ParseHashLock("0x1234")
	require.Error(t, err)
	_, err = htlc.ParseSecret("not hex")
	require.Error(t, err)
}
