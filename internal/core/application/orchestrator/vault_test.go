package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/xswapd/internal/core/application/orchestrator"
	"github.com/tdex-network/xswapd/internal/infrastructure/storage/db/inmemory"
	"github.com/tdex-network/xswapd/pkg/htlc"
)

func TestUnlockVault(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewVaultRepositoryImpl()
	password := []byte("password")

	vault, err := orchestrator.UnlockVault(ctx, repo, password)
	require.NoError(t, err)
	params, err := repo.GetKeyParams(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, params)

	secret, _, err := vault.Generate()
	require.NoError(t, err)
	sealed, err := vault.Seal(secret)
	require.NoError(t, err)

	restored, err := orchestrator.UnlockVault(ctx, repo, password)
	require.NoError(t, err)
	opened, err := restored.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, secret, opened)

	_, err = orchestrator.UnlockVault(ctx, repo, []byte("wrong"))
	require.ErrorIs(t, err, htlc.ErrInvalidPassword)
}
