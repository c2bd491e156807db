package orchestrator

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/pkg/htlc"
)

// UnlockVault restores the secret vault from the key params stored in repo,
// or creates and stores new ones on first run. Sealed secrets of previous
// runs can only be opened with the same password.
func UnlockVault(
	ctx context.Context, repo domain.VaultRepository, password []byte,
) (*htlc.Vault, error) {
	params, err := repo.GetKeyParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read vault key params: %w", err)
	}

	if len(params) > 0 {
		vault, err := htlc.OpenVault(params, password)
		if err != nil {
			return nil, err
		}
		log.Debug("orchestrator: secret vault unlocked")
		return vault, nil
	}

	vault, err := htlc.NewVault(password)
	if err != nil {
		return nil, err
	}
	if err := repo.SetKeyParams(ctx, vault.KeyParams()); err != nil {
		return nil, fmt.Errorf("failed to store vault key params: %w", err)
	}
	log.Info("orchestrator: new secret vault created")
	return vault, nil
}
