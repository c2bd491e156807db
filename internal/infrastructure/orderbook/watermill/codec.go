package watermillorderbook

import (
	"encoding/json"

	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/pkg/htlc"
)

func decodeSecret(payload []byte) (ports.SecretRelease, error) {
	var msg secretMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ports.SecretRelease{}, err
	}
	hashLock, err := htlc.ParseHashLock(msg.HashLock)
	if err != nil {
		return ports.SecretRelease{}, err
	}
	secret, err := htlc.ParseSecret(msg.Secret)
	if err != nil {
		return ports.SecretRelease{}, err
	}
	return ports.SecretRelease{
		OrderID:   msg.OrderID,
		HashLock:  hashLock,
		Secret:    secret,
		EscrowIDs: msg.EscrowIDs,
	}, nil
}
