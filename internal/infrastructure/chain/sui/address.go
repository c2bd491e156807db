package sui

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tdex-network/xswapd/internal/core/domain"
)

const addressLength = 32

// ValidateAddress checks that addr is a 0x-prefixed 32-byte hex Sui address
// or object id.
func ValidateAddress(addr string) error {
	if !strings.HasPrefix(addr, "0x") || len(addr) != 2+2*addressLength {
		return fmt.Errorf("%w: %s", domain.ErrInvalidDestinationAddress, addr)
	}
	if _, err := hex.DecodeString(addr[2:]); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidDestinationAddress, addr)
	}
	return nil
}

// NormalizeAddress lowercases addr and left pads it to 32 bytes, so that
// short forms like 0x2 compare equal to their full form.
func NormalizeAddress(addr string) string {
	body := strings.ToLower(strings.TrimPrefix(addr, "0x"))
	if len(body) < 2*addressLength {
		body = strings.Repeat("0", 2*addressLength-len(body)) + body
	}
	return "0x" + body
}
