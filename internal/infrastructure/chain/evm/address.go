package evm

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tdex-network/xswapd/internal/core/domain"
	"golang.org/x/crypto/sha3"
)

const addressLength = 20

// ValidateAddress checks that addr is a 0x-prefixed 20-byte hex address.
// Mixed case addresses must carry a valid EIP-55 checksum.
func ValidateAddress(addr string) error {
	if !strings.HasPrefix(addr, "0x") || len(addr) != 2+2*addressLength {
		return fmt.Errorf("%w: %s", domain.ErrInvalidSourceAddress, addr)
	}
	body := addr[2:]
	if _, err := hex.DecodeString(body); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidSourceAddress, addr)
	}

	lower, upper := strings.ToLower(body), strings.ToUpper(body)
	if body == lower || body == upper {
		return nil
	}
	if ChecksumAddress(addr) != addr {
		return fmt.Errorf("%w: bad checksum %s", domain.ErrInvalidSourceAddress, addr)
	}
	return nil
}

// ChecksumAddress returns the EIP-55 representation of a hex address.
func ChecksumAddress(addr string) string {
	buf := []byte("0x" + strings.ToLower(strings.TrimPrefix(addr, "0x")))

	sha := sha3.NewLegacyKeccak256()
	sha.Write(buf[2:])
	hash := sha.Sum(nil)
	for i := 2; i < len(buf); i++ {
		hashByte := hash[(i-2)/2]
		if i%2 == 0 {
			hashByte = hashByte >> 4
		} else {
			hashByte &= 0xf
		}
		if buf[i] > '9' && hashByte > 7 {
			buf[i] -= 32
		}
	}
	return string(buf)
}

func sameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
