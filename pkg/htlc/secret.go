// Package htlc holds the hash-time-lock primitives shared by both legs of a
// swap: the secret, its commitment and the vault that guards its release.
package htlc

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// SecretSize is the length in bytes of both a Secret and a HashLock.
const SecretSize = 32

// Secret is the preimage that unlocks both escrows of a swap.
type Secret [SecretSize]byte

// HashLock is the keccak256 commitment of a Secret.
type HashLock [SecretSize]byte

// Generate returns a new Secret read from the system CSPRNG.
func Generate() (Secret, error) {
	var s Secret
	if _, err := rand.Read(s[:]); err != nil {
		return Secret{}, fmt.Errorf("failed to read random secret: %w", err)
	}
	return s, nil
}

// Commit returns the hash lock for the given secret.
func Commit(secret Secret) HashLock {
	var h HashLock
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(secret[:])
	copy(h[:], hasher.Sum(nil))
	return h
}

// Verify returns whether the secret opens the given hash lock.
func Verify(secret Secret, hashLock HashLock) bool {
	h := Commit(secret)
	return subtle.ConstantTimeCompare(h[:], hashLock[:]) == 1
}

func (s Secret) IsZero() bool {
	return s == Secret{}
}

func (s Secret) Hex() string {
	return "0x" + hex.EncodeToString(s[:])
}

// String never prints the secret itself.
func (s Secret) String() string {
	return "secret(" + Commit(s).Short() + ")"
}

func (h HashLock) IsZero() bool {
	return h == HashLock{}
}

func (h HashLock) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h HashLock) String() string {
	return h.Hex()
}

// Short returns the first 8 hex chars of the hash lock, for logs.
func (h HashLock) Short() string {
	return hex.EncodeToString(h[:4])
}

func (h HashLock) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

func (h *HashLock) UnmarshalText(text []byte) error {
	b, err := decodeFixed(string(text))
	if err != nil {
		return fmt.Errorf("invalid hash lock: %w", err)
	}
	copy(h[:], b)
	return nil
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Hex())
}

func (s *Secret) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	b, err := decodeFixed(str)
	if err != nil {
		return fmt.Errorf("invalid secret: %w", err)
	}
	copy(s[:], b)
	return nil
}

// ParseHashLock decodes a 0x-prefixed (or bare) 32-byte hex string.
func ParseHashLock(s string) (HashLock, error) {
	var h HashLock
	err := h.UnmarshalText([]byte(s))
	return h, err
}

// ParseSecret decodes a 0x-prefixed (or bare) 32-byte hex string.
func ParseSecret(s string) (Secret, error) {
	b, err := decodeFixed(s)
	if err != nil {
		return Secret{}, fmt.Errorf("invalid secret: %w", err)
	}
	var secret Secret
	copy(secret[:], b)
	return secret, nil
}

func decodeFixed(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, err
	}
	if len(b) != SecretSize {
		return nil, fmt.Errorf("expected %d bytes, got %d", SecretSize, len(b))
	}
	return b, nil
}
