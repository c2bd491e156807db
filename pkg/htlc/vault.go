package htlc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcwallet/snacl"
)

var (
	// ErrVaultLocked is returned when sealing or opening without a password.
	ErrVaultLocked = errors.New("secret vault is locked")
	// ErrInvalidPassword is returned when the password does not match the
	// stored key parameters.
	ErrInvalidPassword = errors.New("invalid secret vault password")
)

// Vault generates swap secrets, keeps them encrypted at rest and is the single
// source of truth about which of them have been revealed.
type Vault struct {
	keyMtx sync.RWMutex
	key    *snacl.SecretKey

	revealedMtx sync.RWMutex
	revealed    map[HashLock]Secret
}

// NewVault derives a fresh encryption key from the given password. Use
// OpenVault to restore a key from its marshalled parameters.
func NewVault(password []byte) (*Vault, error) {
	if len(password) <= 0 {
		return nil, ErrVaultLocked
	}
	pw := append([]byte{}, password...)
	key, err := snacl.NewSecretKey(&pw, snacl.DefaultN, snacl.DefaultR, snacl.DefaultP)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vault key: %w", err)
	}
	return newVault(key), nil
}

// OpenVault restores the encryption key from the marshalled key parameters
// returned by KeyParams and the password used to create it.
func OpenVault(params, password []byte) (*Vault, error) {
	if len(password) <= 0 {
		return nil, ErrVaultLocked
	}
	key := &snacl.SecretKey{}
	if err := key.Unmarshal(params); err != nil {
		return nil, fmt.Errorf("invalid vault key params: %w", err)
	}
	pw := append([]byte{}, password...)
	if err := key.DeriveKey(&pw); err != nil {
		if errors.Is(err, snacl.ErrInvalidPassword) {
			return nil, ErrInvalidPassword
		}
		return nil, err
	}
	return newVault(key), nil
}

func newVault(key *snacl.SecretKey) *Vault {
	return &Vault{
		key:      key,
		revealed: make(map[HashLock]Secret),
	}
}

// KeyParams returns the marshalled key parameters (salt and scrypt settings,
// never the key itself) to be persisted next to the sealed secrets.
func (v *Vault) KeyParams() []byte {
	v.keyMtx.RLock()
	defer v.keyMtx.RUnlock()
	return v.key.Marshal()
}

// Generate returns a new secret together with its hash lock.
func (v *Vault) Generate() (Secret, HashLock, error) {
	secret, err := Generate()
	if err != nil {
		return Secret{}, HashLock{}, err
	}
	return secret, Commit(secret), nil
}

// Commit is a convenience wrapper around the package level Commit.
func (v *Vault) Commit(secret Secret) HashLock {
	return Commit(secret)
}

// Seal encrypts the secret for storage.
func (v *Vault) Seal(secret Secret) ([]byte, error) {
	v.keyMtx.RLock()
	defer v.keyMtx.RUnlock()
	if v.key == nil {
		return nil, ErrVaultLocked
	}
	return v.key.Encrypt(secret[:])
}

// Open decrypts a sealed secret.
func (v *Vault) Open(sealed []byte) (Secret, error) {
	v.keyMtx.RLock()
	defer v.keyMtx.RUnlock()
	if v.key == nil {
		return Secret{}, ErrVaultLocked
	}
	buf, err := v.key.Decrypt(sealed)
	if err != nil {
		return Secret{}, fmt.Errorf("failed to open sealed secret: %w", err)
	}
	if len(buf) != SecretSize {
		return Secret{}, fmt.Errorf("sealed secret has invalid length %d", len(buf))
	}
	var s Secret
	copy(s[:], buf)
	return s, nil
}

// Reveal marks the secret as public. Revealing the same secret twice is a
// no-op and returns the same value.
func (v *Vault) Reveal(secret Secret) Secret {
	h := Commit(secret)

	v.revealedMtx.Lock()
	defer v.revealedMtx.Unlock()

	if s, ok := v.revealed[h]; ok {
		return s
	}
	v.revealed[h] = secret
	return secret
}

// IsRevealed returns whether the secret behind the hash lock was revealed.
func (v *Vault) IsRevealed(hashLock HashLock) bool {
	v.revealedMtx.RLock()
	defer v.revealedMtx.RUnlock()
	_, ok := v.revealed[hashLock]
	return ok
}

// Revealed returns the revealed secret for the hash lock, if any.
func (v *Vault) Revealed(hashLock HashLock) (Secret, bool) {
	v.revealedMtx.RLock()
	defer v.revealedMtx.RUnlock()
	s, ok := v.revealed[hashLock]
	return s, ok
}

// Lock zeroes the in-memory encryption key.
func (v *Vault) Lock() {
	v.keyMtx.Lock()
	defer v.keyMtx.Unlock()
	if v.key != nil {
		v.key.Zero()
		v.key = nil
	}
}
