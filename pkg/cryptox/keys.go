package cryptox

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MinMasterKeySize is the smallest master key we accept for derivation.
// Anything shorter cannot carry 256 bits of entropy.
const MinMasterKeySize = 32

var ErrMasterKeyTooShort = errors.New("cryptox: master key below minimum size")

// DeriveKey derives a purpose-bound subkey of n bytes from a master secret
// using HKDF-SHA256. Distinct purpose strings yield independent keys, so one
// deployment secret can back both token signing and any future keyed use
// without reuse across contexts.
func DeriveKey(master []byte, purpose string, n int) ([]byte, error) {
	if len(master) < MinMasterKeySize {
		return nil, ErrMasterKeyTooShort
	}
	if n <= 0 {
		return nil, fmt.Errorf("cryptox: derived key size must be positive, got %d", n)
	}

	r := hkdf.New(sha256.New, master, nil, []byte(purpose))
	key := make([]byte, n)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("cryptox: hkdf derive: %w", err)
	}
	return key, nil
}
