package jwtx

import (
	"github.com/gatehouse-dev/gatehouse/pkg/cryptox"
)

// Signer is our interface for anything that can sign claims into a compact
// JWT. The algorithm is fixed when the signer is constructed; it is never
// negotiated from a token.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	Validate() error
}

// NewSignerHS256 creates a shared-secret HMAC-SHA256 signer.
func NewSignerHS256(kid string, secret []byte) (Signer, error) {
	return newHS256Signer(kid, secret)
}

// NewHS256FromMaster derives a signing secret from a deployment master key
// and returns a matching signer and verifier pair. The derivation is
// purpose-bound, so the same master key can back other keyed uses without
// the HS256 secret ever being reused across contexts.
func NewHS256FromMaster(kid string, master []byte, issuer string, aud []string) (Signer, Verifier, error) {
	secret, err := cryptox.DeriveKey(master, "access-token-hs256", MinHS256SecretSize)
	if err != nil {
		return nil, nil, err
	}
	signer, err := newHS256Signer(kid, secret)
	if err != nil {
		return nil, nil, err
	}
	return signer, NewVerifierHS256(secret, issuer, aud), nil
}

// NewSignerRS256 creates an RS256 signer from PEM bytes.
func NewSignerRS256(kid string, pemKey []byte) (Signer, error) {
	return newRS256Signer(kid, pemKey)
}

// NewSignerEdDSA creates an EdDSA signer from PEM bytes.
// Ed25519 keys must be in PKCS8 format.
func NewSignerEdDSA(kid string, pemKey []byte) (Signer, error) {
	return newEdDSASigner(kid, pemKey)
}
