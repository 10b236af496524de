package jwtx

import (
	"errors"
)

// Verifier validates a compact JWT and returns its claims if the signature
// and registered claims check out. Each implementation pins exactly one
// signing algorithm; a token declaring any other algorithm is rejected
// before signature verification, which closes the algorithm-confusion hole.
type Verifier interface {
	Verify(token string) (Claims, error)
}

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrKind        = errors.New("jwtx: unexpected token kind")
)
