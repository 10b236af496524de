package engine

import (
	"context"
	"errors"
	"time"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
	"github.com/gatehouse-dev/gatehouse/internal/revocation"
	"github.com/gatehouse-dev/gatehouse/pkg/jwtx"
)

// ClaimsCodec issues and validates access tokens. The signing algorithm is
// fixed at construction; the verifier rejects tokens declaring any other
// algorithm. Validation consults the revocation registry by jti, so the
// codec is a pure function over the revocation set.
type ClaimsCodec struct {
	signer   jwtx.Signer
	verifier jwtx.Verifier
	registry revocation.Registry
}

func NewClaimsCodec(signer jwtx.Signer, verifier jwtx.Verifier, registry revocation.Registry) *ClaimsCodec {
	return &ClaimsCodec{signer: signer, verifier: verifier, registry: registry}
}

// Issue signs the claims into a compact JWT.
func (c *ClaimsCodec) Issue(claims jwtx.Claims) (string, error) {
	return c.signer.Sign(claims)
}

// Validate verifies signature, issuer, audience, expiry and kind, then
// checks the revocation registry. Errors are mapped to the engine taxonomy
// so callers can tell retry-worthy failures from terminal ones.
func (c *ClaimsCodec) Validate(ctx context.Context, token string) (jwtx.Claims, error) {
	claims, err := c.verifier.Verify(token)
	if err != nil {
		return jwtx.Claims{}, mapTokenError(err)
	}
	if err := claims.ValidateKind(jwtx.KindAccess); err != nil {
		return jwtx.Claims{}, domain.ErrTokenInvalid
	}

	revoked, err := c.registry.IsRevoked(ctx, claims.ID)
	if err != nil {
		return jwtx.Claims{}, domain.WrapStorage("revocation lookup", err)
	}
	if revoked {
		return jwtx.Claims{}, domain.ErrTokenRevoked
	}
	return claims, nil
}

// Revoke blacklists a token id until its natural expiry, bounding how long
// the registry has to remember it.
func (c *ClaimsCodec) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	return c.registry.Revoke(ctx, jti, expiresAt)
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return domain.ErrTokenExpired
	default:
		// Malformed, bad signature, algorithm or kid mismatch, issuer,
		// audience, not-yet-valid: all terminal, none worth detailing
		// to a caller.
		return domain.ErrTokenInvalid
	}
}

// ValidateAccess validates an access token string against the configured
// algorithm, issuer, audience and the revocation registry.
func (e *Engine) ValidateAccess(ctx context.Context, token string) (jwtx.Claims, error) {
	return e.codec.Validate(ctx, token)
}
