package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kind values carried in the "kind" claim. Validators reject any token
// whose kind does not match what the call site expects, so a refresh-shaped
// JWT can never pass as an access token.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Claims are the access-token claims issued by the engine. Additive changes
// only, to preserve compatibility for verifiers that lag behind.
type Claims struct {
	jwt.RegisteredClaims

	// Kind discriminates access tokens from any other signed artefact.
	Kind string `json:"kind"`

	// SID references the session the token was minted under.
	SID string `json:"sid,omitempty"`

	// Scopes is an optional permission snapshot taken at issuance.
	Scopes []string `json:"scopes,omitempty"`
}

// NewAccessClaims builds minimally-correct access-token claims. The
// registered timestamps satisfy iat <= nbf <= exp by construction.
func NewAccessClaims(
	subject, sid string,
	scopes []string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Kind:   KindAccess,
		SID:    sid,
		Scopes: scopes,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim, unique per
// issuance.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks the issuer matches the expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't presented
// before it is valid (nbf).
func (c *Claims) ValidateExpiry(now time.Time) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}

// ValidateKind enforces the "kind" claim.
func (c *Claims) ValidateKind(expected string) error {
	if c.Kind != expected {
		return ErrKind
	}
	return nil
}
