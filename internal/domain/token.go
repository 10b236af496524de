package domain

import "time"

// TokenPair is what a successful login or refresh returns: the short-lived
// access token (JWT) and the opaque rotating refresh token.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`           // access-token lifetime
	SessionID    string        `json:"session_id,omitempty"`
}

// RefreshToken models the stored refresh token record. The raw secret is
// never persisted; only its fingerprint is.
type RefreshToken struct {
	ID         string
	SubjectID  string
	TokenHash  string  // deterministic fingerprint (base64url SHA-256)
	FamilyID   string  // shared by a root token and every descendant from rotation
	ParentID   *string // nil for the family root
	SessionID  string  // session the family is bound to
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time // set exactly once, on rotation
	RevokedAt  *time.Time
}

// IsExpired reports whether the record has elapsed its validity window.
func (t RefreshToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// IsConsumed reports whether the token has already been rotated away.
func (t RefreshToken) IsConsumed() bool { return t.ConsumedAt != nil }

// IsRevoked reports whether the token has been explicitly revoked.
func (t RefreshToken) IsRevoked() bool { return t.RevokedAt != nil }

// IsUsable reports whether the token may still be presented for rotation.
func (t RefreshToken) IsUsable(at time.Time) bool {
	return !t.IsConsumed() && !t.IsRevoked() && !t.IsExpired(at)
}
