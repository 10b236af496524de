package domain

import "time"

// Revocation reasons persisted on session records.
const (
	RevokeReasonLogout      = "logout"
	RevokeReasonRevokeAll   = "revoke_all"
	RevokeReasonMaxSessions = "max_sessions_exceeded"
	RevokeReasonTokenReuse  = "refresh_reuse_detected"
)

// SessionMetadata is the optional client context captured at login.
type SessionMetadata struct {
	IP        string
	UserAgent string
}

// Session models a persisted authenticated session. The bearer secret is
// opaque and high-entropy; only its fingerprint is stored.
type Session struct {
	ID             string
	SubjectID      string
	TokenHash      string
	IP             string
	UserAgent      string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastActivityAt time.Time
	RevokedAt      *time.Time
	RevokedReason  string
}

// IsRevoked reports whether the session has been explicitly revoked.
func (s Session) IsRevoked() bool { return s.RevokedAt != nil }

// IsExpired reports whether the session is past its absolute expiry.
func (s Session) IsExpired(at time.Time) bool {
	return !s.ExpiresAt.After(at)
}

// IsIdle reports whether the session has seen no activity for longer than
// the idle timeout.
func (s Session) IsIdle(at time.Time, idleTimeout time.Duration) bool {
	if idleTimeout <= 0 {
		return false
	}
	return at.Sub(s.LastActivityAt) >= idleTimeout
}

// IsValid is the composite validity check: not revoked, not past expiry, and
// not idle.
func (s Session) IsValid(at time.Time, idleTimeout time.Duration) bool {
	return !s.IsRevoked() && !s.IsExpired(at) && !s.IsIdle(at, idleTimeout)
}
