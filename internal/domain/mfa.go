package domain

import "time"

// MFA code kinds accepted by challenge verification.
const (
	MFAMethodTOTP       = "totp"
	MFAMethodBackupCode = "backup_code"
)

// MFAChallenge is a pending second-factor challenge issued between the
// credential check and token issuance. It carries everything needed to
// finish the suspended login, so the engine stays stateless between calls.
type MFAChallenge struct {
	ID          string
	SubjectID   string
	IdentityKey string
	TOTPSecret  string // base32, copied from the verified subject at login
	IP          string
	UserAgent   string
	Attempts    int
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// IsExpired reports whether the challenge is past its deadline.
func (c MFAChallenge) IsExpired(at time.Time) bool {
	return !c.ExpiresAt.After(at)
}

// MFARequired is returned in place of a token pair when the subject has a
// second factor enrolled. The caller re-enters via VerifyMFA.
type MFARequired struct {
	ChallengeID string    `json:"challenge_id"`
	Methods     []string  `json:"methods"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Subject is what the external credential verifier hands back on a
// successful credential check.
type Subject struct {
	ID         string
	MFAEnabled bool
	TOTPSecret string // base32 TOTP secret; empty unless MFAEnabled
}

// LoginResult is the outcome of a login attempt: either a token pair with
// its session, or a pending MFA challenge. Exactly one side is set.
type LoginResult struct {
	Pair    *TokenPair
	Session *Session
	MFA     *MFARequired

	// SessionToken is the opaque session bearer secret. It is returned
	// exactly once, here; only its fingerprint is stored.
	SessionToken string
}
