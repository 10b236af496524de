package domain

import "time"

// Lockout tracks failed-attempt state for one identity key (username, email
// or subject id, whatever the caller authenticates by).
type Lockout struct {
	IdentityKey         string
	FailedCount         int
	WindowStart         time.Time
	LockedUntil         *time.Time
	ConsecutiveLockouts int // preserved across resets to drive progressive backoff
	UpdatedAt           time.Time
}

// IsLocked reports whether the identity is locked at the given instant.
func (l Lockout) IsLocked(at time.Time) bool {
	return l.LockedUntil != nil && at.Before(*l.LockedUntil)
}
