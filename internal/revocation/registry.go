// Package revocation tracks live access-token IDs and records revocations so
// bearer tokens can be rejected before their natural expiry. Entries are
// TTL-bound: once a token would have expired anyway, its record is dropped.
package revocation

import (
	"context"
	"time"
)

// Registry is the revocation backend. Track registers a freshly issued token
// id (JTI) so later session- or subject-wide revocations can find it; Revoke
// blacklists a single JTI until the given deadline.
type Registry interface {
	// Track records a live JTI with its owning subject and session.
	Track(ctx context.Context, jti, subjectID, sessionID string, expiresAt time.Time) error

	// Revoke blacklists a JTI until the given time. A deadline in the past
	// is a no-op.
	Revoke(ctx context.Context, jti string, until time.Time) error

	// IsRevoked reports whether the JTI is currently blacklisted.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// RevokeSession blacklists every live JTI issued under the session.
	RevokeSession(ctx context.Context, sessionID string) error

	// RevokeSubject blacklists every live JTI issued to the subject.
	RevokeSubject(ctx context.Context, subjectID string) error

	// Sweep drops expired entries. Backends with native TTL support may
	// treat this as a no-op.
	Sweep(ctx context.Context) error

	Close() error
}
