package store

import (
	"context"
	"errors"
	"time"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, memory)
// implement this. Sub-repositories keep concerns tidy and testable, and make
// it hard to accidentally nest transactions.
type Store interface {
	RefreshTokens() RefreshTokens
	Sessions() Sessions
	Lockouts() Lockouts
	MFAChallenges() MFAChallenges
	BackupCodes() BackupCodes

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction: rolled back if fn errors,
	// committed otherwise. This is the recommended way to run multi-step
	// operations that must be atomic (e.g. refresh rotation).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing store is still reachable.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type RefreshTokens interface {
	// Create stores a new refresh token record.
	Create(ctx context.Context, t domain.RefreshToken) error

	// GetByHash returns the record for a token fingerprint, whatever its
	// state. Callers decide how to treat consumed/revoked/expired records.
	GetByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// Consume marks the record consumed if and only if it is still
	// unconsumed and unrevoked, reporting whether this call won. This is
	// the single indivisible check-and-set that rotation linearizes on:
	// two concurrent Consume calls on one hash yield exactly one true.
	Consume(ctx context.Context, hash string, at time.Time) (bool, error)

	// RevokeFamily sets revoked_at on every unrevoked record sharing the
	// family id.
	RevokeFamily(ctx context.Context, familyID string, at time.Time) error

	// RevokeForSession revokes every live record bound to a session.
	RevokeForSession(ctx context.Context, sessionID string, at time.Time) error

	// RevokeAllForSubject bulk-revokes every live record for a subject.
	RevokeAllForSubject(ctx context.Context, subjectID string, at time.Time) error

	// DeleteExpiredBefore removes records whose expires_at is before the
	// cutoff, regardless of consumption or revocation state. The cutoff
	// carries the retention window.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) error
}

type Sessions interface {
	// Create stores a new session record.
	Create(ctx context.Context, s domain.Session) error

	// GetByID returns a session by id, whatever its state.
	GetByID(ctx context.Context, id string) (domain.Session, error)

	// GetByTokenHash returns a session by its bearer fingerprint.
	GetByTokenHash(ctx context.Context, hash string) (domain.Session, error)

	// UpdateActivity writes last_activity_at and expires_at together. The
	// caller computes whether expiry actually slides.
	UpdateActivity(ctx context.Context, id string, lastActivity, expiresAt time.Time) error

	// Revoke marks the session revoked with a reason. Revoking an already
	// revoked session is a no-op.
	Revoke(ctx context.Context, id, reason string, at time.Time) error

	// RevokeAllForSubject revokes every live session for a subject, except
	// the given session id when non-empty.
	RevokeAllForSubject(ctx context.Context, subjectID, exceptID, reason string, at time.Time) error

	// ListForSubject returns all sessions for a subject, newest activity
	// first.
	ListForSubject(ctx context.Context, subjectID string) ([]domain.Session, error)

	// ListActiveForSubject returns unrevoked, unexpired sessions for a
	// subject ordered by last activity, oldest first, so callers can evict
	// least-recently-used.
	ListActiveForSubject(ctx context.Context, subjectID string, now time.Time) ([]domain.Session, error)

	// DeleteExpiredBefore removes sessions whose expires_at is before the
	// cutoff.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) error
}

type Lockouts interface {
	// Get returns the lockout row for an identity key.
	Get(ctx context.Context, identityKey string) (domain.Lockout, error)

	// Upsert writes the full lockout row, inserting or replacing.
	Upsert(ctx context.Context, l domain.Lockout) error

	// Delete removes the row for an identity key. Missing rows are fine.
	Delete(ctx context.Context, identityKey string) error

	// DeleteStaleBefore removes rows that are unlocked and have seen no
	// update since the cutoff.
	DeleteStaleBefore(ctx context.Context, cutoff time.Time) error
}

type MFAChallenges interface {
	// Create stores a new pending challenge.
	Create(ctx context.Context, c domain.MFAChallenge) error

	// Get returns a challenge by id, expired or not.
	Get(ctx context.Context, id string) (domain.MFAChallenge, error)

	// IncrementAttempts bumps the failed-attempt counter and returns the
	// updated challenge.
	IncrementAttempts(ctx context.Context, id string) (domain.MFAChallenge, error)

	// Delete removes a challenge (consumed, exhausted, or abandoned) and
	// reports whether this call removed it. Like RefreshTokens.Consume,
	// this is the indivisible check-and-set that challenge consumption
	// linearizes on: two concurrent Delete calls on one id yield exactly
	// one true.
	Delete(ctx context.Context, id string) (bool, error)

	// DeleteExpiredBefore removes challenges past their deadline.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) error
}

type BackupCodes interface {
	// Replace swaps the full backup-code set for a subject with the given
	// fingerprints.
	Replace(ctx context.Context, subjectID string, hashes []string) error

	// ListHashes returns every stored fingerprint for a subject. The
	// engine compares candidates in constant time across the whole list.
	ListHashes(ctx context.Context, subjectID string) ([]string, error)

	// Delete removes one consumed code and reports whether this call
	// removed it. A false return means the code was already spent; two
	// concurrent Delete calls on one hash yield exactly one true.
	Delete(ctx context.Context, subjectID, hash string) (bool, error)

	// DeleteAll removes all codes for a subject.
	DeleteAll(ctx context.Context, subjectID string) error

	// Count returns how many unused codes a subject has left.
	Count(ctx context.Context, subjectID string) (int, error)
}
