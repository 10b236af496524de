package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy surfaced at the engine boundary. Everything except
// StorageError is safe to return to an API caller as-is; none of these leak
// whether an identity exists or which factor failed.
var (
	ErrInvalidCredentials   = errors.New("invalid_credentials")
	ErrMFAInvalid           = errors.New("mfa_invalid")
	ErrMFAExhausted         = errors.New("mfa_too_many_attempts")
	ErrTokenExpired         = errors.New("token_expired")
	ErrTokenInvalid         = errors.New("token_invalid")
	ErrTokenRevoked         = errors.New("token_revoked")
	ErrRefreshReuseDetected = errors.New("refresh_reuse_detected")
	ErrSessionExpired       = errors.New("session_expired")
	ErrSessionRevoked       = errors.New("session_revoked")
	ErrSessionNotFound      = errors.New("session_not_found")
)

// AccountLockedError reports a locked identity. It carries only a
// retry-after hint, never the threshold that tripped the lock.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string { return "account_locked" }

// RetryAfter returns how long the caller should wait before retrying.
func (e *AccountLockedError) RetryAfter(now time.Time) time.Duration {
	if d := e.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}

// StorageError wraps a persistence-layer failure. It is the only variant
// allowed to carry internal detail, and it is surfaced immediately rather
// than retried so ambiguity stays fail-locked.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// WrapStorage tags err as a storage failure unless it is nil or already part
// of the engine taxonomy.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
