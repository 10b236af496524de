package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
	"github.com/gatehouse-dev/gatehouse/internal/store"
	"github.com/gatehouse-dev/gatehouse/pkg/slogx"
)

// attemptThrottle smooths per-identity attempt bursts in-process before the
// lockout store is consulted. It is a DoS relief valve, not the lockout
// itself; the persisted counter is still authoritative.
type attemptThrottle struct {
	mu       sync.Mutex
	limiters map[string]*throttleEntry
	limit    rate.Limit
	burst    int
}

type throttleEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newAttemptThrottle(rps float64, burst int) *attemptThrottle {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &attemptThrottle{
		limiters: make(map[string]*throttleEntry),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// delay returns how long the identity must wait before its next attempt, or
// zero if the attempt may proceed now.
func (t *attemptThrottle) delay(key string, now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.limiters[key]
	if !ok {
		entry = &throttleEntry{lim: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[key] = entry
	}
	entry.lastSeen = now

	res := entry.lim.ReserveN(now, 1)
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return d
	}
	return 0
}

// prune drops limiters idle since before the cutoff.
func (t *attemptThrottle) prune(cutoff time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, entry := range t.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(t.limiters, key)
		}
	}
}

// checkLockout gates a login attempt. It runs before any credential
// comparison so locked identities never reach the verification path.
func (e *Engine) checkLockout(ctx context.Context, identityKey string, now time.Time) error {
	if d := e.throttle.delay(identityKey, now); d > 0 {
		return &domain.AccountLockedError{Until: now.Add(d)}
	}

	lock, err := e.store.Lockouts().Get(ctx, identityKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return domain.WrapStorage("lockout lookup", err)
	}
	if lock.IsLocked(now) {
		return &domain.AccountLockedError{Until: *lock.LockedUntil}
	}
	return nil
}

// recordFailure counts a failed attempt within the rolling window and locks
// the identity once the threshold is reached. The read-modify-write runs in
// one transaction so concurrent failures never lose counts.
func (e *Engine) recordFailure(ctx context.Context, identityKey string, now time.Time) error {
	l := slogx.FromContext(ctx)

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		lock, err := tx.Lockouts().Get(ctx, identityKey)
		switch {
		case errors.Is(err, store.ErrNotFound):
			lock = domain.Lockout{IdentityKey: identityKey, WindowStart: now}
		case err != nil:
			return err
		}

		if now.Sub(lock.WindowStart) >= e.cfg.FailureWindow {
			lock.FailedCount = 0
			lock.WindowStart = now
		}
		lock.FailedCount++

		if lock.FailedCount >= e.cfg.MaxFailedAttempts {
			until := now.Add(e.lockoutDuration(lock.ConsecutiveLockouts))
			lock.LockedUntil = &until
			lock.ConsecutiveLockouts++
			lock.FailedCount = 0
			lock.WindowStart = now
			l.Warn("identity locked after repeated failures",
				slog.Time("until", until),
				slog.Int("consecutive_lockouts", lock.ConsecutiveLockouts),
			)
		}

		lock.UpdatedAt = now
		return tx.Lockouts().Upsert(ctx, lock)
	})
	return domain.WrapStorage("record login failure", err)
}

// lockoutDuration applies progressive backoff: base * 2^consecutive, capped.
func (e *Engine) lockoutDuration(consecutive int) time.Duration {
	d := e.cfg.LockoutDuration
	if !e.cfg.ProgressiveLockout {
		return d
	}
	for i := 0; i < consecutive; i++ {
		d *= 2
		if e.cfg.MaxLockoutDuration > 0 && d >= e.cfg.MaxLockoutDuration {
			return e.cfg.MaxLockoutDuration
		}
	}
	return d
}

// recordSuccess clears the failure counter and any lock, preserving the
// consecutive-lockout history so progressive backoff survives a reset.
func (e *Engine) recordSuccess(ctx context.Context, identityKey string, now time.Time) error {
	if !e.cfg.ResetOnSuccess {
		return nil
	}

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		lock, err := tx.Lockouts().Get(ctx, identityKey)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if lock.ConsecutiveLockouts == 0 {
			return tx.Lockouts().Delete(ctx, identityKey)
		}

		lock.FailedCount = 0
		lock.LockedUntil = nil
		lock.WindowStart = now
		lock.UpdatedAt = now
		return tx.Lockouts().Upsert(ctx, lock)
	})
	return domain.WrapStorage("record login success", err)
}
