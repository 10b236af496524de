package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
	"github.com/gatehouse-dev/gatehouse/internal/store"
	"github.com/gatehouse-dev/gatehouse/pkg/cryptox"
)

// ValidateSession checks a raw session bearer token and, when valid, touches
// the session. Checks run in order: existence, revocation, absolute expiry,
// idle timeout. The returned record reflects the touch.
func (e *Engine) ValidateSession(ctx context.Context, rawToken string) (domain.Session, error) {
	now := e.now()
	hash := cryptox.FingerprintToken(strings.TrimSpace(rawToken))

	session, err := e.store.Sessions().GetByTokenHash(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, domain.WrapStorage("session lookup", err)
	}

	if session.IsRevoked() {
		return domain.Session{}, domain.ErrSessionRevoked
	}
	if session.IsExpired(now) {
		return domain.Session{}, domain.ErrSessionExpired
	}
	if session.IsIdle(now, e.cfg.IdleTimeout) {
		return domain.Session{}, domain.ErrSessionExpired
	}

	return e.touch(ctx, session, now)
}

// touch updates last activity and applies sliding expiration: the deadline
// is extended to now + lifetime only when the remaining lifetime has dropped
// below the refresh threshold. Touches inside the threshold window leave
// expires_at unchanged.
func (e *Engine) touch(ctx context.Context, session domain.Session, now time.Time) (domain.Session, error) {
	expiresAt := session.ExpiresAt
	if e.cfg.SlidingExpiration && session.ExpiresAt.Sub(now) < e.cfg.RefreshThreshold {
		expiresAt = now.Add(e.cfg.SessionLifetime)
	}

	if err := e.store.Sessions().UpdateActivity(ctx, session.ID, now, expiresAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Revoked or deleted between the read and the touch.
			return domain.Session{}, domain.ErrSessionRevoked
		}
		return domain.Session{}, domain.WrapStorage("touch session", err)
	}

	session.LastActivityAt = now
	session.ExpiresAt = expiresAt
	return session, nil
}

// Logout revokes a session, its refresh-token family and any still-live
// access tokens minted under it.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	now := e.now()

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Sessions().GetByID(ctx, sessionID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.ErrSessionNotFound
			}
			return err
		}
		if err := tx.Sessions().Revoke(ctx, sessionID, domain.RevokeReasonLogout, now); err != nil {
			return err
		}
		return tx.RefreshTokens().RevokeForSession(ctx, sessionID, now)
	})
	if errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	if err != nil {
		return domain.WrapStorage("logout", err)
	}

	if err := e.registry.RevokeSession(ctx, sessionID); err != nil {
		return domain.WrapStorage("revoke live access tokens", err)
	}
	return nil
}

// ListSessions returns every session record for a subject, newest activity
// first, including revoked and expired ones.
func (e *Engine) ListSessions(ctx context.Context, subjectID string) ([]domain.Session, error) {
	sessions, err := e.store.Sessions().ListForSubject(ctx, subjectID)
	if err != nil {
		return nil, domain.WrapStorage("list sessions", err)
	}
	return sessions, nil
}
