package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
	"github.com/gatehouse-dev/gatehouse/internal/store"
	"github.com/gatehouse-dev/gatehouse/pkg/cryptox"
	"github.com/gatehouse-dev/gatehouse/pkg/idx"
	"github.com/gatehouse-dev/gatehouse/pkg/jwtx"
	"github.com/gatehouse-dev/gatehouse/pkg/slogx"
)

// Login authenticates an identity and either issues a token pair with a new
// session, or returns a pending MFA challenge when the subject has a second
// factor enrolled. The lockout check runs before the credential is compared.
func (e *Engine) Login(ctx context.Context, identityKey, credential string, meta domain.SessionMetadata) (domain.LoginResult, error) {
	now := e.now()
	l := slogx.FromContext(ctx)

	if err := e.checkLockout(ctx, identityKey, now); err != nil {
		var locked *domain.AccountLockedError
		if errors.As(err, &locked) {
			l.Warn("login attempt on locked identity", slog.Time("until", locked.Until))
		}
		return domain.LoginResult{}, err
	}

	subject, err := e.creds.Verify(ctx, identityKey, credential)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			if rerr := e.recordFailure(ctx, identityKey, now); rerr != nil {
				return domain.LoginResult{}, rerr
			}
			return domain.LoginResult{}, domain.ErrInvalidCredentials
		}
		return domain.LoginResult{}, err
	}

	if err := e.recordSuccess(ctx, identityKey, now); err != nil {
		return domain.LoginResult{}, err
	}

	if subject.MFAEnabled {
		mfa, err := e.createChallenge(ctx, subject, identityKey, meta, now)
		if err != nil {
			return domain.LoginResult{}, err
		}
		return domain.LoginResult{MFA: mfa}, nil
	}

	return e.issueTokens(ctx, subject.ID, meta, now)
}

// issueTokens mints the full credential set for a subject: a session with an
// opaque bearer secret, a root refresh token opening a fresh family, and a
// signed access token. Session and refresh records commit atomically; the
// concurrency cap evicts least-recently-used sessions in the same
// transaction.
func (e *Engine) issueTokens(ctx context.Context, subjectID string, meta domain.SessionMetadata, now time.Time) (domain.LoginResult, error) {
	sessionToken, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("generate session token: %w", err)
	}
	refreshToken, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("generate refresh token: %w", err)
	}

	session := domain.Session{
		ID:             idx.New().String(),
		SubjectID:      subjectID,
		TokenHash:      cryptox.FingerprintToken(sessionToken),
		IP:             meta.IP,
		UserAgent:      meta.UserAgent,
		CreatedAt:      now,
		ExpiresAt:      now.Add(e.cfg.SessionLifetime),
		LastActivityAt: now,
	}
	record := domain.RefreshToken{
		ID:        idx.New().String(),
		SubjectID: subjectID,
		TokenHash: cryptox.FingerprintToken(refreshToken),
		FamilyID:  uuid.NewString(),
		SessionID: session.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(e.cfg.RefreshTTL),
	}

	var evicted []domain.Session
	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		if e.cfg.MaxSessionsPerUser > 0 {
			// Idle-timed-out sessions still count toward the cap here:
			// their refresh tokens stay rotatable, so the slot is not
			// free. Being oldest by activity they are evicted first.
			active, err := tx.Sessions().ListActiveForSubject(ctx, subjectID, now)
			if err != nil {
				return err
			}
			// Evict oldest-activity sessions until the new one fits.
			for over := len(active) - e.cfg.MaxSessionsPerUser + 1; over > 0; over-- {
				oldest := active[0]
				active = active[1:]
				if err := tx.Sessions().Revoke(ctx, oldest.ID, domain.RevokeReasonMaxSessions, now); err != nil {
					return err
				}
				if err := tx.RefreshTokens().RevokeForSession(ctx, oldest.ID, now); err != nil {
					return err
				}
				evicted = append(evicted, oldest)
			}
		}

		if err := tx.Sessions().Create(ctx, session); err != nil {
			return err
		}
		return tx.RefreshTokens().Create(ctx, record)
	})
	if err != nil {
		return domain.LoginResult{}, domain.WrapStorage("create session", err)
	}

	for _, old := range evicted {
		if err := e.registry.RevokeSession(ctx, old.ID); err != nil {
			return domain.LoginResult{}, domain.WrapStorage("revoke evicted session tokens", err)
		}
	}
	if len(evicted) > 0 {
		slogx.FromContext(ctx).Info("evicted sessions over concurrency cap",
			slog.Int("count", len(evicted)),
		)
	}

	claims := jwtx.NewAccessClaims(subjectID, session.ID, nil, e.cfg.AccessTTL, e.cfg.Issuer, e.cfg.Audience, now)
	access, err := e.codec.Issue(claims)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("sign access token: %w", err)
	}
	if err := e.registry.Track(ctx, claims.ID, subjectID, session.ID, claims.ExpiresAt.Time); err != nil {
		return domain.LoginResult{}, domain.WrapStorage("track access token", err)
	}

	pair := &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    e.cfg.AccessTTL,
		SessionID:    session.ID,
	}
	return domain.LoginResult{Pair: pair, Session: &session, SessionToken: sessionToken}, nil
}
