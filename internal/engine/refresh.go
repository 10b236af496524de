package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
	"github.com/gatehouse-dev/gatehouse/internal/store"
	"github.com/gatehouse-dev/gatehouse/pkg/cryptox"
	"github.com/gatehouse-dev/gatehouse/pkg/idx"
	"github.com/gatehouse-dev/gatehouse/pkg/jwtx"
	"github.com/gatehouse-dev/gatehouse/pkg/slogx"
)

// errRotateReuse aborts the rotation transaction when reuse is detected so
// nothing from the attempt commits; the revocation runs in its own tx.
var errRotateReuse = errors.New("engine: refresh reuse")

// Refresh rotates a refresh token: the presented token is consumed and a
// child record in the same family replaces it, alongside a new access token.
//
// A token that is already consumed or revoked is treated as a theft signal
// regardless of expiry: the whole family and its session are revoked in a
// committed transaction before ErrRefreshReuseDetected is returned, so the
// fail-secure side effect happens even if the caller ignores the error.
// Concurrent rotations of the same raw value are serialized by the store's
// conditional consume; exactly one wins.
func (e *Engine) Refresh(ctx context.Context, rawToken string) (*domain.TokenPair, error) {
	now := e.now()
	l := slogx.FromContext(ctx)
	hash := cryptox.FingerprintToken(strings.TrimSpace(rawToken))

	newRaw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	var current domain.RefreshToken
	txErr := e.store.WithTx(ctx, func(tx store.Tx) error {
		found, err := tx.RefreshTokens().GetByHash(ctx, hash)
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrTokenInvalid
		}
		if err != nil {
			return err
		}
		current = found

		// Reuse is checked before expiry: a replayed consumed token is
		// a theft signal even if the record has since expired.
		if found.IsConsumed() || found.IsRevoked() {
			return errRotateReuse
		}
		if found.IsExpired(now) {
			return domain.ErrTokenExpired
		}

		won, err := tx.RefreshTokens().Consume(ctx, hash, now)
		if err != nil {
			return err
		}
		if !won {
			return errRotateReuse
		}

		parentID := found.ID
		child := domain.RefreshToken{
			ID:        idx.New().String(),
			SubjectID: found.SubjectID,
			TokenHash: cryptox.FingerprintToken(newRaw),
			FamilyID:  found.FamilyID,
			ParentID:  &parentID,
			SessionID: found.SessionID,
			CreatedAt: now,
			ExpiresAt: now.Add(e.cfg.RefreshTTL),
		}
		return tx.RefreshTokens().Create(ctx, child)
	})

	switch {
	case errors.Is(txErr, errRotateReuse):
		if err := e.revokeFamilyForReuse(ctx, current); err != nil {
			return nil, err
		}
		l.Warn("refresh token reuse detected, family revoked",
			slog.String("family_id", current.FamilyID),
			slog.String("subject_id", current.SubjectID),
		)
		return nil, domain.ErrRefreshReuseDetected
	case errors.Is(txErr, domain.ErrTokenInvalid), errors.Is(txErr, domain.ErrTokenExpired):
		return nil, txErr
	case txErr != nil:
		return nil, domain.WrapStorage("rotate refresh token", txErr)
	}

	claims := jwtx.NewAccessClaims(current.SubjectID, current.SessionID, nil, e.cfg.AccessTTL, e.cfg.Issuer, e.cfg.Audience, now)
	access, err := e.codec.Issue(claims)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	if err := e.registry.Track(ctx, claims.ID, current.SubjectID, current.SessionID, claims.ExpiresAt.Time); err != nil {
		return nil, domain.WrapStorage("track access token", err)
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: newRaw,
		TokenType:    "Bearer",
		ExpiresIn:    e.cfg.AccessTTL,
		SessionID:    current.SessionID,
	}, nil
}

// revokeFamilyForReuse commits the full-family revocation, including the
// bound session and its still-live access tokens. A storage failure here
// surfaces immediately; until revocation commits, the consumed root keeps
// tripping reuse detection, so the guarantee never reopens.
func (e *Engine) revokeFamilyForReuse(ctx context.Context, t domain.RefreshToken) error {
	now := e.now()

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeFamily(ctx, t.FamilyID, now); err != nil {
			return err
		}
		if t.SessionID == "" {
			return nil
		}
		return tx.Sessions().Revoke(ctx, t.SessionID, domain.RevokeReasonTokenReuse, now)
	})
	if err != nil {
		return domain.WrapStorage("revoke token family", err)
	}

	if t.SessionID != "" {
		if err := e.registry.RevokeSession(ctx, t.SessionID); err != nil {
			return domain.WrapStorage("revoke live access tokens", err)
		}
	}
	return nil
}
