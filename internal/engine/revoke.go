package engine

import (
	"context"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
	"github.com/gatehouse-dev/gatehouse/internal/store"
)

// RevokeAll invalidates everything a subject holds: every session, every
// refresh token and every still-live access token. The panic button for a
// compromised account.
func (e *Engine) RevokeAll(ctx context.Context, subjectID string) error {
	now := e.now()

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().RevokeAllForSubject(ctx, subjectID, "", domain.RevokeReasonRevokeAll, now); err != nil {
			return err
		}
		return tx.RefreshTokens().RevokeAllForSubject(ctx, subjectID, now)
	})
	if err != nil {
		return domain.WrapStorage("revoke all", err)
	}

	if err := e.registry.RevokeSubject(ctx, subjectID); err != nil {
		return domain.WrapStorage("revoke live access tokens", err)
	}
	return nil
}
