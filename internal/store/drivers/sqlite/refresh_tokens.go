package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
)

type refreshTokensRepo struct {
	db dbtx
}

func (r *refreshTokensRepo) Create(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, token_hash, subject_id, family_id, parent_id, session_id, created_at, expires_at, consumed_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.TokenHash,
		t.SubjectID,
		t.FamilyID,
		mapOptionalString(t.ParentID),
		t.SessionID,
		utc(t.CreatedAt),
		utc(t.ExpiresAt),
		mapOptionalTime(t.ConsumedAt),
		mapOptionalTime(t.RevokedAt),
	)
	return err
}

func (r *refreshTokensRepo) GetByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, token_hash, subject_id, family_id, parent_id, session_id, created_at, expires_at, consumed_at, revoked_at
		FROM refresh_tokens
		WHERE token_hash = ?`, hash)
	return scanRefreshToken(row)
}

// Consume is the linearization point for rotation: the conditional update
// succeeds for exactly one caller per record.
func (r *refreshTokensRepo) Consume(ctx context.Context, hash string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET consumed_at = ?
		WHERE token_hash = ? AND consumed_at IS NULL AND revoked_at IS NULL`,
		utc(at), hash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *refreshTokensRepo) RevokeFamily(ctx context.Context, familyID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = ?
		WHERE family_id = ? AND revoked_at IS NULL`,
		utc(at), familyID)
	return err
}

func (r *refreshTokensRepo) RevokeForSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = ?
		WHERE session_id = ? AND revoked_at IS NULL`,
		utc(at), sessionID)
	return err
}

func (r *refreshTokensRepo) RevokeAllForSubject(ctx context.Context, subjectID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = ?
		WHERE subject_id = ? AND revoked_at IS NULL`,
		utc(at), subjectID)
	return err
}

func (r *refreshTokensRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at < ?`, utc(cutoff))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRefreshToken(row rowScanner) (domain.RefreshToken, error) {
	var (
		t          domain.RefreshToken
		parentID   sql.NullString
		consumedAt sql.NullTime
		revokedAt  sql.NullTime
	)
	err := row.Scan(
		&t.ID,
		&t.TokenHash,
		&t.SubjectID,
		&t.FamilyID,
		&parentID,
		&t.SessionID,
		&t.CreatedAt,
		&t.ExpiresAt,
		&consumedAt,
		&revokedAt,
	)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.ParentID = mapNullStringPtr(parentID)
	t.ConsumedAt = mapNullTimePtr(consumedAt)
	t.RevokedAt = mapNullTimePtr(revokedAt)
	return t, nil
}
