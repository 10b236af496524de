package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
)

type sessionsRepo struct {
	db dbtx
}

const sessionColumns = `id, subject_id, token_hash, ip, user_agent, created_at, expires_at, last_activity_at, revoked_at, revoked_reason`

func (r *sessionsRepo) Create(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.SubjectID,
		s.TokenHash,
		s.IP,
		s.UserAgent,
		utc(s.CreatedAt),
		utc(s.ExpiresAt),
		utc(s.LastActivityAt),
		mapOptionalTime(s.RevokedAt),
		s.RevokedReason,
	)
	return err
}

func (r *sessionsRepo) GetByID(ctx context.Context, id string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (r *sessionsRepo) GetByTokenHash(ctx context.Context, hash string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE token_hash = ?`, hash)
	return scanSession(row)
}

func (r *sessionsRepo) UpdateActivity(ctx context.Context, id string, lastActivity, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET last_activity_at = ?, expires_at = ?
		WHERE id = ? AND revoked_at IS NULL`,
		utc(lastActivity), utc(expiresAt), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *sessionsRepo) Revoke(ctx context.Context, id, reason string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET revoked_at = ?, revoked_reason = ?
		WHERE id = ? AND revoked_at IS NULL`,
		utc(at), reason, id)
	return err
}

func (r *sessionsRepo) RevokeAllForSubject(ctx context.Context, subjectID, exceptID, reason string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET revoked_at = ?, revoked_reason = ?
		WHERE subject_id = ? AND revoked_at IS NULL AND (? = '' OR id <> ?)`,
		utc(at), reason, subjectID, exceptID, exceptID)
	return err
}

func (r *sessionsRepo) ListForSubject(ctx context.Context, subjectID string) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE subject_id = ?
		ORDER BY last_activity_at DESC`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func (r *sessionsRepo) ListActiveForSubject(ctx context.Context, subjectID string, now time.Time) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE subject_id = ? AND revoked_at IS NULL AND expires_at > ?
		ORDER BY last_activity_at ASC`, subjectID, utc(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func (r *sessionsRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE expires_at < ?`, utc(cutoff))
	return err
}

func scanSession(row rowScanner) (domain.Session, error) {
	var (
		s         domain.Session
		revokedAt sql.NullTime
	)
	err := row.Scan(
		&s.ID,
		&s.SubjectID,
		&s.TokenHash,
		&s.IP,
		&s.UserAgent,
		&s.CreatedAt,
		&s.ExpiresAt,
		&s.LastActivityAt,
		&revokedAt,
		&s.RevokedReason,
	)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.RevokedAt = mapNullTimePtr(revokedAt)
	return s, nil
}

func collectSessions(rows *sql.Rows) ([]domain.Session, error) {
	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
