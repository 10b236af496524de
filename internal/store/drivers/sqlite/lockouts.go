package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
)

type lockoutsRepo struct {
	db dbtx
}

func (r *lockoutsRepo) Get(ctx context.Context, identityKey string) (domain.Lockout, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT identity_key, failed_count, window_start, locked_until, consecutive_lockouts, updated_at
		FROM lockouts
		WHERE identity_key = ?`, identityKey)

	var (
		l           domain.Lockout
		lockedUntil sql.NullTime
	)
	err := row.Scan(
		&l.IdentityKey,
		&l.FailedCount,
		&l.WindowStart,
		&lockedUntil,
		&l.ConsecutiveLockouts,
		&l.UpdatedAt,
	)
	if err != nil {
		return domain.Lockout{}, mapNotFound(err)
	}
	l.LockedUntil = mapNullTimePtr(lockedUntil)
	return l, nil
}

func (r *lockoutsRepo) Upsert(ctx context.Context, l domain.Lockout) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lockouts (identity_key, failed_count, window_start, locked_until, consecutive_lockouts, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (identity_key) DO UPDATE SET
			failed_count = excluded.failed_count,
			window_start = excluded.window_start,
			locked_until = excluded.locked_until,
			consecutive_lockouts = excluded.consecutive_lockouts,
			updated_at = excluded.updated_at`,
		l.IdentityKey,
		l.FailedCount,
		utc(l.WindowStart),
		mapOptionalTime(l.LockedUntil),
		l.ConsecutiveLockouts,
		utc(l.UpdatedAt),
	)
	return err
}

func (r *lockoutsRepo) Delete(ctx context.Context, identityKey string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM lockouts WHERE identity_key = ?`, identityKey)
	return err
}

func (r *lockoutsRepo) DeleteStaleBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM lockouts
		WHERE updated_at < ? AND (locked_until IS NULL OR locked_until < ?)`,
		utc(cutoff), utc(cutoff))
	return err
}
