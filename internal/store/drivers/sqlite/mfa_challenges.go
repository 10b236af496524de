package sqlite

import (
	"context"
	"time"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
)

type mfaChallengesRepo struct {
	db dbtx
}

const mfaChallengeColumns = `id, subject_id, identity_key, totp_secret, ip, user_agent, attempts, created_at, expires_at`

func (r *mfaChallengesRepo) Create(ctx context.Context, c domain.MFAChallenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_challenges (`+mfaChallengeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.SubjectID,
		c.IdentityKey,
		c.TOTPSecret,
		c.IP,
		c.UserAgent,
		c.Attempts,
		utc(c.CreatedAt),
		utc(c.ExpiresAt),
	)
	return err
}

func (r *mfaChallengesRepo) Get(ctx context.Context, id string) (domain.MFAChallenge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+mfaChallengeColumns+` FROM mfa_challenges WHERE id = ?`, id)

	var c domain.MFAChallenge
	err := row.Scan(
		&c.ID,
		&c.SubjectID,
		&c.IdentityKey,
		&c.TOTPSecret,
		&c.IP,
		&c.UserAgent,
		&c.Attempts,
		&c.CreatedAt,
		&c.ExpiresAt,
	)
	if err != nil {
		return domain.MFAChallenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *mfaChallengesRepo) IncrementAttempts(ctx context.Context, id string) (domain.MFAChallenge, error) {
	_, err := r.db.ExecContext(ctx, `
		UPDATE mfa_challenges SET attempts = attempts + 1 WHERE id = ?`, id)
	if err != nil {
		return domain.MFAChallenge{}, err
	}
	return r.Get(ctx, id)
}

func (r *mfaChallengesRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mfa_challenges WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *mfaChallengesRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mfa_challenges WHERE expires_at < ?`, utc(cutoff))
	return err
}
