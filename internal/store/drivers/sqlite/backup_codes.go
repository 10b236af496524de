package sqlite

import (
	"context"
	"time"
)

type backupCodesRepo struct {
	db dbtx
}

func (r *backupCodesRepo) Replace(ctx context.Context, subjectID string, hashes []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM backup_codes WHERE subject_id = ?`, subjectID); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, h := range hashes {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO backup_codes (subject_id, code_hash, created_at) VALUES (?, ?, ?)`,
			subjectID, h, now); err != nil {
			return err
		}
	}
	return nil
}

func (r *backupCodesRepo) ListHashes(ctx context.Context, subjectID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT code_hash FROM backup_codes WHERE subject_id = ? ORDER BY code_hash`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *backupCodesRepo) Delete(ctx context.Context, subjectID, hash string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM backup_codes WHERE subject_id = ? AND code_hash = ?`, subjectID, hash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *backupCodesRepo) DeleteAll(ctx context.Context, subjectID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM backup_codes WHERE subject_id = ?`, subjectID)
	return err
}

func (r *backupCodesRepo) Count(ctx context.Context, subjectID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM backup_codes WHERE subject_id = ?`, subjectID).Scan(&n)
	return n, err
}
