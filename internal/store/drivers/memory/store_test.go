package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
	"github.com/gatehouse-dev/gatehouse/internal/store"
)

func TestStore_TxCommitAndRollback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()
	now := time.Now().UTC()

	tok := domain.RefreshToken{
		ID:        "rt_1",
		SubjectID: "sub_1",
		TokenHash: "hash_1",
		FamilyID:  "fam_1",
		SessionID: "sess_1",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}

	err := s.WithTx(ctx, func(tx store.Tx) error {
		return tx.RefreshTokens().Create(ctx, tok)
	})
	require.NoError(t, err)

	got, err := s.RefreshTokens().GetByHash(ctx, "hash_1")
	require.NoError(t, err)
	require.Equal(t, "rt_1", got.ID)

	boom := errors.New("boom")
	err = s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeFamily(ctx, "fam_1", now); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err = s.RefreshTokens().GetByHash(ctx, "hash_1")
	require.NoError(t, err)
	require.Nil(t, got.RevokedAt, "rolled-back revocation must not be visible")
}

func TestRefreshTokens_ConsumeSingleWinner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()
	now := time.Now().UTC()

	require.NoError(t, s.RefreshTokens().Create(ctx, domain.RefreshToken{
		ID:        "rt_1",
		SubjectID: "sub_1",
		TokenHash: "hash_1",
		FamilyID:  "fam_1",
		SessionID: "sess_1",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}))

	won, err := s.RefreshTokens().Consume(ctx, "hash_1", now)
	require.NoError(t, err)
	require.True(t, won)

	won, err = s.RefreshTokens().Consume(ctx, "hash_1", now)
	require.NoError(t, err)
	require.False(t, won, "second consume must lose")

	won, err = s.RefreshTokens().Consume(ctx, "unknown", now)
	require.NoError(t, err)
	require.False(t, won)
}

func TestSessions_ActiveOrderingAndRevocation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()
	now := time.Now().UTC()

	mk := func(id string, activity time.Time) domain.Session {
		return domain.Session{
			ID:             id,
			SubjectID:      "sub_1",
			TokenHash:      "hash_" + id,
			CreatedAt:      now,
			ExpiresAt:      now.Add(time.Hour),
			LastActivityAt: activity,
		}
	}
	require.NoError(t, s.Sessions().Create(ctx, mk("b", now.Add(-time.Minute))))
	require.NoError(t, s.Sessions().Create(ctx, mk("a", now.Add(-time.Hour+time.Minute))))
	require.NoError(t, s.Sessions().Create(ctx, mk("c", now)))

	active, err := s.Sessions().ListActiveForSubject(ctx, "sub_1", now)
	require.NoError(t, err)
	require.Len(t, active, 3)
	require.Equal(t, "a", active[0].ID, "oldest activity first")
	require.Equal(t, "c", active[2].ID)

	require.NoError(t, s.Sessions().RevokeAllForSubject(ctx, "sub_1", "c", domain.RevokeReasonRevokeAll, now))

	active, err = s.Sessions().ListActiveForSubject(ctx, "sub_1", now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "c", active[0].ID)

	all, err := s.Sessions().ListForSubject(ctx, "sub_1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "c", all[0].ID, "newest activity first")
}

func TestSessions_UpdateActivityRevokedOrMissing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()
	now := time.Now().UTC()

	err := s.Sessions().UpdateActivity(ctx, "missing", now, now.Add(time.Hour))
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Sessions().Create(ctx, domain.Session{
		ID:             "sess_1",
		SubjectID:      "sub_1",
		TokenHash:      "hash_1",
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Hour),
		LastActivityAt: now,
	}))
	require.NoError(t, s.Sessions().Revoke(ctx, "sess_1", domain.RevokeReasonLogout, now))

	err = s.Sessions().UpdateActivity(ctx, "sess_1", now, now.Add(time.Hour))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestBackupCodes_ReplaceAndConsume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.BackupCodes().Replace(ctx, "sub_1", []string{"h1", "h2", "h3"}))

	n, err := s.BackupCodes().Count(ctx, "sub_1")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	removed, err := s.BackupCodes().Delete(ctx, "sub_1", "h2")
	require.NoError(t, err)
	require.True(t, removed)
	hashes, err := s.BackupCodes().ListHashes(ctx, "sub_1")
	require.NoError(t, err)
	require.Equal(t, []string{"h1", "h3"}, hashes)

	removed, err = s.BackupCodes().Delete(ctx, "sub_1", "h2")
	require.NoError(t, err)
	require.False(t, removed, "a spent code must not delete twice")

	require.NoError(t, s.BackupCodes().Replace(ctx, "sub_1", []string{"n1"}))
	hashes, err = s.BackupCodes().ListHashes(ctx, "sub_1")
	require.NoError(t, err)
	require.Equal(t, []string{"n1"}, hashes, "replace discards prior codes")
}

func TestMFAChallenges_IncrementAttempts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()
	now := time.Now().UTC()

	require.NoError(t, s.MFAChallenges().Create(ctx, domain.MFAChallenge{
		ID:        "ch_1",
		SubjectID: "sub_1",
		CreatedAt: now,
		ExpiresAt: now.Add(5 * time.Minute),
	}))

	c, err := s.MFAChallenges().IncrementAttempts(ctx, "ch_1")
	require.NoError(t, err)
	require.Equal(t, 1, c.Attempts)

	c, err = s.MFAChallenges().IncrementAttempts(ctx, "ch_1")
	require.NoError(t, err)
	require.Equal(t, 2, c.Attempts)

	_, err = s.MFAChallenges().IncrementAttempts(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMFAChallenges_DeleteIsConditional(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()
	now := time.Now().UTC()

	require.NoError(t, s.MFAChallenges().Create(ctx, domain.MFAChallenge{
		ID:        "ch_1",
		SubjectID: "sub_1",
		CreatedAt: now,
		ExpiresAt: now.Add(5 * time.Minute),
	}))

	removed, err := s.MFAChallenges().Delete(ctx, "ch_1")
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = s.MFAChallenges().Delete(ctx, "ch_1")
	require.NoError(t, err)
	require.False(t, removed, "a consumed challenge must not delete twice")

	_, err = s.MFAChallenges().Get(ctx, "ch_1")
	require.ErrorIs(t, err, store.ErrNotFound)
}
