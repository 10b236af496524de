package engine

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
	"github.com/gatehouse-dev/gatehouse/internal/store"
	"github.com/gatehouse-dev/gatehouse/pkg/cryptox"
)

func TestHousekeeper_SweepDeletesExpiredRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, func(cfg *Config) {
		cfg.RefreshRetention = time.Hour
	})

	res := env.login(t)
	refreshHash := mustRefreshHash(t, env, res)

	enrollMFA(env)
	startChallenge(t, env)
	failLogins(t, env, 2)

	h := env.engine.Housekeeper(slog.Default())

	// Nothing is expired yet: the sweep must leave live records alone.
	h.Sweep(ctx)
	_, err := env.store.RefreshTokens().GetByHash(ctx, refreshHash)
	require.NoError(t, err)

	// Push everything past its deadline plus retention.
	env.advance(env.cfg.RefreshTTL + env.cfg.RefreshRetention + env.cfg.MaxLockoutDuration + time.Hour)
	h.Sweep(ctx)

	_, err = env.store.RefreshTokens().GetByHash(ctx, refreshHash)
	require.ErrorIs(t, err, store.ErrNotFound)

	sessions, err := env.store.Sessions().ListForSubject(ctx, "sub_1")
	require.NoError(t, err)
	require.Empty(t, sessions)

	_, err = env.store.Lockouts().Get(ctx, "user@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestHousekeeper_StartStop(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(cfg *Config) {
		cfg.HousekeepingInterval = 10 * time.Millisecond
	})

	h := env.engine.Housekeeper(slog.Default())
	h.Start()
	time.Sleep(30 * time.Millisecond)
	h.Stop()
}

// mustRefreshHash confirms the pair's refresh token is persisted and returns
// its stored fingerprint.
func mustRefreshHash(t *testing.T, env *testEnv, res domain.LoginResult) string {
	t.Helper()

	hash := cryptox.FingerprintToken(res.Pair.RefreshToken)
	tok, err := env.store.RefreshTokens().GetByHash(context.Background(), hash)
	require.NoError(t, err)
	return tok.TokenHash
}
