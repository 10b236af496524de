package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
)

func failLogins(t *testing.T, env *testEnv, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := env.engine.Login(context.Background(), "user@example.com", "wrong", domain.SessionMetadata{})
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}
}

func TestLockout_ThresholdLocksIdentity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, func(cfg *Config) {
		cfg.MaxFailedAttempts = 5
		cfg.LockoutDuration = 15 * time.Minute
		cfg.ProgressiveLockout = false
	})

	failLogins(t, env, 5)

	// The 6th attempt is rejected before the credential is even compared,
	// correct password or not.
	_, err := env.engine.Login(ctx, "user@example.com", "hunter2!", domain.SessionMetadata{})
	var locked *domain.AccountLockedError
	require.ErrorAs(t, err, &locked)
	require.Equal(t, env.now.Add(15*time.Minute), locked.Until)
	require.Equal(t, 15*time.Minute, locked.RetryAfter(env.now))

	// Other identities are unaffected.
	env.creds.passwords["other@example.com"] = "pw"
	env.creds.subjects["other@example.com"] = domain.Subject{ID: "sub_2"}
	_, err = env.engine.Login(ctx, "other@example.com", "pw", domain.SessionMetadata{})
	require.NoError(t, err)
}

func TestLockout_SuccessResetsCounter(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(cfg *Config) {
		cfg.MaxFailedAttempts = 5
	})

	failLogins(t, env, 4)
	env.login(t)

	// The counter restarted at zero: four more failures stay under the
	// threshold, the fifth locks.
	failLogins(t, env, 4)
	_, err := env.engine.Login(context.Background(), "user@example.com", "hunter2!", domain.SessionMetadata{})
	require.NoError(t, err)
}

func TestLockout_WindowExpiryResetsCounter(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(cfg *Config) {
		cfg.MaxFailedAttempts = 5
		cfg.FailureWindow = 15 * time.Minute
	})

	failLogins(t, env, 4)
	env.advance(16 * time.Minute)

	// Old failures fell out of the window; these four start a new count.
	failLogins(t, env, 4)
	_, err := env.engine.Login(context.Background(), "user@example.com", "hunter2!", domain.SessionMetadata{})
	require.NoError(t, err)
}

func TestLockout_ExpiresAndLoginSucceeds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, func(cfg *Config) {
		cfg.MaxFailedAttempts = 5
		cfg.LockoutDuration = 15 * time.Minute
		cfg.ProgressiveLockout = false
	})

	failLogins(t, env, 5)
	env.advance(16 * time.Minute)

	res, err := env.engine.Login(ctx, "user@example.com", "hunter2!", domain.SessionMetadata{})
	require.NoError(t, err)
	require.NotNil(t, res.Pair)
}

func TestLockout_ProgressiveBackoffDoubles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, func(cfg *Config) {
		cfg.MaxFailedAttempts = 3
		cfg.LockoutDuration = 10 * time.Minute
		cfg.ProgressiveLockout = true
		cfg.MaxLockoutDuration = 24 * time.Hour
	})

	failLogins(t, env, 3)
	env.advance(11 * time.Minute)

	// A successful login clears the counter but keeps the lockout history.
	env.login(t)

	// Second lockout doubles the duration.
	failLogins(t, env, 3)
	_, err := env.engine.Login(ctx, "user@example.com", "hunter2!", domain.SessionMetadata{})
	var locked *domain.AccountLockedError
	require.ErrorAs(t, err, &locked)
	require.Equal(t, env.now.Add(20*time.Minute), locked.Until)
}

func TestLockout_ProgressiveBackoffCapped(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(cfg *Config) {
		cfg.MaxFailedAttempts = 2
		cfg.LockoutDuration = 10 * time.Minute
		cfg.ProgressiveLockout = true
		cfg.MaxLockoutDuration = 25 * time.Minute
	})

	// Trip three lockouts in a row; the third would be 40m uncapped.
	for i := 0; i < 3; i++ {
		failLogins(t, env, 2)
		env.advance(env.cfg.MaxLockoutDuration + time.Minute)
	}

	failLogins(t, env, 2)
	_, err := env.engine.Login(context.Background(), "user@example.com", "hunter2!", domain.SessionMetadata{})
	var locked *domain.AccountLockedError
	require.ErrorAs(t, err, &locked)
	require.Equal(t, env.now.Add(25*time.Minute), locked.Until)
}

func TestLockout_ThrottleSmoothsBursts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, func(cfg *Config) {
		cfg.ThrottleRPS = 0.1 // one attempt per 10s
		cfg.ThrottleBurst = 2
	})

	// The burst allowance admits the first two attempts at the same
	// instant; the third is deferred without ever reaching the store.
	for i := 0; i < 2; i++ {
		_, err := env.engine.Login(ctx, "user@example.com", "wrong", domain.SessionMetadata{})
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}

	_, err := env.engine.Login(ctx, "user@example.com", "hunter2!", domain.SessionMetadata{})
	var locked *domain.AccountLockedError
	require.ErrorAs(t, err, &locked)
	require.True(t, locked.Until.After(env.now))

	lock, err2 := env.store.Lockouts().Get(ctx, "user@example.com")
	require.NoError(t, err2)
	require.Equal(t, 2, lock.FailedCount, "throttled attempt must not reach the counter")
}
