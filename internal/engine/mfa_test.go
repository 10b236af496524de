package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
)

const testTOTPSecret = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"

func enrollMFA(env *testEnv) {
	env.creds.subjects["user@example.com"] = domain.Subject{
		ID:         "sub_1",
		MFAEnabled: true,
		TOTPSecret: testTOTPSecret,
	}
}

func startChallenge(t *testing.T, env *testEnv) string {
	t.Helper()

	res, err := env.engine.Login(context.Background(), "user@example.com", "hunter2!", domain.SessionMetadata{
		IP:        "198.51.100.7",
		UserAgent: "engine-test",
	})
	require.NoError(t, err)
	require.NotNil(t, res.MFA)
	return res.MFA.ChallengeID
}

func totpCode(t *testing.T, env *testEnv) string {
	t.Helper()

	code, err := totp.GenerateCode(testTOTPSecret, env.now)
	require.NoError(t, err)
	return code
}

func TestVerifyMFA_TOTPCompletesLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil)
	enrollMFA(env)

	challengeID := startChallenge(t, env)

	res, err := env.engine.VerifyMFA(ctx, challengeID, totpCode(t, env), domain.MFAMethodTOTP)
	require.NoError(t, err)
	require.NotNil(t, res.Pair)
	require.NotNil(t, res.Session)
	require.Equal(t, "198.51.100.7", res.Session.IP, "session carries the login metadata")

	claims, err := env.engine.ValidateAccess(ctx, res.Pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "sub_1", claims.Subject)
}

func TestVerifyMFA_TOTPToleratesOneStepSkew(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil)
	enrollMFA(env)

	challengeID := startChallenge(t, env)

	// Code from the previous 30s step still verifies.
	code, err := totp.GenerateCode(testTOTPSecret, env.now.Add(-30*time.Second))
	require.NoError(t, err)

	res, err := env.engine.VerifyMFA(ctx, challengeID, code, domain.MFAMethodTOTP)
	require.NoError(t, err)
	require.NotNil(t, res.Pair)
}

func TestVerifyMFA_ChallengeConsumedOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil)
	enrollMFA(env)

	challengeID := startChallenge(t, env)
	code := totpCode(t, env)

	_, err := env.engine.VerifyMFA(ctx, challengeID, code, domain.MFAMethodTOTP)
	require.NoError(t, err)

	// The challenge is gone; replaying it looks like any invalid attempt.
	_, err = env.engine.VerifyMFA(ctx, challengeID, code, domain.MFAMethodTOTP)
	require.ErrorIs(t, err, domain.ErrMFAInvalid)
}

func TestVerifyMFA_ConcurrentVerificationsSingleWinner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil)
	enrollMFA(env)

	challengeID := startChallenge(t, env)
	code := totpCode(t, env)

	const verifications = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		invalids  int
	)
	for i := 0; i < verifications; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.VerifyMFA(ctx, challengeID, code, domain.MFAMethodTOTP)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrMFAInvalid):
				invalids++
			default:
				t.Errorf("unexpected verify error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes, "the challenge must be consumed exactly once")
	require.Equal(t, verifications-1, invalids)

	sessions, err := env.engine.ListSessions(ctx, "sub_1")
	require.NoError(t, err)
	require.Len(t, sessions, 1, "only the winning verification issues a session")
}

func TestVerifyMFA_ConcurrentBackupCodeSingleWinner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil)
	enrollMFA(env)

	codes, err := env.engine.IssueBackupCodes(ctx, "sub_1")
	require.NoError(t, err)

	// Each caller holds its own live challenge; the backup code is the
	// shared resource being raced for.
	first := startChallenge(t, env)
	second := startChallenge(t, env)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		invalids  int
	)
	for _, challengeID := range []string{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.VerifyMFA(ctx, challengeID, codes[0], domain.MFAMethodBackupCode)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrMFAInvalid):
				invalids++
			default:
				t.Errorf("unexpected verify error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes, "the code must be spent exactly once")
	require.Equal(t, 1, invalids)
}

func TestVerifyMFA_WrongCodeBurnsAttempts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, func(cfg *Config) {
		cfg.MaxChallengeAttempts = 3
	})
	enrollMFA(env)

	challengeID := startChallenge(t, env)

	_, err := env.engine.VerifyMFA(ctx, challengeID, "000000", domain.MFAMethodTOTP)
	require.ErrorIs(t, err, domain.ErrMFAInvalid)
	_, err = env.engine.VerifyMFA(ctx, challengeID, "000000", domain.MFAMethodTOTP)
	require.ErrorIs(t, err, domain.ErrMFAInvalid)

	// Third failure exhausts and destroys the challenge.
	_, err = env.engine.VerifyMFA(ctx, challengeID, "000000", domain.MFAMethodTOTP)
	require.ErrorIs(t, err, domain.ErrMFAExhausted)

	// Even the correct code cannot resurrect it.
	_, err = env.engine.VerifyMFA(ctx, challengeID, totpCode(t, env), domain.MFAMethodTOTP)
	require.ErrorIs(t, err, domain.ErrMFAInvalid)
}

func TestVerifyMFA_ExpiredChallenge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil)
	enrollMFA(env)

	challengeID := startChallenge(t, env)
	env.advance(env.cfg.ChallengeTTL + time.Minute)

	_, err := env.engine.VerifyMFA(ctx, challengeID, totpCode(t, env), domain.MFAMethodTOTP)
	require.ErrorIs(t, err, domain.ErrMFAInvalid)
}

func TestVerifyMFA_UnknownKind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil)
	enrollMFA(env)

	challengeID := startChallenge(t, env)

	_, err := env.engine.VerifyMFA(ctx, challengeID, "whatever", "sms")
	require.ErrorIs(t, err, domain.ErrMFAInvalid)
}

func TestVerifyMFA_BackupCodeSingleUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil)
	enrollMFA(env)

	codes, err := env.engine.IssueBackupCodes(ctx, "sub_1")
	require.NoError(t, err)
	require.Len(t, codes, env.cfg.BackupCodeCount)

	challengeID := startChallenge(t, env)
	res, err := env.engine.VerifyMFA(ctx, challengeID, codes[0], domain.MFAMethodBackupCode)
	require.NoError(t, err)
	require.NotNil(t, res.Pair)

	// The consumed code never verifies again, on any later challenge.
	secondChallenge := startChallenge(t, env)
	_, err = env.engine.VerifyMFA(ctx, secondChallenge, codes[0], domain.MFAMethodBackupCode)
	require.ErrorIs(t, err, domain.ErrMFAInvalid)

	// A sibling code from the same batch still works.
	_, err = env.engine.VerifyMFA(ctx, secondChallenge, codes[1], domain.MFAMethodBackupCode)
	require.NoError(t, err)
}

func TestIssueBackupCodes_ReplacesPreviousBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t, nil)
	enrollMFA(env)

	old, err := env.engine.IssueBackupCodes(ctx, "sub_1")
	require.NoError(t, err)
	fresh, err := env.engine.IssueBackupCodes(ctx, "sub_1")
	require.NoError(t, err)

	challengeID := startChallenge(t, env)
	_, err = env.engine.VerifyMFA(ctx, challengeID, old[0], domain.MFAMethodBackupCode)
	require.ErrorIs(t, err, domain.ErrMFAInvalid)

	_, err = env.engine.VerifyMFA(ctx, challengeID, fresh[0], domain.MFAMethodBackupCode)
	require.NoError(t, err)
}
