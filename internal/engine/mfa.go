package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
	"github.com/gatehouse-dev/gatehouse/internal/store"
	"github.com/gatehouse-dev/gatehouse/pkg/cryptox"
	"github.com/gatehouse-dev/gatehouse/pkg/idx"
	"github.com/gatehouse-dev/gatehouse/pkg/slogx"
)

// createChallenge persists a time-boxed MFA challenge carrying everything
// needed to finish the suspended login, so the engine holds no in-process
// state between Login and VerifyMFA.
func (e *Engine) createChallenge(ctx context.Context, subject domain.Subject, identityKey string, meta domain.SessionMetadata, now time.Time) (*domain.MFARequired, error) {
	challenge := domain.MFAChallenge{
		ID:          idx.New().String(),
		SubjectID:   subject.ID,
		IdentityKey: identityKey,
		TOTPSecret:  subject.TOTPSecret,
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		CreatedAt:   now,
		ExpiresAt:   now.Add(e.cfg.ChallengeTTL),
	}
	if err := e.store.MFAChallenges().Create(ctx, challenge); err != nil {
		return nil, domain.WrapStorage("create mfa challenge", err)
	}

	var methods []string
	if subject.TOTPSecret != "" {
		methods = append(methods, domain.MFAMethodTOTP)
	}
	n, err := e.store.BackupCodes().Count(ctx, subject.ID)
	if err != nil {
		return nil, domain.WrapStorage("count backup codes", err)
	}
	if n > 0 {
		methods = append(methods, domain.MFAMethodBackupCode)
	}

	return &domain.MFARequired{
		ChallengeID: challenge.ID,
		Methods:     methods,
		ExpiresAt:   challenge.ExpiresAt,
	}, nil
}

// VerifyMFA completes a suspended login. A correct code consumes the
// challenge and issues the token pair; a wrong code burns an attempt, and
// exhausting the attempts destroys the challenge so the caller must restart
// the login flow. Expired or unknown challenges are indistinguishable from
// invalid codes.
func (e *Engine) VerifyMFA(ctx context.Context, challengeID, code, kind string) (domain.LoginResult, error) {
	now := e.now()
	l := slogx.FromContext(ctx)

	challenge, err := e.store.MFAChallenges().Get(ctx, challengeID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoginResult{}, domain.ErrMFAInvalid
	}
	if err != nil {
		return domain.LoginResult{}, domain.WrapStorage("load mfa challenge", err)
	}

	if challenge.IsExpired(now) {
		_, _ = e.store.MFAChallenges().Delete(ctx, challengeID)
		return domain.LoginResult{}, domain.ErrMFAInvalid
	}
	if challenge.Attempts >= e.cfg.MaxChallengeAttempts {
		_, _ = e.store.MFAChallenges().Delete(ctx, challengeID)
		return domain.LoginResult{}, domain.ErrMFAExhausted
	}

	var ok bool
	switch kind {
	case domain.MFAMethodTOTP:
		ok = verifyTOTP(challenge.TOTPSecret, code, now)
	case domain.MFAMethodBackupCode:
		ok, err = e.consumeBackupCode(ctx, challenge.SubjectID, code)
		if err != nil {
			return domain.LoginResult{}, err
		}
	default:
		return domain.LoginResult{}, domain.ErrMFAInvalid
	}

	if !ok {
		updated, err := e.store.MFAChallenges().IncrementAttempts(ctx, challengeID)
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResult{}, domain.ErrMFAInvalid
		}
		if err != nil {
			return domain.LoginResult{}, domain.WrapStorage("count mfa attempt", err)
		}
		if updated.Attempts >= e.cfg.MaxChallengeAttempts {
			_, _ = e.store.MFAChallenges().Delete(ctx, challengeID)
			l.Warn("mfa challenge exhausted", slog.String("challenge_id", challengeID))
			return domain.LoginResult{}, domain.ErrMFAExhausted
		}
		return domain.LoginResult{}, domain.ErrMFAInvalid
	}

	// The conditional delete is the consume: of any number of concurrent
	// verifications holding a correct code, only the caller that removes
	// the row issues tokens.
	consumed, err := e.store.MFAChallenges().Delete(ctx, challengeID)
	if err != nil {
		return domain.LoginResult{}, domain.WrapStorage("consume mfa challenge", err)
	}
	if !consumed {
		return domain.LoginResult{}, domain.ErrMFAInvalid
	}

	meta := domain.SessionMetadata{IP: challenge.IP, UserAgent: challenge.UserAgent}
	return e.issueTokens(ctx, challenge.SubjectID, meta, now)
}

// verifyTOTP checks the code for the current time step and one adjacent step
// on each side to tolerate clock skew. The library compares in constant
// time.
func verifyTOTP(secret, code string, now time.Time) bool {
	if secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, now, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// consumeBackupCode fingerprints the supplied code and compares it against
// every stored hash without early exit, so timing does not leak which
// entries exist. The conditional delete is the consume: if another caller
// already spent the matched code, this presentation fails.
func (e *Engine) consumeBackupCode(ctx context.Context, subjectID, code string) (bool, error) {
	hashes, err := e.store.BackupCodes().ListHashes(ctx, subjectID)
	if err != nil {
		return false, domain.WrapStorage("list backup codes", err)
	}

	fingerprint := cryptox.FingerprintToken(strings.TrimSpace(code))
	var matched string
	for _, h := range hashes {
		if cryptox.ConstantTimeEquals(fingerprint, h) && matched == "" {
			matched = h
		}
	}
	if matched == "" {
		return false, nil
	}

	removed, err := e.store.BackupCodes().Delete(ctx, subjectID, matched)
	if err != nil {
		return false, domain.WrapStorage("consume backup code", err)
	}
	return removed, nil
}

// IssueBackupCodes mints a fresh set of single-use recovery codes for a
// subject, replacing any existing set. The plaintext codes are returned
// exactly once; only fingerprints are stored.
func (e *Engine) IssueBackupCodes(ctx context.Context, subjectID string) ([]string, error) {
	count := e.cfg.BackupCodeCount
	if count <= 0 {
		count = 10
	}

	codes := make([]string, 0, count)
	hashes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		code, err := cryptox.GenerateToken(cryptox.TokenSize128)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
		hashes = append(hashes, cryptox.FingerprintToken(code))
	}

	if err := e.store.BackupCodes().Replace(ctx, subjectID, hashes); err != nil {
		return nil, domain.WrapStorage("store backup codes", err)
	}
	return codes, nil
}
