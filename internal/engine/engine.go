// Package engine composes the credential, token and session lifecycle: login
// with lockout gating and an optional MFA step, refresh-token rotation with
// family-based reuse detection, session validation with sliding expiration,
// and revocation of still-live access tokens.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
	"github.com/gatehouse-dev/gatehouse/internal/revocation"
	"github.com/gatehouse-dev/gatehouse/internal/store"
	"github.com/gatehouse-dev/gatehouse/pkg/jwtx"
)

// CredentialVerifier is the external collaborator that checks a credential
// against whatever identity backend the deployment uses. It must return
// domain.ErrInvalidCredentials for a bad credential or unknown identity;
// the engine never learns which of the two it was.
//
// The engine calls Verify only after the lockout check has passed, so locked
// identities never reach the comparatively expensive verification path.
type CredentialVerifier interface {
	Verify(ctx context.Context, identityKey, credential string) (domain.Subject, error)
}

type Deps struct {
	Store       store.Store
	Registry    revocation.Registry
	Signer      jwtx.Signer
	Verifier    jwtx.Verifier
	Credentials CredentialVerifier

	// Logger is used by background work; request-scoped operations prefer
	// the logger carried in the context. Defaults to slog.Default.
	Logger *slog.Logger

	// Clock overrides the time source, mainly for tests.
	Clock func() time.Time
}

type Engine struct {
	cfg      Config
	store    store.Store
	registry revocation.Registry
	codec    *ClaimsCodec
	creds    CredentialVerifier
	logger   *slog.Logger
	throttle *attemptThrottle
	now      func() time.Time
}

func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("engine: revocation registry is required")
	}
	if deps.Signer == nil || deps.Verifier == nil {
		return nil, errors.New("engine: signer and verifier are required")
	}
	if deps.Credentials == nil {
		return nil, errors.New("engine: credential verifier is required")
	}
	if err := deps.Signer.Validate(); err != nil {
		return nil, err
	}

	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		cfg:      cfg,
		store:    deps.Store,
		registry: deps.Registry,
		codec:    NewClaimsCodec(deps.Signer, deps.Verifier, deps.Registry),
		creds:    deps.Credentials,
		logger:   logger,
		throttle: newAttemptThrottle(cfg.ThrottleRPS, cfg.ThrottleBurst),
		now:      now,
	}, nil
}
