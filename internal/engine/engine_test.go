package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
	"github.com/gatehouse-dev/gatehouse/internal/revocation"
	"github.com/gatehouse-dev/gatehouse/internal/store/drivers/memory"
	"github.com/gatehouse-dev/gatehouse/pkg/jwtx"
)

// stubCredentials is the injected credential verifier: a fixed map of
// identity key to password and subject.
type stubCredentials struct {
	passwords map[string]string
	subjects  map[string]domain.Subject
}

func (s *stubCredentials) Verify(ctx context.Context, identityKey, credential string) (domain.Subject, error) {
	want, ok := s.passwords[identityKey]
	if !ok || credential != want {
		return domain.Subject{}, domain.ErrInvalidCredentials
	}
	return s.subjects[identityKey], nil
}

// testEnv wires an engine against the in-memory store and registry with a
// controllable clock.
type testEnv struct {
	engine   *Engine
	store    *memory.Store
	registry *revocation.MemoryRegistry
	creds    *stubCredentials
	cfg      Config
	now      time.Time
}

func (e *testEnv) clock() time.Time        { return e.now }
func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

func newTestEnv(t *testing.T, mutate func(cfg *Config)) *testEnv {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Issuer = "gatehouse-test"
	cfg.Audience = []string{"gatehouse-api"}
	// Keep the in-process throttle out of the way unless a test opts in.
	cfg.ThrottleRPS = 1000
	cfg.ThrottleBurst = 1000
	if mutate != nil {
		mutate(&cfg)
	}

	env := &testEnv{
		store: memory.NewStore(),
		creds: &stubCredentials{
			passwords: map[string]string{"user@example.com": "hunter2!"},
			subjects:  map[string]domain.Subject{"user@example.com": {ID: "sub_1"}},
		},
		cfg: cfg,
		now: time.Now().UTC().Truncate(time.Second),
	}
	env.registry = revocation.NewMemoryRegistry(revocation.WithClock(env.clock))

	master := bytes.Repeat([]byte("s"), 32)
	signer, verifier, err := jwtx.NewHS256FromMaster("test-key", master, cfg.Issuer, cfg.Audience)
	require.NoError(t, err)

	eng, err := New(cfg, Deps{
		Store:       env.store,
		Registry:    env.registry,
		Signer:      signer,
		Verifier:    verifier,
		Credentials: env.creds,
		Clock:       env.clock,
	})
	require.NoError(t, err)
	env.engine = eng
	return env
}

// login runs a default successful login and fails the test on anything but a
// full token pair.
func (e *testEnv) login(t *testing.T) domain.LoginResult {
	t.Helper()

	res, err := e.engine.Login(context.Background(), "user@example.com", "hunter2!", domain.SessionMetadata{
		IP:        "198.51.100.7",
		UserAgent: "engine-test",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Pair)
	require.NotNil(t, res.Session)
	require.NotEmpty(t, res.SessionToken)
	return res
}

func TestNew_RequiredDeps(t *testing.T) {
	t.Parallel()

	secret := bytes.Repeat([]byte("s"), 32)
	signer, err := jwtx.NewSignerHS256("test-key", secret)
	require.NoError(t, err)
	verifier := jwtx.NewVerifierHS256(secret, "iss", nil)

	deps := Deps{
		Store:       memory.NewStore(),
		Registry:    revocation.NewMemoryRegistry(),
		Signer:      signer,
		Verifier:    verifier,
		Credentials: &stubCredentials{},
	}

	_, err = New(DefaultConfig(), deps)
	require.NoError(t, err)

	for name, strip := range map[string]func(d *Deps){
		"store":       func(d *Deps) { d.Store = nil },
		"registry":    func(d *Deps) { d.Registry = nil },
		"signer":      func(d *Deps) { d.Signer = nil },
		"verifier":    func(d *Deps) { d.Verifier = nil },
		"credentials": func(d *Deps) { d.Credentials = nil },
	} {
		t.Run(name, func(t *testing.T) {
			broken := deps
			strip(&broken)
			_, err := New(DefaultConfig(), broken)
			require.Error(t, err)
		})
	}
}
