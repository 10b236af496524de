package revocation

import (
	"context"
	"sync"
	"time"
)

type liveEntry struct {
	subjectID string
	sessionID string
	expiresAt time.Time
}

// MemoryRegistry is a process-local Registry. Expired entries are removed
// lazily on read and in bulk by Sweep.
type MemoryRegistry struct {
	mu        sync.Mutex
	revoked   map[string]time.Time // jti → blacklisted until
	live      map[string]liveEntry // jti → issuance record
	bySession map[string]map[string]struct{}
	bySubject map[string]map[string]struct{}
	now       func() time.Time
}

type MemoryOption func(*MemoryRegistry)

// WithClock overrides the registry's time source, mainly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(r *MemoryRegistry) { r.now = now }
}

func NewMemoryRegistry(opts ...MemoryOption) *MemoryRegistry {
	r := &MemoryRegistry{
		revoked:   make(map[string]time.Time),
		live:      make(map[string]liveEntry),
		bySession: make(map[string]map[string]struct{}),
		bySubject: make(map[string]map[string]struct{}),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *MemoryRegistry) Track(ctx context.Context, jti, subjectID, sessionID string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !expiresAt.After(r.now()) {
		return nil
	}
	r.live[jti] = liveEntry{subjectID: subjectID, sessionID: sessionID, expiresAt: expiresAt}
	index(r.bySession, sessionID, jti)
	index(r.bySubject, subjectID, jti)
	return nil
}

func (r *MemoryRegistry) Revoke(ctx context.Context, jti string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !until.After(r.now()) {
		return nil
	}
	r.revoked[jti] = until
	return nil
}

func (r *MemoryRegistry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	until, ok := r.revoked[jti]
	if !ok {
		return false, nil
	}
	if !until.After(r.now()) {
		delete(r.revoked, jti)
		return false, nil
	}
	return true, nil
}

func (r *MemoryRegistry) RevokeSession(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.revokeSet(r.bySession[sessionID])
	delete(r.bySession, sessionID)
	return nil
}

func (r *MemoryRegistry) RevokeSubject(ctx context.Context, subjectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.revokeSet(r.bySubject[subjectID])
	delete(r.bySubject, subjectID)
	return nil
}

// revokeSet blacklists every still-live JTI in the set until its own expiry.
func (r *MemoryRegistry) revokeSet(jtis map[string]struct{}) {
	now := r.now()
	for jti := range jtis {
		entry, ok := r.live[jti]
		if !ok || !entry.expiresAt.After(now) {
			continue
		}
		r.revoked[jti] = entry.expiresAt
	}
}

func (r *MemoryRegistry) Sweep(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for jti, until := range r.revoked {
		if !until.After(now) {
			delete(r.revoked, jti)
		}
	}
	for jti, entry := range r.live {
		if entry.expiresAt.After(now) {
			continue
		}
		delete(r.live, jti)
		unindex(r.bySession, entry.sessionID, jti)
		unindex(r.bySubject, entry.subjectID, jti)
	}
	return nil
}

func (r *MemoryRegistry) Close() error { return nil }

func index(m map[string]map[string]struct{}, key, jti string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[jti] = struct{}{}
}

func unindex(m map[string]map[string]struct{}, key, jti string) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, jti)
	if len(set) == 0 {
		delete(m, key)
	}
}
