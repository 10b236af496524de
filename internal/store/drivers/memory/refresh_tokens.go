package memory

import (
	"context"
	"time"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
	"github.com/gatehouse-dev/gatehouse/internal/store"
)

type refreshTokensRepo struct {
	h handle
}

func (r *refreshTokensRepo) Create(ctx context.Context, t domain.RefreshToken) error {
	d := r.h.acquire()
	defer r.h.release()

	if _, ok := d.refreshByHash[t.TokenHash]; ok {
		return store.ErrAlreadyExists
	}
	d.refreshByHash[t.TokenHash] = t
	d.refreshByID[t.ID] = t.TokenHash
	return nil
}

func (r *refreshTokensRepo) GetByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	d := r.h.acquire()
	defer r.h.release()

	t, ok := d.refreshByHash[hash]
	if !ok {
		return domain.RefreshToken{}, store.ErrNotFound
	}
	return t, nil
}

// Consume marks the token consumed only if it is still unconsumed and
// unrevoked, reporting whether this caller won.
func (r *refreshTokensRepo) Consume(ctx context.Context, hash string, at time.Time) (bool, error) {
	d := r.h.acquire()
	defer r.h.release()

	t, ok := d.refreshByHash[hash]
	if !ok || t.ConsumedAt != nil || t.RevokedAt != nil {
		return false, nil
	}
	at = at.UTC()
	t.ConsumedAt = &at
	d.refreshByHash[hash] = t
	return true, nil
}

func (r *refreshTokensRepo) RevokeFamily(ctx context.Context, familyID string, at time.Time) error {
	d := r.h.acquire()
	defer r.h.release()

	at = at.UTC()
	for hash, t := range d.refreshByHash {
		if t.FamilyID == familyID && t.RevokedAt == nil {
			t.RevokedAt = &at
			d.refreshByHash[hash] = t
		}
	}
	return nil
}

func (r *refreshTokensRepo) RevokeForSession(ctx context.Context, sessionID string, at time.Time) error {
	d := r.h.acquire()
	defer r.h.release()

	at = at.UTC()
	for hash, t := range d.refreshByHash {
		if t.SessionID == sessionID && t.RevokedAt == nil {
			t.RevokedAt = &at
			d.refreshByHash[hash] = t
		}
	}
	return nil
}

func (r *refreshTokensRepo) RevokeAllForSubject(ctx context.Context, subjectID string, at time.Time) error {
	d := r.h.acquire()
	defer r.h.release()

	at = at.UTC()
	for hash, t := range d.refreshByHash {
		if t.SubjectID == subjectID && t.RevokedAt == nil {
			t.RevokedAt = &at
			d.refreshByHash[hash] = t
		}
	}
	return nil
}

func (r *refreshTokensRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) error {
	d := r.h.acquire()
	defer r.h.release()

	for hash, t := range d.refreshByHash {
		if t.ExpiresAt.Before(cutoff) {
			delete(d.refreshByHash, hash)
			delete(d.refreshByID, t.ID)
		}
	}
	return nil
}
