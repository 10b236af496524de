package memory

import (
	"context"
	"sort"
	"time"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
	"github.com/gatehouse-dev/gatehouse/internal/store"
)

type sessionsRepo struct {
	h handle
}

func (r *sessionsRepo) Create(ctx context.Context, s domain.Session) error {
	d := r.h.acquire()
	defer r.h.release()

	if _, ok := d.sessions[s.ID]; ok {
		return store.ErrAlreadyExists
	}
	d.sessions[s.ID] = s
	d.sessionByHash[s.TokenHash] = s.ID
	return nil
}

func (r *sessionsRepo) GetByID(ctx context.Context, id string) (domain.Session, error) {
	d := r.h.acquire()
	defer r.h.release()

	s, ok := d.sessions[id]
	if !ok {
		return domain.Session{}, store.ErrNotFound
	}
	return s, nil
}

func (r *sessionsRepo) GetByTokenHash(ctx context.Context, hash string) (domain.Session, error) {
	d := r.h.acquire()
	defer r.h.release()

	id, ok := d.sessionByHash[hash]
	if !ok {
		return domain.Session{}, store.ErrNotFound
	}
	return d.sessions[id], nil
}

func (r *sessionsRepo) UpdateActivity(ctx context.Context, id string, lastActivity, expiresAt time.Time) error {
	d := r.h.acquire()
	defer r.h.release()

	s, ok := d.sessions[id]
	if !ok || s.RevokedAt != nil {
		return store.ErrNotFound
	}
	s.LastActivityAt = lastActivity.UTC()
	s.ExpiresAt = expiresAt.UTC()
	d.sessions[id] = s
	return nil
}

func (r *sessionsRepo) Revoke(ctx context.Context, id, reason string, at time.Time) error {
	d := r.h.acquire()
	defer r.h.release()

	s, ok := d.sessions[id]
	if !ok || s.RevokedAt != nil {
		return nil
	}
	at = at.UTC()
	s.RevokedAt = &at
	s.RevokedReason = reason
	d.sessions[id] = s
	return nil
}

func (r *sessionsRepo) RevokeAllForSubject(ctx context.Context, subjectID, exceptID, reason string, at time.Time) error {
	d := r.h.acquire()
	defer r.h.release()

	at = at.UTC()
	for id, s := range d.sessions {
		if s.SubjectID != subjectID || s.RevokedAt != nil || id == exceptID {
			continue
		}
		revoked := at
		s.RevokedAt = &revoked
		s.RevokedReason = reason
		d.sessions[id] = s
	}
	return nil
}

func (r *sessionsRepo) ListForSubject(ctx context.Context, subjectID string) ([]domain.Session, error) {
	d := r.h.acquire()
	defer r.h.release()

	var out []domain.Session
	for _, s := range d.sessions {
		if s.SubjectID == subjectID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out, nil
}

func (r *sessionsRepo) ListActiveForSubject(ctx context.Context, subjectID string, now time.Time) ([]domain.Session, error) {
	d := r.h.acquire()
	defer r.h.release()

	var out []domain.Session
	for _, s := range d.sessions {
		if s.SubjectID == subjectID && s.RevokedAt == nil && s.ExpiresAt.After(now) {
			out = append(out, s)
		}
	}
	// Oldest activity first so callers can evict the least recently used.
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt.Before(out[j].LastActivityAt)
	})
	return out, nil
}

func (r *sessionsRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) error {
	d := r.h.acquire()
	defer r.h.release()

	for id, s := range d.sessions {
		if s.ExpiresAt.Before(cutoff) {
			delete(d.sessions, id)
			delete(d.sessionByHash, s.TokenHash)
		}
	}
	return nil
}
