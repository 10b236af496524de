package memory

import (
	"context"
	"time"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
	"github.com/gatehouse-dev/gatehouse/internal/store"
)

type lockoutsRepo struct {
	h handle
}

func (r *lockoutsRepo) Get(ctx context.Context, identityKey string) (domain.Lockout, error) {
	d := r.h.acquire()
	defer r.h.release()

	l, ok := d.lockouts[identityKey]
	if !ok {
		return domain.Lockout{}, store.ErrNotFound
	}
	return l, nil
}

func (r *lockoutsRepo) Upsert(ctx context.Context, l domain.Lockout) error {
	d := r.h.acquire()
	defer r.h.release()

	d.lockouts[l.IdentityKey] = l
	return nil
}

func (r *lockoutsRepo) Delete(ctx context.Context, identityKey string) error {
	d := r.h.acquire()
	defer r.h.release()

	delete(d.lockouts, identityKey)
	return nil
}

func (r *lockoutsRepo) DeleteStaleBefore(ctx context.Context, cutoff time.Time) error {
	d := r.h.acquire()
	defer r.h.release()

	for key, l := range d.lockouts {
		if l.UpdatedAt.Before(cutoff) && (l.LockedUntil == nil || l.LockedUntil.Before(cutoff)) {
			delete(d.lockouts, key)
		}
	}
	return nil
}
