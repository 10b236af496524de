package memory

import (
	"context"
	"time"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
	"github.com/gatehouse-dev/gatehouse/internal/store"
)

type mfaChallengesRepo struct {
	h handle
}

func (r *mfaChallengesRepo) Create(ctx context.Context, c domain.MFAChallenge) error {
	d := r.h.acquire()
	defer r.h.release()

	if _, ok := d.challenges[c.ID]; ok {
		return store.ErrAlreadyExists
	}
	d.challenges[c.ID] = c
	return nil
}

func (r *mfaChallengesRepo) Get(ctx context.Context, id string) (domain.MFAChallenge, error) {
	d := r.h.acquire()
	defer r.h.release()

	c, ok := d.challenges[id]
	if !ok {
		return domain.MFAChallenge{}, store.ErrNotFound
	}
	return c, nil
}

func (r *mfaChallengesRepo) IncrementAttempts(ctx context.Context, id string) (domain.MFAChallenge, error) {
	d := r.h.acquire()
	defer r.h.release()

	c, ok := d.challenges[id]
	if !ok {
		return domain.MFAChallenge{}, store.ErrNotFound
	}
	c.Attempts++
	d.challenges[id] = c
	return c, nil
}

func (r *mfaChallengesRepo) Delete(ctx context.Context, id string) (bool, error) {
	d := r.h.acquire()
	defer r.h.release()

	_, ok := d.challenges[id]
	delete(d.challenges, id)
	return ok, nil
}

func (r *mfaChallengesRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) error {
	d := r.h.acquire()
	defer r.h.release()

	for id, c := range d.challenges {
		if c.ExpiresAt.Before(cutoff) {
			delete(d.challenges, id)
		}
	}
	return nil
}
