package memory

import (
	"context"
	"sort"
	"time"
)

type backupCodesRepo struct {
	h handle
}

func (r *backupCodesRepo) Replace(ctx context.Context, subjectID string, hashes []string) error {
	d := r.h.acquire()
	defer r.h.release()

	set := make(map[string]time.Time, len(hashes))
	now := time.Now().UTC()
	for _, h := range hashes {
		set[h] = now
	}
	d.backupCodes[subjectID] = set
	return nil
}

func (r *backupCodesRepo) ListHashes(ctx context.Context, subjectID string) ([]string, error) {
	d := r.h.acquire()
	defer r.h.release()

	var out []string
	for h := range d.backupCodes[subjectID] {
		out = append(out, h)
	}
	sort.Strings(out)
	return out, nil
}

func (r *backupCodesRepo) Delete(ctx context.Context, subjectID, hash string) (bool, error) {
	d := r.h.acquire()
	defer r.h.release()

	_, ok := d.backupCodes[subjectID][hash]
	delete(d.backupCodes[subjectID], hash)
	return ok, nil
}

func (r *backupCodesRepo) DeleteAll(ctx context.Context, subjectID string) error {
	d := r.h.acquire()
	defer r.h.release()

	delete(d.backupCodes, subjectID)
	return nil
}

func (r *backupCodesRepo) Count(ctx context.Context, subjectID string) (int, error) {
	d := r.h.acquire()
	defer r.h.release()

	return len(d.backupCodes[subjectID]), nil
}
