// Package memory provides an in-memory store driver. It mirrors the sqlite
// driver's semantics, including transaction atomicity, so the engine can be
// unit-tested deterministically without touching disk.
package memory

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/gatehouse-dev/gatehouse/internal/domain"
	"github.com/gatehouse-dev/gatehouse/internal/store"
)

var errNestedTx = errors.New("memory: nested transactions not supported")

// data is the whole database. Transactions work on a snapshot that replaces
// the live data on commit, so a failed tx leaves no partial writes behind.
type data struct {
	refreshByHash map[string]domain.RefreshToken // token hash → record
	refreshByID   map[string]string              // record id → token hash
	sessions      map[string]domain.Session      // session id → record
	sessionByHash map[string]string              // token hash → session id
	lockouts      map[string]domain.Lockout
	challenges    map[string]domain.MFAChallenge
	backupCodes   map[string]map[string]time.Time // subject → hash → created
}

func newData() *data {
	return &data{
		refreshByHash: make(map[string]domain.RefreshToken),
		refreshByID:   make(map[string]string),
		sessions:      make(map[string]domain.Session),
		sessionByHash: make(map[string]string),
		lockouts:      make(map[string]domain.Lockout),
		challenges:    make(map[string]domain.MFAChallenge),
		backupCodes:   make(map[string]map[string]time.Time),
	}
}

func (d *data) clone() *data {
	c := &data{
		refreshByHash: maps.Clone(d.refreshByHash),
		refreshByID:   maps.Clone(d.refreshByID),
		sessions:      maps.Clone(d.sessions),
		sessionByHash: maps.Clone(d.sessionByHash),
		lockouts:      maps.Clone(d.lockouts),
		challenges:    maps.Clone(d.challenges),
		backupCodes:   make(map[string]map[string]time.Time, len(d.backupCodes)),
	}
	for k, v := range d.backupCodes {
		c.backupCodes[k] = maps.Clone(v)
	}
	return c
}

// handle is what repositories run against: either the live store (lock per
// operation) or a transaction snapshot (lock already held).
type handle interface {
	acquire() *data
	release()
}

type Store struct {
	mu sync.Mutex
	d  *data
}

func NewStore() *Store {
	return &Store{d: newData()}
}

func (s *Store) acquire() *data { s.mu.Lock(); return s.d }
func (s *Store) release()       { s.mu.Unlock() }

func (s *Store) ApplyMigrations() error             { return nil }
func (s *Store) Close() error                       { return nil }
func (s *Store) Ping(ctx context.Context) error     { return nil }
func (s *Store) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{h: s} }
func (s *Store) Sessions() store.Sessions           { return &sessionsRepo{h: s} }
func (s *Store) Lockouts() store.Lockouts           { return &lockoutsRepo{h: s} }
func (s *Store) MFAChallenges() store.MFAChallenges { return &mfaChallengesRepo{h: s} }
func (s *Store) BackupCodes() store.BackupCodes     { return &backupCodesRepo{h: s} }

// Tx locks the store and hands out a snapshot. Commit swaps the snapshot in
// and unlocks; Rollback discards it. Holding the lock for the duration gives
// the same serialized-writer behavior as the sqlite driver.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	s.mu.Lock()
	return &txStore{s: s, d: s.d.clone()}, nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

type txStore struct {
	s    *Store
	d    *data
	done bool
}

func (t *txStore) acquire() *data { return t.d }
func (t *txStore) release()       {}

func (t *txStore) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.d = t.d
	t.s.mu.Unlock()
	return nil
}

func (t *txStore) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.mu.Unlock()
	return nil
}

func (t *txStore) ApplyMigrations() error         { return nil }
func (t *txStore) Close() error                   { return nil }
func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) { return nil, errNestedTx }
func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return errNestedTx
}

func (t *txStore) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{h: t} }
func (t *txStore) Sessions() store.Sessions           { return &sessionsRepo{h: t} }
func (t *txStore) Lockouts() store.Lockouts           { return &lockoutsRepo{h: t} }
func (t *txStore) MFAChallenges() store.MFAChallenges { return &mfaChallengesRepo{h: t} }
func (t *txStore) BackupCodes() store.BackupCodes     { return &backupCodesRepo{h: t} }
