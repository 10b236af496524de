package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/gatehouse-dev/gatehouse/internal/revocation"
	"github.com/gatehouse-dev/gatehouse/internal/store"
)

// Housekeeper periodically deletes expired records so the backing store does
// not grow without bound. Every sweep uses delete-if-still-expired
// predicates, so it is safe to run concurrently with live traffic and with
// other sweeper instances.
type Housekeeper struct {
	Store    store.Store
	Registry revocation.Registry
	Logger   *slog.Logger
	Interval time.Duration

	// RefreshRetention keeps expired refresh records around for forensics
	// before they are deleted.
	RefreshRetention time.Duration

	// LockoutRetention drops lockout rows (and their progressive-backoff
	// history) once they have been quiet this long.
	LockoutRetention time.Duration

	throttle *attemptThrottle
	now      func() time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewHousekeeper wires a standalone sweeper for a store and registry, for
// deployments that run cleanup out of process.
func NewHousekeeper(cfg Config, st store.Store, reg revocation.Registry, logger *slog.Logger) *Housekeeper {
	interval := cfg.HousekeepingInterval
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	lockoutRetention := cfg.MaxLockoutDuration
	if lockoutRetention <= 0 {
		lockoutRetention = 24 * time.Hour
	}

	return &Housekeeper{
		Store:            st,
		Registry:         reg,
		Logger:           logger,
		Interval:         interval,
		RefreshRetention: cfg.RefreshRetention,
		LockoutRetention: lockoutRetention,
		now:              time.Now,
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}
}

// Housekeeper returns a sweeper bound to the engine's store, registry, clock
// and attempt throttle.
func (e *Engine) Housekeeper(logger *slog.Logger) *Housekeeper {
	h := NewHousekeeper(e.cfg, e.store, e.registry, logger)
	h.throttle = e.throttle
	h.now = e.now
	return h
}

// Start begins the background sweep loop. Non-blocking; call Stop to shut
// down.
func (h *Housekeeper) Start() {
	go h.run()
	h.Logger.Info("housekeeper started", "interval", h.Interval)
}

// Stop shuts the loop down, blocking until any in-progress sweep finishes.
func (h *Housekeeper) Stop() {
	close(h.stopCh)
	<-h.doneCh
	h.Logger.Info("housekeeper stopped")
}

func (h *Housekeeper) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	// Sweep once on startup.
	h.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			h.Sweep(context.Background())
		case <-h.stopCh:
			return
		}
	}
}

// Sweep runs every cleanup once. Failures in one cleanup don't stop the
// others.
func (h *Housekeeper) Sweep(ctx context.Context) {
	now := h.now()
	h.Logger.Debug("housekeeping sweep starting")

	if err := h.Store.RefreshTokens().DeleteExpiredBefore(ctx, now.Add(-h.RefreshRetention)); err != nil {
		h.Logger.Error("failed to delete expired refresh tokens", "error", err)
	}

	if err := h.Store.Sessions().DeleteExpiredBefore(ctx, now); err != nil {
		h.Logger.Error("failed to delete expired sessions", "error", err)
	}

	if err := h.Store.MFAChallenges().DeleteExpiredBefore(ctx, now); err != nil {
		h.Logger.Error("failed to delete expired mfa challenges", "error", err)
	}

	if err := h.Store.Lockouts().DeleteStaleBefore(ctx, now.Add(-h.LockoutRetention)); err != nil {
		h.Logger.Error("failed to delete stale lockouts", "error", err)
	}

	if err := h.Registry.Sweep(ctx); err != nil {
		h.Logger.Error("failed to sweep revocation registry", "error", err)
	}

	if h.throttle != nil {
		h.throttle.prune(now.Add(-h.LockoutRetention))
	}

	h.Logger.Debug("housekeeping sweep completed")
}
