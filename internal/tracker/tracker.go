// Package tracker keeps the shared sky-position snapshot current. A single
// background loop reloads the TLE file when it changes, propagates every
// satellite to "now" and publishes the result atomically; readers take
// whichever snapshot is current and never block the loop.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/star/droidsat/internal/metrics"
	"github.com/star/droidsat/internal/propagation"
	"github.com/star/droidsat/internal/tle"
)

// Config holds tracker settings loaded from environment variables.
type Config struct {
	Interval time.Duration    // snapshot rebuild interval (default: 2s)
	Now      func() time.Time // propagation clock (default: time.Now)
}

// Tracker owns the current sky-position snapshot.
type Tracker struct {
	config Config
	prop   *propagation.Propagator
	store  *tle.Store
	loader *tle.Loader // optional
	logger *slog.Logger

	snapshot atomic.Pointer[propagation.Snapshot]

	// Only touched by the loop goroutine.
	lastLoadErr string

	now func() time.Time
}

func New(config Config, prop *propagation.Propagator, store *tle.Store, loader *tle.Loader, logger *slog.Logger) *Tracker {
	if config.Interval <= 0 {
		config.Interval = 2 * time.Second
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Tracker{
		config: config,
		prop:   prop,
		store:  store,
		loader: loader,
		logger: logger,
		now:    config.Now,
	}
}

// Snapshot returns the latest snapshot, or nil before the first successful
// rebuild.
func (t *Tracker) Snapshot() *propagation.Snapshot {
	return t.snapshot.Load()
}

// Start rebuilds the snapshot immediately and then every Interval until ctx
// is cancelled. Blocks.
func (t *Tracker) Start(ctx context.Context) {
	t.logger.Info("tracker started", "interval", t.config.Interval.String())
	t.tick(ctx)

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tracker stopped")
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Tracker) tick(ctx context.Context) {
	t.reload()
	if err := t.Refresh(ctx); err != nil && !errors.Is(err, propagation.ErrNoDataset) && ctx.Err() == nil {
		t.logger.Warn("snapshot refresh failed", "error", err)
	}
}

// reload picks up TLE file changes. Repeated identical errors are logged
// once.
func (t *Tracker) reload() {
	if t.loader == nil {
		return
	}
	changed, err := t.loader.Reload()
	if err != nil {
		if msg := err.Error(); msg != t.lastLoadErr {
			t.logger.Warn("TLE reload failed", "error", err)
			t.lastLoadErr = msg
		}
		return
	}
	t.lastLoadErr = ""
	if changed {
		t.logger.Info("TLE dataset changed")
	}
}

// Refresh propagates the current dataset to now and publishes the snapshot.
// On error the previous snapshot stays in place.
func (t *Tracker) Refresh(ctx context.Context) error {
	metrics.SetTLEDatasetAge(t.store.AgeSeconds())

	start := time.Now()
	snap, err := t.prop.PropagateToTime(ctx, t.now())
	if err != nil {
		metrics.IncSnapshotRefresh("error")
		return err
	}

	t.snapshot.Store(snap)
	metrics.IncSnapshotRefresh("ok")
	metrics.SetSnapshotSatellites(len(snap.Positions))

	t.logger.Debug("snapshot refreshed",
		"satellites", len(snap.Positions),
		"timestamp", snap.Timestamp.UTC().Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
