// Package propagation turns the loaded TLE dataset into sky positions for a
// fixed observer: SGP4 in a worker pool, TEME to ECEF, look angles and the
// sunlit flag.
package propagation

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/droidsat/internal/metrics"
	"github.com/star/droidsat/internal/tle"
	"github.com/star/droidsat/internal/transform"
)

// ErrNoDataset is returned when the store has no TLE dataset yet.
var ErrNoDataset = errors.New("no TLE dataset loaded")

// sgp4Cache holds preinitialized SGP4 propagators for a specific TLE dataset.
// Immutable after construction; safe for concurrent reads.
type sgp4Cache struct {
	props    map[int]*SGP4Propagator
	loadedAt time.Time
}

// Propagator produces sky-position snapshots from the current TLE dataset.
type Propagator struct {
	store    *tle.Store
	pool     *WorkerPool
	observer transform.Observer
	config   PropConfig
	logger   *slog.Logger
	sgp4     atomic.Pointer[sgp4Cache]
	sgp4Mu   sync.Mutex // serializes cache rebuilds
}

func NewPropagator(store *tle.Store, observer transform.Observer, config PropConfig, logger *slog.Logger) *Propagator {
	pool := NewWorkerPool(config.Workers, logger)
	metrics.SetPropagationWorkersActive(pool.workers)
	return &Propagator{
		store:    store,
		pool:     pool,
		observer: observer,
		config:   config,
		logger:   logger,
	}
}

// Observer returns the observer positions are computed for.
func (p *Propagator) Observer() transform.Observer {
	return p.observer
}

// cachedProps returns preinitialized SGP4 propagators for the given dataset.
// Rebuilds the cache if the dataset has changed (double-checked locking).
func (p *Propagator) cachedProps(ds *tle.TLEDataset) map[int]*SGP4Propagator {
	if c := p.sgp4.Load(); c != nil && c.loadedAt.Equal(ds.LoadedAt) {
		return c.props
	}

	p.sgp4Mu.Lock()
	defer p.sgp4Mu.Unlock()

	if c := p.sgp4.Load(); c != nil && c.loadedAt.Equal(ds.LoadedAt) {
		return c.props
	}

	props := make(map[int]*SGP4Propagator, len(ds.Satellites))
	var skipped int
	for _, entry := range ds.Satellites {
		if _, ok := props[entry.NORADID]; ok {
			continue
		}
		sp, err := NewSGP4Propagator(entry.Line1, entry.Line2, entry.NORADID)
		if err != nil {
			p.logger.Warn("sgp4 cache init failed", "norad_id", entry.NORADID, "error", err)
			skipped++
			continue
		}
		props[entry.NORADID] = sp
	}

	p.logger.Info("sgp4 propagator cache rebuilt",
		"cached", len(props),
		"skipped", skipped,
		"dataset_loaded_at", ds.LoadedAt.UTC().Format(time.RFC3339),
	)
	p.sgp4.Store(&sgp4Cache{props: props, loadedAt: ds.LoadedAt})
	return props
}

// PropagateToTime computes a snapshot at targetTime from the current
// dataset.
func (p *Propagator) PropagateToTime(ctx context.Context, targetTime time.Time) (*Snapshot, error) {
	ds := p.store.Get()
	if ds == nil {
		return nil, ErrNoDataset
	}

	props := p.cachedProps(ds)

	p.logger.Debug("propagating",
		"satellite_count", len(ds.Satellites),
		"target_time", targetTime.UTC().Format(time.RFC3339),
		"workers", p.pool.workers,
	)

	start := time.Now()
	positions, successCount, errorCount := p.pool.PropagateBatch(ctx, ds.Satellites, props, p.observer, targetTime)
	duration := time.Since(start)

	metrics.RecordPropagation(duration, successCount, errorCount)

	p.logger.Debug("propagation complete",
		"success", successCount,
		"errors", errorCount,
		"duration_ms", duration.Milliseconds(),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(positions, func(a, b SkyPosition) int {
		return cmp.Compare(a.NORADID, b.NORADID)
	})

	return &Snapshot{
		Timestamp: targetTime,
		Positions: positions,
	}, nil
}
