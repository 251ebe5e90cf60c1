package propagation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/star/droidsat/internal/skymath"
	"github.com/star/droidsat/internal/tle"
	"github.com/star/droidsat/internal/transform"
)

// batch holds what every job of one PropagateBatch call shares.
type batch struct {
	targetTime time.Time
	gmst       float64
	sun        skymath.Vector
	observer   transform.Observer
}

// propagateJob is a unit of work for the worker pool.
type propagateJob struct {
	entry tle.TLEEntry
	prop  *SGP4Propagator // nil when not cached
	batch *batch
}

// propagateResult is the output of a single satellite propagation.
type propagateResult struct {
	position SkyPosition
	err      error
	noradID  int
}

// WorkerPool manages a fixed number of goroutines for parallel SGP4 propagation.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// PropagateBatch computes the sky position of every entry as seen by obs at
// targetTime. props supplies preinitialised propagators by NORAD ID and may
// be nil. Failed satellites are logged and skipped; results are unordered.
func (wp *WorkerPool) PropagateBatch(ctx context.Context, entries []tle.TLEEntry, props map[int]*SGP4Propagator, obs transform.Observer, targetTime time.Time) ([]SkyPosition, int, int) {
	if len(entries) == 0 {
		return nil, 0, 0
	}

	// GMST and the Sun are the same for every satellite at one instant.
	b := &batch{
		targetTime: targetTime,
		gmst:       transform.GMST(targetTime),
		sun:        transform.SunDirectionECEF(targetTime),
		observer:   obs,
	}

	jobs := make(chan propagateJob, wp.workers*2)
	results := make(chan propagateResult, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := propagateSingle(job)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, entry := range entries {
			job := propagateJob{entry: entry, prop: props[entry.NORADID], batch: b}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	positions := make([]SkyPosition, 0, len(entries))
	var successCount, errorCount int

	for result := range results {
		if result.err != nil {
			errorCount++
			wp.logger.Warn("propagation failed",
				"norad_id", result.noradID,
				"error", result.err,
			)
			continue
		}
		successCount++
		positions = append(positions, result.position)
	}

	return positions, successCount, errorCount
}

// propagateSingle runs SGP4, rotates to ECEF and derives the look angles and
// sunlit flag for one satellite.
func propagateSingle(job propagateJob) propagateResult {
	id := job.entry.NORADID
	prop := job.prop
	if prop == nil {
		var err error
		prop, err = NewSGP4Propagator(job.entry.Line1, job.entry.Line2, id)
		if err != nil {
			return propagateResult{noradID: id, err: err}
		}
	}

	teme, err := prop.Propagate(job.batch.targetTime)
	if err != nil {
		return propagateResult{noradID: id, err: err}
	}

	ecef := transform.TEMEToECEFWithGMST(teme, job.batch.gmst)
	look := job.batch.observer.LookAngles(ecef.Position)

	return propagateResult{
		noradID: id,
		position: SkyPosition{
			NORADID:   id,
			Name:      job.entry.Name,
			Azimuth:   look.Azimuth,
			Elevation: look.Elevation,
			RangeKm:   look.RangeKm,
			Sunlit:    transform.IsSunlit(ecef.Position, job.batch.sun),
		},
	}
}
