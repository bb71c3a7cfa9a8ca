package propagation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/geo"
	"github.com/Blood-Moon-Interactive/StarWX/internal/transform"
	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

// propagateJob is a unit of work for the worker pool.
type propagateJob struct {
	index int
	time  time.Time
}

// propagateResult is the output of a single propagation.
type propagateResult struct {
	index    int
	position visibility.TimestampedPosition
	err      error
}

// WorkerPool runs SGP4 propagation on a fixed number of goroutines.
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

// PropagateTimes propagates prop to every time in times. The returned slice
// is index-aligned with times; ok[i] is false where propagation failed or was
// cancelled.
func (wp *WorkerPool) PropagateTimes(ctx context.Context, prop *SGP4Propagator, times []time.Time) ([]visibility.TimestampedPosition, []bool, int) {
	positions := make([]visibility.TimestampedPosition, len(times))
	ok := make([]bool, len(times))
	if len(times) == 0 {
		return positions, ok, 0
	}

	jobs := make(chan propagateJob, wp.workers*2)
	results := make(chan propagateResult, wp.workers*2)

	var wg sync.WaitGroup
	for range wp.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case results <- propagateSingle(prop, job):
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, t := range times {
			select {
			case jobs <- propagateJob{index: i, time: t}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var failed int
	for res := range results {
		if res.err != nil {
			failed++
			wp.logger.Warn("propagation failed",
				"norad_id", prop.NORADID(),
				"time", times[res.index].UTC().Format(time.RFC3339),
				"error", res.err,
			)
			continue
		}
		positions[res.index] = res.position
		ok[res.index] = true
	}

	return positions, ok, failed
}

// propagateSingle runs SGP4 for one instant and derives the ground point,
// altitude and lighting.
func propagateSingle(prop *SGP4Propagator, job propagateJob) propagateResult {
	teme, err := prop.Propagate(job.time)
	if err != nil {
		return propagateResult{index: job.index, err: err}
	}

	g := transform.ECEFToGeodetic(transform.TEMEToECEF(teme, job.time))

	ill := visibility.Daylight
	if transform.ShadowOf(teme, job.time) == transform.Umbra {
		ill = visibility.Night
	}

	return propagateResult{
		index: job.index,
		position: visibility.TimestampedPosition{
			Time:         job.time,
			Point:        geo.Point{Latitude: g.LatDeg, Longitude: g.LonDeg},
			AltitudeKm:   g.AltKm,
			Illumination: ill,
		},
	}
}
