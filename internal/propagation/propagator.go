package propagation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/metrics"
	"github.com/Blood-Moon-Interactive/StarWX/internal/tle"
	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

// ErrNoDataset is returned while the TLE store is empty.
var ErrNoDataset = errors.New("no TLE dataset loaded")

// sgp4Cache holds the initialized propagator for one dataset.
// Immutable after construction.
type sgp4Cache struct {
	prop      *SGP4Propagator
	fetchedAt time.Time
}

// Propagator is a track source backed by SGP4 and the current TLE dataset.
type Propagator struct {
	store  *tle.Store
	pool   *WorkerPool
	config Config
	logger *slog.Logger
	sgp4   atomic.Pointer[sgp4Cache]
	sgp4Mu sync.Mutex // serializes cache rebuilds
}

// NewPropagator creates a Propagator for cfg.NORADID.
func NewPropagator(store *tle.Store, cfg Config, logger *slog.Logger) *Propagator {
	if cfg.NORADID == 0 {
		cfg.NORADID = DefaultNORADID
	}
	logger = logger.With("component", "propagation")
	return &Propagator{
		store:  store,
		pool:   NewWorkerPool(cfg.Workers, logger),
		config: cfg,
		logger: logger,
	}
}

// NORADID returns the tracked object.
func (p *Propagator) NORADID() int {
	return p.config.NORADID
}

// Ready reports whether the tracked object is present in the current dataset.
func (p *Propagator) Ready() bool {
	_, ok := p.store.Lookup(p.config.NORADID)
	return ok
}

// cachedProp returns the SGP4 propagator for the tracked object in ds,
// rebuilding it when the dataset changes (double-checked locking).
func (p *Propagator) cachedProp(ds *tle.Dataset) (*SGP4Propagator, error) {
	if c := p.sgp4.Load(); c != nil && c.fetchedAt.Equal(ds.FetchedAt) {
		return c.prop, nil
	}

	p.sgp4Mu.Lock()
	defer p.sgp4Mu.Unlock()

	if c := p.sgp4.Load(); c != nil && c.fetchedAt.Equal(ds.FetchedAt) {
		return c.prop, nil
	}

	entry, ok := ds.Lookup(p.config.NORADID)
	if !ok {
		return nil, fmt.Errorf("NORAD %d not in TLE dataset from %s", p.config.NORADID, ds.Source)
	}
	sp, err := NewSGP4Propagator(entry.Line1, entry.Line2, entry.NORADID)
	if err != nil {
		return nil, err
	}

	p.logger.Info("sgp4 propagator rebuilt",
		"norad_id", entry.NORADID,
		"name", entry.Name,
		"tle_epoch", entry.Epoch.UTC().Format(time.RFC3339),
		"dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
	)
	p.sgp4.Store(&sgp4Cache{prop: sp, fetchedAt: ds.FetchedAt})
	return sp, nil
}

// Track propagates the tracked object to each of times, in order.
// It fails if any sample cannot be produced.
func (p *Propagator) Track(ctx context.Context, times []time.Time) ([]visibility.TimestampedPosition, error) {
	ds := p.store.Get()
	if ds == nil {
		return nil, ErrNoDataset
	}
	prop, err := p.cachedProp(ds)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	positions, ok, failed := p.pool.PropagateTimes(ctx, prop, times)
	duration := time.Since(start)
	metrics.RecordPropagation(duration, len(times)-failed, failed)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i := range ok {
		if !ok[i] {
			return nil, fmt.Errorf("propagation failed for %d of %d samples", failed, len(times))
		}
	}

	p.logger.Debug("track propagated",
		"samples", len(times),
		"duration_ms", duration.Milliseconds(),
	)
	return positions, nil
}
