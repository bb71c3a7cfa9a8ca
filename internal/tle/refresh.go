package tle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/metrics"
)

// Refresher keeps a Store populated from a Fetcher, persisting every
// successful download to a Cache.
type Refresher struct {
	fetcher *Fetcher
	cache   *Cache
	store   *Store
	maxAge  time.Duration
	logger  *slog.Logger
}

// NewRefresher wires fetcher, cache and store. A nil fetcher disables
// network refreshes; a nil cache disables persistence.
func NewRefresher(fetcher *Fetcher, cache *Cache, store *Store, maxAge time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		fetcher: fetcher,
		cache:   cache,
		store:   store,
		maxAge:  maxAge,
		logger:  logger.With("component", "tle"),
	}
}

// LoadCached populates the store from the newest cache file.
func (r *Refresher) LoadCached() error {
	if r.cache == nil {
		return ErrNoCacheFiles
	}
	data, ts, err := r.cache.LoadLatest()
	if err != nil {
		return err
	}
	entries, err := Parse(bytes.NewReader(data), r.logger)
	if err != nil {
		return fmt.Errorf("parsing cached TLE data: %w", err)
	}
	if len(entries) == 0 {
		return errors.New("cached TLE data has no entries")
	}

	r.set(NewDataset("cache", ts, entries))
	r.logger.Info("loaded TLE data from cache", "count", len(entries), "cached_at", ts.Format(time.RFC3339))
	return nil
}

// Refresh downloads, parses, persists and installs a new dataset.
func (r *Refresher) Refresh(ctx context.Context) (*Dataset, error) {
	if r.fetcher == nil {
		return nil, errors.New("TLE fetching disabled")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	data, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := Parse(bytes.NewReader(data), r.logger)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New("TLE source returned no entries")
	}

	now := time.Now().UTC()
	if r.cache != nil {
		if err := r.cache.Write(data, now); err != nil {
			r.logger.Warn("failed to cache TLE data", "error", err)
		}
	}

	ds := NewDataset(r.fetcher.SourceURL(), now, entries)
	r.set(ds)
	r.logger.Info("TLE data refreshed", "count", len(entries), "source", ds.Source)
	return ds, nil
}

// Stale reports whether the store is empty or older than the max age.
func (r *Refresher) Stale() bool {
	age := r.store.Age()
	return age < 0 || age > r.maxAge
}

// Run refreshes whenever the dataset goes stale, checking every interval,
// and keeps the dataset gauges current. It returns when ctx is done.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if r.fetcher != nil && r.Stale() {
			if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("TLE refresh failed", "error", err)
			}
		}
		if age := r.store.Age(); age >= 0 {
			metrics.SetTLEDatasetAge(age)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (r *Refresher) set(ds *Dataset) {
	r.store.Set(ds)
	metrics.SetTLEDatasetCount(len(ds.Entries))
	metrics.SetTLEDatasetAge(time.Since(ds.FetchedAt))
}
