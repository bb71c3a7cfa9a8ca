// Package cache keeps a rolling in-memory window of track samples in front of
// a slower sample source.
//
// The cache holds samples for [now, now+horizon] at a fixed step. A
// background worker extends the leading edge and evicts the trailing edge.
// When the data behind the source changes (a new TLE dataset) the window is
// rebuilt while reads keep being served from the old one.
package cache

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/metrics"
	"github.com/Blood-Moon-Interactive/StarWX/internal/passes"
	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

// Config holds cache configuration.
type Config struct {
	Step        time.Duration // sample interval
	Horizon     time.Duration // how far ahead to keep samples
	GracePeriod time.Duration // upper bound on a rebuild after a source change
	Buffer      time.Duration // keep samples this long after they pass
	LiveTTL     time.Duration // reuse a live sample for this long
}

// VersionFunc identifies the data currently behind a source. ok is false
// while no data is available.
type VersionFunc func() (version time.Time, ok bool)

// TrackCache is a passes.SampleSource that serves step-aligned times from
// memory. Safe for concurrent use.
type TrackCache struct {
	mu      sync.RWMutex
	entries map[time.Time]visibility.TimestampedPosition

	config  Config
	source  passes.SampleSource
	version VersionFunc
	logger  *slog.Logger

	// Version of the data the current entries were built from.
	currentVersion time.Time

	liveMu sync.Mutex
	live   visibility.TimestampedPosition
	liveAt time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	inGracePeriod atomic.Bool
}

// New creates a TrackCache in front of source. version may be nil for
// sources whose data never changes identity.
func New(config Config, source passes.SampleSource, version VersionFunc, logger *slog.Logger) *TrackCache {
	logger = logger.With("component", "cache")
	logger.Info("cache initialized",
		"step_seconds", config.Step.Seconds(),
		"horizon_seconds", config.Horizon.Seconds(),
		"buffer_seconds", config.Buffer.Seconds(),
		"grace_period_seconds", config.GracePeriod.Seconds(),
	)

	return &TrackCache{
		entries: make(map[time.Time]visibility.TimestampedPosition),
		config:  config,
		source:  source,
		version: version,
		logger:  logger,
	}
}

// RoundToStep rounds t down to a step boundary in UTC.
func (c *TrackCache) RoundToStep(t time.Time) time.Time {
	return t.UTC().Truncate(c.config.Step)
}

// Step returns the configured sample interval.
func (c *TrackCache) Step() time.Duration {
	return c.config.Step
}

// lookup returns the cached sample for t. Only step-aligned times can hit.
func (c *TrackCache) lookup(t time.Time) (visibility.TimestampedPosition, bool) {
	key := c.RoundToStep(t)
	if !key.Equal(t) {
		return visibility.TimestampedPosition{}, false
	}
	c.mu.RLock()
	pos, ok := c.entries[key]
	c.mu.RUnlock()
	return pos, ok
}

// Track returns samples for times, in order. Cached samples are served from
// memory; the rest are fetched from the source in one call and kept when
// they fall inside the window.
func (c *TrackCache) Track(ctx context.Context, times []time.Time) ([]visibility.TimestampedPosition, error) {
	out := make([]visibility.TimestampedPosition, len(times))
	var (
		missTimes []time.Time
		missIdx   []int
	)
	for i, t := range times {
		if pos, ok := c.lookup(t); ok {
			out[i] = pos
			continue
		}
		missTimes = append(missTimes, t)
		missIdx = append(missIdx, i)
	}

	hits := len(times) - len(missTimes)
	c.hits.Add(int64(hits))
	c.misses.Add(int64(len(missTimes)))
	metrics.AddCacheHits(hits)
	metrics.AddCacheMisses(len(missTimes))

	if len(missTimes) == 0 {
		return out, nil
	}

	fetched, err := c.source.Track(ctx, missTimes)
	if err != nil {
		return nil, err
	}
	for j, pos := range fetched {
		out[missIdx[j]] = pos
	}
	c.putInWindow(fetched)
	return out, nil
}

// Live returns a sample for the current instant, shared by all callers for
// LiveTTL.
func (c *TrackCache) Live(ctx context.Context) (visibility.TimestampedPosition, error) {
	c.liveMu.Lock()
	defer c.liveMu.Unlock()

	if !c.liveAt.IsZero() && time.Since(c.liveAt) < c.config.LiveTTL {
		return c.live, nil
	}

	now := time.Now().UTC().Truncate(time.Second)
	track, err := c.source.Track(ctx, []time.Time{now})
	if err != nil {
		return visibility.TimestampedPosition{}, err
	}
	c.live, c.liveAt = track[0], time.Now()
	return c.live, nil
}

// putInWindow stores step-aligned samples that are not yet expired and not
// past the horizon.
func (c *TrackCache) putInWindow(samples []visibility.TimestampedPosition) {
	now := time.Now()
	lo := now.Add(-c.config.Buffer)
	hi := now.Add(c.config.Horizon + c.config.Step)

	c.mu.Lock()
	for _, s := range samples {
		key := c.RoundToStep(s.Time)
		if !key.Equal(s.Time) || key.Before(lo) || key.After(hi) {
			continue
		}
		c.entries[key] = s
	}
	c.mu.Unlock()
	c.updateMetrics()
}

// put stores samples unconditionally, keyed by their step-rounded time.
func (c *TrackCache) put(samples []visibility.TimestampedPosition) {
	c.mu.Lock()
	for _, s := range samples {
		c.entries[c.RoundToStep(s.Time)] = s
	}
	c.mu.Unlock()
	c.updateMetrics()
}

// evictExpired removes entries older than now - buffer.
func (c *TrackCache) evictExpired() int {
	cutoff := time.Now().Add(-c.config.Buffer)
	var removed int

	c.mu.Lock()
	for ts := range c.entries {
		if ts.Before(cutoff) {
			delete(c.entries, ts)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddCacheEvictions(removed)
		c.updateMetrics()
		c.logger.Debug("cache eviction", "entries_removed", removed)
	}
	return removed
}

// replaceAll swaps in a freshly built window.
func (c *TrackCache) replaceAll(samples []visibility.TimestampedPosition) {
	entries := make(map[time.Time]visibility.TimestampedPosition, len(samples))
	for _, s := range samples {
		entries[c.RoundToStep(s.Time)] = s
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	c.updateMetrics()
}

// Stats is a snapshot of cache state for the stats endpoint.
type Stats struct {
	Entries         int       `json:"entries"`
	OldestTimestamp time.Time `json:"oldest_timestamp"`
	NewestTimestamp time.Time `json:"newest_timestamp"`
	Hits            int64     `json:"hits"`
	Misses          int64     `json:"misses"`
	Evictions       int64     `json:"evictions"`
	InGracePeriod   bool      `json:"in_grace_period"`
}

// Stats returns current cache statistics.
func (c *TrackCache) Stats() Stats {
	c.mu.RLock()
	keys := make([]time.Time, 0, len(c.entries))
	for ts := range c.entries {
		keys = append(keys, ts)
	}
	c.mu.RUnlock()

	s := Stats{
		Entries:       len(keys),
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Evictions:     c.evictions.Load(),
		InGracePeriod: c.inGracePeriod.Load(),
	}
	if len(keys) > 0 {
		s.OldestTimestamp = slices.MinFunc(keys, time.Time.Compare)
		s.NewestTimestamp = slices.MaxFunc(keys, time.Time.Compare)
	}
	return s
}

func (c *TrackCache) updateMetrics() {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	metrics.SetCacheEntries(n)
}
