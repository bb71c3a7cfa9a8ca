package cache

import (
	"context"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/metrics"
	"github.com/Blood-Moon-Interactive/StarWX/internal/passes"
)

// Start runs the maintenance loop: wait for data, warm up the full window,
// then every step extend the leading edge, evict the trailing edge and
// rebuild on a source change. Blocks until ctx is cancelled.
func (c *TrackCache) Start(ctx context.Context) {
	if !c.waitForData(ctx) {
		return
	}

	c.warmup(ctx)

	ticker := time.NewTicker(c.config.Step)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cache generator stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// Ready reports whether the cache holds a sample for the current step.
func (c *TrackCache) Ready() bool {
	_, ok := c.lookup(c.RoundToStep(time.Now()))
	return ok
}

// waitForData blocks until the source has data, checking every second.
// Returns false if ctx is cancelled.
func (c *TrackCache) waitForData(ctx context.Context) bool {
	if c.version == nil {
		return true
	}
	if _, ok := c.version(); ok {
		return true
	}

	c.logger.Info("cache waiting for source data")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if _, ok := c.version(); ok {
				c.logger.Info("source data available, starting cache warmup")
				return true
			}
		}
	}
}

// windowTimes returns the step-aligned times of [now, now+horizon].
func (c *TrackCache) windowTimes() []time.Time {
	return passes.Timestamps(c.RoundToStep(time.Now()), c.config.Step, c.config.Horizon+c.config.Step)
}

// warmup fills the cache for [now, now+horizon].
func (c *TrackCache) warmup(ctx context.Context) {
	if c.version != nil {
		c.currentVersion, _ = c.version()
	}

	times := c.windowTimes()
	if len(times) == 0 {
		return
	}
	c.logger.Info("cache warmup starting",
		"samples", len(times),
		"from", times[0].Format(time.RFC3339),
		"to", times[len(times)-1].Format(time.RFC3339),
	)

	start := time.Now()
	track, err := c.source.Track(ctx, times)
	if err != nil {
		c.logger.Warn("warmup failed", "error", err)
		metrics.IncCacheRegenerationErrors()
		return
	}
	c.put(track)

	c.logger.Info("cache warmup complete",
		"generated", len(track),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// tick runs one iteration of the maintenance loop.
func (c *TrackCache) tick(ctx context.Context) {
	if c.sourceChanged() {
		c.performCutover(ctx)
		return
	}

	c.generateLeadingEdge(ctx)
	c.evictExpired()
}

// generateLeadingEdge fills every missing step in the window, which is
// normally just the newest one.
func (c *TrackCache) generateLeadingEdge(ctx context.Context) {
	var missing []time.Time
	for _, t := range c.windowTimes() {
		if _, ok := c.lookup(t); !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return
	}

	start := time.Now()
	track, err := c.source.Track(ctx, missing)
	duration := time.Since(start)
	if err != nil {
		c.logger.Warn("leading edge generation failed",
			"samples", len(missing),
			"error", err,
		)
		metrics.IncCacheRegenerationErrors()
		return
	}

	c.put(track)
	c.logger.Debug("leading edge generated",
		"samples", len(track),
		"newest", missing[len(missing)-1].Format(time.RFC3339),
		"duration_ms", duration.Milliseconds(),
	)
}
