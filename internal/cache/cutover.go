package cache

import (
	"context"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/metrics"
)

// sourceChanged reports whether the data behind the source has been replaced
// since the window was built.
func (c *TrackCache) sourceChanged() bool {
	if c.version == nil {
		return false
	}
	v, ok := c.version()
	return ok && !v.Equal(c.currentVersion)
}

// performCutover rebuilds the whole window from the new data. Reads keep
// hitting the old window until the new one is swapped in. The rebuild is
// abandoned if it exceeds the grace period.
func (c *TrackCache) performCutover(ctx context.Context) {
	v, ok := c.version()
	if !ok {
		return
	}

	c.logger.Info("source cutover starting",
		"old_version", c.currentVersion.UTC().Format(time.RFC3339),
		"new_version", v.UTC().Format(time.RFC3339),
	)

	c.inGracePeriod.Store(true)
	metrics.SetCacheGracePeriodActive(true)
	defer func() {
		c.inGracePeriod.Store(false)
		metrics.SetCacheGracePeriodActive(false)
	}()

	if c.config.GracePeriod > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.GracePeriod)
		defer cancel()
	}

	start := time.Now()
	track, err := c.source.Track(ctx, c.windowTimes())
	if err != nil {
		c.logger.Warn("cutover failed, keeping previous window", "error", err)
		metrics.IncCacheRegenerationErrors()
		return
	}

	c.replaceAll(track)
	c.currentVersion = v
	c.liveMu.Lock()
	c.liveAt = time.Time{}
	c.liveMu.Unlock()

	duration := time.Since(start)
	c.logger.Info("source cutover complete",
		"duration_ms", duration.Milliseconds(),
		"entries_replaced", len(track),
	)
	metrics.ObserveCacheRegenerationDuration(duration)
}
