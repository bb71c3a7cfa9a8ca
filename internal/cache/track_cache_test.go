package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/geo"
	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// countingSource fabricates a sample per requested time and counts the
// samples it was asked for.
type countingSource struct {
	requested atomic.Int64
	calls     atomic.Int64
	fail      atomic.Bool
	altitude  atomic.Int64
}

func (s *countingSource) Track(_ context.Context, times []time.Time) ([]visibility.TimestampedPosition, error) {
	s.calls.Add(1)
	if s.fail.Load() {
		return nil, errors.New("source down")
	}
	s.requested.Add(int64(len(times)))
	out := make([]visibility.TimestampedPosition, len(times))
	for i, t := range times {
		out[i] = visibility.TimestampedPosition{
			Time:         t,
			Point:        geo.Point{Latitude: 10, Longitude: 20},
			AltitudeKm:   float64(400 + s.altitude.Load()),
			Illumination: visibility.Night,
		}
	}
	return out, nil
}

type versionBox struct {
	mu sync.Mutex
	v  time.Time
	ok bool
}

func (b *versionBox) get() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.v, b.ok
}

func (b *versionBox) set(v time.Time) {
	b.mu.Lock()
	b.v, b.ok = v, true
	b.mu.Unlock()
}

func testConfig() Config {
	return Config{
		Step:        time.Minute,
		Horizon:     6 * time.Minute,
		GracePeriod: 5 * time.Second,
		Buffer:      2 * time.Minute,
		LiveTTL:     time.Minute,
	}
}

func TestRoundToStep(t *testing.T) {
	cfg := testConfig()
	cfg.Step = 5 * time.Second
	c := New(cfg, &countingSource{}, nil, testLogger)

	tests := []struct {
		input    time.Time
		expected time.Time
	}{
		{time.Date(2026, 2, 6, 12, 0, 3, 0, time.UTC), time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)},
		{time.Date(2026, 2, 6, 12, 0, 7, 0, time.UTC), time.Date(2026, 2, 6, 12, 0, 5, 0, time.UTC)},
		{time.Date(2026, 2, 6, 12, 0, 10, 0, time.UTC), time.Date(2026, 2, 6, 12, 0, 10, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := c.RoundToStep(tt.input); !got.Equal(tt.expected) {
			t.Errorf("RoundToStep(%v) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestWarmupThenHits(t *testing.T) {
	src := &countingSource{}
	c := New(testConfig(), src, nil, testLogger)
	c.warmup(context.Background())

	// [now, now+6m] at 1 minute.
	if got := c.Stats().Entries; got != 7 {
		t.Fatalf("warmup produced %d entries, want 7", got)
	}
	if !c.Ready() {
		t.Error("cache should be ready after warmup")
	}

	before := src.requested.Load()
	times := c.windowTimes()
	track, err := c.Track(context.Background(), times)
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if src.requested.Load() != before {
		t.Errorf("window request reached the source (%d samples)", src.requested.Load()-before)
	}
	for i := range times {
		if !track[i].Time.Equal(times[i]) {
			t.Errorf("sample %d time = %v, want %v", i, track[i].Time, times[i])
		}
	}
	if s := c.Stats(); s.Hits != int64(len(times)) || s.Misses != 0 {
		t.Errorf("hits/misses = %d/%d", s.Hits, s.Misses)
	}
}

func TestTrackMixesHitsAndMisses(t *testing.T) {
	src := &countingSource{}
	c := New(testConfig(), src, nil, testLogger)
	c.warmup(context.Background())
	before := src.requested.Load()

	base := c.RoundToStep(time.Now())
	times := []time.Time{
		base,                              // hit
		base.Add(1500 * time.Millisecond), // off-grid: miss
		base.Add(time.Minute),             // hit
		base.Add(24 * time.Hour),          // outside the window: miss
	}
	track, err := c.Track(context.Background(), times)
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if got := src.requested.Load() - before; got != 2 {
		t.Errorf("source asked for %d samples, want 2", got)
	}
	for i := range times {
		if !track[i].Time.Equal(times[i]) {
			t.Errorf("sample %d time = %v, want %v", i, track[i].Time, times[i])
		}
	}

	// The far-future miss must not be retained.
	if _, ok := c.lookup(base.Add(24 * time.Hour)); ok {
		t.Error("sample outside the window was cached")
	}
}

func TestTrackSourceError(t *testing.T) {
	src := &countingSource{}
	src.fail.Store(true)
	c := New(testConfig(), src, nil, testLogger)

	if _, err := c.Track(context.Background(), []time.Time{time.Now()}); err == nil {
		t.Fatal("expected source error")
	}
}

func TestEvictExpired(t *testing.T) {
	src := &countingSource{}
	cfg := testConfig()
	cfg.Buffer = 0
	c := New(cfg, src, nil, testLogger)

	past := c.RoundToStep(time.Now().Add(-2 * time.Minute))
	future := c.RoundToStep(time.Now().Add(time.Minute))
	track, _ := src.Track(context.Background(), []time.Time{past, future})
	c.put(track)

	if removed := c.evictExpired(); removed != 1 {
		t.Errorf("evicted %d, want 1", removed)
	}
	if _, ok := c.lookup(past); ok {
		t.Error("past entry should be evicted")
	}
	if _, ok := c.lookup(future); !ok {
		t.Error("future entry should remain")
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("evictions = %d, want 1", c.Stats().Evictions)
	}
}

func TestSourceCutover(t *testing.T) {
	src := &countingSource{}
	box := &versionBox{}
	box.set(time.Unix(1_700_000_000, 0))
	c := New(testConfig(), src, box.get, testLogger)

	ctx := context.Background()
	c.warmup(ctx)
	if c.sourceChanged() {
		t.Fatal("no change expected right after warmup")
	}

	src.altitude.Store(10)
	box.set(time.Unix(1_700_003_600, 0))
	if !c.sourceChanged() {
		t.Fatal("expected change after new version")
	}

	c.tick(ctx)

	if c.inGracePeriod.Load() {
		t.Error("grace period should be cleared after cutover")
	}
	if c.sourceChanged() {
		t.Error("change should be consumed by cutover")
	}
	pos, ok := c.lookup(c.RoundToStep(time.Now()))
	if !ok || pos.AltitudeKm != 410 {
		t.Errorf("current sample after cutover = %+v, %v; want rebuilt altitude 410", pos, ok)
	}
}

func TestCutoverFailureKeepsWindow(t *testing.T) {
	src := &countingSource{}
	box := &versionBox{}
	box.set(time.Unix(1_700_000_000, 0))
	c := New(testConfig(), src, box.get, testLogger)
	c.warmup(context.Background())
	entries := c.Stats().Entries

	src.fail.Store(true)
	box.set(time.Unix(1_700_003_600, 0))
	c.performCutover(context.Background())

	if got := c.Stats().Entries; got != entries {
		t.Errorf("entries = %d after failed cutover, want %d", got, entries)
	}
	if !c.sourceChanged() {
		t.Error("failed cutover should be retried on the next tick")
	}
}

func TestLiveIsShared(t *testing.T) {
	src := &countingSource{}
	c := New(testConfig(), src, nil, testLogger)

	for range 5 {
		if _, err := c.Live(context.Background()); err != nil {
			t.Fatalf("Live: %v", err)
		}
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("source called %d times, want 1", got)
	}
}

func TestStartWaitsForData(t *testing.T) {
	src := &countingSource{}
	box := &versionBox{}
	c := New(testConfig(), src, box.get, testLogger)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	c.Start(ctx)

	if src.calls.Load() != 0 {
		t.Error("cache should not query the source before data is available")
	}
}

func TestConcurrentAccess(t *testing.T) {
	src := &countingSource{}
	c := New(testConfig(), src, nil, testLogger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go c.Start(ctx)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.Track(ctx, c.windowTimes())
				c.Stats()
				c.Ready()
			}
		}()
	}
	wg.Wait()
}
