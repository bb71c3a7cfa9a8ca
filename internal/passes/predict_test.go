package passes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/geo"
	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

// fakeSource returns a night-side track that sits over (0, 0) between the
// given sample indexes and is far away elsewhere.
type fakeSource struct {
	overhead map[int]bool
	err      error
	calls    int
}

func (f *fakeSource) Track(_ context.Context, times []time.Time) ([]visibility.TimestampedPosition, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]visibility.TimestampedPosition, len(times))
	for i, tm := range times {
		pt := geo.Point{Latitude: 0, Longitude: 120}
		if f.overhead[i] {
			pt = geo.Point{Latitude: 1, Longitude: 1}
		}
		out[i] = visibility.TimestampedPosition{
			Time:         tm,
			Point:        pt,
			AltitudeKm:   420,
			Illumination: visibility.Night,
		}
	}
	return out, nil
}

func TestTimestamps(t *testing.T) {
	times := Timestamps(t0, DefaultStep, DefaultHorizon)
	if len(times) != 144 {
		t.Fatalf("got %d timestamps, want 144", len(times))
	}
	if !times[0].Equal(t0) {
		t.Errorf("first = %v, want %v", times[0], t0)
	}
	if want := t0.Add(143 * DefaultStep); !times[143].Equal(want) {
		t.Errorf("last = %v, want %v", times[143], want)
	}

	if Timestamps(t0, 0, time.Hour) != nil {
		t.Error("zero step should yield no timestamps")
	}
}

func TestPredictPerObserver(t *testing.T) {
	src := &fakeSource{overhead: map[int]bool{2: true, 3: true}}
	req := Request{
		Observers: []visibility.Observer{
			visibility.NewObserver(0, 0),
			visibility.NewObserver(-60, -60),
		},
		Source:  src,
		Start:   t0,
		Step:    time.Minute,
		Horizon: 10 * time.Minute,
	}

	results, err := Predict(context.Background(), req)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("source called %d times, want 1", src.calls)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	near := results[0]
	if near.Error != "" {
		t.Fatalf("unexpected error: %s", near.Error)
	}
	if len(near.Passes) != 1 {
		t.Fatalf("near observer: got %d passes, want 1", len(near.Passes))
	}
	if got := near.Passes[0].DurationSeconds; got != 120 {
		t.Errorf("DurationSeconds = %v, want 120", got)
	}
	if near.Passes[0].MaxAltitudeKm != 420 {
		t.Errorf("MaxAltitudeKm = %v, want 420", near.Passes[0].MaxAltitudeKm)
	}

	if len(results[1].Passes) != 0 {
		t.Errorf("far observer: got %d passes, want 0", len(results[1].Passes))
	}
}

func TestPredictSourceError(t *testing.T) {
	boom := errors.New("upstream down")
	_, err := Predict(context.Background(), Request{
		Observers: []visibility.Observer{visibility.NewObserver(0, 0)},
		Source:    &fakeSource{err: boom},
		Start:     t0,
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func TestPredictNoSource(t *testing.T) {
	if _, err := Predict(context.Background(), Request{}); err == nil {
		t.Fatal("expected error without a sample source")
	}
}
