package passes

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/metrics"
	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

const (
	DefaultStep    = 600 * time.Second
	DefaultHorizon = 24 * time.Hour
)

// SampleSource produces positions of the tracked object at the requested
// times, in the same order.
type SampleSource interface {
	Track(ctx context.Context, times []time.Time) ([]visibility.TimestampedPosition, error)
}

// Timestamps returns horizon/step sample times starting at start. The point
// at start+horizon is not included.
func Timestamps(start time.Time, step, horizon time.Duration) []time.Time {
	if step <= 0 || horizon <= 0 {
		return nil
	}
	n := int(horizon / step)
	times := make([]time.Time, n)
	for i := range n {
		times[i] = start.Add(time.Duration(i) * step)
	}
	return times
}

// Request holds the parameters for a pass prediction request.
type Request struct {
	Observers []visibility.Observer
	Source    SampleSource
	Start     time.Time
	Step      time.Duration // default DefaultStep
	Horizon   time.Duration // default DefaultHorizon
}

// ObserverPasses holds the predicted passes for one observer.
type ObserverPasses struct {
	Observer visibility.Observer `json:"observer"`
	Passes   []Pass              `json:"passes"`
	Error    string              `json:"error,omitempty"`
}

// Predict fetches one track covering the request horizon and detects passes
// for every observer. Observers are processed in their own goroutines,
// bounded by a semaphore. An error is returned only when the track itself
// cannot be obtained.
func Predict(ctx context.Context, req Request) ([]ObserverPasses, error) {
	if req.Source == nil {
		return nil, errors.New("no sample source")
	}
	step, horizon := req.Step, req.Horizon
	if step <= 0 {
		step = DefaultStep
	}
	if horizon <= 0 {
		horizon = DefaultHorizon
	}

	start := time.Now()
	times := Timestamps(req.Start, step, horizon)
	track, err := req.Source.Track(ctx, times)
	if err != nil {
		return nil, fmt.Errorf("track: %w", err)
	}

	results := make([]ObserverPasses, len(req.Observers))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, obs := range req.Observers {
		wg.Add(1)
		go func(idx int, o visibility.Observer) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = ObserverPasses{Observer: o, Passes: []Pass{}, Error: "cancelled"}
				return
			}

			found := []Pass{}
			for p := range Scan(Classified(o, track)) {
				found = append(found, p)
			}
			results[idx] = ObserverPasses{Observer: o, Passes: found}
		}(i, obs)
	}

	wg.Wait()

	total := 0
	for _, r := range results {
		total += len(r.Passes)
	}
	metrics.RecordPassDetection(time.Since(start), total)

	return results, nil
}
