// Package passes finds the intervals during which a tracked object is visible
// from an observer, given a time-ordered track of position samples.
package passes

import (
	"iter"
	"math"
	"slices"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

// Sample pairs one track position with its classification for an observer.
type Sample struct {
	Position   visibility.TimestampedPosition
	Visibility visibility.Result
}

// Pass is one contiguous run of visible samples.
//
// EndTime is the time of the first invisible sample after the run, so a pass
// that consists of a single visible sample still has a positive duration.
type Pass struct {
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`
	MaxAltitudeKm   float64   `json:"max_altitude_km"`
	MinDistanceKm   float64   `json:"min_distance_km"`
}

// DurationMinutes is the display form of DurationSeconds.
func (p Pass) DurationMinutes() int {
	return int(math.Round(p.DurationSeconds / 60))
}

// Classified lazily classifies each position of track for obs.
func Classified(obs visibility.Observer, track []visibility.TimestampedPosition) iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		for _, pos := range track {
			s := Sample{
				Position:   pos,
				Visibility: visibility.Classify(obs, visibility.OrbitingPlatform{Sample: pos}),
			}
			if !yield(s) {
				return
			}
		}
	}
}

// Scan walks seq once, in order, and yields every completed pass.
// A pass still open when seq ends has no observed end and is dropped.
func Scan(seq iter.Seq[Sample]) iter.Seq[Pass] {
	return func(yield func(Pass) bool) {
		var (
			cur  Pass
			open bool
		)
		for s := range seq {
			if s.Visibility.IsVisible {
				if !open {
					cur = Pass{
						StartTime:     s.Position.Time,
						MaxAltitudeKm: s.Position.AltitudeKm,
						MinDistanceKm: s.Visibility.DistanceKm,
					}
					open = true
					continue
				}
				cur.MaxAltitudeKm = max(cur.MaxAltitudeKm, s.Position.AltitudeKm)
				cur.MinDistanceKm = min(cur.MinDistanceKm, s.Visibility.DistanceKm)
				continue
			}

			if !open {
				continue
			}
			open = false
			cur.EndTime = s.Position.Time
			cur.DurationSeconds = cur.EndTime.Sub(cur.StartTime).Seconds()
			if !yield(cur) {
				return
			}
		}
	}
}

// Detect is the collected form of Scan. The result is never nil.
func Detect(samples []Sample) []Pass {
	passes := []Pass{}
	for p := range Scan(slices.Values(samples)) {
		passes = append(passes, p)
	}
	return passes
}
