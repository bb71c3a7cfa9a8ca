// Package events merges the JPL feeds into a ranked list of event cards for
// one observer.
package events

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/jpl"
	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

// MaxCards caps the aggregated list.
const MaxCards = 12

// Per-feed fetch limits.
const (
	fireballLimit      = 10
	closeApproachLimit = 15
	sentryLimit        = 5
	nhatsLimit         = 5
)

// Feeds is the set of upstream feeds. *jpl.Client implements it.
type Feeds interface {
	Fireballs(ctx context.Context, limit int) ([]jpl.Fireball, error)
	CloseApproaches(ctx context.Context, limit int) ([]jpl.CloseApproach, error)
	Sentry(ctx context.Context, limit int) ([]jpl.RiskObject, error)
	NHATS(ctx context.Context, limit int) ([]jpl.MissionTarget, error)
}

// record is what every feed entry offers.
type record interface {
	Summary() jpl.Summary
	Event() visibility.Event
}

// priority orders categories on the card list, lowest first.
var priority = map[visibility.Category]int{
	visibility.CategoryCloseApproach:  1,
	visibility.CategoryAtmospheric:    2,
	visibility.CategoryRiskAssessment: 3,
	visibility.CategoryMissionTarget:  4,
}

// Card is one ranked event.
type Card struct {
	jpl.Summary
	Category   visibility.Category `json:"category"`
	Priority   int                 `json:"priority"`
	Visibility visibility.Result   `json:"visibility"`
}

// Range limits cards to events dated within [Start, End]. Undated events
// are excluded when a range is given.
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Result is the aggregated list plus the feeds that could not be read.
type Result struct {
	Cards       []Card            `json:"events"`
	FailedFeeds map[string]string `json:"failed_feeds,omitempty"`
}

// ErrAllFeedsFailed is returned when no feed could be read.
var ErrAllFeedsFailed = errors.New("all event feeds failed")

// Aggregator fetches and ranks events.
type Aggregator struct {
	feeds  Feeds
	logger *slog.Logger
}

// NewAggregator creates an Aggregator over feeds.
func NewAggregator(feeds Feeds, logger *slog.Logger) *Aggregator {
	return &Aggregator{feeds: feeds, logger: logger.With("component", "events")}
}

// Events fetches every feed concurrently and returns at most MaxCards cards
// classified for obs, ordered by category priority then date. A failing
// feed contributes no cards; only when all feeds fail is an error returned.
func (a *Aggregator) Events(ctx context.Context, obs visibility.Observer, rng *Range) (Result, error) {
	type feedResult struct {
		name    string
		records []record
		err     error
	}

	fetchers := []struct {
		name  string
		fetch func(context.Context) ([]record, error)
	}{
		{"close_approaches", func(ctx context.Context) ([]record, error) {
			return collect(a.feeds.CloseApproaches(ctx, closeApproachLimit))
		}},
		{"fireballs", func(ctx context.Context) ([]record, error) {
			return collect(a.feeds.Fireballs(ctx, fireballLimit))
		}},
		{"sentry", func(ctx context.Context) ([]record, error) {
			return collect(a.feeds.Sentry(ctx, sentryLimit))
		}},
		{"nhats", func(ctx context.Context) ([]record, error) {
			return collect(a.feeds.NHATS(ctx, nhatsLimit))
		}},
	}

	results := make([]feedResult, len(fetchers))
	var wg sync.WaitGroup
	for i, f := range fetchers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recs, err := f.fetch(ctx)
			results[i] = feedResult{name: f.name, records: recs, err: err}
		}()
	}
	wg.Wait()

	var (
		cards  []Card
		failed = map[string]string{}
	)
	for _, r := range results {
		if r.err != nil {
			a.logger.Warn("event feed failed", "feed", r.name, "error", r.err)
			failed[r.name] = r.err.Error()
			continue
		}
		for _, rec := range r.records {
			card := newCard(obs, rec)
			if rng != nil && (card.Date == nil || !rng.contains(*card.Date)) {
				continue
			}
			cards = append(cards, card)
		}
	}
	if len(failed) == len(fetchers) {
		return Result{FailedFeeds: failed}, ErrAllFeedsFailed
	}

	Rank(cards)
	if len(cards) > MaxCards {
		cards = cards[:MaxCards]
	}
	if cards == nil {
		cards = []Card{}
	}
	if len(failed) == 0 {
		failed = nil
	}
	return Result{Cards: cards, FailedFeeds: failed}, nil
}

func collect[R record](recs []R, err error) ([]record, error) {
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	out := make([]record, len(recs))
	for i, r := range recs {
		out[i] = r
	}
	return out, nil
}

func newCard(obs visibility.Observer, rec record) Card {
	ev := rec.Event()
	return Card{
		Summary:    rec.Summary(),
		Category:   ev.Category(),
		Priority:   priority[ev.Category()],
		Visibility: visibility.Classify(obs, ev),
	}
}

// Rank sorts cards by priority, then by date. Within a priority undated
// cards follow dated ones and keep their relative order.
func Rank(cards []Card) {
	slices.SortStableFunc(cards, func(a, b Card) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		switch {
		case a.Date == nil && b.Date == nil:
			return 0
		case a.Date == nil:
			return 1
		case b.Date == nil:
			return -1
		}
		return a.Date.Compare(*b.Date)
	})
}
