package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/jpl"
	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

var day0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

type fakeFeeds struct {
	fireballs []jpl.Fireball
	cad       []jpl.CloseApproach
	sentry    []jpl.RiskObject
	nhats     []jpl.MissionTarget
	fail      map[string]bool
}

func (f *fakeFeeds) err(name string) error {
	if f.fail[name] {
		return fmt.Errorf("%s unavailable", name)
	}
	return nil
}

func (f *fakeFeeds) Fireballs(context.Context, int) ([]jpl.Fireball, error) {
	return f.fireballs, f.err("fireballs")
}

func (f *fakeFeeds) CloseApproaches(context.Context, int) ([]jpl.CloseApproach, error) {
	return f.cad, f.err("cad")
}

func (f *fakeFeeds) Sentry(context.Context, int) ([]jpl.RiskObject, error) {
	return f.sentry, f.err("sentry")
}

func (f *fakeFeeds) NHATS(context.Context, int) ([]jpl.MissionTarget, error) {
	return f.nhats, f.err("nhats")
}

func sampleFeeds() *fakeFeeds {
	return &fakeFeeds{
		fireballs: []jpl.Fireball{
			{Date: day0.AddDate(0, 0, 3), Latitude: "45.0°N", Longitude: "90.0°W", ImpactEnergyKt: 0.1},
			{Date: day0.AddDate(0, 0, 1)},
		},
		cad: []jpl.CloseApproach{
			{Designation: "B", Date: day0.AddDate(0, 0, 5), DistanceAU: 0.2, DistanceKm: 0.2 * jpl.KmPerAU},
			{Designation: "A", Date: day0.AddDate(0, 0, 2), DistanceAU: 0.001, DistanceKm: 0.001 * jpl.KmPerAU},
		},
		sentry: []jpl.RiskObject{{Designation: "R1", ImpactProbability: 0.01}},
		nhats:  []jpl.MissionTarget{{Designation: "N1", MinDeltaVKmS: 4, DurationDays: 300}},
	}
}

func TestEventsOrdering(t *testing.T) {
	agg := NewAggregator(sampleFeeds(), testLogger)
	res, err := agg.Events(context.Background(), visibility.NewObserver(45, -90), nil)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}

	var names []string
	for _, c := range res.Cards {
		names = append(names, c.Name)
	}
	want := []string{"A", "B", "Fireball 2025-03-02 00:00", "Fireball 2025-03-04 00:00", "R1", "N1"}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Fatalf("order = %v, want %v", names, want)
	}

	for i := 1; i < len(res.Cards); i++ {
		if res.Cards[i].Priority < res.Cards[i-1].Priority {
			t.Errorf("card %d priority %d after %d", i, res.Cards[i].Priority, res.Cards[i-1].Priority)
		}
	}

	bolide := res.Cards[3]
	if !bolide.Visibility.IsVisible {
		t.Errorf("fireball overhead should be visible: %+v", bolide.Visibility)
	}
	if res.Cards[2].Visibility.Reason != visibility.ReasonNoLocation {
		t.Errorf("unlocated fireball reason = %q", res.Cards[2].Visibility.Reason)
	}
	if res.Cards[0].Visibility.Tier != visibility.TierHigh {
		t.Errorf("0.001 AU approach tier = %q", res.Cards[0].Visibility.Tier)
	}
	if res.FailedFeeds != nil {
		t.Errorf("FailedFeeds = %v", res.FailedFeeds)
	}
}

func TestEventsCap(t *testing.T) {
	feeds := sampleFeeds()
	feeds.cad = nil
	for i := range 20 {
		feeds.cad = append(feeds.cad, jpl.CloseApproach{
			Designation: fmt.Sprintf("C%02d", i),
			Date:        day0.Add(time.Duration(20-i) * time.Hour),
			DistanceKm:  2_000_000,
		})
	}
	res, err := NewAggregator(feeds, testLogger).Events(context.Background(), visibility.NewObserver(0, 0), nil)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(res.Cards) != MaxCards {
		t.Fatalf("got %d cards, want %d", len(res.Cards), MaxCards)
	}
	for _, c := range res.Cards {
		if c.Category != visibility.CategoryCloseApproach {
			t.Fatalf("cap should keep highest priority cards, got %s", c.Category)
		}
	}
	if res.Cards[0].Name != "C19" {
		t.Errorf("earliest approach first, got %s", res.Cards[0].Name)
	}
}

func TestEventsDateRange(t *testing.T) {
	rng := &Range{Start: day0.AddDate(0, 0, 2), End: day0.AddDate(0, 0, 4)}
	res, err := NewAggregator(sampleFeeds(), testLogger).Events(context.Background(), visibility.NewObserver(0, 0), rng)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	var names []string
	for _, c := range res.Cards {
		names = append(names, c.Name)
	}
	// Undated sentry and NHATS entries drop out; range bounds are inclusive.
	want := "[A Fireball 2025-03-04 00:00]"
	if fmt.Sprint(names) != want {
		t.Errorf("cards = %v, want %s", names, want)
	}
}

func TestEventsPartialFailure(t *testing.T) {
	feeds := sampleFeeds()
	feeds.fail = map[string]bool{"sentry": true, "fireballs": true}
	res, err := NewAggregator(feeds, testLogger).Events(context.Background(), visibility.NewObserver(0, 0), nil)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(res.Cards) != 3 {
		t.Errorf("got %d cards, want 3", len(res.Cards))
	}
	if len(res.FailedFeeds) != 2 || res.FailedFeeds["sentry"] == "" || res.FailedFeeds["fireballs"] == "" {
		t.Errorf("FailedFeeds = %v", res.FailedFeeds)
	}
}

func TestEventsAllFailed(t *testing.T) {
	feeds := sampleFeeds()
	feeds.fail = map[string]bool{"sentry": true, "fireballs": true, "cad": true, "nhats": true}
	_, err := NewAggregator(feeds, testLogger).Events(context.Background(), visibility.NewObserver(0, 0), nil)
	if !errors.Is(err, ErrAllFeedsFailed) {
		t.Errorf("err = %v, want ErrAllFeedsFailed", err)
	}
}

func TestEventsEmpty(t *testing.T) {
	res, err := NewAggregator(&fakeFeeds{}, testLogger).Events(context.Background(), visibility.NewObserver(0, 0), nil)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if res.Cards == nil || len(res.Cards) != 0 {
		t.Errorf("Cards = %#v, want empty non-nil", res.Cards)
	}
}

func TestRankUndatedAfterDated(t *testing.T) {
	at := func(d int) *time.Time {
		ts := day0.AddDate(0, 0, d)
		return &ts
	}
	card := func(id string, prio int, date *time.Time) Card {
		return Card{Summary: jpl.Summary{ID: id, Date: date}, Priority: prio}
	}

	cards := []Card{
		card("undated-1", 1, nil),
		card("late", 1, at(5)),
		card("mission", 4, at(0)),
		card("undated-2", 1, nil),
		card("early", 1, at(1)),
		card("risk", 3, nil),
	}
	Rank(cards)

	want := []string{"early", "late", "undated-1", "undated-2", "risk", "mission"}
	for i, c := range cards {
		if c.ID != want[i] {
			got := make([]string, len(cards))
			for j, c := range cards {
				got[j] = c.ID
			}
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
