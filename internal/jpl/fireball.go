package jpl

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

const (
	fireballDateLayout = "2006-01-02 15:04:05"
	fireballWindowDays = 30
)

// Fireball is one bolide report from fireball.api.
type Fireball struct {
	Date time.Time `json:"date"`
	// EnergyE10J is the total radiated energy in units of 10^10 J.
	EnergyE10J     float64 `json:"energy_e10j"`
	ImpactEnergyKt float64 `json:"impact_energy_kt"`
	// Latitude and Longitude keep the feed's "<deg>°<hemisphere>" form and
	// are empty when the report has no location.
	Latitude    string   `json:"latitude,omitempty"`
	Longitude   string   `json:"longitude,omitempty"`
	AltitudeKm  *float64 `json:"altitude_km,omitempty"`
	VelocityKmS *float64 `json:"velocity_km_s,omitempty"`
}

// Event returns the classifier view of f.
func (f Fireball) Event() visibility.Event {
	return visibility.AtmosphericEvent{Latitude: f.Latitude, Longitude: f.Longitude}
}

// Summary returns the display form of f.
func (f Fireball) Summary() Summary {
	date := f.Date
	where := "an unknown location"
	if f.Latitude != "" && f.Longitude != "" {
		where = f.Latitude + " " + f.Longitude
	}
	return Summary{
		ID:          "fireball-" + slug(f.Date.Format(fireballDateLayout)),
		Name:        "Fireball " + f.Date.Format("2006-01-02 15:04"),
		Date:        &date,
		Description: fmt.Sprintf("Fireball event with %g kt impact energy detected at %s", f.ImpactEnergyKt, where),
		Label:       "Atmospheric Impact",
	}
}

// Fireballs returns up to limit reports dated within 30 days of now, oldest
// first.
func (c *Client) Fireballs(ctx context.Context, limit int) ([]Fireball, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	t, err := fetch[table](ctx, c, "fireball.api", q)
	if err != nil {
		return nil, err
	}
	all, err := decodeFireballs(t)
	if err != nil {
		return nil, err
	}
	return filterFireballs(all, c.now(), limit), nil
}

func decodeFireballs(t table) ([]Fireball, error) {
	if err := t.require("date", "energy", "impact-e"); err != nil {
		return nil, fmt.Errorf("fireball.api: %w", err)
	}
	out := make([]Fireball, 0, len(t.Data))
	for _, r := range t.rows() {
		date, err := time.Parse(fireballDateLayout, r.str("date"))
		if err != nil {
			continue
		}
		f := Fireball{
			Date:        date.UTC(),
			Latitude:    hemisphere(r.str("lat"), r.str("lat-dir")),
			Longitude:   hemisphere(r.str("lon"), r.str("lon-dir")),
			AltitudeKm:  optFloat(r.str("alt")),
			VelocityKmS: optFloat(r.str("vel")),
		}
		f.EnergyE10J, _ = r.float("energy")
		f.ImpactEnergyKt, _ = r.float("impact-e")
		out = append(out, f)
	}
	return out, nil
}

func hemisphere(value, dir string) string {
	if value == "" || dir == "" {
		return ""
	}
	return value + "°" + dir
}

func filterFireballs(all []Fireball, now time.Time, limit int) []Fireball {
	out := make([]Fireball, 0, len(all))
	for _, f := range all {
		d := daysBetween(f.Date, now)
		if d >= -fireballWindowDays && d <= fireballWindowDays {
			out = append(out, f)
		}
	}
	slices.SortStableFunc(out, func(a, b Fireball) int { return a.Date.Compare(b.Date) })
	return truncate(out, limit)
}

func truncate[S ~[]E, E any](s S, limit int) S {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
