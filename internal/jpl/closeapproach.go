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
	KmPerAU = 149_597_870.7

	// VeryCloseAU is the distance under which an approach is labelled
	// "Very Close".
	VeryCloseAU = 0.05

	cadDateLayout = "2006-Jan-02 15:04"
	cadPastDays   = 7
	cadFutureDays = 90
)

// CloseApproach is one entry of cad.api.
type CloseApproach struct {
	Designation string    `json:"designation"`
	Date        time.Time `json:"date"`
	DistanceAU  float64   `json:"distance_au"`
	DistanceKm  float64   `json:"distance_km"`
	DistMinAU   *float64  `json:"distance_min_au,omitempty"`
	DistMaxAU   *float64  `json:"distance_max_au,omitempty"`
	VRelKmS     *float64  `json:"v_rel_km_s,omitempty"`
	VInfKmS     *float64  `json:"v_inf_km_s,omitempty"`
	// H is the absolute magnitude, absent for some comets.
	H *float64 `json:"h,omitempty"`
}

// VeryClose reports whether the approach is nearer than VeryCloseAU.
func (a CloseApproach) VeryClose() bool { return a.DistanceAU < VeryCloseAU }

// Event returns the classifier view of a. A missing H never ranks as bright.
func (a CloseApproach) Event() visibility.Event {
	h := 99.0
	if a.H != nil {
		h = *a.H
	}
	return visibility.CloseApproach{DistanceKm: a.DistanceKm, AbsoluteMagnitude: h}
}

// Summary returns the display form of a.
func (a CloseApproach) Summary() Summary {
	date := a.Date
	label := "Close Approach"
	if a.VeryClose() {
		label = "Very Close"
	}
	return Summary{
		ID:          "close-approach-" + slug(a.Designation),
		Name:        a.Designation,
		Date:        &date,
		Description: fmt.Sprintf("%s will pass within %.0f km of Earth", a.Designation, a.DistanceKm),
		Label:       label,
	}
}

// CloseApproaches returns up to limit approaches dated from 7 days ago to 90
// days ahead, soonest first.
func (c *Client) CloseApproaches(ctx context.Context, limit int) ([]CloseApproach, error) {
	now := c.now().UTC()
	q := url.Values{}
	q.Set("date-min", now.AddDate(0, 0, -cadPastDays).Format("2006-01-02"))
	q.Set("date-max", now.AddDate(0, 0, cadFutureDays).Format("2006-01-02"))
	q.Set("sort", "date")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit*2))
	}
	t, err := fetch[table](ctx, c, "cad.api", q)
	if err != nil {
		return nil, err
	}
	all, err := decodeCloseApproaches(t)
	if err != nil {
		return nil, err
	}
	return filterCloseApproaches(all, now, limit), nil
}

func decodeCloseApproaches(t table) ([]CloseApproach, error) {
	if err := t.require("des", "cd", "dist"); err != nil {
		return nil, fmt.Errorf("cad.api: %w", err)
	}
	out := make([]CloseApproach, 0, len(t.Data))
	for _, r := range t.rows() {
		date, err := time.Parse(cadDateLayout, r.str("cd"))
		if err != nil {
			continue
		}
		dist, ok := r.float("dist")
		if !ok {
			continue
		}
		out = append(out, CloseApproach{
			Designation: r.str("des"),
			Date:        date.UTC(),
			DistanceAU:  dist,
			DistanceKm:  dist * KmPerAU,
			DistMinAU:   optFloat(r.str("dist_min")),
			DistMaxAU:   optFloat(r.str("dist_max")),
			VRelKmS:     optFloat(r.str("v_rel")),
			VInfKmS:     optFloat(r.str("v_inf")),
			H:           optFloat(r.str("h")),
		})
	}
	return out, nil
}

func filterCloseApproaches(all []CloseApproach, now time.Time, limit int) []CloseApproach {
	out := make([]CloseApproach, 0, len(all))
	for _, a := range all {
		d := daysBetween(now, a.Date)
		if d >= -cadPastDays && d <= cadFutureDays {
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b CloseApproach) int { return a.Date.Compare(b.Date) })
	return truncate(out, limit)
}
