package jpl

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/Blood-Moon-Interactive/StarWX/internal/visibility"
)

const (
	MaxMissionDeltaVKmS    = 15
	MaxMissionDurationDays = 1000
)

// MissionTarget is a near-Earth object from the NHATS accessibility study.
type MissionTarget struct {
	Designation  string   `json:"designation"`
	FullName     string   `json:"full_name,omitempty"`
	MinDeltaVKmS float64  `json:"min_delta_v_km_s"`
	DurationDays int      `json:"duration_days"`
	H            *float64 `json:"h,omitempty"`
	MinSizeM     *float64 `json:"min_size_m,omitempty"`
	MaxSizeM     *float64 `json:"max_size_m,omitempty"`
	Trajectories int      `json:"trajectories"`
	ObsStart     string   `json:"observation_start,omitempty"`
}

// Event returns the classifier view of m.
func (m MissionTarget) Event() visibility.Event {
	return visibility.MissionTarget{DeltaVKmS: m.MinDeltaVKmS}
}

// Summary returns the display form of m. NHATS targets carry no event date.
func (m MissionTarget) Summary() Summary {
	return Summary{
		ID:          "nhats-" + slug(m.Designation),
		Name:        m.Designation,
		Description: fmt.Sprintf("%s is accessible with ΔV of %g km/s", m.Designation, m.MinDeltaVKmS),
		Label:       "Mission Target",
	}
}

type nhatsPayload struct {
	Data []struct {
		Des      flexString `json:"des"`
		FullName flexString `json:"fullname"`
		H        flexString `json:"h"`
		MinSize  flexString `json:"min_size"`
		MaxSize  flexString `json:"max_size"`
		MinDV    struct {
			DV  flexString `json:"dv"`
			Dur flexString `json:"dur"`
		} `json:"min_dv"`
		NViaTraj flexString `json:"n_via_traj"`
		ObsStart flexString `json:"obs_start"`
	} `json:"data"`
}

// NHATS returns up to limit targets reachable with ΔV under 15 km/s on
// missions shorter than 1000 days, cheapest first.
func (c *Client) NHATS(ctx context.Context, limit int) ([]MissionTarget, error) {
	p, err := fetch[nhatsPayload](ctx, c, "nhats.api", nil)
	if err != nil {
		return nil, err
	}
	return filterNHATS(decodeNHATS(p), limit), nil
}

func decodeNHATS(p nhatsPayload) []MissionTarget {
	out := make([]MissionTarget, 0, len(p.Data))
	for _, d := range p.Data {
		dv, ok := d.MinDV.DV.float()
		if !ok {
			continue
		}
		dur, err := strconv.Atoi(string(d.MinDV.Dur))
		if err != nil {
			continue
		}
		n, _ := strconv.Atoi(string(d.NViaTraj))
		out = append(out, MissionTarget{
			Designation:  string(d.Des),
			FullName:     string(d.FullName),
			MinDeltaVKmS: dv,
			DurationDays: dur,
			H:            optFloat(string(d.H)),
			MinSizeM:     optFloat(string(d.MinSize)),
			MaxSizeM:     optFloat(string(d.MaxSize)),
			Trajectories: n,
			ObsStart:     string(d.ObsStart),
		})
	}
	return out
}

func filterNHATS(all []MissionTarget, limit int) []MissionTarget {
	out := make([]MissionTarget, 0, len(all))
	for _, m := range all {
		if m.MinDeltaVKmS < MaxMissionDeltaVKmS && m.DurationDays < MaxMissionDurationDays {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b MissionTarget) int {
		return cmp.Compare(a.MinDeltaVKmS, b.MinDeltaVKmS)
	})
	return truncate(out, limit)
}
