package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/Blood-Moon-Interactive/StarWX/internal/transform"
)

// Propagate takes the Satellite by value, so SGP4 error codes never reach the
// caller. Failures are detected from the output instead: NaN/Inf or an
// implausible orbital radius.

// SGP4Propagator wraps go-satellite for a single object.
type SGP4Propagator struct {
	sat     satellite.Satellite
	noradID int
}

// NewSGP4Propagator initializes SGP4 from TLE lines.
//
// The lines are checked first because go-satellite calls log.Fatal on
// malformed input.
func NewSGP4Propagator(line1, line2 string, noradID int) (*SGP4Propagator, error) {
	if err := validateTLELines(line1, line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", noradID, err)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", noradID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, noradID: noradID}, nil
}

func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

// NORADID returns the catalogue number this propagator was built for.
func (p *SGP4Propagator) NORADID() int {
	return p.noradID
}

// Propagate returns the TEME position in km at t (whole seconds, UTC).
func (p *SGP4Propagator) Propagate(t time.Time) (transform.Vector, error) {
	t = t.UTC()
	pos, _ := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	v := transform.Vector{X: pos.X, Y: pos.Y, Z: pos.Z}
	if !v.Finite() {
		return transform.Vector{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: output is NaN/Inf", p.noradID)
	}
	if !transform.ValidOrbitRadius(v) {
		return transform.Vector{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: unreasonable position magnitude %.1f km",
			p.noradID, math.Round(v.Norm()*10)/10)
	}
	return v, nil
}
