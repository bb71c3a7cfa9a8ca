package visibility

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrMissingCoordinate is returned for an empty coordinate field.
	ErrMissingCoordinate = errors.New("missing coordinate")
	// ErrInvalidCoordinate is returned when a field does not match <number>°<hemisphere>.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// Axis selects which hemisphere letters a coordinate may carry.
type Axis int

const (
	LatitudeAxis Axis = iota
	LongitudeAxis
)

var coordPattern = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)\s*°\s*([NSEWnsew])$`)

// ParseCoordinate parses "<number>°<N|S>" (latitude) or "<number>°<E|W>"
// (longitude) into signed decimal degrees, south and west negative.
func ParseCoordinate(s string, axis Axis) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrMissingCoordinate
	}

	m := coordPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}

	hemi := strings.ToUpper(m[2])
	switch axis {
	case LatitudeAxis:
		if hemi != "N" && hemi != "S" {
			return 0, fmt.Errorf("%w: %q is not a latitude", ErrInvalidCoordinate, s)
		}
		if hemi == "S" {
			v = -v
		}
	case LongitudeAxis:
		if hemi != "E" && hemi != "W" {
			return 0, fmt.Errorf("%w: %q is not a longitude", ErrInvalidCoordinate, s)
		}
		if hemi == "W" {
			v = -v
		}
	}
	return v, nil
}

// FormatCoordinate is the inverse of ParseCoordinate, used to build
// AtmosphericEvent fields from feed columns.
func FormatCoordinate(value, hemisphere string) string {
	value = strings.TrimSpace(value)
	hemisphere = strings.TrimSpace(hemisphere)
	if value == "" || hemisphere == "" {
		return ""
	}
	return value + "°" + hemisphere
}
