// Package visibility decides whether a tracked object or catalogued event is
// observable from a ground location and explains the decision.
package visibility

import (
	"strings"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/geo"
)

// Illumination is the lighting state of a tracked object at a sample time.
type Illumination string

const (
	Daylight            Illumination = "daylight"
	Night               Illumination = "night"
	UnknownIllumination Illumination = "unknown"
)

// ParseIllumination maps feed vocabulary onto Illumination. wheretheiss.at
// reports "eclipsed" for an object in Earth's shadow.
func ParseIllumination(s string) Illumination {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daylight", "sunlit":
		return Daylight
	case "eclipsed", "nighttime", "night":
		return Night
	default:
		return UnknownIllumination
	}
}

// TimestampedPosition is one sample of a moving object.
type TimestampedPosition struct {
	Time         time.Time    `json:"time"`
	Point        geo.Point    `json:"point"`
	AltitudeKm   float64      `json:"altitude_km"`
	Illumination Illumination `json:"illumination"`
}

// Observer is the ground location visibility is evaluated from.
type Observer struct {
	Location geo.Point `json:"location"`
}

// NewObserver returns an Observer at the given coordinates in degrees.
func NewObserver(lat, lon float64) Observer {
	return Observer{Location: geo.Point{Latitude: lat, Longitude: lon}}
}

// Tier is an informational ranking attached to catalogue categories.
// It never affects IsVisible.
type Tier string

const (
	TierHigh      Tier = "high"
	TierMedium    Tier = "medium"
	TierNormal    Tier = "normal"
	TierLow       Tier = "low"
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
)

// Result is the outcome of classifying one event for one observer.
type Result struct {
	IsVisible  bool          `json:"is_visible"`
	DistanceKm float64       `json:"distance_km"`
	Direction  geo.Direction `json:"direction,omitempty"`
	Reason     string        `json:"reason"`
	Tier       Tier          `json:"tier,omitempty"`
}
