// Package geo provides great-circle distance and compass bearing between
// points on a spherical Earth.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for all spherical distances.
const EarthRadiusKm = 6371.0

// Point is a geodetic position in degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`  // [-90, 90]
	Longitude float64 `json:"longitude"` // [-180, 180]
}

// Valid reports whether p is a finite point within latitude/longitude bounds.
// DistanceKm and BearingCompass do not call it; validation belongs to whoever
// constructs the point from user or feed input.
func (p Point) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// Direction is one of the eight compass points.
type Direction string

const (
	North     Direction = "N"
	NorthEast Direction = "NE"
	East      Direction = "E"
	SouthEast Direction = "SE"
	South     Direction = "S"
	SouthWest Direction = "SW"
	West      Direction = "W"
	NorthWest Direction = "NW"
)

// Directions is the lookup table indexed by BearingCompass.
var Directions = [8]Direction{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceKm returns the haversine great-circle distance between a and b.
// Inputs are not range checked; out-of-range or NaN coordinates propagate.
func DistanceKm(a, b Point) float64 {
	φ1 := toRadians(a.Latitude)
	φ2 := toRadians(b.Latitude)
	Δφ := toRadians(b.Latitude - a.Latitude)
	Δλ := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(Δφ/2)*math.Sin(Δφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Bearing returns the initial great-circle bearing from -> to in radians,
// normalized to [0, 2π). Coincident points yield 0.
func Bearing(from, to Point) float64 {
	φ1 := toRadians(from.Latitude)
	φ2 := toRadians(to.Latitude)
	Δλ := toRadians(to.Longitude - from.Longitude)

	y := math.Sin(Δλ) * math.Cos(φ2)
	x := math.Cos(φ1)*math.Sin(φ2) - math.Sin(φ1)*math.Cos(φ2)*math.Cos(Δλ)

	θ := math.Atan2(y, x)
	if θ < 0 {
		θ += 2 * math.Pi
	}
	return θ
}

// BearingCompass quantizes Bearing to a compass point using
// round(θ·4/π + 4) mod 8 over Directions.
//
// The +4 offset shifts the index by half the table, so the label is the
// reciprocal of the true bearing: a target due north of the observer reports S.
func BearingCompass(from, to Point) Direction {
	θ := Bearing(from, to)
	idx := int(math.Round(θ*4/math.Pi+4)) % 8
	return Directions[idx]
}
