// Package transform converts SGP4 output between reference frames and
// computes the solar geometry needed to decide whether an orbiting object is
// in Earth's shadow.
//
// TEME to ECEF uses a GMST-only rotation (no polar motion or equation of the
// equinoxes). The error is tens of metres, far below what ground-distance
// visibility needs.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 epoch.
const j2000 = 2451545.0

// JulianDate converts t to a Julian Date.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())
	frac := (float64(t.Hour()) +
		float64(t.Minute())/60.0 +
		(float64(t.Second())+float64(t.Nanosecond())/1e9)/3600.0) / 24.0

	// January and February are months 13 and 14 of the previous year.
	if m <= 2 {
		y--
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5 + frac
}

// centuriesSinceJ2000 returns Julian centuries elapsed since J2000.0.
func centuriesSinceJ2000(t time.Time) float64 {
	return (JulianDate(t) - j2000) / 36525.0
}

// GMST returns Greenwich Mean Sidereal Time in radians (IAU-82, Vallado Eq 3-47).
func GMST(t time.Time) float64 {
	tu := centuriesSinceJ2000(t)

	// Seconds of time; 876600h is 3155760000 s.
	sec := 67310.54841 +
		(3155760000.0+8640184.812866)*tu +
		0.093104*tu*tu -
		6.2e-6*tu*tu*tu

	sec = math.Mod(sec, 86400.0)
	if sec < 0 {
		sec += 86400.0
	}
	return sec / 86400.0 * 2.0 * math.Pi
}
