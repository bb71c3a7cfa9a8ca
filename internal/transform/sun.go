package transform

import (
	"math"
	"time"
)

// AUKm is one astronomical unit in kilometres.
const AUKm = 149597870.7

const sunRadiusKm = 696000.0

func deg2rad(d float64) float64 { return d * math.Pi / 180.0 }

func normalize360(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// SunPosition returns the geocentric equatorial position of the Sun at t in
// kilometres, from the Astronomical Almanac low-precision ephemeris
// (about 0.01° over 1950-2050).
func SunPosition(t time.Time) Vector {
	tc := centuriesSinceJ2000(t)

	l0 := normalize360(280.46646 + 36000.76983*tc + 0.0003032*tc*tc)
	m := deg2rad(normalize360(357.52911 + 35999.05029*tc - 0.0001537*tc*tc))
	e := 0.016708634 - 0.000042037*tc - 0.0000001267*tc*tc

	c := (1.914602-0.004817*tc-0.000014*tc*tc)*math.Sin(m) +
		(0.019993-0.000101*tc)*math.Sin(2*m) +
		0.000289*math.Sin(3*m)

	trueLon := l0 + c
	nu := m + deg2rad(c)
	rAU := 1.000001018 * (1 - e*e) / (1 + e*math.Cos(nu))

	omega := deg2rad(125.04 - 1934.136*tc)
	lambda := deg2rad(trueLon - 0.00569 - 0.00478*math.Sin(omega))
	eps := deg2rad(23.439291 - 0.0130042*tc - 0.00000016*tc*tc + 0.000000504*tc*tc*tc + 0.00256*math.Cos(omega))

	r := rAU * AUKm
	return Vector{
		X: r * math.Cos(lambda),
		Y: r * math.Cos(eps) * math.Sin(lambda),
		Z: r * math.Sin(eps) * math.Sin(lambda),
	}
}

// SunDeclination returns the Sun's declination at t in degrees.
func SunDeclination(t time.Time) float64 {
	s := SunPosition(t)
	return math.Asin(s.Z/s.Norm()) * 180.0 / math.Pi
}
