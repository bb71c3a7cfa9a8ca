package transform

import (
	"math"
	"time"
)

// Vector is a Cartesian position in kilometres.
type Vector struct {
	X, Y, Z float64
}

// Norm returns the vector length.
func (v Vector) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Dot returns the scalar product.
func (v Vector) Dot(o Vector) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Sub returns v - o.
func (v Vector) Sub(o Vector) Vector {
	return Vector{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v * k.
func (v Vector) Scale(k float64) Vector {
	return Vector{v.X * k, v.Y * k, v.Z * k}
}

// Finite reports whether no component is NaN or infinite.
func (v Vector) Finite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Orbital radius bounds accepted as a physical Earth orbit.
const (
	MinOrbitRadiusKm = 6200.0
	MaxOrbitRadiusKm = 50000.0
)

// ValidOrbitRadius reports whether v is finite and between
// MinOrbitRadiusKm and MaxOrbitRadiusKm from Earth's centre.
func ValidOrbitRadius(v Vector) bool {
	if !v.Finite() {
		return false
	}
	r := v.Norm()
	return r >= MinOrbitRadiusKm && r <= MaxOrbitRadiusKm
}

// TEMEToECEF rotates a TEME position into ECEF at t.
func TEMEToECEF(teme Vector, t time.Time) Vector {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST rotates a TEME position about Z by gmst radians.
// Useful when many positions share one instant.
func TEMEToECEFWithGMST(teme Vector, gmst float64) Vector {
	cosG, sinG := math.Cos(gmst), math.Sin(gmst)
	return Vector{
		X: teme.X*cosG + teme.Y*sinG,
		Y: -teme.X*sinG + teme.Y*cosG,
		Z: teme.Z,
	}
}
