// Package transform provides the coordinate frames between an SGP4 state
// vector and an observer's sky: TEME to ECEF, the observer's horizon frame,
// and the Sun direction used for the sunlit flag.
//
// TEME to ECEF is a GMST-only rotation (TEME -> PEF ~ ECEF). Polar motion
// and the equation of equinoxes are ignored, which is well under a pixel at
// any projection radius the service uses.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"

	"github.com/star/droidsat/internal/skymath"
)

// StateVector is a position (km) and velocity (km/s) in one frame.
type StateVector struct {
	Position skymath.Vector
	Velocity skymath.Vector
}

// TEMEToECEF transforms a TEME state vector to ECEF at the given UTC time.
func TEMEToECEF(teme StateVector, t time.Time) StateVector {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST transforms TEME to ECEF using a precomputed GMST angle
// (radians), so a batch propagated to one instant shares a single GMST.
//
//	r_ECEF = R3(θ) r_TEME
//	v_ECEF = R3(θ) v_TEME - ω × r_ECEF
func TEMEToECEFWithGMST(teme StateVector, gmst float64) StateVector {
	pos := rotateZ(teme.Position, gmst)
	vel := rotateZ(teme.Velocity, gmst)

	// ω × r = [-ω y, ω x, 0]
	vel.X += OmegaEarth * pos.Y
	vel.Y -= OmegaEarth * pos.X

	return StateVector{Position: pos, Velocity: vel}
}

// rotateZ applies R3(angle), a frame rotation about the Z axis.
func rotateZ(v skymath.Vector, angle float64) skymath.Vector {
	c, s := math.Cos(angle), math.Sin(angle)
	return skymath.Vector{
		X: v.X*c + v.Y*s,
		Y: -v.X*s + v.Y*c,
		Z: v.Z,
	}
}

// Bounds for ValidPosition, km from the Earth's centre.
const (
	minOrbitRadiusKm = 6200.0
	maxOrbitRadiusKm = 50000.0
)

// ValidPosition reports whether an ECEF position (km) is finite and between
// the Earth's surface and a little beyond GEO.
func ValidPosition(pos skymath.Vector) bool {
	for _, c := range [...]float64{pos.X, pos.Y, pos.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	mag := pos.Norm()
	return mag >= minOrbitRadiusKm && mag <= maxOrbitRadiusKm
}
