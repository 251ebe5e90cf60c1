package skymath

import "math"

// NormalizeAngle0 reduces an angle in radians to the interval (-π, π].
func NormalizeAngle0(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a <= -math.Pi {
		a += twoPi
	} else if a > math.Pi {
		a -= twoPi
	}
	return a
}

// NormalizeAngle180 reduces an angle in radians to the interval [0, 2π).
func NormalizeAngle180(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	// a tiny negative remainder rounds up to exactly 2π after the shift.
	if a >= twoPi {
		a = 0
	}
	return a
}

// NormalizeDegrees reduces an angle in degrees to [0, 360).
func NormalizeDegrees(d float64) float64 {
	return NormalizeAngle180(d*Deg2Rad) * Rad2Deg
}
