package skymath

import "math"

// nearlyParallel is the |cos| above which SphericalDistance switches from
// acos to asin of the cross product; acos loses precision near 0° and 180°.
const nearlyParallel = 0.9998

// SphericalToRectangular converts azimuth (longitude) a, elevation (latitude) b
// and radius r to rectangular coordinates. Angles are in radians.
func SphericalToRectangular(a, b, r float64) Vector {
	if a == 0 && b == 0 && r == 0 {
		return Vector{}
	}
	cb := math.Cos(b)
	return Vector{
		X: r * cb * math.Cos(a),
		Y: r * cb * math.Sin(a),
		Z: r * math.Sin(b),
	}
}

// RectangularToSpherical is the inverse of SphericalToRectangular. The
// azimuth is returned in [0, 2π) and the elevation in [-π/2, π/2]. The origin
// maps to (0, 0, 0).
func RectangularToSpherical(v Vector) (a, b, r float64) {
	if v.IsZero() {
		return 0, 0, 0
	}
	rho := math.Hypot(v.X, v.Y)
	r = math.Sqrt(rho*rho + v.Z*v.Z)
	b = math.Atan2(v.Z, rho)
	if rho == 0 {
		return 0, b, r
	}
	a = NormalizeAngle180(math.Atan2(v.Y, v.X))
	return a, b, r
}

// SphericalAngle returns the angle at vertex v2 of the spherical triangle
// (v1, v2, v3), measured from the great circle towards v1 to the one towards
// v3, in [0, 2π).
//
// The local frame has z = -v2, x along the part of v1 orthogonal to v2 and
// y = z × x; the result is the longitude of v3 in that frame.
func SphericalAngle(v1, v2, v3 Vector) float64 {
	u2 := v2.Unit()
	ez := u2.Scale(-1)
	ex := v1.Sub(u2.Scale(v1.Dot(u2))).Unit()
	ey := ez.Cross(ex)

	local := Vector{X: v3.Dot(ex), Y: v3.Dot(ey), Z: v3.Dot(ez)}
	a, _, _ := RectangularToSpherical(local)
	return a
}

// SphericalDistance returns the angle between v1 and v2 in [0, π].
func SphericalDistance(v1, v2 Vector) float64 {
	u1 := v1.Unit()
	u2 := v2.Unit()

	c := u1.Dot(u2)
	if math.Abs(c) > nearlyParallel {
		s := math.Asin(math.Min(u1.Cross(u2).Norm(), 1))
		if c < 0 {
			return math.Pi - s
		}
		return s
	}
	return math.Acos(c)
}
