// Package skymath holds the stateless numeric helpers shared by the geomagnetic
// model and the sky projection: angle normalisation, spherical and rectangular
// coordinates, spherical trigonometry and sexagesimal formatting.
package skymath

import "math"

const (
	Deg2Rad = math.Pi / 180.0
	Rad2Deg = 180.0 / math.Pi

	twoPi = 2 * math.Pi
)

// Vector is a 3-vector in an arbitrary right-handed frame.
type Vector struct {
	X, Y, Z float64
}

// Dot returns v·w.
func (v Vector) Dot(w Vector) float64 {
	return v.X*w.X + v.Y*w.Y + v.Z*w.Z
}

// Cross returns v×w.
func (v Vector) Cross(w Vector) Vector {
	return Vector{
		X: v.Y*w.Z - v.Z*w.Y,
		Y: v.Z*w.X - v.X*w.Z,
		Z: v.X*w.Y - v.Y*w.X,
	}
}

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func (v Vector) Scale(s float64) Vector {
	return Vector{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

func (v Vector) Add(w Vector) Vector {
	return Vector{X: v.X + w.X, Y: v.Y + w.Y, Z: v.Z + w.Z}
}

func (v Vector) Sub(w Vector) Vector {
	return Vector{X: v.X - w.X, Y: v.Y - w.Y, Z: v.Z - w.Z}
}

// Unit returns v scaled to length 1. The zero vector is returned unchanged.
func (v Vector) Unit() Vector {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// IsZero reports whether all components are exactly zero.
func (v Vector) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}
