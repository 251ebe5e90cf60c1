// Package projection maps sky directions onto a screen plane with a
// stereographic projection centred on the viewing direction, and holds the
// orientation state that selects that centre.
package projection

import "math"

// nudge replaces a heading or pitch of exactly zero. A zero centre makes the
// antipodal point indeterminate.
const nudge = 0.001

// Point is a screen coordinate in pixels, origin at the top left.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Finite reports whether both coordinates are usable numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Projector computes stereographic screen coordinates around a centre
// (lambda0, theta1). The sine and cosine of theta1 are cached whenever the
// pitch changes, so Project costs one sin/cos pair per angle of the target.
//
// A Projector is not safe for concurrent mutation.
type Projector struct {
	Radius float64 // pixels
	Width  float64
	Height float64

	lambda0 float64
	theta1  float64
	sinT1   float64
	cosT1   float64
}

// NewProjector returns a projector looking at heading 0, pitch 0 (both
// nudged).
func NewProjector(radius, width, height float64) *Projector {
	p := &Projector{Radius: radius, Width: width, Height: height}
	p.SetCenter(0, 0)
	return p
}

// SetCenter sets heading and pitch in radians.
func (p *Projector) SetCenter(lambda0, theta1 float64) {
	p.SetHeading(lambda0)
	p.SetPitch(theta1)
}

// SetHeading sets the centre longitude (azimuth) in radians.
func (p *Projector) SetHeading(lambda0 float64) {
	if lambda0 == 0 {
		lambda0 = nudge
	}
	p.lambda0 = lambda0
}

// SetPitch sets the centre latitude (elevation) in radians and refreshes the
// cached trigonometry.
func (p *Projector) SetPitch(theta1 float64) {
	if theta1 == 0 {
		theta1 = nudge
	}
	p.theta1 = theta1
	p.sinT1 = math.Sin(theta1)
	p.cosT1 = math.Cos(theta1)
}

// Center returns the effective heading and pitch after nudging.
func (p *Projector) Center() (lambda0, theta1 float64) {
	return p.lambda0, p.theta1
}

// Project maps (lambda, theta) in radians to screen pixels. The antipode of
// the centre has no image; its coordinates come back infinite or NaN and
// callers are expected to check Point.Finite.
func (p *Projector) Project(lambda, theta float64) Point {
	sinT := math.Sin(theta)
	cosT := math.Cos(theta)
	cosDL := math.Cos(lambda - p.lambda0)

	k := 2 * p.Radius / (1 + p.sinT1*sinT + p.cosT1*cosT*cosDL)

	return Point{
		X: k*cosT*math.Sin(lambda-p.lambda0) + p.Width/2,
		Y: -k*(p.cosT1*sinT-p.sinT1*cosT*cosDL) + p.Height/2,
	}
}

// Within reports whether pt lies inside the viewport grown by margin pixels
// on every side.
func (p *Projector) Within(pt Point, margin float64) bool {
	return pt.X >= -margin && pt.X <= p.Width+margin &&
		pt.Y >= -margin && pt.Y <= p.Height+margin
}
