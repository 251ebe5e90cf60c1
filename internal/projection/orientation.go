package projection

import (
	"math"
	"sync/atomic"

	"github.com/star/droidsat/internal/skymath"
)

// maxRoll is the largest raw roll magnitude, in degrees, that is accepted.
const maxRoll = 20.0

// Orientation is the viewing direction pushed by a sensor layer. Values are
// in degrees. One goroutine writes, any number read; every field is an
// atomic so readers never observe a torn value. The lock is a best-effort
// gate: a setter racing with SetLocked may apply one update either side.
type Orientation struct {
	heading atomic.Uint64
	pitch   atomic.Uint64
	roll    atomic.Uint64
	locked  atomic.Bool
}

// OrientationState is a point-in-time copy of an Orientation.
type OrientationState struct {
	Heading float64 `json:"heading"`
	Pitch   float64 `json:"pitch"`
	Roll    float64 `json:"roll"`
	Locked  bool    `json:"locked"`
}

func NewOrientation() *Orientation {
	return &Orientation{}
}

func loadFloat(v *atomic.Uint64) float64 { return math.Float64frombits(v.Load()) }

func storeFloat(v *atomic.Uint64, f float64) { v.Store(math.Float64bits(f)) }

// SetHeading stores the heading. It reports false, leaving the value
// unchanged, while the orientation is locked.
func (o *Orientation) SetHeading(deg float64) bool {
	if o.locked.Load() {
		return false
	}
	storeFloat(&o.heading, deg)
	return true
}

// SetPitch converts a raw device pitch into a view pitch with
// pitch = -raw - 90. Results beyond +/-90 are reflected with
// pitch -= pitch - 90, which always lands on 90.
func (o *Orientation) SetPitch(rawDeg float64) bool {
	if o.locked.Load() {
		return false
	}
	pitch := -rawDeg - 90
	if math.Abs(pitch) > 90 {
		pitch -= pitch - 90
	}
	storeFloat(&o.pitch, pitch)
	return true
}

// SetRoll stores the roll when |rawDeg| < 20; larger readings are dropped.
func (o *Orientation) SetRoll(rawDeg float64) bool {
	if o.locked.Load() || math.Abs(rawDeg) >= maxRoll {
		return false
	}
	storeFloat(&o.roll, rawDeg)
	return true
}

func (o *Orientation) SetLocked(locked bool) { o.locked.Store(locked) }

func (o *Orientation) Locked() bool { return o.locked.Load() }

func (o *Orientation) Heading() float64 { return loadFloat(&o.heading) }

func (o *Orientation) Pitch() float64 { return loadFloat(&o.pitch) }

func (o *Orientation) Roll() float64 { return loadFloat(&o.roll) }

func (o *Orientation) State() OrientationState {
	return OrientationState{
		Heading: o.Heading(),
		Pitch:   o.Pitch(),
		Roll:    o.Roll(),
		Locked:  o.Locked(),
	}
}

// Center returns the projection centre (heading, pitch) in radians.
func (o *Orientation) Center() Center {
	return Center{
		Heading: o.Heading() * skymath.Deg2Rad,
		Pitch:   o.Pitch() * skymath.Deg2Rad,
	}
}

// Center is a projection centre in radians.
type Center struct {
	Heading float64 `json:"heading"`
	Pitch   float64 `json:"pitch"`
}
