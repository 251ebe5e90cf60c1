package transform

import (
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/solar"

	"github.com/star/droidsat/internal/skymath"
)

// SunDirectionECEF returns the unit vector from the Earth's centre towards
// the apparent Sun, rotated into ECEF with GMST.
func SunDirectionECEF(t time.Time) skymath.Vector {
	t = t.UTC()
	ra, dec := solar.ApparentEquatorial(julian.TimeToJD(t))

	eci := skymath.Vector{
		X: dec.Cos() * ra.Cos(),
		Y: dec.Cos() * ra.Sin(),
		Z: dec.Sin(),
	}
	return rotateZ(eci, GMST(t))
}

// IsSunlit reports whether pos (ECEF, km) is outside the Earth's shadow,
// modelled as a cylinder of equatorial radius behind the Earth along sun.
// sun must be a unit vector.
func IsSunlit(pos, sun skymath.Vector) bool {
	along := pos.Dot(sun)
	if along >= 0 {
		return true
	}
	return pos.Sub(sun.Scale(along)).Norm() > wgs84A
}
