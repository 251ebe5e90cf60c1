package skymath

import "math"

// DegreesToDMS splits decimal degrees into degrees, minutes and seconds.
//
// Non-negative values use floor for the degree and minute parts. Negative
// values use ceiling, so every component carries the sign:
// -10.5 becomes (-10, -30, 0). In both cases d + m/60 + s/3600 == deg
// up to rounding.
func DegreesToDMS(deg float64) (d, m, s float64) {
	if deg >= 0 {
		d = math.Floor(deg)
		rem := (deg - d) * 60
		m = math.Floor(rem)
		s = (rem - m) * 60
		return d, m, s
	}
	d = math.Ceil(deg)
	rem := (deg - d) * 60
	m = math.Ceil(rem)
	s = (rem - m) * 60
	return d, m, s
}

// DMSToDegrees is the inverse of DegreesToDMS. A negative sign on any
// component makes the whole value negative, which also accepts the
// "-0° 30′" form where only minutes carry the sign.
func DMSToDegrees(d, m, s float64) float64 {
	v := math.Abs(d) + math.Abs(m)/60 + math.Abs(s)/3600
	if math.Signbit(d) || m < 0 || s < 0 {
		return -v
	}
	return v
}
