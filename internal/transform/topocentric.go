package transform

import (
	"math"

	"github.com/star/droidsat/internal/skymath"
)

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378.137              // semi-major axis (km)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// Observer is a ground observer's location. The ECEF position and the
// rotation into the local horizon frame are precomputed once so they can be
// reused across many satellite lookups.
type Observer struct {
	Lat, Lon float64        // geodetic, radians
	AltKm    float64        // above the ellipsoid
	ECEF     skymath.Vector // km

	sinLat, cosLat float64
	sinLon, cosLon float64
}

// LookAngles holds azimuth, elevation, and range from observer to satellite.
type LookAngles struct {
	Azimuth   float64 // radians, 0 = North, clockwise, [0, 2pi)
	Elevation float64 // radians, 0 = horizon
	RangeKm   float64
}

// NewObserver creates an Observer from geodetic latitude and longitude in
// degrees and altitude in metres above the WGS-84 ellipsoid.
func NewObserver(latDeg, lonDeg, altM float64) Observer {
	lat := latDeg * skymath.Deg2Rad
	lon := lonDeg * skymath.Deg2Rad
	altKm := altM / 1000.0

	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	sinLon, cosLon := math.Sin(lon), math.Cos(lon)

	// Radius of curvature in the prime vertical.
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Observer{
		Lat:   lat,
		Lon:   lon,
		AltKm: altKm,
		ECEF: skymath.Vector{
			X: (N + altKm) * cosLat * cosLon,
			Y: (N + altKm) * cosLat * sinLon,
			Z: (N*(1-wgs84E2) + altKm) * sinLat,
		},
		sinLat: sinLat,
		cosLat: cosLat,
		sinLon: sinLon,
		cosLon: cosLon,
	}
}

// Horizon rotates an ECEF offset vector into the observer's horizon frame,
// returned as (north, east, up). The axis order is chosen so that
// skymath.RectangularToSpherical yields azimuth clockwise from north.
func (o Observer) Horizon(d skymath.Vector) skymath.Vector {
	// SEZ rotation (Vallado 4.4) with south negated.
	south := o.sinLat*o.cosLon*d.X + o.sinLat*o.sinLon*d.Y - o.cosLat*d.Z
	east := -o.sinLon*d.X + o.cosLon*d.Y
	up := o.cosLat*o.cosLon*d.X + o.cosLat*o.sinLon*d.Y + o.sinLat*d.Z
	return skymath.Vector{X: -south, Y: east, Z: up}
}

// LookAngles computes azimuth, elevation, and range from the observer to a
// satellite at sat (ECEF, km).
func (o Observer) LookAngles(sat skymath.Vector) LookAngles {
	az, el, r := skymath.RectangularToSpherical(o.Horizon(sat.Sub(o.ECEF)))
	return LookAngles{Azimuth: az, Elevation: el, RangeKm: r}
}
