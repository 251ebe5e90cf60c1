package geomag

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/star/droidsat/internal/metrics"
	"github.com/star/droidsat/internal/skymath"
)

// WGS-84 ellipsoid and geomagnetic reference radius, km.
const (
	wgs84A    = 6378.137
	wgs84B    = 6356.7523142
	refRadius = 6371.2
)

const (
	a2 = wgs84A * wgs84A
	b2 = wgs84B * wgs84B
	c2 = a2 - b2
	a4 = a2 * a2
	b4 = b2 * b2
	c4 = a4 - b4
)

// Field is the magnetic field at one point. Angles are in degrees,
// intensities in nanotesla.
type Field struct {
	Declination float64 `json:"declination"` // east positive
	Inclination float64 `json:"inclination"` // down positive
	Total       float64 `json:"total_intensity"`
	Horizontal  float64 `json:"horizontal_intensity"`
	Vertical    float64 `json:"vertical_intensity"` // down positive
	North       float64 `json:"north_intensity"`
	East        float64 `json:"east_intensity"`
}

// Model evaluates a coefficient set. It memoises intermediate terms keyed on
// the previous call's inputs, so a Model must not be shared between
// goroutines without external locking (see SyncModel).
type Model struct {
	coef     *Coefficients
	fallback bool

	// Schmidt-normalised coefficients, packed like Coefficients.
	c, cd matrix
	// Legendre recurrence constants.
	k      matrix
	fn, fm [size]float64

	// Derived state from the previous evaluation.
	tc     matrix // time-adjusted coefficients
	p, dp  matrix // Legendre values and theta derivatives at [m][n]
	pp     [size]float64
	sp, cp [size]float64

	ct, st, r, ca, sa float64

	otime, oalt, olat, olon float64
}

// NewModel builds a model from a WMM.COF stream. A nil source or any parse
// failure falls back to DefaultCoefficients; the failure is logged, counted,
// and never returned.
func NewModel(src io.Reader, logger *slog.Logger) *Model {
	if src == nil {
		metrics.IncGeomagFallbacks()
		logger.Warn("no coefficient source, using built-in table", "model", DefaultCoefficients().Model)
		return newModel(DefaultCoefficients(), true)
	}

	coef, err := ParseCoefficients(src)
	if err != nil {
		metrics.IncGeomagFallbacks()
		logger.Warn("coefficient source rejected, using built-in table",
			"error", err,
			"model", DefaultCoefficients().Model,
		)
		return newModel(DefaultCoefficients(), true)
	}

	logger.Info("coefficients loaded", "model", coef.Model, "epoch", coef.Epoch, "released", coef.Released)
	return newModel(coef, false)
}

// LoadModelFile builds a model from a local WMM.COF file. An empty path or an
// unreadable file falls back to the built-in table like NewModel.
func LoadModelFile(path string, logger *slog.Logger) *Model {
	if path == "" {
		return NewModel(nil, logger)
	}
	f, err := os.Open(path)
	if err != nil {
		metrics.IncGeomagFallbacks()
		logger.Warn("coefficient file unavailable, using built-in table", "path", path, "error", err)
		return newModel(DefaultCoefficients(), true)
	}
	defer f.Close()
	return NewModel(f, logger)
}

// NewModelFromCoefficients builds a model from an already parsed set.
func NewModelFromCoefficients(coef *Coefficients) *Model {
	return newModel(coef, false)
}

// newModel converts the Schmidt semi-normalised Gauss coefficients to the
// unnormalised form used by the recurrence, and primes the derived state.
func newModel(coef *Coefficients, fallback bool) *Model {
	g := &Model{
		coef:     coef,
		fallback: fallback,
		c:        coef.main,
		cd:       coef.rate,
	}

	var snorm matrix
	snorm[0][0] = 1
	for n := 1; n <= MaxDegree; n++ {
		snorm[0][n] = snorm[0][n-1] * float64(2*n-1) / float64(n)
		j := 2.0
		for m := 0; m <= n; m++ {
			g.k[m][n] = float64((n-1)*(n-1)-m*m) / float64((2*n-1)*(2*n-3))
			if m > 0 {
				flnmj := float64(n-m+1) * j / float64(n+m)
				snorm[m][n] = snorm[m-1][n] * math.Sqrt(flnmj)
				j = 1
				g.c[n][m-1] *= snorm[m][n]
				g.cd[n][m-1] *= snorm[m][n]
			}
			g.c[m][n] *= snorm[m][n]
			g.cd[m][n] *= snorm[m][n]
		}
		g.fn[n] = float64(n + 1)
		g.fm[n] = float64(n)
	}
	g.k[1][1] = 0

	g.p[0][0] = 1
	g.pp[0] = 1
	g.cp[0] = 1
	g.invalidate()
	return g
}

// invalidate forgets the previous inputs so the next call recomputes every
// derived term.
func (g *Model) invalidate() {
	nan := math.NaN()
	g.otime, g.oalt, g.olat, g.olon = nan, nan, nan, nan
}

// Coefficients returns the coefficient set in use.
func (g *Model) Coefficients() *Coefficients { return g.coef }

// Fallback reports whether the built-in table replaced the requested source.
func (g *Model) Fallback() bool { return g.fallback }

// ReferenceYear is the decimal year used by the two-argument accessors.
func (g *Model) ReferenceYear() float64 { return g.coef.Epoch }

// Valid reports whether year lies in the model's five-year validity window.
func (g *Model) Valid(year float64) bool {
	return year >= g.coef.Epoch && year <= g.coef.Epoch+5
}

// FieldAt evaluates the field at geodetic latitude and longitude (degrees),
// decimal year and altitude above the WGS-84 ellipsoid (km).
func (g *Model) FieldAt(lat, lon, year, altKm float64) Field {
	return g.evaluate(lat, lon, year, altKm)
}

// Field evaluates at the reference year and zero altitude.
func (g *Model) Field(lat, lon float64) Field {
	return g.evaluate(lat, lon, g.ReferenceYear(), 0)
}

func (g *Model) evaluate(glat, glon, year, alt float64) Field {
	dt := year - g.coef.Epoch
	rlat := glat * skymath.Deg2Rad
	rlon := glon * skymath.Deg2Rad
	srlon := math.Sin(rlon)
	srlat := math.Sin(rlat)
	crlon := math.Cos(rlon)
	crlat := math.Cos(rlat)
	srlat2 := srlat * srlat
	crlat2 := crlat * crlat
	g.sp[1] = srlon
	g.cp[1] = crlon

	geoChanged := alt != g.oalt || glat != g.olat
	timeChanged := year != g.otime

	// Geodetic to geocentric spherical coordinates.
	if geoChanged {
		q := math.Sqrt(a2 - c2*srlat2)
		q1 := alt * q
		q2 := ((q1 + a2) / (q1 + b2)) * ((q1 + a2) / (q1 + b2))
		g.ct = srlat / math.Sqrt(q2*crlat2+srlat2)
		g.st = math.Sqrt(1 - g.ct*g.ct)
		r2 := alt*alt + 2*q1 + (a4-c4*srlat2)/(q*q)
		g.r = math.Sqrt(r2)
		d := math.Sqrt(a2*crlat2 + b2*srlat2)
		g.ca = (alt + d) / g.r
		g.sa = c2 * crlat * srlat / (g.r * d)
	}
	if glon != g.olon {
		for m := 2; m <= MaxDegree; m++ {
			g.sp[m] = g.sp[1]*g.cp[m-1] + g.cp[1]*g.sp[m-1]
			g.cp[m] = g.cp[1]*g.cp[m-1] - g.sp[1]*g.sp[m-1]
		}
	}

	ct, st := g.ct, g.st
	aor := refRadius / g.r
	ar := aor * aor
	var br, bt, bp, bpp float64

	for n := 1; n <= MaxDegree; n++ {
		ar *= aor
		for m := 0; m <= n; m++ {
			if geoChanged {
				g.legendre(n, m)
			}

			if timeChanged {
				g.tc[m][n] = g.c[m][n] + dt*g.cd[m][n]
				if m != 0 {
					g.tc[n][m-1] = g.c[n][m-1] + dt*g.cd[n][m-1]
				}
			}

			par := ar * g.p[m][n]
			var temp1, temp2 float64
			if m == 0 {
				temp1 = g.tc[m][n] * g.cp[m]
				temp2 = g.tc[m][n] * g.sp[m]
			} else {
				temp1 = g.tc[m][n]*g.cp[m] + g.tc[n][m-1]*g.sp[m]
				temp2 = g.tc[m][n]*g.sp[m] - g.tc[n][m-1]*g.cp[m]
			}
			bt -= ar * temp1 * g.dp[m][n]
			bp += g.fm[m] * temp2 * par
			br += g.fn[n] * temp1 * par

			// At the geographic poles bp/st is 0/0; the longitudinal term is
			// carried by a separate recurrence for the m == 1 functions
			// divided by sin(theta).
			if st == 0 && m == 1 {
				if n == 1 {
					g.pp[n] = g.pp[n-1]
				} else {
					g.pp[n] = ct*g.pp[n-1] - g.k[m][n]*g.pp[n-2]
				}
				bpp += g.fm[m] * temp2 * ar * g.pp[n]
			}
		}
	}

	if st == 0 {
		bp = bpp
	} else {
		bp /= st
	}

	// Rotate from geocentric spherical to geodetic north/east/down.
	bx := -bt*g.ca - br*g.sa
	by := bp
	bz := bt*g.sa - br*g.ca

	bh := math.Sqrt(bx*bx + by*by)
	ti := math.Sqrt(bh*bh + bz*bz)

	g.otime = year
	g.oalt = alt
	g.olat = glat
	g.olon = glon

	return Field{
		Declination: math.Atan2(by, bx) * skymath.Rad2Deg,
		Inclination: math.Atan2(bz, bh) * skymath.Rad2Deg,
		Total:       ti,
		Horizontal:  bh,
		Vertical:    bz,
		North:       bx,
		East:        by,
	}
}

// legendre advances the Schmidt quasi-normalised associated Legendre
// function P(n,m) and its theta derivative from lower-degree terms.
func (g *Model) legendre(n, m int) {
	ct, st := g.ct, g.st
	switch {
	case n == m:
		g.p[m][n] = st * g.p[m-1][n-1]
		g.dp[m][n] = st*g.dp[m-1][n-1] + ct*g.p[m-1][n-1]
	case n == 1 && m == 0:
		g.p[m][n] = ct * g.p[m][n-1]
		g.dp[m][n] = ct*g.dp[m][n-1] - st*g.p[m][n-1]
	default:
		if m > n-2 {
			g.p[m][n-2] = 0
			g.dp[m][n-2] = 0
		}
		g.p[m][n] = ct*g.p[m][n-1] - g.k[m][n]*g.p[m][n-2]
		g.dp[m][n] = ct*g.dp[m][n-1] - st*g.p[m][n-1] - g.k[m][n]*g.dp[m][n-2]
	}
}

func (g *Model) String() string {
	return fmt.Sprintf("%s (epoch %.1f)", g.coef.Model, g.coef.Epoch)
}
