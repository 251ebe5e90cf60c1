package geomag

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/star/droidsat/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func defaultModel() *Model {
	return NewModel(nil, testLogger())
}

// TestWMM2010TestValues checks the test points of the WMM-2010 report at
// 2010.0 and 2012.5. Tolerances are 0.05 degrees and 1 nT.
func TestWMM2010TestValues(t *testing.T) {
	tests := []struct {
		name                string
		year, alt, lat, lon float64
		north, east, down   float64
		decl, incl          float64
	}{
		{"arctic 2010", 2010.0, 0, 80, 0, 6649.5, -714.6, 54346.2, -6.13, 82.98},
		{"equator 2010", 2010.0, 0, 0, 120, 39428.8, 664.9, -11683.8, 0.97, -16.50},
		{"antarctic 2010", 2010.0, 0, -80, 240, 5657.7, 15727.3, -53407.5, 70.21, -72.62},
		{"arctic 2012.5 100km", 2012.5, 100, 80, 0, 6340.9, -625.1, 52261.9, -5.63, 83.05},
		{"equator 2012.5 100km", 2012.5, 100, 0, 120, 37448.1, 559.7, -11044.2, 0.86, -16.43},
		{"antarctic 2012.5 100km", 2012.5, 100, -80, 240, 5535.5, 14765.4, -50626.0, 69.45, -72.70},
		{"vancouver 2010", 2010.0, 0, 49, -122, 17612.2, 5504.1, 51908.2, 17.35, 70.43},
	}

	const angleTol, nTTol = 0.05, 1.0

	m := defaultModel()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := m.FieldAt(tt.lat, tt.lon, tt.year, tt.alt)
			if math.Abs(f.Declination-tt.decl) > angleTol {
				t.Errorf("declination = %.2f, want %.2f", f.Declination, tt.decl)
			}
			if math.Abs(f.Inclination-tt.incl) > angleTol {
				t.Errorf("inclination = %.2f, want %.2f", f.Inclination, tt.incl)
			}
			if math.Abs(f.North-tt.north) > nTTol {
				t.Errorf("north = %.1f nT, want %.1f nT", f.North, tt.north)
			}
			if math.Abs(f.East-tt.east) > nTTol {
				t.Errorf("east = %.1f nT, want %.1f nT", f.East, tt.east)
			}
			if math.Abs(f.Vertical-tt.down) > nTTol {
				t.Errorf("vertical = %.1f nT, want %.1f nT", f.Vertical, tt.down)
			}
		})
	}
}

func TestDeclinationVancouver(t *testing.T) {
	m := defaultModel()
	d := m.Declination(49, -122)
	if d < 16.5 || d > 18.5 {
		t.Errorf("declination at 49N 122W = %.2f°, want about 17-18° east", d)
	}
}

func TestFieldRangesGlobal(t *testing.T) {
	m := defaultModel()
	for lat := -90.0; lat <= 90; lat += 10 {
		for lon := -180.0; lon <= 180; lon += 30 {
			f := m.Field(lat, lon)
			for name, v := range map[string]float64{
				"declination": f.Declination, "inclination": f.Inclination,
				"total": f.Total, "north": f.North, "east": f.East,
			} {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Fatalf("(%v, %v) %s is not finite", lat, lon, name)
				}
			}
			if f.Declination < -180 || f.Declination > 180 {
				t.Errorf("(%v, %v) declination %.2f out of range", lat, lon, f.Declination)
			}
			if f.Inclination < -90 || f.Inclination > 90 {
				t.Errorf("(%v, %v) inclination %.2f out of range", lat, lon, f.Inclination)
			}
			if f.Total < 20000 || f.Total > 70000 {
				t.Errorf("(%v, %v) total %.0f nT outside the Earth's field range", lat, lon, f.Total)
			}
		}
	}
}

func TestIntensityRelations(t *testing.T) {
	m := defaultModel()
	f := m.FieldAt(35, 139, 2012, 1)
	if math.Abs(math.Hypot(f.North, f.East)-f.Horizontal) > 1e-6 {
		t.Errorf("horizontal %.6f != hypot(north, east)", f.Horizontal)
	}
	if math.Abs(math.Hypot(f.Horizontal, f.Vertical)-f.Total) > 1e-6 {
		t.Errorf("total %.6f != hypot(horizontal, vertical)", f.Total)
	}

	accessors := []struct {
		name string
		got  float64
		want float64
	}{
		{"DeclinationAt", m.DeclinationAt(35, 139, 2012, 1), f.Declination},
		{"InclinationAt", m.InclinationAt(35, 139, 2012, 1), f.Inclination},
		{"TotalIntensityAt", m.TotalIntensityAt(35, 139, 2012, 1), f.Total},
		{"HorizontalIntensityAt", m.HorizontalIntensityAt(35, 139, 2012, 1), f.Horizontal},
		{"VerticalIntensityAt", m.VerticalIntensityAt(35, 139, 2012, 1), f.Vertical},
		{"NorthIntensityAt", m.NorthIntensityAt(35, 139, 2012, 1), f.North},
		{"EastIntensityAt", m.EastIntensityAt(35, 139, 2012, 1), f.East},
	}
	for _, a := range accessors {
		if a.got != a.want {
			t.Errorf("%s = %v, want %v", a.name, a.got, a.want)
		}
	}

	ref := m.FieldAt(35, 139, m.ReferenceYear(), 0)
	if got := m.Declination(35, 139); got != ref.Declination {
		t.Errorf("Declination(lat, lon) = %v, want reference-year value %v", got, ref.Declination)
	}
	if got := m.EastIntensity(35, 139); got != ref.East {
		t.Errorf("EastIntensity(lat, lon) = %v, want %v", got, ref.East)
	}
}

// TestGeographicPoles pins the sin(theta) == 0 branch: the pole value must
// match the limit approached along the same meridian.
func TestGeographicPoles(t *testing.T) {
	for _, lat := range []float64{90, -90} {
		for _, lon := range []float64{0, 45, -120} {
			m := defaultModel()
			pole := m.FieldAt(lat, lon, 2011, 0)
			if m.st != 0 {
				t.Fatalf("lat %v: st = %v, want exactly 0 to exercise the polar branch", lat, m.st)
			}

			near := lat - math.Copysign(1e-6, lat)
			limit := m.FieldAt(near, lon, 2011, 0)
			if m.st == 0 {
				t.Fatalf("lat %v: st unexpectedly zero", near)
			}

			if math.Abs(pole.North-limit.North) > 1 || math.Abs(pole.East-limit.East) > 1 {
				t.Errorf("pole (%v, %v): north/east = %.3f/%.3f, limit = %.3f/%.3f",
					lat, lon, pole.North, pole.East, limit.North, limit.East)
			}
			if math.Abs(pole.Vertical-limit.Vertical) > 1 {
				t.Errorf("pole (%v, %v): vertical = %.3f, limit = %.3f", lat, lon, pole.Vertical, limit.Vertical)
			}
		}
	}
}

// TestMemoisationIsTransparent evaluates a sequence that reuses some keys
// and compares bit-for-bit with a model that recomputes everything.
func TestMemoisationIsTransparent(t *testing.T) {
	inputs := [][4]float64{
		{49, -122, 2010, 0},
		{49, -122, 2012.5, 0}, // time only
		{49, 10, 2012.5, 0},   // longitude only
		{49, 10, 2012.5, 3},   // altitude only
		{-33, 10, 2012.5, 3},  // latitude only
		{-33, 10, 2012.5, 3},  // nothing
		{90, 0, 2013, 0},      // pole
		{49, -122, 2010, 0},   // back to the start
	}

	cached := defaultModel()
	fresh := defaultModel()
	for _, in := range inputs {
		fresh.invalidate()
		a := cached.FieldAt(in[0], in[1], in[2], in[3])
		b := fresh.FieldAt(in[0], in[1], in[2], in[3])
		if a != b {
			t.Errorf("input %v: memoised %+v != fresh %+v", in, a, b)
		}
	}
}

func TestSecularVariation(t *testing.T) {
	base := DefaultCoefficients()
	shifted, err := ParseCoefficients(strings.NewReader(formatCOF(base, 5)))
	if err != nil {
		t.Fatalf("ParseCoefficients(shifted): %v", err)
	}
	if shifted.Epoch != base.Epoch+5 {
		t.Fatalf("shifted epoch = %v", shifted.Epoch)
	}

	m1 := NewModelFromCoefficients(base)
	m2 := NewModelFromCoefficients(shifted)
	for _, p := range [][2]float64{{49, -122}, {0, 0}, {-60, 150}} {
		a := m1.FieldAt(p[0], p[1], base.Epoch+5, 0)
		b := m2.FieldAt(p[0], p[1], shifted.Epoch, 0)
		if math.Abs(a.North-b.North) > 1e-4 || math.Abs(a.East-b.East) > 1e-4 || math.Abs(a.Vertical-b.Vertical) > 1e-4 {
			t.Errorf("%v: time-adjusted %+v differs from re-based %+v", p, a, b)
		}
	}

	m := NewModelFromCoefficients(base)
	if m.Field(49, -122) == m.FieldAt(49, -122, base.Epoch+2, 0) {
		t.Error("field did not change with time")
	}
}

// formatCOF renders c in WMM.COF layout with every coefficient propagated
// by years.
func formatCOF(c *Coefficients, years float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "    %.1f            %s        %s\n", c.Epoch+years, c.Model, c.Released)
	for n := 1; n <= MaxDegree; n++ {
		for m := 0; m <= n; m++ {
			fmt.Fprintf(&b, "%3d%3d %.10f %.10f %.10f %.10f\n", n, m,
				c.G(n, m)+years*c.GDot(n, m),
				c.H(n, m)+years*c.HDot(n, m),
				c.GDot(n, m), c.HDot(n, m))
		}
	}
	b.WriteString("999999999999999999999999999999999999999999999999\n")
	return b.String()
}

func TestFallback(t *testing.T) {
	reference := defaultModel().Field(49, -122)
	if !defaultModel().Fallback() {
		t.Error("nil source should report fallback")
	}

	truncated := strings.Join(strings.Split(defaultCOF, "\n")[:40], "\n")
	sources := map[string]string{
		"garbage":   "not a coefficient file",
		"empty":     "",
		"truncated": truncated,
		"bad value": strings.Replace(defaultCOF, "-29496.6", "-29x96.6", 1),
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			m := NewModel(strings.NewReader(src), testLogger())
			if !m.Fallback() {
				t.Fatal("expected fallback to the built-in table")
			}
			if got := m.Field(49, -122); got != reference {
				t.Errorf("fallback field %+v differs from built-in %+v", got, reference)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		m := LoadModelFile("/nonexistent/WMM.COF", testLogger())
		if !m.Fallback() || m.Field(49, -122) != reference {
			t.Error("missing file should fall back to the built-in table")
		}
	})
}

// fallbackCount scrapes the coefficient fallback counter from the metrics
// endpoint.
func fallbackCount(t *testing.T) float64 {
	t.Helper()
	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	for _, line := range strings.Split(w.Body.String(), "\n") {
		if v, ok := strings.CutPrefix(line, "droidsat_geomag_fallbacks_total "); ok {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				t.Fatalf("parsing %q: %v", line, err)
			}
			return n
		}
	}
	t.Fatal("droidsat_geomag_fallbacks_total not exported")
	return 0
}

func TestFallbackIsLoggedAndCounted(t *testing.T) {
	tests := []struct {
		name  string
		build func(*slog.Logger) *Model
		count float64
	}{
		{"nil source", func(l *slog.Logger) *Model { return NewModel(nil, l) }, 1},
		{"empty path", func(l *slog.Logger) *Model { return LoadModelFile("", l) }, 1},
		{"missing file", func(l *slog.Logger) *Model { return LoadModelFile("/nonexistent/WMM.COF", l) }, 1},
		{"garbage", func(l *slog.Logger) *Model { return NewModel(strings.NewReader("junk"), l) }, 1},
		{"valid source", func(l *slog.Logger) *Model { return NewModel(strings.NewReader(defaultCOF), l) }, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

			before := fallbackCount(t)
			tt.build(logger)
			if got := fallbackCount(t) - before; got != tt.count {
				t.Errorf("fallback counter delta = %v, want %v", got, tt.count)
			}
			warned := strings.Contains(buf.String(), `"level":"WARN"`)
			if warned != (tt.count > 0) {
				t.Errorf("warning logged = %v, want %v (log: %s)", warned, tt.count > 0, buf.String())
			}
		})
	}
}

func TestNewModelValidSource(t *testing.T) {
	m := NewModel(strings.NewReader(defaultCOF), testLogger())
	if m.Fallback() {
		t.Fatal("valid source must not fall back")
	}
	if m.Coefficients().Model != "WMM-2010" || m.ReferenceYear() != 2010 {
		t.Errorf("header = %q epoch %v", m.Coefficients().Model, m.ReferenceYear())
	}
	if !m.Valid(2012.5) || m.Valid(2016) {
		t.Error("validity window should be [2010, 2015]")
	}
}

func TestParseCoefficients(t *testing.T) {
	c, err := ParseCoefficients(strings.NewReader(defaultCOF))
	if err != nil {
		t.Fatalf("ParseCoefficients: %v", err)
	}
	if c.Released != "11/20/2009" {
		t.Errorf("released = %q", c.Released)
	}
	if c.G(1, 0) != -29496.6 || c.GDot(1, 0) != 11.6 {
		t.Errorf("g(1,0) = %v, dg = %v", c.G(1, 0), c.GDot(1, 0))
	}
	if c.H(1, 1) != 4944.4 || c.HDot(1, 1) != -25.9 {
		t.Errorf("h(1,1) = %v, dh = %v", c.H(1, 1), c.HDot(1, 1))
	}
	if c.H(2, 0) != 0 || c.HDot(2, 0) != 0 {
		t.Error("m = 0 terms must have no h component")
	}
	// g(12,12) and h(12,11) share no storage despite the packing.
	if c.G(12, 12) != 0.0 || c.H(12, 12) != 0.9 || c.H(12, 11) != -0.2 {
		t.Errorf("g(12,12)=%v h(12,12)=%v h(12,11)=%v", c.G(12, 12), c.H(12, 12), c.H(12, 11))
	}
}

func TestParseCoefficientsErrors(t *testing.T) {
	header := "    2010.0            WMM-2010        11/20/2009\n"
	tests := map[string]string{
		"no terminator":  header + "  1  0  -29496.6       0.0       11.6        0.0\n",
		"bad degree":     header + " 13  0  1 0 0 0\n9999\n",
		"order > degree": header + "  2  3  1 0 0 0\n9999\n",
		"short record":   header + "  1  0  -29496.6\n9999\n",
		"bad epoch":      "epoch WMM\n9999\n",
		"incomplete":     header + "  1  0  -29496.6       0.0       11.6        0.0\n9999\n",
		"duplicate":      header + "  1  0  1 0 0 0\n  1  0  1 0 0 0\n9999\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCoefficients(strings.NewReader(src))
			if !errors.Is(err, ErrMalformedCoefficients) {
				t.Fatalf("error = %v, want ErrMalformedCoefficients", err)
			}
			var ce *CoefficientError
			if !errors.As(err, &ce) {
				t.Errorf("error type %T, want *CoefficientError", err)
			}
		})
	}
}
