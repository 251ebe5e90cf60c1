package propagation

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"testing"
	"time"

	"github.com/star/droidsat/internal/tle"
	"github.com/star/droidsat/internal/transform"
)

// ISS TLE (epoch 2024, will still propagate reasonably for near-future times).
const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"
)

// Starlink TLE (typical LEO constellation satellite).
const (
	starlinkLine1 = "1 44713U 19074A   24100.50000000  .00001000  00000-0  10000-4 0  9995"
	starlinkLine2 = "2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    05"
)

var testTime = time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testObserver() transform.Observer {
	return transform.NewObserver(49, -122, 0)
}

func checkSkyPosition(t *testing.T, pos SkyPosition) {
	t.Helper()
	if math.IsNaN(pos.Azimuth) || pos.Azimuth < 0 || pos.Azimuth >= 2*math.Pi {
		t.Errorf("NORAD %d: azimuth %v outside [0, 2pi)", pos.NORADID, pos.Azimuth)
	}
	if math.IsNaN(pos.Elevation) || math.Abs(pos.Elevation) > math.Pi/2 {
		t.Errorf("NORAD %d: elevation %v outside [-pi/2, pi/2]", pos.NORADID, pos.Elevation)
	}
	// LEO is never further than an Earth diameter plus orbit height.
	if pos.RangeKm < 300 || pos.RangeKm > 14000 {
		t.Errorf("NORAD %d: range %.1f km implausible", pos.NORADID, pos.RangeKm)
	}
}

func TestPropagateSingle(t *testing.T) {
	prop, err := NewSGP4Propagator(issLine1, issLine2, 25544)
	if err != nil {
		t.Fatalf("NewSGP4Propagator failed: %v", err)
	}

	teme, err := prop.Propagate(testTime)
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}

	// ISS orbit: ~6371 + 420 km.
	mag := teme.Position.Norm()
	if mag < 6500 || mag > 7000 {
		t.Errorf("TEME position magnitude = %.1f km, expected ~6791 km (ISS orbit)", mag)
	}

	ecef := transform.TEMEToECEF(teme, testTime)
	if !transform.ValidPosition(ecef.Position) {
		t.Errorf("ECEF position failed validation: %+v", ecef.Position)
	}
	if math.Abs(ecef.Position.Norm()-mag) > 1e-6 {
		t.Errorf("ECEF magnitude = %.6f km, TEME magnitude = %.6f km (should match)", ecef.Position.Norm(), mag)
	}
}

func TestPropagateInvalidTLE(t *testing.T) {
	tests := []struct {
		name         string
		line1, line2 string
	}{
		{"garbage", "invalid line 1", "invalid line 2"},
		{"swapped lines", issLine2, issLine1},
		{"short line2", issLine1, issLine2[:60]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSGP4Propagator(tt.line1, tt.line2, 99999); err == nil {
				t.Fatal("expected error for invalid TLE, got nil")
			}
		})
	}
}

func TestWorkerPoolBatch(t *testing.T) {
	pool := NewWorkerPool(4, testLogger())

	entries := []tle.TLEEntry{
		{NORADID: 25544, Name: "ISS", Line1: issLine1, Line2: issLine2},
		{NORADID: 44713, Name: "STARLINK-1007", Line1: starlinkLine1, Line2: starlinkLine2},
	}

	positions, successCount, errorCount := pool.PropagateBatch(context.Background(), entries, nil, testObserver(), testTime)
	if errorCount > 0 {
		t.Logf("errors: %d (may be expected for synthetic TLE)", errorCount)
	}
	if successCount == 0 {
		t.Fatal("expected at least one successful propagation")
	}
	if len(positions) != successCount {
		t.Errorf("len(positions) = %d, successCount = %d", len(positions), successCount)
	}

	for _, pos := range positions {
		checkSkyPosition(t, pos)
	}
}

func TestWorkerPoolUsesCachedPropagator(t *testing.T) {
	pool := NewWorkerPool(1, testLogger())
	prop, err := NewSGP4Propagator(issLine1, issLine2, 25544)
	if err != nil {
		t.Fatal(err)
	}

	// The entry lines are garbage; only the cached propagator can succeed.
	entries := []tle.TLEEntry{{NORADID: 25544, Name: "ISS", Line1: "x", Line2: "y"}}
	props := map[int]*SGP4Propagator{25544: prop}

	positions, ok, failed := pool.PropagateBatch(context.Background(), entries, props, testObserver(), testTime)
	if ok != 1 || failed != 0 || len(positions) != 1 {
		t.Fatalf("ok=%d failed=%d positions=%d, want 1/0/1", ok, failed, len(positions))
	}
	if positions[0].Name != "ISS" {
		t.Errorf("Name = %q, want ISS", positions[0].Name)
	}
}

func TestWorkerPoolCancellation(t *testing.T) {
	pool := NewWorkerPool(2, testLogger())

	entries := make([]tle.TLEEntry, 100)
	for i := range entries {
		entries[i] = tle.TLEEntry{
			NORADID: 25544 + i,
			Name:    "TEST",
			Line1:   issLine1,
			Line2:   issLine2,
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	positions, _, _ := pool.PropagateBatch(ctx, entries, nil, testObserver(), testTime)
	if len(positions) >= len(entries) {
		t.Errorf("expected fewer results with cancelled context, got %d/%d", len(positions), len(entries))
	}
}

func newTestPropagator(entries []tle.TLEEntry) *Propagator {
	store := tle.NewStore()
	store.Set(&tle.TLEDataset{
		Source:     "test",
		LoadedAt:   time.Now(),
		Satellites: entries,
	})
	return NewPropagator(store, testObserver(), PropConfig{Workers: 2}, testLogger())
}

func TestPropagatorSnapshot(t *testing.T) {
	prop := newTestPropagator([]tle.TLEEntry{
		{NORADID: 44713, Name: "STARLINK-1007", Line1: starlinkLine1, Line2: starlinkLine2},
		{NORADID: 25544, Name: "ISS (ZARYA)", Line1: issLine1, Line2: issLine2},
	})

	snap, err := prop.PropagateToTime(context.Background(), testTime)
	if err != nil {
		t.Fatalf("PropagateToTime failed: %v", err)
	}
	if !snap.Timestamp.Equal(testTime) {
		t.Errorf("Timestamp = %v, want %v", snap.Timestamp, testTime)
	}
	if len(snap.Positions) == 0 || snap.Positions[0].NORADID != 25544 {
		t.Fatalf("positions not sorted by NORAD ID or ISS missing: %+v", snap.Positions)
	}
	for i := 1; i < len(snap.Positions); i++ {
		if snap.Positions[i-1].NORADID >= snap.Positions[i].NORADID {
			t.Errorf("positions out of order at %d", i)
		}
	}

	objs := snap.Objects()
	if len(objs) != len(snap.Positions) {
		t.Fatalf("Objects() len = %d, want %d", len(objs), len(snap.Positions))
	}
	iss := snap.Positions[0]
	checkSkyPosition(t, iss)
	if objs[0].ID != 25544 || objs[0].Name != "ISS (ZARYA)" ||
		objs[0].Azimuth != iss.Azimuth || objs[0].Elevation != iss.Elevation || objs[0].Sunlit != iss.Sunlit {
		t.Errorf("Objects()[0] = %+v does not match %+v", objs[0], iss)
	}
}

func TestPropagatorCachesPropagators(t *testing.T) {
	prop := newTestPropagator([]tle.TLEEntry{
		{NORADID: 25544, Name: "ISS", Line1: issLine1, Line2: issLine2},
	})
	ctx := context.Background()

	if _, err := prop.PropagateToTime(ctx, testTime); err != nil {
		t.Fatal(err)
	}
	first := prop.sgp4.Load()
	if _, err := prop.PropagateToTime(ctx, testTime.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if prop.sgp4.Load() != first {
		t.Error("propagator cache rebuilt for an unchanged dataset")
	}
}

func TestPropagatorNoDataset(t *testing.T) {
	prop := NewPropagator(tle.NewStore(), testObserver(), PropConfig{Workers: 2}, testLogger())

	_, err := prop.PropagateToTime(context.Background(), time.Now())
	if !errors.Is(err, ErrNoDataset) {
		t.Fatalf("err = %v, want ErrNoDataset", err)
	}
}

func TestNilSnapshotObjects(t *testing.T) {
	var s *Snapshot
	if s.Objects() != nil {
		t.Error("nil snapshot should yield no objects")
	}
}

func BenchmarkPropagate1000(b *testing.B) {
	entries := make([]tle.TLEEntry, 1000)
	for i := range entries {
		entries[i] = tle.TLEEntry{
			NORADID: 25544 + i,
			Name:    "TEST",
			Line1:   issLine1,
			Line2:   issLine2,
		}
	}

	prop := newTestPropagator(entries)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := prop.PropagateToTime(ctx, testTime); err != nil {
			b.Fatal(err)
		}
	}
}
