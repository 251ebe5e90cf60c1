package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

var fixedNow = func() time.Time { return time.Date(2012, 7, 2, 0, 0, 0, 0, time.UTC) }

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  bool
		wantLat  float64
		wantLon  float64
		wantYear float64
	}{
		{"decimal", []string{"-lat", "49", "-lon", "-122", "-year", "2011.5"}, false, 49, -122, 2011.5},
		{"dms", []string{"-lat", "49:30", "-lon", "-122:15", "-year", "2011"}, false, 49.5, -122.25, 2011},
		{"date", []string{"-lat", "0", "-lon", "0", "-date", "2011-01-01"}, false, 0, 0, 2011},
		{"default year", []string{"-lat", "0", "-lon", "0"}, false, 0, 0, 2012 + 183.0/366},
		{"missing lat", []string{"-lon", "0"}, true, 0, 0, 0},
		{"lat out of range", []string{"-lat", "95", "-lon", "0"}, true, 0, 0, 0},
		{"bad lon", []string{"-lat", "0", "-lon", "east"}, true, 0, 0, 0},
		{"bad date", []string{"-lat", "0", "-lon", "0", "-date", "2011/01-01"}, true, 0, 0, 0},
		{"unknown flag", []string{"-lat", "0", "-lon", "0", "-zoom", "2"}, true, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseArgs(tt.args, io.Discard, fixedNow)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if math.Abs(opts.lat-tt.wantLat) > 1e-9 || math.Abs(opts.lon-tt.wantLon) > 1e-9 {
				t.Errorf("lat/lon = %v/%v, want %v/%v", opts.lat, opts.lon, tt.wantLat, tt.wantLon)
			}
			if math.Abs(opts.year-tt.wantYear) > 1e-9 {
				t.Errorf("year = %v, want %v", opts.year, tt.wantYear)
			}
		})
	}
}

func TestRunText(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-lat", "49", "-lon", "-122", "-year", "2012"}, &out, testLogger(), fixedNow); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"declination  1", "WMM", "total", " nT\n"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunJSON(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-lat", "49", "-lon", "-122", "-year", "2012", "-json"}, &out, testLogger(), fixedNow); err != nil {
		t.Fatalf("run: %v", err)
	}

	var res result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.WithinValidity {
		t.Error("2012 reported outside the model validity window")
	}
	if res.Field.Declination < 15 || res.Field.Declination > 20 {
		t.Errorf("declination = %v, want roughly 17 degrees east", res.Field.Declination)
	}
}
