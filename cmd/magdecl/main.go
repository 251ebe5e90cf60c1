// Command magdecl prints the geomagnetic field at a location and date.
//
//	magdecl -lat 49:15:00 -lon -123.1 -date 2012-06-01
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/star/droidsat/internal/geomag"
	"github.com/star/droidsat/internal/skymath"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if err := run(os.Args[1:], os.Stdout, logger, time.Now); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "magdecl:", err)
		}
		os.Exit(2)
	}
}

type options struct {
	lat, lon float64
	year     float64
	altKm    float64
	cofPath  string
	decimals int
	asJSON   bool
}

func parseArgs(args []string, stderr io.Writer, now func() time.Time) (options, error) {
	fs := flag.NewFlagSet("magdecl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		opts             options
		latStr, lonStr   string
		dateStr, yearStr string
	)
	fs.StringVar(&latStr, "lat", "", "geodetic latitude, decimal degrees or D:M:S (north positive)")
	fs.StringVar(&lonStr, "lon", "", "longitude, decimal degrees or D:M:S (east positive)")
	fs.StringVar(&dateStr, "date", "", "date as YYYY-MM-DD[THH:MM[:SS]] (default now)")
	fs.StringVar(&yearStr, "year", "", "decimal year, overrides -date")
	fs.Float64Var(&opts.altKm, "alt", 0, "altitude above the WGS-84 ellipsoid, km")
	fs.StringVar(&opts.cofPath, "cof", "", "WMM.COF coefficient file (default built-in table)")
	fs.IntVar(&opts.decimals, "decimals", 1, "decimals for angle seconds and intensities")
	fs.BoolVar(&opts.asJSON, "json", false, "print JSON instead of text")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	var err error
	if opts.lat, err = parseCoordinate("lat", latStr, 90); err != nil {
		return opts, err
	}
	if opts.lon, err = parseCoordinate("lon", lonStr, 180); err != nil {
		return opts, err
	}

	switch {
	case yearStr != "":
		if opts.year, err = skymath.ParseNumber(yearStr); err != nil {
			return opts, fmt.Errorf("parsing -year: %w", err)
		}
	case dateStr != "":
		t, err := skymath.ParseDateTime(dateStr)
		if err != nil {
			return opts, fmt.Errorf("parsing -date: %w", err)
		}
		opts.year = geomag.DecimalYear(t)
	default:
		opts.year = geomag.DecimalYear(now())
	}
	return opts, nil
}

func parseCoordinate(name, s string, limit float64) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("-%s is required", name)
	}
	v, err := skymath.ParseDMS(s)
	if err != nil {
		return 0, fmt.Errorf("parsing -%s: %w", name, err)
	}
	if v < -limit || v > limit {
		return 0, fmt.Errorf("-%s %v out of range ±%g", name, v, limit)
	}
	return v, nil
}

type result struct {
	Lat            float64      `json:"lat"`
	Lon            float64      `json:"lon"`
	Year           float64      `json:"year"`
	AltKm          float64      `json:"alt_km"`
	Model          string       `json:"model"`
	WithinValidity bool         `json:"within_validity"`
	Field          geomag.Field `json:"field"`
}

func run(args []string, stdout io.Writer, logger *slog.Logger, now func() time.Time) error {
	opts, err := parseArgs(args, os.Stderr, now)
	if err != nil {
		return err
	}

	m := geomag.LoadModelFile(opts.cofPath, logger)
	res := result{
		Lat:            opts.lat,
		Lon:            opts.lon,
		Year:           opts.year,
		AltKm:          opts.altKm,
		Model:          m.String(),
		WithinValidity: m.Valid(opts.year),
		Field:          m.FieldAt(opts.lat, opts.lon, opts.year, opts.altKm),
	}
	if !res.WithinValidity {
		logger.Warn("date outside model validity window", "year", opts.year, "model", res.Model)
	}

	if opts.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return writeText(stdout, res, opts.decimals)
}

func writeText(w io.Writer, r result, decimals int) error {
	f := r.Field
	n := func(v float64) string { return skymath.FormatNumber(v, decimals) }
	d := func(v float64) string { return skymath.FormatDMS(v, decimals) }

	_, err := fmt.Fprintf(w,
		"model        %s\n"+
			"location     %s %s, %s km\n"+
			"year         %s\n"+
			"declination  %s\n"+
			"inclination  %s\n"+
			"total        %s nT\n"+
			"horizontal   %s nT\n"+
			"north        %s nT\n"+
			"east         %s nT\n"+
			"vertical     %s nT\n",
		r.Model,
		d(r.Lat), d(r.Lon), n(r.AltKm),
		skymath.FormatNumber(r.Year, 3),
		d(f.Declination),
		d(f.Inclination),
		n(f.Total),
		n(f.Horizontal),
		n(f.North),
		n(f.East),
		n(f.Vertical),
	)
	return err
}
