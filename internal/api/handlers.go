package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/star/droidsat/internal/geomag"
	"github.com/star/droidsat/internal/httputil"
	"github.com/star/droidsat/internal/metrics"
	"github.com/star/droidsat/internal/projection"
	"github.com/star/droidsat/internal/propagation"
	"github.com/star/droidsat/internal/skymath"
	"github.com/star/droidsat/internal/tle"
	"github.com/star/droidsat/internal/tracker"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 4 << 10

type geomagResponse struct {
	Lat            float64      `json:"lat"`
	Lon            float64      `json:"lon"`
	Year           float64      `json:"year"`
	AltKm          float64      `json:"alt_km"`
	Model          string       `json:"model"`
	WithinValidity bool         `json:"within_validity"`
	DeclinationDMS string       `json:"declination_dms"`
	Field          geomag.Field `json:"field"`
}

// geomagHandler evaluates the field at ?lat=&lon=[&year=][&alt=].
// Latitude and longitude accept decimal degrees or D:M:S; year accepts a
// decimal year or a date-time and defaults to now; alt is km, default 0.
func geomagHandler(model *geomag.SyncModel, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		lat, err := parseAngle(q, "lat", 90)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		lon, err := parseAngle(q, "lon", 180)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		year := geomag.DecimalYear(now())
		if v := q.Get("year"); v != "" {
			year, err = parseYear(v)
			if err != nil {
				httputil.WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		var alt float64
		if v := q.Get("alt"); v != "" {
			alt, err = skymath.ParseNumber(v)
			if err != nil || alt < -10 || alt > 1000 {
				httputil.WriteError(w, http.StatusBadRequest, "invalid alt parameter, must be -10..1000 km")
				return
			}
		}

		f := model.FieldAt(lat, lon, year, alt)
		m := model.Model()
		httputil.WriteJSON(w, http.StatusOK, geomagResponse{
			Lat:            lat,
			Lon:            lon,
			Year:           year,
			AltKm:          alt,
			Model:          m.String(),
			WithinValidity: m.Valid(year),
			DeclinationDMS: skymath.FormatDMS(f.Declination, 0),
			Field:          f,
		})
	}
}

func parseAngle(q url.Values, name string, limit float64) (float64, error) {
	v := q.Get(name)
	if v == "" {
		return 0, fmt.Errorf("missing %s parameter", name)
	}
	deg, err := skymath.ParseDMS(v)
	if err != nil || math.Abs(deg) > limit {
		return 0, fmt.Errorf("invalid %s parameter, must be within ±%g degrees", name, limit)
	}
	return deg, nil
}

func parseYear(v string) (float64, error) {
	if y, err := skymath.ParseNumber(v); err == nil {
		if y < 1900 || y > 2100 {
			return 0, fmt.Errorf("invalid year parameter, must be 1900..2100")
		}
		return y, nil
	}
	t, err := skymath.ParseDateTime(v)
	if err != nil {
		return 0, fmt.Errorf("invalid year parameter: %w", err)
	}
	return geomag.DecimalYear(t), nil
}

func getOrientationHandler(view *tracker.View) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, view.Orientation().State())
	}
}

// orientationUpdate holds raw sensor degrees; absent fields are left alone.
type orientationUpdate struct {
	Heading *float64 `json:"heading"`
	Pitch   *float64 `json:"pitch"`
	Roll    *float64 `json:"roll"`
}

type orientationResponse struct {
	Applied map[string]bool            `json:"applied"`
	State   projection.OrientationState `json:"state"`
}

// putOrientationHandler applies a sensor update subject to the lock and the
// roll filter. Ignored values are reported, not rejected.
func putOrientationHandler(view *tracker.View, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u orientationUpdate
		if err := decodeJSON(w, r, &u); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		o := view.Orientation()
		applied := make(map[string]bool, 3)
		if u.Heading != nil {
			applied["heading"] = o.SetHeading(*u.Heading)
		}
		if u.Pitch != nil {
			applied["pitch"] = o.SetPitch(*u.Pitch)
		}
		if u.Roll != nil {
			applied["roll"] = o.SetRoll(*u.Roll)
		}

		outcome := "applied"
		if o.Locked() {
			outcome = "locked"
		}
		metrics.IncOrientationUpdates(outcome)
		logger.Debug("orientation update", "component", "api", "outcome", outcome, "applied", applied)

		httputil.WriteJSON(w, http.StatusOK, orientationResponse{Applied: applied, State: o.State()})
	}
}

func putLockHandler(view *tracker.View, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Locked *bool `json:"locked"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if body.Locked == nil {
			httputil.WriteError(w, http.StatusBadRequest, "missing locked field")
			return
		}

		o := view.Orientation()
		o.SetLocked(*body.Locked)
		logger.Info("orientation lock changed", "component", "api", "locked", *body.Locked)
		httputil.WriteJSON(w, http.StatusOK, o.State())
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

type positionsResponse struct {
	Timestamp  time.Time                `json:"timestamp"`
	Count      int                      `json:"count"`
	Positions  []propagation.SkyPosition `json:"positions"`
	AgeSeconds float64                  `json:"age_seconds"`
}

func positionsHandler(t *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := t.Snapshot()
		if snap == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "no sky positions yet")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, positionsResponse{
			Timestamp:  snap.Timestamp,
			Count:      len(snap.Positions),
			Positions:  snap.Positions,
			AgeSeconds: time.Since(snap.Timestamp).Seconds(),
		})
	}
}

func frameHandler(view *tracker.View) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, view.Frame())
	}
}

func tleMetadataHandler(store *tle.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds := store.Get()
		if ds == nil {
			httputil.WriteError(w, http.StatusServiceUnavailable, "no TLE dataset loaded")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, ds.Metadata())
	}
}
