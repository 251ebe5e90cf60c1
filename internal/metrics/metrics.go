package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "droidsat_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "droidsat_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	geomagEvaluationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "droidsat_geomag_evaluations_total",
		Help: "Geomagnetic field evaluations.",
	})

	geomagEvaluationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "droidsat_geomag_evaluation_seconds",
		Help:    "Time spent evaluating the geomagnetic model, including lock wait.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 8),
	})

	geomagFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "droidsat_geomag_fallbacks_total",
		Help: "Coefficient sources rejected in favour of the built-in table.",
	})

	propagationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "droidsat_propagation_seconds",
		Help:    "Duration of one sky-position batch.",
		Buckets: prometheus.DefBuckets,
	})

	propagationSatellitesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "droidsat_propagation_satellites_total",
			Help: "Satellites propagated, by result.",
		},
		[]string{"result"},
	)

	propagationWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "droidsat_propagation_workers",
		Help: "Size of the propagation worker pool.",
	})

	tleDatasetCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "droidsat_tle_dataset_satellites",
		Help: "Satellites in the loaded TLE dataset.",
	})

	tleDatasetAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "droidsat_tle_dataset_age_seconds",
		Help: "Age of the loaded TLE dataset.",
	})

	snapshotSatellites = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "droidsat_snapshot_satellites",
		Help: "Satellites in the current sky-position snapshot.",
	})

	snapshotRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "droidsat_snapshot_refresh_total",
			Help: "Sky-position snapshot rebuilds, by result.",
		},
		[]string{"result"},
	)

	framesRenderedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "droidsat_frames_rendered_total",
		Help: "Projected frames rendered.",
	})

	markersSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "droidsat_markers_skipped_total",
		Help: "Sky objects dropped from a frame because their projection was not usable.",
	})

	orientationUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "droidsat_orientation_updates_total",
			Help: "Orientation updates received, by outcome.",
		},
		[]string{"outcome"},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "droidsat_stream_connections_total",
			Help: "SSE connection events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "droidsat_streams_active",
		Help: "Open SSE frame streams.",
	})

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "droidsat_stream_messages_total",
		Help: "SSE messages sent.",
	})

	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "droidsat_stream_bytes_total",
		Help: "SSE bytes sent.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "droidsat_stream_errors_total",
			Help: "SSE errors, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		geomagEvaluationsTotal,
		geomagEvaluationSeconds,
		geomagFallbacksTotal,
		propagationSeconds,
		propagationSatellitesTotal,
		propagationWorkers,
		tleDatasetCount,
		tleDatasetAgeSeconds,
		snapshotSatellites,
		snapshotRefreshTotal,
		framesRenderedTotal,
		markersSkippedTotal,
		orientationUpdatesTotal,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordGeomagEvaluation(d time.Duration) {
	geomagEvaluationsTotal.Inc()
	geomagEvaluationSeconds.Observe(d.Seconds())
}

func IncGeomagFallbacks() { geomagFallbacksTotal.Inc() }

// RecordPropagation records one batch duration and its per-satellite outcomes.
func RecordPropagation(d time.Duration, success, failed int) {
	propagationSeconds.Observe(d.Seconds())
	propagationSatellitesTotal.WithLabelValues("success").Add(float64(success))
	propagationSatellitesTotal.WithLabelValues("error").Add(float64(failed))
}

func SetPropagationWorkersActive(n int) { propagationWorkers.Set(float64(n)) }

func SetTLEDatasetCount(n int) { tleDatasetCount.Set(float64(n)) }

func SetTLEDatasetAge(seconds float64) { tleDatasetAgeSeconds.Set(seconds) }

func SetSnapshotSatellites(n int) { snapshotSatellites.Set(float64(n)) }

// IncSnapshotRefresh counts a tracker rebuild; result is "ok" or "error".
func IncSnapshotRefresh(result string) { snapshotRefreshTotal.WithLabelValues(result).Inc() }

func IncFramesRendered() { framesRenderedTotal.Inc() }

func AddMarkersSkipped(n int) { markersSkippedTotal.Add(float64(n)) }

// IncOrientationUpdates counts an orientation push; outcome is "applied"
// or "locked".
func IncOrientationUpdates(outcome string) { orientationUpdatesTotal.WithLabelValues(outcome).Inc() }

func IncStreamConnections(event string) { streamConnectionsTotal.WithLabelValues(event).Inc() }

func IncStreamsActive() { streamsActive.Inc() }

func DecStreamsActive() { streamsActive.Dec() }

func IncStreamMessages() { streamMessagesTotal.Inc() }

func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

func IncStreamErrors(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }

// knownRoutes are label values used verbatim; anything else collapses to
// "other" to bound label cardinality.
var knownRoutes = map[string]bool{
	"/":                        true,
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/geomag":           true,
	"/api/v1/orientation":      true,
	"/api/v1/orientation/lock": true,
	"/api/v1/sky/positions":    true,
	"/api/v1/sky/frame":        true,
	"/api/v1/stream/frames":    true,
	"/api/v1/tle/metadata":     true,
}

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so SSE handlers keep working behind
// the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
