// Package api wires the HTTP routes of the service.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/droidsat/internal/auth"
	"github.com/star/droidsat/internal/geomag"
	"github.com/star/droidsat/internal/health"
	"github.com/star/droidsat/internal/metrics"
	"github.com/star/droidsat/internal/stream"
	"github.com/star/droidsat/internal/tle"
	"github.com/star/droidsat/internal/tracker"
)

// Deps are the components the routes serve from.
type Deps struct {
	Geomag  *geomag.SyncModel
	Tracker *tracker.Tracker
	View    *tracker.View
	Store   *tle.Store
	Stream  *stream.Handler
	Ready   func() error // readiness check; nil means always ready
	Now     func() time.Time
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           newHandler(logger, authCfg, deps),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// newHandler builds the route table and the middleware chain:
// metrics -> logging -> auth -> mux.
func newHandler(logger *slog.Logger, authCfg auth.Config, deps Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(deps.Ready))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/geomag", geomagHandler(deps.Geomag, deps.Now))
	mux.HandleFunc("GET /api/v1/orientation", getOrientationHandler(deps.View))
	mux.HandleFunc("PUT /api/v1/orientation", putOrientationHandler(deps.View, logger))
	mux.HandleFunc("PUT /api/v1/orientation/lock", putLockHandler(deps.View, logger))
	mux.HandleFunc("GET /api/v1/sky/positions", positionsHandler(deps.Tracker))
	mux.HandleFunc("GET /api/v1/sky/frame", frameHandler(deps.View))
	mux.HandleFunc("GET /api/v1/tle/metadata", tleMetadataHandler(deps.Store))
	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/frames", deps.Stream.HandleFrames)
	}

	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
