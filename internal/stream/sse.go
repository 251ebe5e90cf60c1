// Package stream implements Server-Sent Events (SSE) streaming of projected
// sky frames. Clients connect via GET /api/v1/stream/frames and receive a
// frame whenever the snapshot or the orientation changes, paced to at most
// the requested frame rate.
//
// SSE message format:
//
//	data: {"type":"frame","timestamp":"2026-02-06T04:00:00Z","markers":[...],"grid":[...],...}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","dataset_source":"...","satellites":120,"tle_age_seconds":1800,"fps":5}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval without a
// frame. Reconnecting clients receive a fresh metadata message.
package stream

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/star/droidsat/internal/httputil"
	"github.com/star/droidsat/internal/metrics"
	"github.com/star/droidsat/internal/tle"
	"github.com/star/droidsat/internal/tracker"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // max concurrent streams per IP (default: 10)
	MaxTotal           int           // max concurrent streams overall (default: 1000)
	MaxFPS             float64       // upper bound and default for ?fps (default: 5)
	KeepaliveInterval  time.Duration // keep-alive ping interval (default: 30s)
	TrustProxy         bool          // take the client IP from proxy headers
}

// FrameSource renders the current frame.
type FrameSource interface {
	Frame() tracker.SkyFrame
}

// Handler manages SSE streaming connections.
type Handler struct {
	frames  FrameSource
	store   *tle.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

func NewHandler(frames FrameSource, store *tle.Store, config Config, logger *slog.Logger) *Handler {
	if config.MaxFPS <= 0 {
		config.MaxFPS = 5
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		frames:  frames,
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger,
	}
}

// HandleFrames serves the SSE frame stream.
// GET /api/v1/stream/frames?fps=5
func (h *Handler) HandleFrames(w http.ResponseWriter, r *http.Request) {
	fps := h.config.MaxFPS
	if v := r.URL.Query().Get("fps"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || !(n > 0 && n <= h.config.MaxFPS) {
			httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid fps parameter, must be in (0, %g]", h.config.MaxFPS))
			return
		}
		fps = n
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"fps", fps,
	)

	c := &client{ip: ip, logger: h.logger}
	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
			"messages", c.messagesSent,
			"bytes", c.bytesSent,
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}
	c.w, c.flusher, c.rc = w, flusher, rc

	// Jittered retry interval (3-7s) so a server restart does not cause a
	// reconnection storm.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	if err := c.sendJSON(h.metadata(fps)); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	pace := rate.NewLimiter(rate.Limit(fps), 1)
	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	var last frameKey

	for {
		if err := pace.Wait(ctx); err != nil {
			return
		}

		f := h.frames.Frame()
		key := keyOf(f)
		if key.equal(last) {
			select {
			case <-keepalive.C:
				if err := c.sendKeepalive(); err != nil {
					metrics.IncStreamErrors("send_error")
					h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
					return
				}
			default:
			}
			continue
		}

		if err := c.sendJSON(frameMessage{Type: "frame", SkyFrame: f}); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
			return
		}
		last = key
		keepalive.Reset(h.config.KeepaliveInterval)
	}
}

func (h *Handler) metadata(fps float64) metadataMessage {
	meta := metadataMessage{Type: "metadata", FPS: fps, TLEAge: -1}
	if ds := h.store.Get(); ds != nil {
		meta.DatasetSource = ds.Source
		meta.Satellites = len(ds.Satellites)
		meta.LoadedAt = ds.LoadedAt.UTC().Format(time.RFC3339)
		meta.TLEAge = int(time.Since(ds.LoadedAt).Seconds())
	}
	return meta
}

// frameKey identifies what a frame was rendered from. A frame with the
// same key as the previous one is not sent again.
type frameKey struct {
	valid     bool
	timestamp time.Time
	heading   float64
	pitch     float64
}

func keyOf(f tracker.SkyFrame) frameKey {
	return frameKey{valid: true, timestamp: f.Timestamp, heading: f.Heading, pitch: f.Pitch}
}

func (k frameKey) equal(o frameKey) bool {
	return k.valid == o.valid && k.timestamp.Equal(o.timestamp) &&
		k.heading == o.heading && k.pitch == o.pitch
}

// SSE message payload types.

type metadataMessage struct {
	Type          string  `json:"type"`
	DatasetSource string  `json:"dataset_source,omitempty"`
	Satellites    int     `json:"satellites"`
	LoadedAt      string  `json:"loaded_at,omitempty"`
	TLEAge        int     `json:"tle_age_seconds"`
	FPS           float64 `json:"fps"`
}

type frameMessage struct {
	Type string `json:"type"`
	tracker.SkyFrame
}
