package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/star/droidsat/internal/api"
	"github.com/star/droidsat/internal/auth"
	"github.com/star/droidsat/internal/geomag"
	"github.com/star/droidsat/internal/projection"
	"github.com/star/droidsat/internal/propagation"
	"github.com/star/droidsat/internal/stream"
	"github.com/star/droidsat/internal/tle"
	"github.com/star/droidsat/internal/tracker"
	"github.com/star/droidsat/internal/transform"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("DROIDSAT_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	model := geomag.NewSyncModel(geomag.LoadModelFile(os.Getenv("DROIDSAT_WMM_FILE"), logger))
	logger.Info("geomagnetic model ready", "model", model.Model().String(), "fallback", model.Model().Fallback())

	observer := loadObserver(logger)

	tleCfg := loadTLEConfig(logger)
	store := tle.NewStore()
	var loader *tle.Loader
	if tleCfg.File != "" {
		loader = tle.NewLoader(tleCfg.File, store, tle.NewCache(tleCfg.CacheDir, tleCfg.MaxFiles), logger)
		if err := loader.Load(); err != nil {
			logger.Warn("initial TLE load failed, starting without satellites", "error", err)
		}
	} else {
		logger.Info("no TLE file configured, sky positions disabled")
	}

	prop := propagation.NewPropagator(store, observer, loadPropConfig(logger), logger)
	trk := tracker.New(loadTrackerConfig(logger), prop, store, loader, logger)

	view := tracker.NewView(trk, projection.NewOrientation(), loadScene(logger))
	streamHandler := stream.NewHandler(view, store, loadStreamConfig(logger), logger)

	srv := api.NewServer(addr, logger, authCfg, api.Deps{
		Geomag:  model,
		Tracker: trk,
		View:    view,
		Store:   store,
		Stream:  streamHandler,
		Ready: func() error {
			if tleCfg.File != "" && store.Get() == nil {
				return errors.New("no TLE dataset loaded")
			}
			return nil
		},
	})

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go trk.Start(ctx)

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "tle_file", tleCfg.File)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("DROIDSAT_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("DROIDSAT_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("DROIDSAT_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("DROIDSAT_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

// envFloat returns the named variable as a float, or def when it is unset
// or the value fails valid.
func envFloat(logger *slog.Logger, name string, def float64, valid func(float64) bool) float64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !valid(f) {
		logger.Warn("invalid "+name+" value, using default", "value", v, "default", def)
		return def
	}
	return f
}

// envInt returns the named variable as an integer, or def when it is unset,
// not an integer or below minVal.
func envInt(logger *slog.Logger, name string, def, minVal int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < minVal {
		logger.Warn("invalid "+name+" value, using default", "value", v, "default", def)
		return def
	}
	return n
}

func envSeconds(logger *slog.Logger, name string, def time.Duration) time.Duration {
	return time.Duration(envFloat(logger, name, def.Seconds(), positive) * float64(time.Second))
}

func positive(f float64) bool { return f > 0 }

func loadObserver(logger *slog.Logger) transform.Observer {
	lat := envFloat(logger, "DROIDSAT_OBSERVER_LAT", 49.0, func(f float64) bool { return f >= -90 && f <= 90 })
	lon := envFloat(logger, "DROIDSAT_OBSERVER_LON", -122.0, func(f float64) bool { return f >= -180 && f <= 180 })
	alt := envFloat(logger, "DROIDSAT_OBSERVER_ALT", 0, func(f float64) bool { return f > -500 && f < 10000 })

	logger.Info("observer", "lat", lat, "lon", lon, "alt_m", alt)
	return transform.NewObserver(lat, lon, alt)
}

type tleConfig struct {
	File     string
	CacheDir string
	MaxFiles int
}

func loadTLEConfig(logger *slog.Logger) tleConfig {
	cfg := tleConfig{
		File:     os.Getenv("DROIDSAT_TLE_FILE"),
		CacheDir: "/tmp/droidsat/tle",
		MaxFiles: envInt(logger, "DROIDSAT_TLE_CACHE_MAX_FILES", 5, 1),
	}
	if v := os.Getenv("DROIDSAT_TLE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	logger.Info("TLE config", "file", cfg.File, "cache_dir", cfg.CacheDir, "max_files", cfg.MaxFiles)
	return cfg
}

func loadPropConfig(logger *slog.Logger) propagation.PropConfig {
	cfg := propagation.PropConfig{
		Workers: envInt(logger, "DROIDSAT_PROP_WORKERS", runtime.NumCPU(), 1),
	}
	logger.Info("propagation config", "workers", cfg.Workers)
	return cfg
}

func loadTrackerConfig(logger *slog.Logger) tracker.Config {
	cfg := tracker.Config{
		Interval: envSeconds(logger, "DROIDSAT_REFRESH_INTERVAL", 2*time.Second),
	}
	logger.Info("tracker config", "interval_seconds", cfg.Interval.Seconds())
	return cfg
}

// validGridDensity accepts 0 (grid off) or a spacing of 1 to 90 degrees.
func validGridDensity(f float64) bool {
	return f == 0 || (f >= 1 && f <= 90)
}

func loadScene(logger *slog.Logger) projection.Scene {
	scene := projection.Scene{
		Radius:      envFloat(logger, "DROIDSAT_VIEW_RADIUS", 400, positive),
		Width:       envFloat(logger, "DROIDSAT_VIEW_WIDTH", 800, positive),
		Height:      envFloat(logger, "DROIDSAT_VIEW_HEIGHT", 600, positive),
		GridDensity: envFloat(logger, "DROIDSAT_VIEW_GRID_DENSITY", 15, validGridDensity),
		ClipMargin:  envFloat(logger, "DROIDSAT_VIEW_CLIP_MARGIN", 20, func(f float64) bool { return f >= 0 }),
		TargetID:    envInt(logger, "DROIDSAT_VIEW_TARGET_ID", 0, 0),
	}

	logger.Info("view config",
		"radius", scene.Radius,
		"width", scene.Width,
		"height", scene.Height,
		"grid_density", scene.GridDensity,
		"clip_margin", scene.ClipMargin,
		"target_id", scene.TargetID,
	)
	return scene
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: envInt(logger, "DROIDSAT_STREAM_MAX_CONCURRENT", 10, 1),
		MaxFPS:             envFloat(logger, "DROIDSAT_STREAM_FPS", 5, func(f float64) bool { return f > 0 && f <= 60 }),
		KeepaliveInterval:  envSeconds(logger, "DROIDSAT_STREAM_KEEPALIVE_INTERVAL", 30*time.Second),
	}

	if v := os.Getenv("DROIDSAT_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid DROIDSAT_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_fps", cfg.MaxFPS,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)
	return cfg
}
