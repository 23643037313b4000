// Package main is the entry point for the climate risk API server.
//
// It loads configuration, assembles the service graph (weather chain, air
// quality resolver, risk engine, region store, batch evaluator), mounts the
// HTTP routes, and serves until interrupted. With DATABASE_URL set the
// region store and alert sink are PostgreSQL-backed; otherwise they run on
// local files.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"climarisk/internal/airquality"
	"climarisk/internal/alerts"
	"climarisk/internal/config"
	"climarisk/internal/core"
	"climarisk/internal/db"
	"climarisk/internal/evaluator"
	"climarisk/internal/observability"
	"climarisk/internal/regions"
	"climarisk/internal/risk"
	"climarisk/internal/types"
	"climarisk/internal/weather"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("climarisk API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	var metrics *observability.Metrics
	if cfg.Observability.EnableMetrics {
		metrics = observability.NewMetrics(cfg.Observability.MetricNamespace)
	}

	weatherCfg := weather.ClientConfig{
		HTTPClient:   &http.Client{Timeout: cfg.Weather.RequestTimeout},
		PrimaryURL:   cfg.Weather.PrimaryBaseURL,
		SecondaryURL: cfg.Weather.SecondaryBaseURL,
		CacheTTL:     cfg.Weather.CacheTTL,
		Logger:       logger,
	}
	airCfg := airquality.ResolverConfig{
		HTTPClient:   &http.Client{Timeout: cfg.AirQuality.RequestTimeout},
		BaseURL:      cfg.AirQuality.BaseURL,
		APIKey:       cfg.AirQuality.APIKey,
		RadiusMeters: cfg.AirQuality.RadiusMeters,
		Logger:       logger,
	}
	if metrics != nil {
		weatherCfg.FallbackCounter = metrics.WeatherFallbacks
		airCfg.MissCounter = metrics.AirQualityMisses
	}
	weatherClient := weather.NewClient(weatherCfg)
	airResolver := airquality.NewResolver(airCfg)

	var (
		regionStore  types.RegionStore
		alertSink    types.AlertSink
		healthProbes []core.HealthProbe
		closePool    func()
	)

	if cfg.Database.URL != "" {
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		closePool = pool.Close
		regionStore = db.NewRegionRepository(pool)
		alertSink = db.NewAlertRepository(pool, cfg.Alerts.DedupWindow, nil)
		healthProbes = append(healthProbes, core.ProbeFunc{
			ProbeName: "database",
			Fn:        pool.Ping,
		})
		logger.Info("using postgres-backed stores")
	} else {
		fileStore, err := regions.NewFileStore(cfg.Regions.File)
		if err != nil {
			return fmt.Errorf("loading regions from %s: %w", cfg.Regions.File, err)
		}
		fileSink, err := alerts.NewFileSink(alerts.FileSinkConfig{
			Path:        cfg.Alerts.File,
			RotateBytes: cfg.Alerts.RotateBytes,
			DedupWindow: cfg.Alerts.DedupWindow,
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("opening alert sink: %w", err)
		}
		regionStore = fileStore
		alertSink = fileSink
		logger.Info("using file-backed stores",
			"regions_file", cfg.Regions.File,
			"alerts_file", cfg.Alerts.File,
		)
	}

	riskService := risk.NewService(risk.ServiceConfig{
		Weather:      weatherClient,
		AirQuality:   airResolver,
		Regions:      regionStore,
		ForecastDays: cfg.Weather.ForecastDays,
		Logger:       logger,
	})

	eval := evaluator.New(evaluator.Config{
		Scorer:      riskService,
		Regions:     regionStore,
		Sink:        alertSink,
		RiskConfig:  cfg.Risk.RiskConfig(),
		Concurrency: cfg.Risk.EvalConcurrency,
		Metrics:     metrics,
		Logger:      logger,
	})

	healthProbes = append(healthProbes, core.ProbeFunc{
		ProbeName: "regions",
		Fn: func(ctx context.Context) error {
			_, err := regionStore.ListRegions(ctx)
			return err
		},
	})

	srv, err := core.NewServer(core.ServerConfig{
		Config:       cfg,
		Risk:         riskService,
		Regions:      regionStore,
		Evaluator:    eval,
		Logger:       logger,
		Metrics:      metrics,
		HealthProbes: healthProbes,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.MountRoutes()

	err = runHTTPServer(srv, cfg, logger)
	if closePool != nil {
		closePool()
	}
	return err
}

// runHTTPServer serves until a shutdown signal or listener error, then
// drains in-flight requests with a 10-second deadline.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
