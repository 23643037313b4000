// Package main is the entry point for the batch risk evaluator.
//
// By default it performs a single evaluation run over all configured regions
// and exits; with -interval it keeps running on a fixed schedule until
// interrupted. It shares the service graph of the API server minus the HTTP
// surface.
package main

import (
	"context"
	"flag"
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
	"climarisk/internal/db"
	"climarisk/internal/evaluator"
	"climarisk/internal/observability"
	"climarisk/internal/regions"
	"climarisk/internal/risk"
	"climarisk/internal/types"
	"climarisk/internal/weather"
)

func main() {
	day := flag.Int("day", 0, "forecast day to evaluate (0 = today)")
	interval := flag.Duration("interval", 0, "re-run on this interval instead of exiting (e.g. 1h)")
	flag.Parse()

	if err := run(*day, *interval); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(day int, interval time.Duration) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("climarisk evaluator starting",
		"environment", cfg.Environment,
		"day", day,
		"interval", interval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
		regionStore types.RegionStore
		alertSink   types.AlertSink
	)
	if cfg.Database.URL != "" {
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()
		regionStore = db.NewRegionRepository(pool)
		alertSink = db.NewAlertRepository(pool, cfg.Alerts.DedupWindow, nil)
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

	if interval <= 0 {
		return runOnce(ctx, eval, day, logger)
	}

	// Scheduled mode: run immediately, then on every tick.
	if err := runOnce(ctx, eval, day, logger); err != nil {
		logger.Error("evaluation run failed", "error", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("evaluator stopping")
			return nil
		case <-ticker.C:
			if err := runOnce(ctx, eval, day, logger); err != nil {
				logger.Error("evaluation run failed", "error", err)
			}
		}
	}
}

func runOnce(ctx context.Context, eval *evaluator.Evaluator, day int, logger *slog.Logger) error {
	report, err := eval.Run(ctx, day)
	if err != nil {
		return err
	}
	logger.Info("run report",
		"started_at", report.StartedAt,
		"finished_at", report.FinishedAt,
		"evaluated", report.RegionsEvaluated,
		"failed", report.RegionsFailed,
		"alerts", len(report.Alerts),
	)
	return nil
}

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
