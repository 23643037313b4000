// Package evaluator implements the batch risk evaluation run: it scores
// every configured region concurrently, aggregates threshold breaches per
// risk index, and emits at most one alert per index per run.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"climarisk/internal/observability"
	"climarisk/internal/types"
)

// extremeRegionCount is the number of breached regions at which an alert
// escalates from high to extreme severity.
const extremeRegionCount = 3

// DefaultConcurrency bounds the per-run region fan-out when none is configured.
const DefaultConcurrency = 8

// RegionScorer computes risk for a single region. Satisfied by *risk.Service.
type RegionScorer interface {
	ScoreRegionValue(ctx context.Context, region types.Region, day int, cfg types.RiskConfig) (*types.RiskResult, error)
}

// Evaluator runs batch evaluations over all regions in a store.
type Evaluator struct {
	scorer      RegionScorer
	regions     types.RegionStore
	sink        types.AlertSink
	riskCfg     types.RiskConfig
	concurrency int
	metrics     *observability.Metrics
	clock       types.Clock
	logger      *slog.Logger
}

// Config holds the dependencies for New.
type Config struct {
	Scorer      RegionScorer
	Regions     types.RegionStore
	Sink        types.AlertSink
	RiskConfig  types.RiskConfig
	Concurrency int
	Metrics     *observability.Metrics
	Clock       types.Clock
	Logger      *slog.Logger
}

// New creates an Evaluator.
func New(cfg Config) *Evaluator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetricsForTesting()
	}
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Evaluator{
		scorer:      cfg.Scorer,
		regions:     cfg.Regions,
		sink:        cfg.Sink,
		riskCfg:     cfg.RiskConfig,
		concurrency: cfg.Concurrency,
		metrics:     cfg.Metrics,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}
}

// Run evaluates every region for the given forecast day and emits alerts
// for indices whose threshold is breached in at least one region. A failure
// to list regions aborts the run before any scoring; a failure to score one
// region is logged and excluded without affecting the others.
func (e *Evaluator) Run(ctx context.Context, day int) (*types.RunReport, error) {
	e.metrics.EvalRuns.Inc()
	started := e.clock.Now()

	regions, err := e.regions.ListRegions(ctx)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStore, "failed to list regions for evaluation", err)
	}

	e.logger.InfoContext(ctx, "starting evaluation run",
		"regions", len(regions),
		"day", day)

	var (
		mu      sync.Mutex
		results []types.RegionRisk
		failed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, region := range regions {
		g.Go(func() error {
			result, err := e.scorer.ScoreRegionValue(gctx, region, day, e.riskCfg)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				e.metrics.RegionFailures.Inc()
				e.logger.ErrorContext(gctx, "region evaluation failed",
					"region", region.Name,
					"error", err)
				return nil
			}
			results = append(results, types.RegionRisk{Region: region.Name, Result: *result})
			return nil
		})
	}
	// Goroutines never return errors; Wait only serves as the join point.
	_ = g.Wait()

	// Restore the store's region ordering lost to concurrent completion.
	order := make(map[string]int, len(regions))
	for i, region := range regions {
		order[region.Name] = i
	}
	sort.Slice(results, func(i, j int) bool {
		return order[results[i].Region] < order[results[j].Region]
	})

	alerts := e.emitAlerts(ctx, results)

	report := &types.RunReport{
		StartedAt:        started,
		FinishedAt:       e.clock.Now(),
		RegionsEvaluated: len(results),
		RegionsFailed:    failed,
		Results:          results,
		Alerts:           alerts,
	}

	e.metrics.EvalDuration.Observe(report.FinishedAt.Sub(started).Seconds())
	e.logger.InfoContext(ctx, "evaluation run complete",
		"evaluated", report.RegionsEvaluated,
		"failed", report.RegionsFailed,
		"alerts", len(alerts))

	return report, nil
}

// emitAlerts aggregates threshold breaches per index and writes at most one
// alert per index to the sink.
func (e *Evaluator) emitAlerts(ctx context.Context, results []types.RegionRisk) []types.Alert {
	var alerts []types.Alert
	for _, kind := range types.AllIndexKinds {
		threshold := e.riskCfg.Thresholds.For(kind)

		var breached []string
		for _, rr := range results {
			if rr.Result.SubIndex(kind) >= threshold {
				breached = append(breached, rr.Region)
			}
		}
		if len(breached) == 0 {
			continue
		}

		severity := types.SeverityHigh
		if len(breached) >= extremeRegionCount {
			severity = types.SeverityExtreme
		}

		candidate := types.AlertCandidate{Kind: kind, Regions: breached, Severity: severity}
		message := alertMessage(kind, severity, breached, threshold)

		alert, err := e.sink.RecordAlert(ctx, candidate, message)
		if err != nil {
			e.logger.ErrorContext(ctx, "failed to record alert",
				"kind", kind,
				"severity", severity,
				"error", err)
			continue
		}
		if alert == nil {
			// Suppressed as a duplicate within the dedup window.
			continue
		}

		e.metrics.AlertsEmitted.WithLabelValues(string(kind), string(severity)).Inc()
		e.logger.WarnContext(ctx, "alert emitted",
			"kind", kind,
			"severity", severity,
			"regions", breached)
		alerts = append(alerts, *alert)
	}
	return alerts
}

func alertMessage(kind types.IndexKind, severity types.Severity, regions []string, threshold float64) string {
	noun := "regions"
	if len(regions) == 1 {
		noun = "region"
	}
	return fmt.Sprintf("%s risk %s: index at or above %.0f in %d %s (%s)",
		kind, severity, threshold, len(regions), noun, strings.Join(regions, ", "))
}
