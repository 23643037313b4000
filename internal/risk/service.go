package risk

import (
	"context"
	"fmt"
	"log/slog"

	"climarisk/internal/regions"
	"climarisk/internal/types"
)

// WeatherFetcher abstracts the weather source client. FetchHistory is
// best-effort: it returns nil when no history is available.
type WeatherFetcher interface {
	Fetch(ctx context.Context, lat, lon float64, days int) (*types.CanonicalWeatherSnapshot, error)
	FetchHistory(ctx context.Context, lat, lon float64) []float64
}

// AirQualityResolver abstracts the air-quality station resolver. It never
// fails; absence degrades to the "no data" snapshot.
type AirQualityResolver interface {
	Resolve(ctx context.Context, lat, lon float64) types.AirQualitySnapshot
}

// Service is the risk query surface: it fuses weather, air-quality, and
// vulnerability inputs into a RiskResult for a coordinate or a named region.
// Both the on-demand API handlers and the batch evaluator call through it.
type Service struct {
	weather      WeatherFetcher
	air          AirQualityResolver
	regions      types.RegionStore
	forecastDays int
	clock        types.Clock
	logger       *slog.Logger
}

// ServiceConfig holds the dependencies for creating a risk Service.
type ServiceConfig struct {
	Weather      WeatherFetcher
	AirQuality   AirQualityResolver
	Regions      types.RegionStore
	ForecastDays int
	Clock        types.Clock
	Logger       *slog.Logger
}

// NewService creates a risk Service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	days := cfg.ForecastDays
	if days < 1 {
		days = 3
	}
	return &Service{
		weather:      cfg.Weather,
		air:          cfg.AirQuality,
		regions:      cfg.Regions,
		forecastDays: days,
		clock:        clock,
		logger:       logger,
	}
}

// ScoreCoordinate computes the risk for a raw coordinate on the given
// forecast day index. Per-region failures surface directly so callers can
// distinguish "risk is low" from "risk could not be computed".
func (s *Service) ScoreCoordinate(ctx context.Context, lat, lon float64, day int, vulnerability float64, cfg types.RiskConfig) (*types.RiskResult, error) {
	days := s.forecastDays
	if day >= days {
		days = day + 1
	}

	snap, err := s.weather.Fetch(ctx, lat, lon, days)
	if err != nil {
		return nil, fmt.Errorf("fetching weather for (%.4f,%.4f): %w", lat, lon, err)
	}

	aq := s.air.Resolve(ctx, lat, lon)
	history := s.weather.FetchHistory(ctx, lat, lon)

	in, err := BuildInputs(snap, day, aq, vulnerability, history)
	if err != nil {
		return nil, err
	}

	result := Score(in, cfg)
	result.Day = day
	result.GeneratedAt = s.clock.Now()
	return &result, nil
}

// ScoreRegion computes the risk for a named region at its representative
// coordinate (the unweighted centroid of its polygon vertices).
func (s *Service) ScoreRegion(ctx context.Context, name string, day int, cfg types.RiskConfig) (*types.RiskResult, error) {
	region, err := s.regions.GetRegion(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.ScoreRegionValue(ctx, *region, day, cfg)
}

// ScoreRegionValue computes the risk for an already-loaded region. The batch
// evaluator uses this to avoid re-reading the store per region.
func (s *Service) ScoreRegionValue(ctx context.Context, region types.Region, day int, cfg types.RiskConfig) (*types.RiskResult, error) {
	center, err := regions.Centroid(region.Polygon)
	if err != nil {
		return nil, err
	}
	return s.ScoreCoordinate(ctx, center.Lat, center.Lon, day, region.Vulnerability, cfg)
}
