// Package config defines the global configuration structure for the ClimaRisk
// service. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup (fail fast).
package config

import (
	"time"

	"climarisk/internal/types"
)

// Config is the top-level configuration struct for the ClimaRisk service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"climarisk"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server        ServerConfig
	Weather       WeatherConfig
	AirQuality    AirQualityConfig
	Risk          RiskTuningConfig
	Regions       RegionsConfig
	Alerts        AlertsConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
}

// WeatherConfig holds the weather source chain configuration.
type WeatherConfig struct {
	PrimaryBaseURL   string        `envconfig:"WEATHER_PRIMARY_URL" default:"https://api.open-meteo.com/v1/forecast"`
	SecondaryBaseURL string        `envconfig:"WEATHER_SECONDARY_URL" default:"https://power.larc.nasa.gov/api/temporal/daily/point"`
	RequestTimeout   time.Duration `envconfig:"WEATHER_TIMEOUT" default:"10s"`
	ForecastDays     int           `envconfig:"WEATHER_FORECAST_DAYS" default:"3" validate:"gte=1,lte=16"`
	CacheTTL         time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"15m"`
}

// AirQualityConfig holds the air-quality source configuration.
type AirQualityConfig struct {
	BaseURL        string        `envconfig:"AIR_QUALITY_URL" default:"https://api.openaq.org/v3"`
	APIKey         string        `envconfig:"AIR_QUALITY_API_KEY"`
	RadiusMeters   int           `envconfig:"AIR_QUALITY_RADIUS_M" default:"25000" validate:"gte=1000"`
	RequestTimeout time.Duration `envconfig:"AIR_QUALITY_TIMEOUT" default:"10s"`
}

// RiskTuningConfig holds the default risk weights and alert thresholds.
// Individual risk queries may override these per call.
type RiskTuningConfig struct {
	WeightHeat float64 `envconfig:"RISK_WEIGHT_HEAT" default:"0.4" validate:"gte=0"`
	WeightCold float64 `envconfig:"RISK_WEIGHT_COLD" default:"0.3" validate:"gte=0"`
	WeightAir  float64 `envconfig:"RISK_WEIGHT_AIR" default:"0.3" validate:"gte=0"`

	ThresholdHSI  float64 `envconfig:"RISK_THRESHOLD_HSI" default:"70" validate:"gte=0,lte=100"`
	ThresholdCSI  float64 `envconfig:"RISK_THRESHOLD_CSI" default:"60" validate:"gte=0,lte=100"`
	ThresholdAQRI float64 `envconfig:"RISK_THRESHOLD_AQRI" default:"65" validate:"gte=0,lte=100"`

	// EvalConcurrency bounds the per-run region fan-out.
	EvalConcurrency int `envconfig:"EVAL_CONCURRENCY" default:"8" validate:"gte=1,lte=64"`
}

// RiskConfig converts the tuning values into the per-call engine config.
func (c RiskTuningConfig) RiskConfig() types.RiskConfig {
	return types.RiskConfig{
		Weights: types.IndexWeights{
			Heat: c.WeightHeat,
			Cold: c.WeightCold,
			Air:  c.WeightAir,
		},
		Thresholds: types.IndexThresholds{
			HSI:  c.ThresholdHSI,
			CSI:  c.ThresholdCSI,
			AQRI: c.ThresholdAQRI,
		},
	}
}

// RegionsConfig holds the region store configuration.
type RegionsConfig struct {
	// File is the path to the JSON region definitions. Used when no
	// DATABASE_URL is configured.
	File string `envconfig:"REGIONS_FILE" default:"regions.json"`
}

// AlertsConfig holds alert persistence and archival configuration.
type AlertsConfig struct {
	File string `envconfig:"ALERTS_FILE" default:"alerts.jsonl"`

	// RotateBytes triggers rotation + zstd archival of the alert log once
	// the active file exceeds this size. 0 disables rotation.
	RotateBytes int64 `envconfig:"ALERTS_ROTATE_BYTES" default:"10485760"`

	// DedupWindow suppresses alerts identical to one already recorded
	// within this window (same index, regions, severity).
	DedupWindow time.Duration `envconfig:"ALERTS_DEDUP_WINDOW" default:"24h"`
}

// DatabaseConfig holds optional PostgreSQL connection parameters. When URL is
// empty, the service runs on file-backed stores instead.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL" validate:"omitempty,url"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"climarisk"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
