// Package weather implements the weather source client: a primary provider
// with hourly+daily resolution and a daily-only secondary provider used as a
// fallback. Whatever the originating source, callers always receive the same
// canonical snapshot shape: hourly series of length days*24 and daily series
// of length days, with absent values filled from documented defaults and
// recorded for confidence accounting.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"climarisk/internal/cache"
	"climarisk/internal/external"
	"climarisk/internal/types"
)

// Daily defaults applied when a provider response omits a series. Values are
// recorded in CanonicalWeatherSnapshot.DefaultedFields so the risk engine can
// lower confidence instead of treating them as observations.
const (
	DefaultTempMax  = 25.0
	DefaultTempMin  = 15.0
	DefaultUVIndex  = 5.0
	DefaultPrecip   = 0.0
	DefaultWindMax  = 0.0
	DefaultHumidity = 50.0
)

const (
	hourlyFields = "temperature_2m,relativehumidity_2m,windspeed_10m,precipitation"
	dailyFields  = "temperature_2m_max,temperature_2m_min,windspeed_10m_max,uv_index_max,precipitation_sum"

	// cacheTag namespaces forecast entries in the shared temporal cache.
	cacheTag = "weather"
	// historyTag namespaces the recent-max-temperature lookups used by the
	// anomaly estimator.
	historyTag = "weather_hist"

	// historyWindowDays is the size of the recent history window fetched for
	// anomaly estimation.
	historyWindowDays = 7
)

// Client fetches weather forecasts with a primary/fallback source chain and a
// shared temporal cache in front of both.
type Client struct {
	base         *external.BaseClient
	primaryURL   string
	secondaryURL string

	cache     *cache.Cache[*types.CanonicalWeatherSnapshot]
	histCache *cache.Cache[[]float64]
	clock     types.Clock
	logger    *slog.Logger
	fallbacks counter
}

// counter is the subset of prometheus.Counter the client needs.
type counter interface {
	Inc()
}

// ClientConfig holds the dependencies for creating a weather Client.
type ClientConfig struct {
	HTTPClient   *http.Client
	PrimaryURL   string
	SecondaryURL string
	CacheTTL     time.Duration
	Clock        types.Clock
	Logger       *slog.Logger

	// FallbackCounter, when set, is incremented each time the secondary
	// source serves a request the primary could not.
	FallbackCounter interface{ Inc() }
}

// NewClient creates a weather Client. The cache instance is owned by the
// client but constructed here so the service graph assembles it explicitly
// rather than through lazy global state.
func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		base: external.NewBaseClient(
			httpClient,
			"weather",
			external.DefaultRetryPolicy(),
			"climarisk/1.0",
		),
		primaryURL:   cfg.PrimaryURL,
		secondaryURL: cfg.SecondaryURL,
		cache:        cache.New[*types.CanonicalWeatherSnapshot](cfg.CacheTTL),
		histCache:    cache.New[[]float64](cfg.CacheTTL),
		clock:        clock,
		logger:       logger,
		fallbacks:    cfg.FallbackCounter,
	}
}

// Fetch returns the canonical forecast snapshot for the coordinate over the
// given number of days. A cached result within the TTL window is returned
// without re-issuing network calls or re-evaluating the fallback path.
//
// On primary failure the secondary provider is tried; if that also fails, the
// ORIGINAL primary error is returned so callers see the primary attempt's
// failure mode.
func (c *Client) Fetch(ctx context.Context, lat, lon float64, days int) (*types.CanonicalWeatherSnapshot, error) {
	if days < 1 {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidDay, "day count must be at least 1", nil)
	}

	key := cache.Key(cacheTag, lat, lon, days)
	if snap, ok := c.cache.Get(key); ok {
		return snap, nil
	}

	snap, primaryErr := c.fetchPrimary(ctx, lat, lon, days)
	if primaryErr != nil {
		c.logger.WarnContext(ctx, "primary weather source failed, trying fallback",
			"lat", lat,
			"lon", lon,
			"error", primaryErr,
		)

		var fallbackErr error
		snap, fallbackErr = c.fetchSecondary(ctx, lat, lon, days)
		if fallbackErr != nil {
			c.logger.ErrorContext(ctx, "fallback weather source failed",
				"lat", lat,
				"lon", lon,
				"error", fallbackErr,
			)
			// Callers need the primary attempt's failure mode, not the
			// secondary's.
			return nil, primaryErr
		}
		if c.fallbacks != nil {
			c.fallbacks.Inc()
		}
	}

	c.cache.Set(key, snap)
	return snap, nil
}

// FetchHistory returns recent daily max temperatures for the coordinate,
// newest last, for anomaly estimation. History is a best-effort signal: on
// any failure an empty slice is returned (the anomaly estimator treats short
// history as zero signal), never an error.
func (c *Client) FetchHistory(ctx context.Context, lat, lon float64) []float64 {
	key := cache.Key(historyTag, lat, lon, historyWindowDays)
	if hist, ok := c.histCache.Get(key); ok {
		return hist
	}

	hist, err := c.fetchPastDailyMax(ctx, lat, lon, historyWindowDays)
	if err != nil {
		c.logger.WarnContext(ctx, "temperature history unavailable",
			"lat", lat,
			"lon", lon,
			"error", err,
		)
		return nil
	}

	c.histCache.Set(key, hist)
	return hist
}

// fetchPrimary requests a multi-day hourly+daily forecast from the primary
// provider and normalizes it into the canonical shape.
func (c *Client) fetchPrimary(ctx context.Context, lat, lon float64, days int) (*types.CanonicalWeatherSnapshot, error) {
	q := url.Values{}
	q.Set("latitude", formatCoord(lat))
	q.Set("longitude", formatCoord(lon))
	q.Set("hourly", hourlyFields)
	q.Set("daily", dailyFields)
	q.Set("forecast_days", fmt.Sprintf("%d", days))
	q.Set("timezone", "auto")

	var wire openMeteoResponse
	if err := c.getJSON(ctx, c.primaryURL+"?"+q.Encode(), &wire); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "primary weather source unavailable", err)
	}

	return c.canonicalFromPrimary(&wire, lat, lon, days)
}

// canonicalFromPrimary converts a primary response into the canonical
// snapshot, defaulting any missing series individually.
func (c *Client) canonicalFromPrimary(wire *openMeteoResponse, lat, lon float64, days int) (*types.CanonicalWeatherSnapshot, error) {
	if wire.Daily == nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "primary response missing daily section", nil)
	}

	snap := &types.CanonicalWeatherSnapshot{
		Lat:       lat,
		Lon:       lon,
		Days:      days,
		Source:    types.SourceOpenMeteo,
		FetchedAt: c.clock.Now(),
	}

	snap.Daily.TempMax = c.dailySeries(snap, wire.Daily.TempMax, days, types.FieldTempMax, DefaultTempMax)
	snap.Daily.TempMin = c.dailySeries(snap, wire.Daily.TempMin, days, types.FieldTempMin, DefaultTempMin)
	snap.Daily.WindMax = c.dailySeries(snap, wire.Daily.WindMax, days, types.FieldWindMax, DefaultWindMax)
	snap.Daily.UVIndexMax = c.dailySeries(snap, wire.Daily.UVIndexMax, days, types.FieldUVIndexMax, DefaultUVIndex)
	snap.Daily.PrecipSum = c.dailySeries(snap, wire.Daily.PrecipSum, days, types.FieldPrecipSum, DefaultPrecip)

	var hourly openMeteoHourly
	if wire.Hourly != nil {
		hourly = *wire.Hourly
	}

	wantHours := days * 24
	if len(hourly.Temperature) >= wantHours {
		snap.Hourly.Temperature = hourly.Temperature[:wantHours]
	} else {
		snap.Hourly.Temperature = synthHourlyTemperature(snap.Daily, days)
	}
	if len(hourly.Humidity) >= wantHours {
		snap.Hourly.Humidity = hourly.Humidity[:wantHours]
	} else {
		snap.Hourly.Humidity = constantHourly(DefaultHumidity, days)
		snap.DefaultedFields = append(snap.DefaultedFields, types.FieldHourlyHumidity)
	}
	if len(hourly.WindSpeed) >= wantHours {
		snap.Hourly.WindSpeed = hourly.WindSpeed[:wantHours]
	} else {
		snap.Hourly.WindSpeed = repeatDaily(snap.Daily.WindMax, days)
	}
	if len(hourly.Precipitation) >= wantHours {
		snap.Hourly.Precipitation = hourly.Precipitation[:wantHours]
	} else {
		snap.Hourly.Precipitation = spreadDaily(snap.Daily.PrecipSum, days)
	}

	return snap, nil
}

// fetchSecondary requests a daily-resolution forecast from the secondary
// provider over an explicit start/end date range and synthesizes the hourly
// series so downstream consumers see the uniform canonical shape.
func (c *Client) fetchSecondary(ctx context.Context, lat, lon float64, days int) (*types.CanonicalWeatherSnapshot, error) {
	start := c.clock.Now().UTC()
	end := start.AddDate(0, 0, days-1)

	q := url.Values{}
	q.Set("latitude", formatCoord(lat))
	q.Set("longitude", formatCoord(lon))
	q.Set("start", start.Format("20060102"))
	q.Set("end", end.Format("20060102"))
	q.Set("parameters", powerParamTempMax+","+powerParamTempMin+","+powerParamWind+","+powerParamPrecip+","+powerParamUVIndex)
	q.Set("community", "RE")
	q.Set("format", "JSON")

	var wire powerResponse
	if err := c.getJSON(ctx, c.secondaryURL+"?"+q.Encode(), &wire); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "secondary weather source unavailable", err)
	}

	snap := &types.CanonicalWeatherSnapshot{
		Lat:       lat,
		Lon:       lon,
		Days:      days,
		Source:    types.SourceNASAPower,
		FetchedAt: c.clock.Now(),
	}

	params := wire.Properties.Parameter
	snap.Daily.TempMax = c.powerSeries(snap, params[powerParamTempMax], start, days, types.FieldTempMax, DefaultTempMax)
	snap.Daily.TempMin = c.powerSeries(snap, params[powerParamTempMin], start, days, types.FieldTempMin, DefaultTempMin)
	snap.Daily.WindMax = c.powerSeries(snap, params[powerParamWind], start, days, types.FieldWindMax, DefaultWindMax)
	snap.Daily.UVIndexMax = c.powerSeries(snap, params[powerParamUVIndex], start, days, types.FieldUVIndexMax, DefaultUVIndex)
	snap.Daily.PrecipSum = c.powerSeries(snap, params[powerParamPrecip], start, days, types.FieldPrecipSum, DefaultPrecip)

	// The secondary source is daily-only; the entire hourly section is
	// synthesized.
	snap.Hourly.Temperature = synthHourlyTemperature(snap.Daily, days)
	snap.Hourly.Humidity = constantHourly(DefaultHumidity, days)
	snap.DefaultedFields = append(snap.DefaultedFields, types.FieldHourlyHumidity)
	snap.Hourly.WindSpeed = repeatDaily(snap.Daily.WindMax, days)
	snap.Hourly.Precipitation = spreadDaily(snap.Daily.PrecipSum, days)

	return snap, nil
}

// fetchPastDailyMax retrieves the primary provider's recent daily max
// temperatures for the anomaly history window.
func (c *Client) fetchPastDailyMax(ctx context.Context, lat, lon float64, window int) ([]float64, error) {
	q := url.Values{}
	q.Set("latitude", formatCoord(lat))
	q.Set("longitude", formatCoord(lon))
	q.Set("daily", "temperature_2m_max")
	q.Set("past_days", fmt.Sprintf("%d", window))
	q.Set("forecast_days", "1")
	q.Set("timezone", "auto")

	var wire openMeteoResponse
	if err := c.getJSON(ctx, c.primaryURL+"?"+q.Encode(), &wire); err != nil {
		return nil, err
	}
	if wire.Daily == nil || len(wire.Daily.TempMax) == 0 {
		return nil, fmt.Errorf("history response missing daily max temperatures")
	}

	// The response covers the past window plus today; exclude today so the
	// history reflects only completed days.
	hist := wire.Daily.TempMax
	if len(hist) > window {
		hist = hist[:window]
	}
	return hist, nil
}

// dailySeries returns the provider series truncated to the requested day
// count, or a defaulted series when the provider omitted or under-filled the
// field. Defaults are recorded on the snapshot.
func (c *Client) dailySeries(snap *types.CanonicalWeatherSnapshot, vals []float64, days int, field string, def float64) []float64 {
	if len(vals) >= days {
		return vals[:days]
	}
	snap.DefaultedFields = append(snap.DefaultedFields, field)
	out := make([]float64, days)
	for i := range out {
		out[i] = def
	}
	return out
}

// powerSeries extracts one parameter's values by date, defaulting the whole
// series if the parameter is absent or any day carries the provider's fill
// value for missing observations.
func (c *Client) powerSeries(snap *types.CanonicalWeatherSnapshot, byDate map[string]float64, start time.Time, days int, field string, def float64) []float64 {
	out := make([]float64, days)
	complete := byDate != nil
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format("20060102")
		v, ok := byDate[date]
		if !ok || v == powerFillValue {
			complete = false
			break
		}
		out[i] = v
	}
	if !complete {
		snap.DefaultedFields = append(snap.DefaultedFields, field)
		for i := range out {
			out[i] = def
		}
	}
	return out
}

// getJSON issues a GET through the resilience base client and decodes the
// JSON body. Non-2xx statuses are returned as errors.
func (c *Client) getJSON(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// ClearCache drops all cached snapshots and history windows.
func (c *Client) ClearCache() {
	c.cache.Clear()
	c.histCache.Clear()
}

// synthHourlyTemperature fills each day's 24 hours with the average of that
// day's max and min temperature, rounded to one decimal.
func synthHourlyTemperature(daily types.DailySeries, days int) []float64 {
	out := make([]float64, 0, days*24)
	for d := 0; d < days; d++ {
		avg := round1((daily.TempMax[d] + daily.TempMin[d]) / 2)
		for h := 0; h < 24; h++ {
			out = append(out, avg)
		}
	}
	return out
}

// constantHourly fills every hour of every day with the same value.
func constantHourly(v float64, days int) []float64 {
	out := make([]float64, days*24)
	for i := range out {
		out[i] = v
	}
	return out
}

// repeatDaily repeats each day's single value for all 24 hours of that day.
func repeatDaily(daily []float64, days int) []float64 {
	out := make([]float64, 0, days*24)
	for d := 0; d < days; d++ {
		for h := 0; h < 24; h++ {
			out = append(out, daily[d])
		}
	}
	return out
}

// spreadDaily divides each day's total evenly across its 24 hours, rounded to
// three decimals.
func spreadDaily(daily []float64, days int) []float64 {
	out := make([]float64, 0, days*24)
	for d := 0; d < days; d++ {
		hourly := round3(daily[d] / 24)
		for h := 0; h < 24; h++ {
			out = append(out, hourly)
		}
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func formatCoord(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
