// Package airquality resolves the latest pollutant readings near a
// coordinate. It lists candidate stations within a radius, picks the nearest
// by great-circle distance, and extracts the first (newest) reading per
// pollutant. Air-quality absence is always recoverable: any failure degrades
// to the canonical "no data" snapshot instead of an error, so a missing
// station can never abort a risk computation.
package airquality

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

// earthRadiusKM is the mean Earth radius used for haversine distances.
const earthRadiusKM = 6371.0

// cacheTag namespaces air-quality entries in the temporal cache.
const cacheTag = "airquality"

// Wire DTOs for the station listing and latest-measurement endpoints.
type stationListResponse struct {
	Results []station `json:"results"`
}

type station struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Coordinates struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"coordinates"`
}

type measurementsResponse struct {
	Results []measurement `json:"results"`
}

// measurement is a single reading tagged with its pollutant parameter name.
// The source returns readings newest-first.
type measurement struct {
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
}

// Resolver finds the nearest reporting station and its latest readings.
type Resolver struct {
	base         *external.BaseClient
	baseURL      string
	apiKey       string
	radiusMeters int

	cache  *cache.Cache[types.AirQualitySnapshot]
	logger *slog.Logger
	misses counter
}

// counter is the subset of prometheus.Counter the resolver needs.
type counter interface {
	Inc()
}

// ResolverConfig holds the dependencies for creating a Resolver.
type ResolverConfig struct {
	HTTPClient   *http.Client
	BaseURL      string
	APIKey       string
	RadiusMeters int
	CacheTTL     time.Duration
	Logger       *slog.Logger

	// MissCounter, when set, is incremented each time a lookup degrades to
	// the no-data snapshot.
	MissCounter interface{ Inc() }
}

// NewResolver creates an air-quality Resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	radius := cfg.RadiusMeters
	if radius <= 0 {
		radius = 25000
	}
	return &Resolver{
		base: external.NewBaseClient(
			httpClient,
			"airquality",
			external.DefaultRetryPolicy(),
			"climarisk/1.0",
		),
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		radiusMeters: radius,
		cache:        cache.New[types.AirQualitySnapshot](cfg.CacheTTL),
		logger:       logger,
		misses:       cfg.MissCounter,
	}
}

// Resolve returns the latest pollutant readings from the station nearest the
// coordinate. On any failure (no stations, transport error, non-2xx) the
// canonical "no data" snapshot is returned; only genuinely resolved snapshots
// are cached so transient failures are retried on the next lookup.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) types.AirQualitySnapshot {
	key := cache.Key(cacheTag, lat, lon, r.radiusMeters)
	if snap, ok := r.cache.Get(key); ok {
		return snap
	}

	snap, err := r.resolve(ctx, lat, lon)
	if err != nil {
		r.logger.WarnContext(ctx, "air quality lookup degraded to no data",
			"lat", lat,
			"lon", lon,
			"error", err,
		)
		if r.misses != nil {
			r.misses.Inc()
		}
		return types.AirQualitySnapshot{}
	}

	r.cache.Set(key, snap)
	return snap
}

func (r *Resolver) resolve(ctx context.Context, lat, lon float64) (types.AirQualitySnapshot, error) {
	nearest, dist, err := r.nearestStation(ctx, lat, lon)
	if err != nil {
		return types.AirQualitySnapshot{}, err
	}

	readings, err := r.latestMeasurements(ctx, nearest.ID)
	if err != nil {
		return types.AirQualitySnapshot{}, err
	}

	snap := types.AirQualitySnapshot{
		Station:    &nearest.Name,
		DistanceKM: &dist,
	}

	// First reading per pollutant wins; the source orders newest-first.
	for _, m := range readings {
		switch types.Pollutant(m.Parameter) {
		case types.PollutantPM25:
			if snap.PM25 == nil {
				v := m.Value
				snap.PM25 = &v
			}
		case types.PollutantPM10:
			if snap.PM10 == nil {
				v := m.Value
				snap.PM10 = &v
			}
		case types.PollutantNO2:
			if snap.NO2 == nil {
				v := m.Value
				snap.NO2 = &v
			}
		}
	}

	return snap, nil
}

// nearestStation lists candidate stations within the radius and returns the
// one with the minimum haversine distance. Ties keep the first-encountered
// candidate, preserving the source's own ordering.
func (r *Resolver) nearestStation(ctx context.Context, lat, lon float64) (*station, float64, error) {
	q := url.Values{}
	q.Set("coordinates", fmt.Sprintf("%.4f,%.4f", lat, lon))
	q.Set("radius", fmt.Sprintf("%d", r.radiusMeters))
	q.Set("limit", "100")

	var wire stationListResponse
	if err := r.getJSON(ctx, r.baseURL+"/locations?"+q.Encode(), &wire); err != nil {
		return nil, 0, err
	}
	if len(wire.Results) == 0 {
		return nil, 0, fmt.Errorf("no stations within %dm", r.radiusMeters)
	}

	best := 0
	bestDist := Haversine(lat, lon, wire.Results[0].Coordinates.Latitude, wire.Results[0].Coordinates.Longitude)
	for i := 1; i < len(wire.Results); i++ {
		d := Haversine(lat, lon, wire.Results[i].Coordinates.Latitude, wire.Results[i].Coordinates.Longitude)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}

	return &wire.Results[best], bestDist, nil
}

// latestMeasurements fetches the most recent readings for a station.
func (r *Resolver) latestMeasurements(ctx context.Context, stationID int64) ([]measurement, error) {
	var wire measurementsResponse
	u := fmt.Sprintf("%s/locations/%d/latest", r.baseURL, stationID)
	if err := r.getJSON(ctx, u, &wire); err != nil {
		return nil, err
	}
	return wire.Results, nil
}

func (r *Resolver) getJSON(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if r.apiKey != "" {
		req.Header.Set("X-API-Key", r.apiKey)
	}

	resp, err := r.base.Do(req)
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

// ClearCache drops all cached snapshots.
func (r *Resolver) ClearCache() {
	r.cache.Clear()
}

// Haversine returns the great-circle distance in kilometers between two
// coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180

	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}
