package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"climarisk/internal/types"
)

type stubClock struct {
	t time.Time
}

func (s stubClock) Now() time.Time { return s.t }

type countingCounter struct {
	n int
}

func (c *countingCounter) Inc() { c.n++ }

func newTestClient(primaryURL, secondaryURL string) *Client {
	return NewClient(ClientConfig{
		HTTPClient:   &http.Client{Timeout: 5 * time.Second},
		PrimaryURL:   primaryURL,
		SecondaryURL: secondaryURL,
		CacheTTL:     time.Minute,
		Clock:        stubClock{t: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)},
	})
}

// primaryHandler serves a complete Open-Meteo shaped forecast for the given
// number of days.
func primaryHandler(days int, hits *atomic.Int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		hourly := map[string][]float64{
			"temperature_2m":      repeat(20, days*24),
			"relativehumidity_2m": repeat(60, days*24),
			"windspeed_10m":       repeat(10, days*24),
			"precipitation":       repeat(0.1, days*24),
		}
		daily := map[string][]float64{
			"temperature_2m_max": repeat(28, days),
			"temperature_2m_min": repeat(16, days),
			"windspeed_10m_max":  repeat(22, days),
			"uv_index_max":       repeat(7, days),
			"precipitation_sum":  repeat(2.4, days),
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"latitude":  52.52,
			"longitude": 13.405,
			"hourly":    hourly,
			"daily":     daily,
		})
	}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestFetch_PrimarySuccess(t *testing.T) {
	const days = 2
	primary := httptest.NewServer(primaryHandler(days, nil))
	defer primary.Close()

	client := newTestClient(primary.URL, "http://invalid.invalid")

	snap, err := client.Fetch(context.Background(), 52.52, 13.405, days)
	require.NoError(t, err)

	assert.Equal(t, types.SourceOpenMeteo, snap.Source)
	assert.Equal(t, days, snap.Days)
	assert.Len(t, snap.Hourly.Temperature, days*24)
	assert.Len(t, snap.Hourly.Humidity, days*24)
	assert.Len(t, snap.Daily.TempMax, days)
	assert.Empty(t, snap.DefaultedFields)
	assert.Equal(t, 28.0, snap.Daily.TempMax[0])
}

func TestFetch_CachedWithinTTL(t *testing.T) {
	var hits atomic.Int64
	primary := httptest.NewServer(primaryHandler(1, &hits))
	defer primary.Close()

	client := newTestClient(primary.URL, "http://invalid.invalid")

	first, err := client.Fetch(context.Background(), 40.0, -74.0, 1)
	require.NoError(t, err)
	second, err := client.Fetch(context.Background(), 40.0, -74.0, 1)
	require.NoError(t, err)

	assert.Equal(t, int64(1), hits.Load())
	assert.Same(t, first, second)

	// A different day count is a distinct cache entry.
	_, err = client.Fetch(context.Background(), 40.0, -74.0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestFetch_FallbackSynthesizesHourly(t *testing.T) {
	const days = 2
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer primary.Close()

	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		byDate := func(v float64) map[string]float64 {
			return map[string]float64{"20260830": v, "20260831": v + 1}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"properties": map[string]any{
				"parameter": map[string]any{
					"T2M_MAX":             byDate(30),
					"T2M_MIN":             byDate(18),
					"WS2M":                byDate(12),
					"PRECTOTCORR":         byDate(0),
					"ALLSKY_SFC_UV_INDEX": byDate(6),
				},
			},
		})
	}))
	defer secondary.Close()

	fallbacks := &countingCounter{}
	client := NewClient(ClientConfig{
		HTTPClient:      &http.Client{Timeout: 5 * time.Second},
		PrimaryURL:      primary.URL,
		SecondaryURL:    secondary.URL,
		CacheTTL:        time.Minute,
		Clock:           stubClock{t: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)},
		FallbackCounter: fallbacks,
	})

	snap, err := client.Fetch(context.Background(), 52.52, 13.405, days)
	require.NoError(t, err)

	assert.Equal(t, 1, fallbacks.n)
	assert.Equal(t, types.SourceNASAPower, snap.Source)
	assert.Equal(t, []float64{30, 31}, snap.Daily.TempMax)
	assert.Equal(t, []float64{18, 19}, snap.Daily.TempMin)

	// Daily-only source: hourly series are synthesized at full length.
	require.Len(t, snap.Hourly.Temperature, days*24)
	require.Len(t, snap.Hourly.Humidity, days*24)
	require.Len(t, snap.Hourly.WindSpeed, days*24)
	require.Len(t, snap.Hourly.Precipitation, days*24)

	// Day 0 hourly temperature is the day's max/min midpoint.
	assert.Equal(t, 24.0, snap.Hourly.Temperature[0])
	assert.Equal(t, 25.0, snap.Hourly.Temperature[24])

	// Humidity has no daily counterpart and is defaulted.
	assert.Equal(t, DefaultHumidity, snap.Hourly.Humidity[0])
	assert.True(t, snap.Defaulted(types.FieldHourlyHumidity))
}

func TestFetch_BothSourcesFailReturnsPrimaryError(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer failing.Close()

	client := newTestClient(failing.URL, failing.URL)

	_, err := client.Fetch(context.Background(), 52.52, 13.405, 1)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamWeather, appErr.Code)
	assert.Equal(t, "primary weather source unavailable", appErr.Message)
}

func TestFetch_PartialPrimaryResponseDefaults(t *testing.T) {
	const days = 1
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Daily present but missing uv_index_max, hourly absent entirely.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"daily": map[string][]float64{
				"temperature_2m_max": {30},
				"temperature_2m_min": {20},
				"windspeed_10m_max":  {15},
				"precipitation_sum":  {1.2},
			},
		})
	}))
	defer primary.Close()

	client := newTestClient(primary.URL, "http://invalid.invalid")

	snap, err := client.Fetch(context.Background(), 10, 10, days)
	require.NoError(t, err)

	assert.Equal(t, []float64{DefaultUVIndex}, snap.Daily.UVIndexMax)
	assert.True(t, snap.Defaulted(types.FieldUVIndexMax))
	assert.False(t, snap.Defaulted(types.FieldTempMax))

	// Missing hourly section is synthesized from the daily values.
	require.Len(t, snap.Hourly.Temperature, days*24)
	assert.Equal(t, 25.0, snap.Hourly.Temperature[0])
	assert.True(t, snap.Defaulted(types.FieldHourlyHumidity))
	assert.InDelta(t, 1.2/24, snap.Hourly.Precipitation[0], 0.001)
}

func TestFetch_InvalidDayCount(t *testing.T) {
	client := newTestClient("http://invalid.invalid", "http://invalid.invalid")

	_, err := client.Fetch(context.Background(), 0, 0, 0)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidDay, appErr.Code)
}

func TestFetchHistory_ExcludesToday(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "7", r.URL.Query().Get("past_days"))
		// Seven past days plus today.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"daily": map[string][]float64{
				"temperature_2m_max": {20, 21, 22, 23, 24, 25, 26, 99},
			},
		})
	}))
	defer primary.Close()

	client := newTestClient(primary.URL, "http://invalid.invalid")

	hist := client.FetchHistory(context.Background(), 52.52, 13.405)
	assert.Equal(t, []float64{20, 21, 22, 23, 24, 25, 26}, hist)
}

func TestFetchHistory_DegradesToNil(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer primary.Close()

	client := newTestClient(primary.URL, "http://invalid.invalid")

	assert.Nil(t, client.FetchHistory(context.Background(), 1, 2))
}

func TestSpreadDaily(t *testing.T) {
	out := spreadDaily([]float64{24, 48}, 2)
	require.Len(t, out, 48)
	assert.Equal(t, 1.0, out[0])
	assert.Equal(t, 2.0, out[24])
}

func ExampleClient_Fetch() {
	// The canonical snapshot always carries days*24 hourly points regardless
	// of which source produced it.
	fmt.Println(len(constantHourly(50, 3)))
	// Output: 72
}
