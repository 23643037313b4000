package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"climarisk/internal/config"
	"climarisk/internal/types"
)

type fakeScorer struct {
	result *types.RiskResult
	err    error

	lastLat, lastLon, lastVuln float64
	lastDay                    int
	lastRegion                 string
	lastCfg                    types.RiskConfig
}

func (f *fakeScorer) ScoreCoordinate(ctx context.Context, lat, lon float64, day int, vulnerability float64, cfg types.RiskConfig) (*types.RiskResult, error) {
	f.lastLat, f.lastLon, f.lastDay, f.lastVuln = lat, lon, day, vulnerability
	f.lastCfg = cfg
	return f.result, f.err
}

func (f *fakeScorer) ScoreRegion(ctx context.Context, name string, day int, cfg types.RiskConfig) (*types.RiskResult, error) {
	f.lastRegion, f.lastDay = name, day
	f.lastCfg = cfg
	return f.result, f.err
}

type fakeStore struct {
	regions []types.Region
	err     error
}

func (f *fakeStore) ListRegions(ctx context.Context) ([]types.Region, error) {
	return f.regions, f.err
}

func (f *fakeStore) GetRegion(ctx context.Context, name string) (*types.Region, error) {
	return nil, types.NewAppError(types.ErrCodeNotFoundRegion, "region not found", nil)
}

type fakeRunner struct {
	report *types.RunReport
	err    error

	lastDay int
}

func (f *fakeRunner) Run(ctx context.Context, day int) (*types.RunReport, error) {
	f.lastDay = day
	return f.report, f.err
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{Port: "0", RequestTimeout: 5 * time.Second},
		Risk: config.RiskTuningConfig{
			WeightHeat: 0.4, WeightCold: 0.3, WeightAir: 0.3,
			ThresholdHSI: 70, ThresholdCSI: 60, ThresholdAQRI: 65,
			EvalConcurrency: 2,
		},
	}
}

func newTestServer(t *testing.T, scorer RiskScorer, store types.RegionStore, runner BatchRunner) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Config:    testConfig(),
		Risk:      scorer,
		Regions:   store,
		Evaluator: runner,
	})
	require.NoError(t, err)
	srv.MountRoutes()
	return srv
}

func doRequest(srv *Server, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHandleRisk_Coordinate(t *testing.T) {
	scorer := &fakeScorer{result: &types.RiskResult{HSI: 61.5, Composite: 40.2, Confidence: 0.89, Day: 1}}
	srv := newTestServer(t, scorer, &fakeStore{}, nil)

	rec := doRequest(srv, http.MethodGet, "/v1/risk?lat=52.52&lon=13.405&day=1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 52.52, scorer.lastLat)
	assert.Equal(t, 13.405, scorer.lastLon)
	assert.Equal(t, 1, scorer.lastDay)
	assert.Equal(t, 0.0, scorer.lastVuln)

	var resp struct {
		Data types.RiskResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 61.5, resp.Data.HSI)
	assert.Equal(t, 1, resp.Data.Day)
}

func TestHandleRisk_Region(t *testing.T) {
	scorer := &fakeScorer{result: &types.RiskResult{Composite: 55}}
	srv := newTestServer(t, scorer, &fakeStore{}, nil)

	rec := doRequest(srv, http.MethodGet, "/v1/risk?region=riverside", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "riverside", scorer.lastRegion)
	assert.Equal(t, 0, scorer.lastDay)
}

func TestHandleRisk_WeightOverrides(t *testing.T) {
	scorer := &fakeScorer{result: &types.RiskResult{}}
	srv := newTestServer(t, scorer, &fakeStore{}, nil)

	rec := doRequest(srv, http.MethodGet,
		"/v1/risk?lat=1&lon=2&weight_heat=0.6&weight_air=0.1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.6, scorer.lastCfg.Weights.Heat)
	assert.Equal(t, 0.3, scorer.lastCfg.Weights.Cold, "unset weight keeps the configured default")
	assert.Equal(t, 0.1, scorer.lastCfg.Weights.Air)
}

func TestHandleRisk_InvalidWeightOverride(t *testing.T) {
	srv := newTestServer(t, &fakeScorer{}, &fakeStore{}, nil)

	for _, raw := range []string{"abc", "-0.2"} {
		rec := doRequest(srv, http.MethodGet, "/v1/risk?lat=1&lon=2&weight_heat="+raw, "")
		require.Equal(t, http.StatusBadRequest, rec.Code, "weight_heat=%s", raw)
		detail := decodeError(t, rec)
		assert.Equal(t, string(types.ErrCodeValidationInvalidConfig), detail.Code)
	}
}

func TestHandleRisk_Validation(t *testing.T) {
	srv := newTestServer(t, &fakeScorer{}, &fakeStore{}, nil)

	tests := []struct {
		name   string
		target string
		code   types.ErrorCode
		status int
	}{
		{"missing lat", "/v1/risk?lon=10", types.ErrCodeValidationInvalidLat, http.StatusBadRequest},
		{"missing lon", "/v1/risk?lat=10", types.ErrCodeValidationInvalidLon, http.StatusBadRequest},
		{"lat out of range", "/v1/risk?lat=95&lon=10", types.ErrCodeValidationInvalidLat, http.StatusBadRequest},
		{"lon out of range", "/v1/risk?lat=10&lon=190", types.ErrCodeValidationInvalidLon, http.StatusBadRequest},
		{"lat not a number", "/v1/risk?lat=north&lon=10", types.ErrCodeValidationInvalidLat, http.StatusBadRequest},
		{"negative day", "/v1/risk?lat=10&lon=10&day=-1", types.ErrCodeValidationInvalidDay, http.StatusBadRequest},
		{"day not a number", "/v1/risk?lat=10&lon=10&day=soon", types.ErrCodeValidationInvalidDay, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(srv, http.MethodGet, tc.target, "")
			assert.Equal(t, tc.status, rec.Code)

			detail := decodeError(t, rec)
			assert.Equal(t, string(tc.code), detail.Code)
			assert.NotEmpty(t, detail.RequestID)
		})
	}
}

func TestHandleRisk_UpstreamFailure(t *testing.T) {
	scorer := &fakeScorer{err: types.NewAppError(types.ErrCodeUpstreamWeather, "primary weather source unavailable", nil)}
	srv := newTestServer(t, scorer, &fakeStore{}, nil)

	rec := doRequest(srv, http.MethodGet, "/v1/risk?lat=10&lon=10", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeUpstreamWeather), detail.Code)
}

func TestHandleRisk_RegionNotFound(t *testing.T) {
	scorer := &fakeScorer{err: types.NewAppError(types.ErrCodeNotFoundRegion, "region not found", nil)}
	srv := newTestServer(t, scorer, &fakeStore{}, nil)

	rec := doRequest(srv, http.MethodGet, "/v1/risk?region=atlantis", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListRegions(t *testing.T) {
	store := &fakeStore{regions: []types.Region{
		{Name: "riverside", Polygon: []types.Coordinate{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}, {Lat: 3, Lon: 3}}},
	}}
	srv := newTestServer(t, &fakeScorer{}, store, nil)

	rec := doRequest(srv, http.MethodGet, "/v1/regions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []types.Region `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "riverside", resp.Data[0].Name)
}

func TestHandleEvaluate(t *testing.T) {
	runner := &fakeRunner{report: &types.RunReport{RegionsEvaluated: 4, Alerts: []types.Alert{}}}
	srv := newTestServer(t, &fakeScorer{}, &fakeStore{}, runner)

	rec := doRequest(srv, http.MethodPost, "/v1/evaluate", `{"day": 2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, runner.lastDay)

	var resp struct {
		Data types.RunReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Data.RegionsEvaluated)
}

func TestHandleEvaluate_EmptyBodyDefaultsToToday(t *testing.T) {
	runner := &fakeRunner{report: &types.RunReport{}, lastDay: -1}
	srv := newTestServer(t, &fakeScorer{}, &fakeStore{}, runner)

	rec := doRequest(srv, http.MethodPost, "/v1/evaluate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, runner.lastDay)
}

func TestHandleEvaluate_RejectsUnknownFields(t *testing.T) {
	srv := newTestServer(t, &fakeScorer{}, &fakeStore{}, &fakeRunner{report: &types.RunReport{}})

	rec := doRequest(srv, http.MethodPost, "/v1/evaluate", `{"day": 0, "dry_run": true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeValidationInvalidJSON), detail.Code)
}

func TestHandleEvaluate_RejectsOutOfRangeDay(t *testing.T) {
	srv := newTestServer(t, &fakeScorer{}, &fakeStore{}, &fakeRunner{report: &types.RunReport{}})

	rec := doRequest(srv, http.MethodPost, "/v1/evaluate", `{"day": 99}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEvaluate_NotConfigured(t *testing.T) {
	srv := newTestServer(t, &fakeScorer{}, &fakeStore{}, nil)

	rec := doRequest(srv, http.MethodPost, "/v1/evaluate", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleHealth_NoProbes(t *testing.T) {
	srv := newTestServer(t, &fakeScorer{}, &fakeStore{}, nil)

	rec := doRequest(srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestHandleHealth_FailingProbe(t *testing.T) {
	srv := newTestServer(t, &fakeScorer{}, &fakeStore{}, nil)
	srv.HealthProbes = []HealthProbe{
		ProbeFunc{ProbeName: "regions", Fn: func(ctx context.Context) error { return nil }},
		ProbeFunc{ProbeName: "database", Fn: func(ctx context.Context) error {
			return types.NewAppError(types.ErrCodeInternalDB, "connection refused", nil)
		}},
	}

	rec := doRequest(srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Status     string `json:"status"`
		Components map[string]struct {
			Status string `json:"status"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "healthy", resp.Components["regions"].Status)
	assert.Equal(t, "unhealthy", resp.Components["database"].Status)
}

func TestRequestID_GeneratedAndEchoed(t *testing.T) {
	srv := newTestServer(t, &fakeScorer{result: &types.RiskResult{}}, &fakeStore{}, nil)

	rec := doRequest(srv, http.MethodGet, "/v1/regions", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	// A provided request ID is propagated, not replaced.
	req := httptest.NewRequest(http.MethodGet, "/v1/regions", nil)
	req.Header.Set("X-Request-Id", "corr-123")
	rec2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec2, req)
	assert.Equal(t, "corr-123", rec2.Header().Get("X-Request-Id"))
}

func TestRecoverer_PanicBecomes500(t *testing.T) {
	srv := newTestServer(t, &fakeScorer{}, &fakeStore{}, nil)
	srv.Router().Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("kaput")
	})

	rec := doRequest(srv, http.MethodGet, "/boom", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), detail.Code)
}

func TestGenericErrorNotLeaked(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(w, r, assert.AnError)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
	assert.Contains(t, w.Body.String(), string(types.ErrCodeInternalUnexpected))
}
