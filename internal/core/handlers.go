package core

import (
	"net/http"
	"net/url"
	"strconv"

	"climarisk/internal/types"
)

// HandleRisk serves GET /v1/risk. It scores either a named region
// (?region=name) or an ad-hoc coordinate (?lat=..&lon=..). The optional
// ?day=N selects the forecast day, defaulting to today, and the index
// weights may be overridden per call (?weight_heat=..&weight_cold=..&
// weight_air=..).
func (s *Server) HandleRisk(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	day, err := parseDay(q.Get("day"))
	if err != nil {
		Error(w, r, err)
		return
	}

	cfg := s.Config.Risk.RiskConfig()
	if err := applyWeightOverrides(&cfg, q); err != nil {
		Error(w, r, err)
		return
	}

	if name := q.Get("region"); name != "" {
		result, err := s.Risk.ScoreRegion(r.Context(), name, day, cfg)
		if err != nil {
			Error(w, r, err)
			return
		}
		JSON(w, r, http.StatusOK, APIResponse{Data: result})
		return
	}

	lat, err := parseCoord(q.Get("lat"), "lat", -90, 90, types.ErrCodeValidationInvalidLat)
	if err != nil {
		Error(w, r, err)
		return
	}
	lon, err := parseCoord(q.Get("lon"), "lon", -180, 180, types.ErrCodeValidationInvalidLon)
	if err != nil {
		Error(w, r, err)
		return
	}

	result, err := s.Risk.ScoreCoordinate(r.Context(), lat, lon, day, 0, cfg)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: result})
}

// HandleListRegions serves GET /v1/regions.
func (s *Server) HandleListRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.Regions.ListRegions(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: regions})
}

// evaluateRequest is the optional body for POST /v1/evaluate.
type evaluateRequest struct {
	Day int `json:"day" validate:"gte=0,lte=15"`
}

// HandleEvaluate serves POST /v1/evaluate: it runs a full batch evaluation
// synchronously and returns the run report. An empty body evaluates today.
func (s *Server) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	if s.Evaluator == nil {
		Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected,
			"batch evaluation is not configured", nil))
		return
	}

	var req evaluateRequest
	if r.ContentLength > 0 {
		if err := DecodeJSON(w, r, &req); err != nil {
			Error(w, r, err)
			return
		}
		if err := NewValidator().ValidateStruct(req); err != nil {
			Error(w, r, err)
			return
		}
	}

	report, err := s.Evaluator.Run(r.Context(), req.Day)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: report})
}

// applyWeightOverrides replaces the configured index weights with any
// per-call query values. Weights must be non-negative numbers; the composite
// formula does not require them to sum to 1.
func applyWeightOverrides(cfg *types.RiskConfig, q url.Values) error {
	overrides := []struct {
		param  string
		target *float64
	}{
		{"weight_heat", &cfg.Weights.Heat},
		{"weight_cold", &cfg.Weights.Cold},
		{"weight_air", &cfg.Weights.Air},
	}
	for _, o := range overrides {
		raw := q.Get(o.param)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return types.NewAppError(types.ErrCodeValidationInvalidConfig,
				o.param+" must be a non-negative number", err)
		}
		*o.target = v
	}
	return nil
}

func parseDay(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	day, err := strconv.Atoi(raw)
	if err != nil || day < 0 {
		return 0, types.NewAppError(types.ErrCodeValidationInvalidDay,
			"day must be a non-negative integer", err)
	}
	return day, nil
}

func parseCoord(raw, name string, min, max float64, code types.ErrorCode) (float64, error) {
	if raw == "" {
		return 0, types.NewAppError(code, name+" is required", nil)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < min || v > max {
		return 0, types.NewAppErrorWithDetails(code,
			name+" is out of range", err,
			map[string]any{"min": min, "max": max})
	}
	return v, nil
}
