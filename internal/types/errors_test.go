package types

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code   ErrorCode
		status int
	}{
		{ErrCodeValidationInvalidLat, http.StatusBadRequest},
		{ErrCodeValidationInvalidDay, http.StatusBadRequest},
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeNotFoundRegion, http.StatusNotFound},
		{ErrCodeInvalidStructure, http.StatusUnprocessableEntity},
		{ErrCodeUpstreamRateLimited, http.StatusTooManyRequests},
		{ErrCodeUpstreamWeather, http.StatusBadGateway},
		{ErrCodeUpstreamAirQuality, http.StatusBadGateway},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrorCode("something_else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.code.HTTPStatus())
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := NewAppError(ErrCodeUpstreamWeather, "primary weather source unavailable", cause)

	assert.True(t, errors.Is(err, cause))

	var appErr *AppError
	require.ErrorAs(t, error(err), &appErr)
	assert.Equal(t, ErrCodeUpstreamWeather, appErr.Code)
	assert.Equal(t, http.StatusBadGateway, appErr.HTTPStatus())
	assert.Equal(t, "upstream_weather_unavailable: primary weather source unavailable", appErr.Error())
}

func TestAppErrorWithDetails(t *testing.T) {
	base := NewAppErrorWithDetails(ErrCodeValidationInvalidLat, "latitude out of range", nil,
		map[string]any{"min": -90.0})

	derived := base.WithDetails(map[string]any{"max": 90.0, "min": -89.0})

	assert.Equal(t, map[string]any{"min": -90.0}, base.Details, "original must not be mutated")
	assert.Equal(t, -89.0, derived.Details["min"], "later details win")
	assert.Equal(t, 90.0, derived.Details["max"])
	assert.Equal(t, base.Code, derived.Code)
}
