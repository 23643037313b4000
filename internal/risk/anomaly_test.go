package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemperatureAnomaly_InsufficientHistory(t *testing.T) {
	assert.Equal(t, 0.0, TemperatureAnomaly(30, nil))
	assert.Equal(t, 0.0, TemperatureAnomaly(30, []float64{25}))
	assert.Equal(t, 0.0, TemperatureAnomaly(30, []float64{25, 26}))
}

func TestTemperatureAnomaly_UniformHistory(t *testing.T) {
	// Identical history has zero deviation; the guard must return 0 rather
	// than divide by zero, regardless of how far the current value sits.
	assert.Equal(t, 0.0, TemperatureAnomaly(45, []float64{20, 20, 20, 20}))
	assert.Equal(t, 0.0, TemperatureAnomaly(-10, []float64{20, 20, 20}))
}

func TestTemperatureAnomaly_ZScore(t *testing.T) {
	// mean = 20, population stddev = sqrt(200/3) ~= 8.165
	got := TemperatureAnomaly(28, []float64{10, 20, 30})
	assert.InDelta(t, 0.9798, got, 0.0001)

	// Below the mean yields a negative score.
	got = TemperatureAnomaly(12, []float64{10, 20, 30})
	assert.InDelta(t, -0.9798, got, 0.0001)

	// At the mean the anomaly vanishes.
	assert.Equal(t, 0.0, TemperatureAnomaly(20, []float64{10, 20, 30}))
}

func TestTemperatureAnomaly_Deterministic(t *testing.T) {
	history := []float64{18.2, 21.7, 19.9, 24.1, 22.6}
	first := TemperatureAnomaly(26.3, history)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, TemperatureAnomaly(26.3, history))
	}
}
