package risk

import "math"

// minHistoryPoints is the smallest history window that yields a meaningful
// standardized deviation.
const minHistoryPoints = 3

// TemperatureAnomaly computes the standardized deviation (z-score) of the
// current max temperature against a recent history window.
//
// It returns exactly 0 when the history has fewer than three points
// (insufficient signal, not an error) and when the population standard
// deviation of the history is zero (all-identical history; avoids division
// by zero). Pure and side-effect free.
func TemperatureAnomaly(current float64, history []float64) float64 {
	if len(history) < minHistoryPoints {
		return 0
	}

	var sum float64
	for _, v := range history {
		sum += v
	}
	mean := sum / float64(len(history))

	var sqDiff float64
	for _, v := range history {
		d := v - mean
		sqDiff += d * d
	}
	stddev := math.Sqrt(sqDiff / float64(len(history)))
	if stddev == 0 {
		return 0
	}

	return (current - mean) / stddev
}
