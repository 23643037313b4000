package types

// IndexWeights are the composite-score weights for the three sub-indices.
// They are expected, but not enforced, to sum to 1.
type IndexWeights struct {
	Heat float64 `json:"heat" validate:"gte=0"`
	Cold float64 `json:"cold" validate:"gte=0"`
	Air  float64 `json:"air" validate:"gte=0"`
}

// IndexThresholds are the per-index alerting thresholds on the [0,100] scale.
type IndexThresholds struct {
	HSI  float64 `json:"hsi" validate:"gte=0,lte=100"`
	CSI  float64 `json:"csi" validate:"gte=0,lte=100"`
	AQRI float64 `json:"aqri" validate:"gte=0,lte=100"`
}

// For returns the threshold for the given index kind.
func (t IndexThresholds) For(kind IndexKind) float64 {
	switch kind {
	case IndexHeat:
		return t.HSI
	case IndexCold:
		return t.CSI
	case IndexAirQuality:
		return t.AQRI
	default:
		return 0
	}
}

// RiskConfig parameterizes a single risk computation. The engine accepts it
// on every call rather than reading global state, so callers can override
// weights and thresholds per request and tests stay deterministic.
type RiskConfig struct {
	Weights    IndexWeights    `json:"weights"`
	Thresholds IndexThresholds `json:"thresholds"`
}

// DefaultRiskConfig returns the standard production weighting and thresholds.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		Weights: IndexWeights{
			Heat: 0.4,
			Cold: 0.3,
			Air:  0.3,
		},
		Thresholds: IndexThresholds{
			HSI:  70,
			CSI:  60,
			AQRI: 65,
		},
	}
}
