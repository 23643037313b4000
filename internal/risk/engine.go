// Package risk implements the scoring engine that turns a canonical weather
// snapshot, an air-quality snapshot, and vulnerability inputs into three
// sub-indices (HSI, CSI, AQRI), a composite score, and a confidence value.
// The engine is a set of pure functions parameterized by an explicit
// RiskConfig; it reads no global state and never suspends.
package risk

import (
	"fmt"

	"climarisk/internal/types"
)

// Normalization ranges. Each raw measurement maps onto [0,100] via
// clamp((v-lo)/(hi-lo), 0, 1) * 100, inverted where the measurement is
// inversely correlated with risk.
const (
	HeatTempLo = 0.0
	HeatTempHi = 45.0

	HumidityLo = 0.0
	HumidityHi = 100.0

	AnomalyLo = -3.0
	AnomalyHi = 3.0

	// Cold range for min temperature and wind chill; colder means a higher
	// score, so normalization is inverted.
	ColdTempLo = -30.0
	ColdTempHi = 15.0

	SnowLo = 0.0
	SnowHi = 100.0

	// Pollutant safety-to-hazard ranges in ug/m3.
	PM25Lo = 0.0
	PM25Hi = 500.0
	PM10Lo = 0.0
	PM10Hi = 600.0
	NO2Lo  = 0.0
	NO2Hi  = 400.0
)

// Sub-index component weights.
const (
	hsiTempWeight     = 0.5
	hsiHumidityWeight = 0.3
	hsiAnomalyWeight  = 0.2

	csiMinTempWeight   = 0.5
	csiWindChillWeight = 0.3
	csiSnowWeight      = 0.2

	aqriPM25Weight = 0.5
	aqriPM10Weight = 0.3
	aqriNO2Weight  = 0.2
)

// requiredWeatherInputs counts the weather-side inputs the engine treats as
// required for confidence: max temp, min temp, humidity, wind, UV index, and
// precipitation.
const requiredWeatherInputs = 6

// requiredPollutantInputs counts the air-quality-side required inputs:
// pm2.5, pm10, and no2.
const requiredPollutantInputs = 3

// Normalize maps v over [lo,hi] onto [0,100], clamping out-of-range values.
func Normalize(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	frac := (v - lo) / (hi - lo)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return frac * 100
}

// NormalizeInverted maps v over [lo,hi] onto [100,0]: values at lo score 100.
// Used for measurements inversely correlated with risk (cold, wind chill).
func NormalizeInverted(v, lo, hi float64) float64 {
	return 100 - Normalize(v, lo, hi)
}

// Clamp bounds v to [lo,hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// WindChill derives the effective cold exposure from min temperature and
// wind speed.
func WindChill(minTemp, windSpeed float64) float64 {
	return minTemp - windSpeed*0.5
}

// BuildInputs extracts the scoring-relevant values for a single day index
// from a canonical weather snapshot, pairing them with the air-quality
// snapshot, the vulnerability multiplier, and the anomaly history window.
//
// It validates the snapshot's structure: daily arrays must have one entry per
// day and hourly arrays 24 entries per day. A malformed snapshot yields a
// typed invalid-structure error, fatal for this computation only.
func BuildInputs(
	snap *types.CanonicalWeatherSnapshot,
	day int,
	aq types.AirQualitySnapshot,
	vulnerability float64,
	history []float64,
) (types.RiskInputs, error) {
	if snap == nil {
		return types.RiskInputs{}, types.NewAppError(types.ErrCodeInvalidStructure, "weather snapshot is nil", nil)
	}
	if day < 0 || day >= snap.Days {
		return types.RiskInputs{}, types.NewAppError(
			types.ErrCodeValidationInvalidDay,
			fmt.Sprintf("day index %d outside snapshot range [0,%d)", day, snap.Days),
			nil,
		)
	}
	if err := validateStructure(snap); err != nil {
		return types.RiskInputs{}, err
	}

	humidity := dayMean(snap.Hourly.Humidity, day)

	in := types.RiskInputs{
		MaxTemp:       snap.Daily.TempMax[day],
		MinTemp:       snap.Daily.TempMin[day],
		Humidity:      humidity,
		WindSpeed:     snap.Daily.WindMax[day],
		UVIndex:       snap.Daily.UVIndexMax[day],
		Precipitation: snap.Daily.PrecipSum[day],
		TempHistory:   history,
		AirQuality:    aq,
		Vulnerability: vulnerability,
	}
	in.WindChill = WindChill(in.MinTemp, in.WindSpeed)

	in.RequiredInputs = requiredWeatherInputs + requiredPollutantInputs
	in.ObservedInputs = observedWeatherInputs(snap) + aq.ObservedPollutants()

	return in, nil
}

// validateStructure checks the canonical snapshot invariants: daily series
// with exactly one entry per requested day, hourly series with 24 entries per
// requested day.
func validateStructure(snap *types.CanonicalWeatherSnapshot) error {
	days := snap.Days
	hours := days * 24

	daily := map[string]int{
		"temp_max":     len(snap.Daily.TempMax),
		"temp_min":     len(snap.Daily.TempMin),
		"wind_max":     len(snap.Daily.WindMax),
		"uv_index_max": len(snap.Daily.UVIndexMax),
		"precip_sum":   len(snap.Daily.PrecipSum),
	}
	for name, n := range daily {
		if n != days {
			return types.NewAppError(
				types.ErrCodeInvalidStructure,
				fmt.Sprintf("daily series %q has %d entries, want %d", name, n, days),
				nil,
			)
		}
	}

	hourly := map[string]int{
		"temperature":   len(snap.Hourly.Temperature),
		"humidity":      len(snap.Hourly.Humidity),
		"wind_speed":    len(snap.Hourly.WindSpeed),
		"precipitation": len(snap.Hourly.Precipitation),
	}
	for name, n := range hourly {
		if n != hours {
			return types.NewAppError(
				types.ErrCodeInvalidStructure,
				fmt.Sprintf("hourly series %q has %d entries, want %d", name, n, hours),
				nil,
			)
		}
	}

	return nil
}

// observedWeatherInputs counts how many of the six required weather inputs
// were genuinely observed rather than defaulted.
func observedWeatherInputs(snap *types.CanonicalWeatherSnapshot) int {
	observed := 0
	for _, field := range []string{
		types.FieldTempMax,
		types.FieldTempMin,
		types.FieldHourlyHumidity,
		types.FieldWindMax,
		types.FieldUVIndexMax,
		types.FieldPrecipSum,
	} {
		if !snap.Defaulted(field) {
			observed++
		}
	}
	return observed
}

// dayMean averages the 24 hourly values belonging to the given day.
func dayMean(hourly []float64, day int) float64 {
	start := day * 24
	var sum float64
	for _, v := range hourly[start : start+24] {
		sum += v
	}
	return sum / 24
}

// Score computes the three sub-indices, the composite score, and the
// confidence for the given inputs under the given configuration. Pure: equal
// inputs always produce equal results.
func Score(in types.RiskInputs, cfg types.RiskConfig) types.RiskResult {
	// Heat Stress Index.
	tempScore := Normalize(in.MaxTemp, HeatTempLo, HeatTempHi)
	humidityScore := Normalize(in.Humidity, HumidityLo, HumidityHi)
	anomalyScore := Normalize(TemperatureAnomaly(in.MaxTemp, in.TempHistory), AnomalyLo, AnomalyHi)
	hsi := tempScore*hsiTempWeight + humidityScore*hsiHumidityWeight + anomalyScore*hsiAnomalyWeight

	// Cold Stress Index. Snow cover is an external placeholder, absent from
	// both providers, so it contributes its default of zero.
	minTempScore := NormalizeInverted(in.MinTemp, ColdTempLo, ColdTempHi)
	windChillScore := NormalizeInverted(in.WindChill, ColdTempLo, ColdTempHi)
	snowScore := Normalize(0, SnowLo, SnowHi)
	csi := minTempScore*csiMinTempWeight + windChillScore*csiWindChillWeight + snowScore*csiSnowWeight

	// Air Quality Risk Index. Absent pollutants contribute zero; the missing
	// observation is already reflected in the confidence denominator.
	var pm25Score, pm10Score, no2Score float64
	if in.AirQuality.PM25 != nil {
		pm25Score = Normalize(*in.AirQuality.PM25, PM25Lo, PM25Hi)
	}
	if in.AirQuality.PM10 != nil {
		pm10Score = Normalize(*in.AirQuality.PM10, PM10Lo, PM10Hi)
	}
	if in.AirQuality.NO2 != nil {
		no2Score = Normalize(*in.AirQuality.NO2, NO2Lo, NO2Hi)
	}
	aqri := pm25Score*aqriPM25Weight + pm10Score*aqriPM10Weight + no2Score*aqriNO2Weight

	composite := hsi*cfg.Weights.Heat + csi*cfg.Weights.Cold + aqri*cfg.Weights.Air

	// The vulnerability multiplier scales the composite; zero means
	// "unsupplied" and is treated as neutral.
	if in.Vulnerability > 0 {
		composite *= in.Vulnerability
	}

	confidence := 0.0
	if in.RequiredInputs > 0 {
		confidence = float64(in.ObservedInputs) / float64(in.RequiredInputs)
	}

	return types.RiskResult{
		HSI:        Clamp(hsi, 0, 100),
		CSI:        Clamp(csi, 0, 100),
		AQRI:       Clamp(aqri, 0, 100),
		Composite:  Clamp(composite, 0, 100),
		Confidence: Clamp(confidence, 0, 1),
	}
}
