package types

import (
	"time"
)

// Coordinate represents a geographic point.
type Coordinate struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// Region is a polygonal geographic area with associated demographic data.
// The polygon is an ordered list of vertices; the representative coordinate
// used for data acquisition is the unweighted average of those vertices.
type Region struct {
	Name    string       `json:"name" validate:"required"`
	Polygon []Coordinate `json:"polygon" validate:"min=3,dive"`

	// Vulnerability is an externally supplied multiplier derived from
	// population and seniority data. 1.0 means no adjustment.
	Vulnerability float64 `json:"vulnerability"`

	// Population is informational only; it does not feed the risk engine.
	Population int `json:"population,omitempty"`
}

// HourlySeries holds the hourly arrays of a canonical weather snapshot.
// All slices are parallel and chronologically ordered; their length is a
// multiple of 24 per requested day.
type HourlySeries struct {
	Temperature   []float64 `json:"temperature"`   // degrees C
	Humidity      []float64 `json:"humidity"`      // percent
	WindSpeed     []float64 `json:"wind_speed"`    // km/h
	Precipitation []float64 `json:"precipitation"` // mm
}

// DailySeries holds the daily aggregate arrays of a canonical weather
// snapshot, one entry per requested day.
type DailySeries struct {
	TempMax    []float64 `json:"temp_max"`    // degrees C
	TempMin    []float64 `json:"temp_min"`    // degrees C
	WindMax    []float64 `json:"wind_max"`    // km/h
	UVIndexMax []float64 `json:"uv_index_max"`
	PrecipSum  []float64 `json:"precip_sum"` // mm
}

// CanonicalWeatherSnapshot is the uniform internal shape all weather data is
// normalized into, regardless of the originating provider. Immutable once
// returned by the source client.
type CanonicalWeatherSnapshot struct {
	Lat    float64       `json:"lat"`
	Lon    float64       `json:"lon"`
	Days   int           `json:"days"`
	Source WeatherSource `json:"source"`

	Hourly HourlySeries `json:"hourly"`
	Daily  DailySeries  `json:"daily"`

	// DefaultedFields names the daily/hourly series that were absent from
	// the provider response and filled with fixed defaults. The risk engine
	// reads this to lower the confidence of results built on defaults.
	DefaultedFields []string `json:"defaulted_fields,omitempty"`

	FetchedAt time.Time `json:"fetched_at"`
}

// Defaulted reports whether the named series was filled with a default
// rather than observed from the provider.
func (s *CanonicalWeatherSnapshot) Defaulted(field string) bool {
	for _, f := range s.DefaultedFields {
		if f == field {
			return true
		}
	}
	return false
}

// Canonical series names used in CanonicalWeatherSnapshot.DefaultedFields.
const (
	FieldTempMax        = "temp_max"
	FieldTempMin        = "temp_min"
	FieldWindMax        = "wind_max"
	FieldUVIndexMax     = "uv_index_max"
	FieldPrecipSum      = "precip_sum"
	FieldHourlyHumidity = "hourly_humidity"
)

// AirQualitySnapshot holds the latest pollutant readings near a coordinate.
// All pollutant fields may be simultaneously nil; that is the canonical
// "no data" state and is valid, not an error.
type AirQualitySnapshot struct {
	PM25 *float64 `json:"pm25,omitempty"` // ug/m3
	PM10 *float64 `json:"pm10,omitempty"` // ug/m3
	NO2  *float64 `json:"no2,omitempty"`  // ug/m3

	Station    *string  `json:"station,omitempty"`
	DistanceKM *float64 `json:"distance_km,omitempty"`
}

// NoData reports whether the snapshot carries no pollutant readings at all.
func (s AirQualitySnapshot) NoData() bool {
	return s.PM25 == nil && s.PM10 == nil && s.NO2 == nil
}

// ObservedPollutants returns how many of the three pollutant fields are set.
func (s AirQualitySnapshot) ObservedPollutants() int {
	n := 0
	if s.PM25 != nil {
		n++
	}
	if s.PM10 != nil {
		n++
	}
	if s.NO2 != nil {
		n++
	}
	return n
}

// RiskInputs is the per-day subset of a weather snapshot relevant to scoring,
// paired with the air-quality snapshot and the vulnerability multiplier.
type RiskInputs struct {
	MaxTemp       float64 `json:"max_temp"`
	MinTemp       float64 `json:"min_temp"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"wind_speed"`
	UVIndex       float64 `json:"uv_index"`
	Precipitation float64 `json:"precipitation"`
	WindChill     float64 `json:"wind_chill"`

	// TempHistory is the ordered sequence of recent daily max temperatures
	// preceding the scored day, feeding the anomaly estimator.
	TempHistory []float64 `json:"temp_history,omitempty"`

	AirQuality    AirQualitySnapshot `json:"air_quality"`
	Vulnerability float64            `json:"vulnerability"`

	// ObservedInputs / RequiredInputs track how many of the engine's required
	// inputs were genuinely observed rather than defaulted.
	ObservedInputs int `json:"observed_inputs"`
	RequiredInputs int `json:"required_inputs"`
}

// RiskResult carries the three sub-indices, the composite score, and the
// confidence of a single risk computation. Ephemeral: recomputed on every
// request or tick, never persisted by the core.
type RiskResult struct {
	HSI       float64 `json:"hsi"`
	CSI       float64 `json:"csi"`
	AQRI      float64 `json:"aqri"`
	Composite float64 `json:"composite"`

	// Confidence in [0,1]: the fraction of required inputs that were
	// genuinely observed. A low score with low confidence means "unknown",
	// not "safe".
	Confidence float64 `json:"confidence"`

	Day         int       `json:"day"`
	GeneratedAt time.Time `json:"generated_at"`
}

// SubIndex returns the sub-index value for the given kind.
func (r RiskResult) SubIndex(kind IndexKind) float64 {
	switch kind {
	case IndexHeat:
		return r.HSI
	case IndexCold:
		return r.CSI
	case IndexAirQuality:
		return r.AQRI
	default:
		return 0
	}
}

// AlertCandidate aggregates the regions whose sub-index crossed its threshold
// in a single evaluation run. At most one candidate exists per index per run;
// an empty region set never produces an alert.
type AlertCandidate struct {
	Kind     IndexKind `json:"kind"`
	Regions  []string  `json:"regions"`
	Severity Severity  `json:"severity"`
}

// Alert is a persisted alert record as returned by the alert sink.
type Alert struct {
	ID        string    `json:"id"`
	Kind      IndexKind `json:"kind"`
	Severity  Severity  `json:"severity"`
	Regions   []string  `json:"regions"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// RegionRisk pairs a region name with its computed risk for one run.
type RegionRisk struct {
	Region string     `json:"region"`
	Result RiskResult `json:"result"`
}

// RunReport summarizes one batch evaluation run.
type RunReport struct {
	StartedAt        time.Time    `json:"started_at"`
	FinishedAt       time.Time    `json:"finished_at"`
	RegionsEvaluated int          `json:"regions_evaluated"`
	RegionsFailed    int          `json:"regions_failed"`
	Results          []RegionRisk `json:"results,omitempty"`
	Alerts           []Alert      `json:"alerts"`
}
