package types

// IndexKind identifies one of the three risk sub-indices.
type IndexKind string

const (
	IndexHeat       IndexKind = "heat"
	IndexCold       IndexKind = "cold"
	IndexAirQuality IndexKind = "air_quality"
)

// AllIndexKinds lists the sub-indices in their canonical evaluation order.
// The batch evaluator iterates this slice so alert ordering is deterministic.
var AllIndexKinds = []IndexKind{IndexHeat, IndexCold, IndexAirQuality}

// Severity grades an alert by the number of regions it covers.
type Severity string

const (
	SeverityHigh    Severity = "high"
	SeverityExtreme Severity = "extreme"
)

// WeatherSource identifies which provider produced a canonical snapshot.
type WeatherSource string

const (
	SourceOpenMeteo WeatherSource = "open_meteo"
	SourceNASAPower WeatherSource = "nasa_power"
)

// Pollutant names the air-quality parameters the risk engine consumes.
type Pollutant string

const (
	PollutantPM25 Pollutant = "pm25"
	PollutantPM10 Pollutant = "pm10"
	PollutantNO2  Pollutant = "no2"
)

// RunStatus tracks the lifecycle of a single batch evaluation run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)
