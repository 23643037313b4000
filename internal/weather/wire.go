package weather

// Wire DTOs for the two weather providers. The primary (Open-Meteo shaped)
// returns optional hourly and daily objects as parallel arrays keyed by field
// name. The secondary (NASA POWER shaped) returns values nested under
// properties.parameter, keyed by parameter name then by YYYYMMDD date.

type openMeteoResponse struct {
	Latitude  float64          `json:"latitude"`
	Longitude float64          `json:"longitude"`
	Hourly    *openMeteoHourly `json:"hourly"`
	Daily     *openMeteoDaily  `json:"daily"`
}

type openMeteoHourly struct {
	Time          []string  `json:"time"`
	Temperature   []float64 `json:"temperature_2m"`
	Humidity      []float64 `json:"relativehumidity_2m"`
	WindSpeed     []float64 `json:"windspeed_10m"`
	Precipitation []float64 `json:"precipitation"`
}

type openMeteoDaily struct {
	Time       []string  `json:"time"`
	TempMax    []float64 `json:"temperature_2m_max"`
	TempMin    []float64 `json:"temperature_2m_min"`
	WindMax    []float64 `json:"windspeed_10m_max"`
	UVIndexMax []float64 `json:"uv_index_max"`
	PrecipSum  []float64 `json:"precipitation_sum"`
}

// powerFillValue marks missing observations in NASA POWER responses.
const powerFillValue = -999.0

type powerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// NASA POWER parameter names for the daily point endpoint.
const (
	powerParamTempMax = "T2M_MAX"
	powerParamTempMin = "T2M_MIN"
	powerParamWind    = "WS2M"
	powerParamPrecip  = "PRECTOTCORR"
	powerParamUVIndex = "ALLSKY_SFC_UV_INDEX"
)
