package domain

import "time"

// Origin records where a calculation input came from.
type Origin string

const (
	OriginSensor     Origin = "sensor"
	OriginRaster     Origin = "raster"
	OriginDerived    Origin = "derived"
	OriginAssumption Origin = "assumption"
)

// AlgorithmShuttleworth names the evaporation method in written metadata.
const AlgorithmShuttleworth = "shuttleworth"

// Source is the provenance of one parameter.
type Source struct {
	Origin Origin `json:"origin"`
	Model  string `json:"model,omitempty"`
	Method string `json:"method,omitempty"`
}

// EvaporationResult is one day's evaporation for one location, with the
// inputs and provenance it was computed from.
type EvaporationResult struct {
	LocationID    string               `json:"location_id"`
	LocationName  string               `json:"location_name,omitempty"`
	TimeSeriesID  string               `json:"time_series_id"`
	Date          time.Time            `json:"date"`
	ValueMMPerDay float64              `json:"value_mm_per_day"`
	Algorithm     string               `json:"algorithm"`
	Inputs        DailyAggregate       `json:"inputs"`
	Sunshine      SunshineEstimate     `json:"sunshine"`
	Constants     CalculationConstants `json:"constants"`
	Components    Components           `json:"components"`
	Sources       map[Kind]Source      `json:"sources"`
	RunID         string               `json:"run_id"`
	CalculatedAt  time.Time            `json:"calculated_at"`
}

// UsedRaster reports whether any parameter was substituted from a gridded model.
func (r EvaporationResult) UsedRaster() bool {
	for _, s := range r.Sources {
		if s.Origin == OriginRaster {
			return true
		}
	}
	return false
}

// OriginSummary is a compact provenance label: "sensor", "raster", or "mixed".
func (r EvaporationResult) OriginSummary() string {
	var sensor, raster bool
	for _, k := range RequiredKinds {
		switch r.Sources[k].Origin {
		case OriginSensor:
			sensor = true
		case OriginRaster:
			raster = true
		}
	}
	switch {
	case sensor && raster:
		return "mixed"
	case raster:
		return string(OriginRaster)
	default:
		return string(OriginSensor)
	}
}
