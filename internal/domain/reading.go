package domain

import "time"

// Kind identifies the physical parameter a reading measures.
type Kind string

const (
	KindTemperature Kind = "temperature"
	KindHumidity    Kind = "humidity"
	KindWindSpeed   Kind = "wind_speed"
	KindPressure    Kind = "pressure"
	KindSunshine    Kind = "sunshine"
	KindRadiation   Kind = "radiation"
	KindCloudLow    Kind = "cloud_low"
	KindCloudMid    Kind = "cloud_mid"
	KindCloudHigh   Kind = "cloud_high"
	// KindCloud is total cloud cover, as delivered by gridded models.
	KindCloud Kind = "cloud"
)

// RequiredKinds must all resolve before a day can be calculated.
var RequiredKinds = []Kind{KindTemperature, KindHumidity, KindWindSpeed, KindPressure}

// OptionalKinds feed the sunshine estimate when present.
var OptionalKinds = []Kind{KindSunshine, KindRadiation, KindCloudLow, KindCloudMid, KindCloudHigh}

// Reading is one timestamped observation in the unit it was recorded in.
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Kind      Kind      `json:"kind"`
}

// Point is a bare (timestamp, value) pair as returned by raster extraction.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ReadingsFromPoints tags raw points with a kind and unit.
func ReadingsFromPoints(kind Kind, unit string, points []Point) []Reading {
	out := make([]Reading, 0, len(points))
	for _, p := range points {
		out = append(out, Reading{Timestamp: p.Timestamp, Value: p.Value, Unit: unit, Kind: kind})
	}
	return out
}
