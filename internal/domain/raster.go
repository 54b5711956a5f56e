package domain

import (
	"fmt"
	"strings"
	"time"
)

// Default gridded weather models.
const (
	ModelICONEU = "icon_eu"
	ModelGFS    = "gfs"

	// ExtractStrict asks the provider for its own grid value without
	// additional spatial interpolation.
	ExtractStrict = "strict"
)

// Europe bounding box, inclusive on every edge.
const (
	europeLatMin = 35.0
	europeLatMax = 72.0
	europeLonMin = -25.0
	europeLonMax = 45.0
)

// DefaultRasterParameters maps reading kinds to raster parameter codes.
var DefaultRasterParameters = map[Kind]string{
	KindTemperature: "TMP_2M",
	KindHumidity:    "RH_2M",
	KindWindSpeed:   "FF_10M",
	KindPressure:    "PRMSL",
	KindCloud:       "TCDC",
}

// RasterParametersWith returns the default parameter table with overrides
// applied. Override keys are kind names.
func RasterParametersWith(overrides map[string]string) (map[Kind]string, error) {
	out := make(map[Kind]string, len(DefaultRasterParameters))
	for k, v := range DefaultRasterParameters {
		out[k] = v
	}
	for name, code := range overrides {
		kind := Kind(strings.ToLower(strings.TrimSpace(name)))
		if _, ok := DefaultRasterParameters[kind]; !ok {
			return nil, fmt.Errorf("no raster substitution for kind %q", name)
		}
		out[kind] = code
	}
	return out, nil
}

// RasterModels names the models used inside and outside Europe.
type RasterModels struct {
	Europe         string
	EuropeFallback string
	Global         string
}

// DefaultRasterModels returns icon_eu with gfs fallback for Europe, and gfs elsewhere.
func DefaultRasterModels() RasterModels {
	return RasterModels{Europe: ModelICONEU, EuropeFallback: ModelGFS, Global: ModelGFS}
}

// InEurope reports whether a coordinate lies in the European model domain.
func InEurope(lat, lon float64) bool {
	return lat >= europeLatMin && lat <= europeLatMax && lon >= europeLonMin && lon <= europeLonMax
}

// ModelsFor returns the candidate models for a location in priority order.
func (m RasterModels) ModelsFor(lat, lon float64) []string {
	if InEurope(lat, lon) {
		if m.EuropeFallback == "" || m.EuropeFallback == m.Europe {
			return []string{m.Europe}
		}
		return []string{m.Europe, m.EuropeFallback}
	}
	return []string{m.Global}
}

// Coverage is the time span a series holds data for. Zero bounds are open.
type Coverage struct {
	From  time.Time `json:"from"`
	Until time.Time `json:"until"`
}

// Covers reports whether the coverage overlaps [from, until].
func (c Coverage) Covers(from, until time.Time) bool {
	if !c.From.IsZero() && c.From.After(until) {
		return false
	}
	if !c.Until.IsZero() && c.Until.Before(from) {
		return false
	}
	return true
}

// RasterSeries is one catalogue entry of a raster datasource.
type RasterSeries struct {
	ID            string    `json:"id"`
	ParameterCode string    `json:"parameter_code"`
	Path          string    `json:"path"`
	Unit          string    `json:"unit"`
	Coverage      *Coverage `json:"coverage,omitempty"`
}

// MatchesModel reports whether the series belongs to the given model.
func (s RasterSeries) MatchesModel(model string) bool {
	path := strings.ToLower(s.Path)
	m := strings.ToLower(model)
	return strings.Contains(path, "/"+m+"/")
}

// FindRasterSeries returns the first catalogue entry for (model, code) whose
// coverage overlaps the requested range.
func FindRasterSeries(catalogue []RasterSeries, model, code string, from, until time.Time) (RasterSeries, bool) {
	for _, s := range catalogue {
		if !strings.EqualFold(s.ParameterCode, code) || !s.MatchesModel(model) {
			continue
		}
		if s.Coverage != nil && !s.Coverage.Covers(from, until) {
			continue
		}
		return s, true
	}
	return RasterSeries{}, false
}

// RasterPointQuery describes a point extraction from one raster series.
type RasterPointQuery struct {
	DatasourceID string
	SeriesID     string
	Lat          float64
	Lon          float64
	From         time.Time
	Until        time.Time
	ExtractMode  string
}
