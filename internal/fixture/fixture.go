// Package fixture stores one location-day of sensor readings as JSON so the
// calculation can run offline.
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/lake-evaporation-etl/internal/domain"
)

// Fixture is a location with the readings of a single day.
type Fixture struct {
	Location domain.LocationMetadata `json:"location"`
	Date     string                  `json:"date"`
	Readings []domain.Reading        `json:"readings"`
}

// Load reads a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fixture %s: %w", path, err)
	}
	return &f, nil
}

// Save writes the fixture as indented JSON.
func (f *Fixture) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Day returns the fixture's day window in the location's timezone.
func (f *Fixture) Day() (domain.DayRange, error) {
	d, err := time.Parse(time.DateOnly, f.Date)
	if err != nil {
		return domain.DayRange{}, fmt.Errorf("fixture date: %w", err)
	}
	return domain.DayRangeIn(d, f.Location.Timezone)
}

// FetchReadings returns the fixture's readings of kind inside the day window.
// It satisfies pipeline.ReadingFetcher.
func (f *Fixture) FetchReadings(_ context.Context, _ domain.LocationMetadata, _ string, kind domain.Kind, day domain.DayRange) ([]domain.Reading, error) {
	var out []domain.Reading
	for _, r := range f.Readings {
		if r.Kind != kind || r.Timestamp.Before(day.Start) || r.Timestamp.After(day.End) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Diurnal describes a synthetic day: extremes are reached at 05:00 and 15:00
// local time, humidity moves opposite to temperature.
type Diurnal struct {
	TMin, TMax    float64 // °C
	RHMin, RHMax  float64 // %
	WindMean      float64 // km/h
	Pressure      float64 // hPa
	SunshineHours float64 // negative omits the series
	Interval      time.Duration
}

// ReferenceDay is the published validation day for 51°N at 23 m altitude.
var ReferenceDay = Diurnal{
	TMin: 19.5, TMax: 25, RHMin: 65, RHMax: 85,
	WindMean: 9, Pressure: 1013, SunshineHours: 8,
	Interval: time.Hour,
}

// Generate builds readings for day following d. Kinds in omit are left out.
func Generate(day domain.DayRange, d Diurnal, omit map[domain.Kind]bool) []domain.Reading {
	interval := d.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	var out []domain.Reading
	add := func(kind domain.Kind, ts time.Time, v float64, unit string) {
		if !omit[kind] {
			out = append(out, domain.Reading{Timestamp: ts, Value: v, Unit: unit, Kind: kind})
		}
	}

	for ts := day.Start; !ts.After(day.End); ts = ts.Add(interval) {
		h := ts.Sub(day.Start).Hours()
		w := warmth(h)
		add(domain.KindTemperature, ts, d.TMin+(d.TMax-d.TMin)*w, "°C")
		add(domain.KindHumidity, ts, d.RHMax-(d.RHMax-d.RHMin)*w, "%")
		add(domain.KindWindSpeed, ts, d.WindMean*(1+0.2*math.Sin(2*math.Pi*h/24)), "km/h")
		add(domain.KindPressure, ts, d.Pressure, "hPa")
	}
	if d.SunshineHours >= 0 {
		add(domain.KindSunshine, day.Start.Add(12*time.Hour), d.SunshineHours, "h")
	}
	return out
}

// warmth is 0 at 05:00, 1 at 15:00 and follows half cosines in between.
func warmth(h float64) float64 {
	if h >= 5 && h <= 15 {
		return (1 - math.Cos(math.Pi*(h-5)/10)) / 2
	}
	if h < 5 {
		h += 24
	}
	return 1 - (1-math.Cos(math.Pi*(h-15)/14))/2
}
