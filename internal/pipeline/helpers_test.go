package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/lake-evaporation-etl/internal/domain"
	"github.com/couchcryptid/lake-evaporation-etl/internal/observability"
	"github.com/couchcryptid/lake-evaporation-etl/internal/pipeline"
)

// --- mocks ---

type fakeFetcher struct {
	readings map[domain.Kind][]domain.Reading
	errs     map[domain.Kind]error
}

func (f *fakeFetcher) FetchReadings(_ context.Context, _ domain.LocationMetadata, _ string, kind domain.Kind, _ domain.DayRange) ([]domain.Reading, error) {
	if err := f.errs[kind]; err != nil {
		return nil, err
	}
	return append([]domain.Reading(nil), f.readings[kind]...), nil
}

type fakeCatalogue struct {
	mu       sync.Mutex
	series   map[string][]domain.RasterSeries // by model
	err      error
	requests []string
	resets   int
}

func (c *fakeCatalogue) FetchRasterCatalogue(_ context.Context, _ string, model string) ([]domain.RasterSeries, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, model)
	if c.err != nil {
		return nil, c.err
	}
	return c.series[model], nil
}

func (c *fakeCatalogue) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
}

type fakePoints struct {
	points  map[string][]domain.Point // by series id
	queries []domain.RasterPointQuery
}

func (p *fakePoints) FetchRasterPoint(_ context.Context, q domain.RasterPointQuery) ([]domain.Point, error) {
	p.queries = append(p.queries, q)
	return p.points[q.SeriesID], nil
}

type fakeSource struct {
	locations []domain.LocationMetadata
	err       error
	calls     int
}

func (s *fakeSource) Discover(context.Context) ([]domain.LocationMetadata, error) {
	s.calls++
	return s.locations, s.err
}

type recordingLoader struct {
	mu      sync.Mutex
	batches [][]domain.EvaporationResult
	err     error
	loaded  chan struct{}
}

func (l *recordingLoader) LoadBatch(_ context.Context, results []domain.EvaporationResult) error {
	l.mu.Lock()
	l.batches = append(l.batches, results)
	l.mu.Unlock()
	if l.loaded != nil {
		l.loaded <- struct{}{}
	}
	return l.err
}

func (l *recordingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.batches)
}

var errUpstream = errors.New("upstream unavailable")

// --- fixtures ---

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// referenceDay is day-of-year 180.
func referenceDay() domain.DayRange {
	day, _ := domain.DayRangeIn(time.Date(2023, time.June, 29, 0, 0, 0, 0, time.UTC), "UTC")
	return day
}

func lakeAt(id string, lat, lon float64) domain.LocationMetadata {
	return domain.LocationMetadata{
		LocationID:   id,
		Name:         "Lake " + id,
		TimeSeriesID: "evap-" + id,
		Latitude:     &lat,
		Longitude:    &lon,
		Altitude:     23,
		References: map[domain.Kind]string{
			domain.KindTemperature: "tsId(temp)",
			domain.KindHumidity:    "tsId(rh)",
			domain.KindWindSpeed:   "tsId(wind)",
			domain.KindPressure:    "tsId(pressure)",
			domain.KindSunshine:    "tsId(sun)",
		},
	}
}

func at(day domain.DayRange, hour int) time.Time {
	return day.Start.Add(time.Duration(hour) * time.Hour)
}

// referenceReadings reproduce the published validation example.
func referenceReadings(day domain.DayRange) map[domain.Kind][]domain.Reading {
	r := func(kind domain.Kind, hour int, v float64, unit string) domain.Reading {
		return domain.Reading{Timestamp: at(day, hour), Value: v, Unit: unit, Kind: kind}
	}
	return map[domain.Kind][]domain.Reading{
		domain.KindTemperature: {
			r(domain.KindTemperature, 5, 19.5, "°C"),
			r(domain.KindTemperature, 15, 25.0, "°C"),
		},
		domain.KindHumidity: {
			r(domain.KindHumidity, 5, 85, "%"),
			r(domain.KindHumidity, 15, 65, "%"),
		},
		domain.KindWindSpeed: {
			r(domain.KindWindSpeed, 6, 7, "km/h"),
			r(domain.KindWindSpeed, 18, 11, "km/h"),
		},
		domain.KindPressure: {
			r(domain.KindPressure, 6, 1013, "hPa"),
		},
		domain.KindSunshine: {
			r(domain.KindSunshine, 12, 8.0, "h"),
		},
	}
}

func hourlyPoints(day domain.DayRange, v float64) []domain.Point {
	out := make([]domain.Point, 0, 24)
	for h := 0; h < 24; h++ {
		out = append(out, domain.Point{Timestamp: at(day, h), Value: v})
	}
	return out
}

func newResolver(c *fakeCatalogue, p *fakePoints) *pipeline.Resolver {
	return pipeline.NewResolver(c, p, pipeline.DefaultRasterSettings("1"), discardLogger(), newTestMetrics())
}
