package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/couchcryptid/lake-evaporation-etl/internal/domain"
	"github.com/couchcryptid/lake-evaporation-etl/internal/observability"
)

// ReadingFetcher returns a sensor series' readings for one day. An empty
// slice means the series holds no data for the window.
type ReadingFetcher interface {
	FetchReadings(ctx context.Context, loc domain.LocationMetadata, reference string, kind domain.Kind, day domain.DayRange) ([]domain.Reading, error)
}

// Processor computes daily evaporation for one location at a time.
type Processor struct {
	fetcher    ReadingFetcher
	resolver   *Resolver
	constants  domain.CalculationConstants
	strategies []domain.SunshineStrategy
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewProcessor creates a Processor. Pass a nil resolver to disable raster
// substitution.
func NewProcessor(f ReadingFetcher, resolver *Resolver, constants domain.CalculationConstants, logger *slog.Logger, metrics *observability.Metrics) *Processor {
	return &Processor{
		fetcher:    f,
		resolver:   resolver,
		constants:  constants,
		strategies: domain.DefaultSunshineStrategies,
		logger:     logger,
		metrics:    metrics,
	}
}

// BeginRun resets per-run state.
func (p *Processor) BeginRun() {
	p.resolver.BeginRun()
}

// Process fetches, aggregates, gap-fills and calculates one location-day.
// Skips are reported as IncompleteDataError or ValidationError; a
// CalculationError or adapter error means the day failed.
func (p *Processor) Process(ctx context.Context, loc domain.LocationMetadata, day domain.DayRange, runID string) (domain.EvaporationResult, error) {
	log := p.logger.With(
		"location_id", loc.LocationID,
		"date", day.Date.Format(time.DateOnly),
		"run_id", runID,
	)

	consts, err := p.constants.Resolve(loc.Constants)
	if err != nil {
		return domain.EvaporationResult{}, fmt.Errorf("location %s constants: %w", loc.LocationID, err)
	}

	agg, sources, reasons, err := p.collect(ctx, log, loc, day)
	if err != nil {
		return domain.EvaporationResult{}, err
	}

	if missing := agg.Missing(); len(missing) > 0 && p.resolver.Eligible(loc) {
		for _, kind := range missing {
			if err := p.substitute(ctx, log, loc, kind, day, &agg, sources, reasons); err != nil {
				return domain.EvaporationResult{}, err
			}
		}
	} else if len(missing) > 0 {
		for _, kind := range missing {
			reasons[kind] = joinReason(reasons[kind], "raster fallback unavailable")
		}
	}

	if missing := agg.Missing(); len(missing) > 0 {
		r := make(map[domain.Kind]string, len(missing))
		for _, k := range missing {
			r[k] = reasons[k]
		}
		return domain.EvaporationResult{}, &domain.IncompleteDataError{Missing: missing, Reasons: r}
	}

	if !agg.Has(domain.KindSunshine) && !agg.Has(domain.KindRadiation) && !agg.Has(domain.KindCloud) && p.resolver.Eligible(loc) {
		p.substituteCloud(ctx, log, loc, day, &agg, sources)
	}

	if err := agg.Validate(); err != nil {
		return domain.EvaporationResult{}, err
	}
	if loc.Latitude == nil || *loc.Latitude < -90 || *loc.Latitude > 90 {
		return domain.EvaporationResult{}, &domain.ValidationError{Field: "latitude", Value: latitudeOrNaN(loc)}
	}

	geo := domain.SolarGeometryFor(*loc.Latitude, loc.Altitude, day.DayOfYear())
	sun := domain.EstimateSunshine(domain.SunshineInput{Aggregate: agg, Geometry: geo, Constants: consts}, p.strategies)
	if sun.Clamped {
		log.Warn("sunshine estimate clamped",
			"method", sun.Method, "raw", sun.Raw, "hours", sun.Hours, "max_daylight_hours", geo.MaxDaylightHours)
		p.metrics.Clamps.WithLabelValues("sunshine_" + sun.Method).Inc()
	}
	if sun.Origin == domain.OriginAssumption {
		log.Warn("no sunshine, radiation or cloud data; assuming zero sunshine hours")
	}
	sources[domain.KindSunshine] = domain.Source{Origin: sun.Origin, Method: sun.Method}

	comps, err := domain.Calculate(domain.CalculationInput{
		LocationID: loc.LocationID,
		Date:       day.Date,
		Aggregate:  agg,
		Constants:  consts,
		Geometry:   geo,
		Sunshine:   sun,
	})
	if err != nil {
		var calcErr *domain.CalculationError
		if errors.As(err, &calcErr) {
			log.Error("evaporation calculation failed", "field", calcErr.Field, "inputs", calcErr.Inputs)
		}
		return domain.EvaporationResult{}, err
	}
	if comps.RatioClamped {
		log.Warn("rs/rso ratio clamped", "rs", comps.Rs, "rso", geo.ClearSkyRadiation)
		p.metrics.Clamps.WithLabelValues("rs_rso").Inc()
	}
	if comps.Evaporation < 0 {
		log.Info("negative evaporation, condensation conditions", "value", comps.Evaporation)
	}

	return domain.EvaporationResult{
		LocationID:    loc.LocationID,
		LocationName:  loc.Name,
		TimeSeriesID:  loc.TimeSeriesID,
		Date:          day.Date,
		ValueMMPerDay: comps.Evaporation,
		Algorithm:     domain.AlgorithmShuttleworth,
		Inputs:        agg,
		Sunshine:      sun,
		Constants:     consts,
		Components:    comps,
		Sources:       sources,
		RunID:         runID,
		CalculatedAt:  domain.Now(),
	}, nil
}

// collect fetches every referenced sensor series and aggregates them.
func (p *Processor) collect(ctx context.Context, log *slog.Logger, loc domain.LocationMetadata, day domain.DayRange) (domain.DailyAggregate, map[domain.Kind]domain.Source, map[domain.Kind]string, error) {
	sources := make(map[domain.Kind]domain.Source)
	reasons := make(map[domain.Kind]string)
	fetched := make(map[domain.Kind]bool)

	var readings []domain.Reading
	for _, kind := range slices.Concat(domain.RequiredKinds, domain.OptionalKinds) {
		ref, ok := loc.Reference(kind)
		if !ok {
			reasons[kind] = "no sensor reference"
			continue
		}
		rs, err := p.fetcher.FetchReadings(ctx, loc, ref, kind, day)
		if err != nil {
			if ctx.Err() != nil {
				return domain.DailyAggregate{}, nil, nil, ctx.Err()
			}
			log.Warn("fetch readings failed", "kind", kind, "reference", ref, "error", err)
			reasons[kind] = "fetch failed: " + err.Error()
			continue
		}
		if len(rs) == 0 {
			log.Info("sensor series has no data for the day", "kind", kind, "reference", ref)
			reasons[kind] = "no sensor data"
			continue
		}
		for i := range rs {
			rs[i].Kind = kind
		}
		fetched[kind] = true
		readings = append(readings, rs...)
	}

	agg, dropped := domain.Aggregate(readings)
	p.logDropped(log, dropped)

	for kind := range fetched {
		if !agg.Has(kind) {
			reasons[kind] = "no usable sensor readings"
			continue
		}
		if isCloudLayer(kind) {
			sources[domain.KindCloud] = domain.Source{Origin: domain.OriginSensor}
			continue
		}
		sources[kind] = domain.Source{Origin: domain.OriginSensor}
	}
	return agg, sources, reasons, nil
}

// substitute fills one missing required kind from a gridded model. Only a
// cancelled context is returned as an error; resolution failures become
// reasons.
func (p *Processor) substitute(ctx context.Context, log *slog.Logger, loc domain.LocationMetadata, kind domain.Kind, day domain.DayRange, agg *domain.DailyAggregate, sources map[domain.Kind]domain.Source, reasons map[domain.Kind]string) error {
	sub, err := p.resolver.Resolve(ctx, loc, kind, day)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("raster fallback failed", "kind", kind, "error", err)
		reasons[kind] = joinReason(reasons[kind], err.Error())
		return nil
	}

	p.logDropped(log, agg.Fold(kind, sub.Readings))
	if !agg.Has(kind) {
		reasons[kind] = joinReason(reasons[kind], fmt.Sprintf("raster %s readings unusable", sub.Model))
		return nil
	}

	log.Info("parameter substituted from raster",
		"kind", kind, "model", sub.Model, "series_id", sub.Series.ID, "readings", len(sub.Readings))
	sources[kind] = domain.Source{Origin: domain.OriginRaster, Model: sub.Model}
	delete(reasons, kind)
	return nil
}

// substituteCloud tries total cloud cover from a gridded model so sunshine
// can be estimated instead of assumed. Failure is not an error.
func (p *Processor) substituteCloud(ctx context.Context, log *slog.Logger, loc domain.LocationMetadata, day domain.DayRange, agg *domain.DailyAggregate, sources map[domain.Kind]domain.Source) {
	sub, err := p.resolver.Resolve(ctx, loc, domain.KindCloud, day)
	if err != nil {
		log.Debug("raster cloud cover unavailable", "error", err)
		return
	}
	p.logDropped(log, agg.Fold(domain.KindCloud, sub.Readings))
	if agg.Has(domain.KindCloud) {
		sources[domain.KindCloud] = domain.Source{Origin: domain.OriginRaster, Model: sub.Model}
	}
}

// logDropped counts unconvertible readings and logs one line per unit.
func (p *Processor) logDropped(log *slog.Logger, dropped []error) {
	counts := make(map[domain.UnsupportedUnitError]int)
	for _, err := range dropped {
		var unitErr *domain.UnsupportedUnitError
		if !errors.As(err, &unitErr) {
			log.Warn("reading dropped", "error", err)
			continue
		}
		p.metrics.DroppedReadings.WithLabelValues(string(unitErr.Kind)).Inc()
		counts[*unitErr]++
	}
	for e, n := range counts {
		log.Warn("readings dropped", "kind", e.Kind, "unit", e.Symbol, "count", n)
	}
}

func isCloudLayer(k domain.Kind) bool {
	return k == domain.KindCloudLow || k == domain.KindCloudMid || k == domain.KindCloudHigh
}

func joinReason(existing, next string) string {
	if existing == "" {
		return next
	}
	return existing + "; " + next
}

func latitudeOrNaN(loc domain.LocationMetadata) float64 {
	if loc.Latitude == nil {
		return math.NaN()
	}
	return *loc.Latitude
}
