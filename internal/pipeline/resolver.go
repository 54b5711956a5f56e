package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/lake-evaporation-etl/internal/domain"
	"github.com/couchcryptid/lake-evaporation-etl/internal/observability"
)

// RasterCatalogue lists the raster series a datasource offers for one model.
type RasterCatalogue interface {
	FetchRasterCatalogue(ctx context.Context, datasourceID, model string) ([]domain.RasterSeries, error)
}

// RasterPointFetcher extracts a single grid point from a raster series.
type RasterPointFetcher interface {
	FetchRasterPoint(ctx context.Context, q domain.RasterPointQuery) ([]domain.Point, error)
}

// RasterSettings controls gridded-model substitution.
type RasterSettings struct {
	Enabled       bool
	UseAsFallback bool
	DatasourceID  string
	Models        domain.RasterModels
	Parameters    map[domain.Kind]string
	ExtractMode   string
}

// DefaultRasterSettings enables fallback with the built-in models and parameter table.
func DefaultRasterSettings(datasourceID string) RasterSettings {
	return RasterSettings{
		Enabled:       true,
		UseAsFallback: true,
		DatasourceID:  datasourceID,
		Models:        domain.DefaultRasterModels(),
		Parameters:    domain.DefaultRasterParameters,
		ExtractMode:   domain.ExtractStrict,
	}
}

// Substitution is a parameter resolved from a gridded model.
type Substitution struct {
	Kind     domain.Kind
	Model    string
	Series   domain.RasterSeries
	Readings []domain.Reading
}

var (
	errNoMatch = errors.New("no matching raster series")
	errNoData  = errors.New("raster series returned no data")
)

// Resolver fills parameter gaps from gridded weather models.
type Resolver struct {
	catalogue RasterCatalogue
	points    RasterPointFetcher
	settings  RasterSettings
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewResolver creates a Resolver.
func NewResolver(c RasterCatalogue, p RasterPointFetcher, settings RasterSettings, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	if settings.ExtractMode == "" {
		settings.ExtractMode = domain.ExtractStrict
	}
	if settings.Parameters == nil {
		settings.Parameters = domain.DefaultRasterParameters
	}
	return &Resolver{catalogue: c, points: p, settings: settings, logger: logger, metrics: metrics}
}

// Eligible reports whether raster substitution may be attempted for loc.
func (r *Resolver) Eligible(loc domain.LocationMetadata) bool {
	return r != nil && r.settings.Enabled && r.settings.UseAsFallback && loc.HasCoordinates()
}

// BeginRun drops cached catalogues so each run sees a fresh listing.
func (r *Resolver) BeginRun() {
	if r == nil {
		return
	}
	if c, ok := r.catalogue.(interface{ Reset() }); ok {
		c.Reset()
	}
}

// Resolve tries each candidate model for the location in order and returns
// the first one that yields data for the day.
func (r *Resolver) Resolve(ctx context.Context, loc domain.LocationMetadata, kind domain.Kind, day domain.DayRange) (Substitution, error) {
	if !loc.HasCoordinates() {
		return Substitution{}, &domain.RasterResolutionError{Kind: kind, Reason: "location has no valid coordinates"}
	}
	code, ok := r.settings.Parameters[kind]
	if !ok || code == "" {
		return Substitution{}, &domain.RasterResolutionError{Kind: kind, Reason: "no raster parameter configured"}
	}

	lat, lon := *loc.Latitude, *loc.Longitude
	models := r.settings.Models.ModelsFor(lat, lon)

	var reasons []string
	var lastErr error
	for _, model := range models {
		sub, err := r.tryModel(ctx, kind, code, model, lat, lon, day)
		if err == nil {
			r.metrics.RasterLookups.WithLabelValues(model, "resolved").Inc()
			return sub, nil
		}
		if ctx.Err() != nil {
			return Substitution{}, ctx.Err()
		}

		outcome := "error"
		switch {
		case errors.Is(err, errNoMatch):
			outcome = "no_match"
		case errors.Is(err, errNoData):
			outcome = "no_data"
		default:
			lastErr = err
		}
		r.metrics.RasterLookups.WithLabelValues(model, outcome).Inc()
		r.logger.Debug("raster model unavailable",
			"location_id", loc.LocationID, "kind", kind, "model", model, "code", code, "error", err)
		reasons = append(reasons, fmt.Sprintf("%s: %v", model, err))
	}

	return Substitution{}, &domain.RasterResolutionError{
		Kind:   kind,
		Models: models,
		Reason: strings.Join(reasons, "; "),
		Err:    lastErr,
	}
}

func (r *Resolver) tryModel(ctx context.Context, kind domain.Kind, code, model string, lat, lon float64, day domain.DayRange) (Substitution, error) {
	catalogue, err := r.catalogue.FetchRasterCatalogue(ctx, r.settings.DatasourceID, model)
	if err != nil {
		return Substitution{}, fmt.Errorf("fetch catalogue: %w", err)
	}

	series, ok := domain.FindRasterSeries(catalogue, model, code, day.Start, day.End)
	if !ok {
		return Substitution{}, fmt.Errorf("%w for %s", errNoMatch, code)
	}

	points, err := r.points.FetchRasterPoint(ctx, domain.RasterPointQuery{
		DatasourceID: r.settings.DatasourceID,
		SeriesID:     series.ID,
		Lat:          lat,
		Lon:          lon,
		From:         day.Start,
		Until:        day.End,
		ExtractMode:  r.settings.ExtractMode,
	})
	if err != nil {
		return Substitution{}, fmt.Errorf("fetch point data from %s: %w", series.ID, err)
	}
	if len(points) == 0 {
		return Substitution{}, fmt.Errorf("%w (%s)", errNoData, series.ID)
	}

	return Substitution{
		Kind:     kind,
		Model:    model,
		Series:   series,
		Readings: domain.ReadingsFromPoints(kind, series.Unit, points),
	}, nil
}
