package influx

import (
	"context"
	"fmt"
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/couchcryptid/lake-evaporation-etl/internal/config"
	"github.com/couchcryptid/lake-evaporation-etl/internal/domain"
)

const measurement = "lake_evaporation"

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Writer stores evaporation results as InfluxDB points.
// It implements pipeline.ResultLoader.
type Writer struct {
	client influxdb2.Client
	api    pointWriter
	logger *slog.Logger
}

// NewWriter connects to InfluxDB and verifies the server is healthy.
func NewWriter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Writer, error) {
	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to influxdb: %w", err)
	}
	return &Writer{
		client: client,
		api:    client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		logger: logger,
	}, nil
}

// LoadBatch writes one point per result in a single blocking request.
func (w *Writer) LoadBatch(ctx context.Context, results []domain.EvaporationResult) error {
	if len(results) == 0 {
		return nil
	}
	points := make([]*write.Point, len(results))
	for i := range results {
		points[i] = toPoint(results[i])
	}
	if err := w.api.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d points: %w", len(points), err)
	}
	w.logger.Debug("results written to influxdb", "count", len(points))
	return nil
}

func (w *Writer) Close() {
	if w.client != nil {
		w.client.Close()
	}
}

// toPoint maps a result to a point stamped at the start of its local day.
func toPoint(r domain.EvaporationResult) *write.Point {
	c := r.Components
	tags := map[string]string{
		"location_id":     r.LocationID,
		"time_series_id":  r.TimeSeriesID,
		"origin":          r.OriginSummary(),
		"sunshine_method": r.Sunshine.Method,
	}
	fields := map[string]any{
		"value":            r.ValueMMPerDay,
		"et0":              c.ET0,
		"t_mean":           c.TMean,
		"rh_mean":          c.RHMean,
		"u2":               c.U2,
		"rn":               c.Rn,
		"radiation_term":   c.RadiationTerm,
		"aerodynamic_term": c.AerodynamicTerm,
		"sunshine_hours":   r.Sunshine.Hours,
		"lake_coefficient": r.Constants.LakeCoefficient,
	}
	return write.NewPoint(measurement, tags, fields, r.Date)
}
