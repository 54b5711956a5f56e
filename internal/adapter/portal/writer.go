package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/couchcryptid/lake-evaporation-etl/internal/domain"
)

const (
	valueUnit = "mm"
	valueType = "daily_evaporation"
)

type writeRequest struct {
	Timestamp string        `json:"timestamp"`
	Value     float64       `json:"value"`
	Metadata  writeMetadata `json:"metadata"`
}

type writeMetadata struct {
	ValueUnit      string            `json:"value_unit"`
	ValueType      string            `json:"value_type"`
	Algorithm      string            `json:"algorithm"`
	Origin         string            `json:"origin"`
	SunshineMethod string            `json:"sunshine_method"`
	Sources        map[string]string `json:"sources"`
	RunID          string            `json:"run_id"`
}

// LoadBatch writes each result to its evaporation series, stamped at local
// midnight of the target date. A failed write does not stop the others.
func (c *Client) LoadBatch(ctx context.Context, results []domain.EvaporationResult) error {
	var errs []error
	for _, r := range results {
		if err := c.writeResult(ctx, r); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, err)
			continue
		}
		c.logger.Debug("evaporation written", "location_id", r.LocationID, "time_series_id", r.TimeSeriesID)
	}
	return errors.Join(errs...)
}

func (c *Client) writeResult(ctx context.Context, r domain.EvaporationResult) error {
	if r.TimeSeriesID == "" {
		return fmt.Errorf("location %s: no target time series", r.LocationID)
	}
	body := newWriteRequest(r)
	path := "/timeseries/" + url.PathEscape(r.TimeSeriesID) + "/data"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, body, nil, "write"); err != nil {
		return fmt.Errorf("write location %s to %s: %w", r.LocationID, r.TimeSeriesID, err)
	}
	return nil
}

func newWriteRequest(r domain.EvaporationResult) writeRequest {
	sources := make(map[string]string, len(r.Sources))
	for kind, s := range r.Sources {
		v := string(s.Origin)
		if s.Model != "" {
			v += ":" + s.Model
		}
		sources[string(kind)] = v
	}
	return writeRequest{
		Timestamp: r.Date.Format("2006-01-02") + "T00:00:00",
		Value:     r.ValueMMPerDay,
		Metadata: writeMetadata{
			ValueUnit:      valueUnit,
			ValueType:      valueType,
			Algorithm:      r.Algorithm,
			Origin:         r.OriginSummary(),
			SunshineMethod: r.Sunshine.Method,
			Sources:        sources,
			RunID:          r.RunID,
		},
	}
}
