package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/lake-evaporation-etl/internal/domain"
)

type dataPoint struct {
	Timestamp string   `json:"timestamp"`
	Value     *float64 `json:"value"`
}

// FetchReadings returns the readings of the referenced series inside the day
// window. The unit comes from the series' discovery record; an unknown unit
// is taken as canonical.
func (c *Client) FetchReadings(ctx context.Context, _ domain.LocationMetadata, reference string, kind domain.Kind, day domain.DayRange) ([]domain.Reading, error) {
	ref, err := domain.ParseReference(reference)
	if err != nil {
		return nil, err
	}
	id, err := c.index.resolve(ref)
	if err != nil {
		return nil, err
	}

	query := url.Values{
		"start": {day.Start.Format(time.RFC3339)},
		"end":   {day.End.Format(time.RFC3339)},
	}
	var raw json.RawMessage
	path := "/timeseries/" + url.PathEscape(id) + "/data"
	if err := c.doJSON(ctx, http.MethodGet, path, query, nil, &raw, "timeseries_data"); err != nil {
		return nil, fmt.Errorf("fetch %s series %s: %w", kind, id, err)
	}

	var points []dataPoint
	if err := decodeList(raw, "data", &points); err != nil {
		return nil, fmt.Errorf("decode series %s data: %w", id, err)
	}

	unit := c.index.unit(id)
	readings := make([]domain.Reading, 0, len(points))
	for _, p := range points {
		if p.Value == nil {
			continue
		}
		ts, err := parseTimestamp(p.Timestamp)
		if err != nil {
			c.logger.Debug("skipping reading with bad timestamp", "series_id", id, "timestamp", p.Timestamp)
			continue
		}
		if ts.Before(day.Start) || ts.After(day.End) {
			continue
		}
		readings = append(readings, domain.Reading{Timestamp: ts, Value: *p.Value, Unit: unit, Kind: kind})
	}
	return readings, nil
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// parseTimestamp parses portal timestamps. Values without a zone are UTC.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
