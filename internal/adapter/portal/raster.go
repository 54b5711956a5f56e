package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/lake-evaporation-etl/internal/domain"
)

type rasterSeries struct {
	TimeseriesID string `json:"timeseriesId"`
	Path         string `json:"path"`
	Name         string `json:"name"`
	UnitSymbol   string `json:"unitSymbol"`
	Coverage     *struct {
		From  string `json:"from"`
		Until string `json:"until"`
	} `json:"coverage"`
}

type rasterPointSeries struct {
	UnitSymbol string             `json:"unitSymbol"`
	Data       []rasterPointValue `json:"data"`
}

type rasterPointValue struct {
	Time string          `json:"time"`
	Data json.RawMessage `json:"data"`
}

// FetchRasterCatalogue lists the raster series of a datasource that belong
// to model.
func (c *Client) FetchRasterCatalogue(ctx context.Context, datasourceID, model string) ([]domain.RasterSeries, error) {
	var raw json.RawMessage
	p := "/raster/datasources/" + url.PathEscape(datasourceID) + "/timeSeries"
	if err := c.doJSON(ctx, http.MethodGet, p, nil, nil, &raw, "raster_catalogue"); err != nil {
		return nil, fmt.Errorf("raster catalogue %s: %w", datasourceID, err)
	}

	var entries []rasterSeries
	if err := decodeList(raw, "timeSeries", &entries); err != nil {
		return nil, fmt.Errorf("raster catalogue %s: %w", datasourceID, err)
	}

	out := make([]domain.RasterSeries, 0, len(entries))
	for _, e := range entries {
		s := domain.RasterSeries{
			ID:            e.TimeseriesID,
			ParameterCode: e.Name,
			Path:          e.Path,
			Unit:          e.UnitSymbol,
		}
		if s.ParameterCode == "" {
			s.ParameterCode = path.Base(e.Path)
		}
		if e.Coverage != nil {
			from, _ := parseTimestamp(e.Coverage.From)
			until, _ := parseTimestamp(e.Coverage.Until)
			s.Coverage = &domain.Coverage{From: from, Until: until}
		}
		if s.MatchesModel(model) {
			out = append(out, s)
		}
	}
	return out, nil
}

// FetchRasterPoint extracts the values of one raster series at a coordinate.
// When the provider returns every ensemble member, their mean is used.
func (c *Client) FetchRasterPoint(ctx context.Context, q domain.RasterPointQuery) ([]domain.Point, error) {
	points, err := json.Marshal([]map[string]float64{{"lat": q.Lat, "lon": q.Lon}})
	if err != nil {
		return nil, err
	}
	query := url.Values{
		"extractMode":     {q.ExtractMode},
		"allModelMembers": {"true"},
		"from":            {q.From.UTC().Format(time.RFC3339)},
		"until":           {q.Until.UTC().Format(time.RFC3339)},
		"points":          {string(points)},
	}

	var series []rasterPointSeries
	p := "/raster/datasources/" + url.PathEscape(q.DatasourceID) + "/timeSeries/" + url.PathEscape(q.SeriesID) + "/points"
	if err := c.doJSON(ctx, http.MethodGet, p, query, nil, &series, "raster_points"); err != nil {
		return nil, fmt.Errorf("raster points %s: %w", q.SeriesID, err)
	}

	var out []domain.Point
	for _, s := range series {
		for _, v := range s.Data {
			ts, err := parseTimestamp(v.Time)
			if err != nil {
				continue
			}
			value, ok := memberMean(v.Data)
			if !ok {
				continue
			}
			out = append(out, domain.Point{Timestamp: ts, Value: value})
		}
	}
	return out, nil
}

// memberMean decodes a single value or a list of ensemble member values.
func memberMean(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	if raw[0] != '[' {
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return 0, false
		}
		return v, true
	}

	var members []*float64
	if err := json.Unmarshal(raw, &members); err != nil {
		return 0, false
	}
	values := make([]float64, 0, len(members))
	for _, m := range members {
		if m != nil {
			values = append(values, *m)
		}
	}
	if len(values) == 0 {
		return 0, false
	}
	return stat.Mean(values, nil), true
}

// decodeList accepts a bare JSON list or an object wrapping it under key.
func decodeList(raw json.RawMessage, key string, out any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '[' {
		return json.Unmarshal(raw, out)
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return err
	}
	inner, ok := wrapped[key]
	if !ok {
		return fmt.Errorf("response has no %q list", key)
	}
	return json.Unmarshal(inner, out)
}
