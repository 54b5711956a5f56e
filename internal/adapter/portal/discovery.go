package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/couchcryptid/lake-evaporation-etl/internal/domain"
)

// referenceKeys maps discovery metadata keys to parameter kinds.
var referenceKeys = map[string]domain.Kind{
	"Temps":             domain.KindTemperature,
	"RHTs":              domain.KindHumidity,
	"WSpeedTs":          domain.KindWindSpeed,
	"AirPressureTs":     domain.KindPressure,
	"hoursOfSunshineTs": domain.KindSunshine,
	"globalRadiationTs": domain.KindRadiation,
	"cloudLowTs":        domain.KindCloudLow,
	"cloudMidTs":        domain.KindCloudMid,
	"cloudHighTs":       domain.KindCloudHigh,
}

type organization struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TimeZone string `json:"timeZone"`
}

type organizationsResponse struct {
	Organizations []organization `json:"organizations"`
}

type timeSeries struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Path              string         `json:"path"`
	ExchangeID        string         `json:"exchangeId"`
	UnitSymbol        string         `json:"unitSymbol"`
	Metadata          map[string]any `json:"metadata"`
	LocationID        string         `json:"locationId"`
	LocationName      string         `json:"locationName"`
	LocationLatitude  *float64       `json:"locationLatitude"`
	LocationLongitude *float64       `json:"locationLongitude"`
	LocationElevation *float64       `json:"locationElevation"`
}

// Discover lists every series tagged for evaporation across all
// organizations the account can see. Series of an organization that fails
// to list are skipped.
func (c *Client) Discover(ctx context.Context) ([]domain.LocationMetadata, error) {
	var orgs organizationsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/organizations", nil, nil, &orgs, "organizations"); err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}

	var locations []domain.LocationMetadata
	var errs []error
	for _, org := range orgs.Organizations {
		series, err := c.listSeries(ctx, org.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("list organization time series failed", "organization_id", org.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		c.index.add(series)

		for _, ts := range series {
			meta, ok := ts.Metadata[c.opts.DiscoveryTag].(map[string]any)
			if !ok {
				continue
			}
			locations = append(locations, toLocation(org, ts, meta))
		}
	}

	if len(locations) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	c.logger.Info("discovery finished", "organizations", len(orgs.Organizations), "locations", len(locations))
	return locations, nil
}

func (c *Client) listSeries(ctx context.Context, orgID string) ([]timeSeries, error) {
	query := url.Values{
		"includeLocationData": {"true"},
		"includeCoverage":     {"true"},
	}
	var series []timeSeries
	path := "/organizations/" + url.PathEscape(orgID) + "/timeSeries"
	if err := c.doJSON(ctx, http.MethodGet, path, query, nil, &series, "timeseries_list"); err != nil {
		return nil, fmt.Errorf("organization %s: %w", orgID, err)
	}
	return series, nil
}

func toLocation(org organization, ts timeSeries, meta map[string]any) domain.LocationMetadata {
	loc := domain.LocationMetadata{
		LocationID:     ts.LocationID,
		Name:           ts.LocationName,
		TimeSeriesID:   ts.ID,
		OrganizationID: org.ID,
		Timezone:       org.TimeZone,
		Latitude:       ts.LocationLatitude,
		Longitude:      ts.LocationLongitude,
		References:     make(map[domain.Kind]string),
	}
	if loc.LocationID == "" {
		loc.LocationID = ts.ID
	}
	if loc.Name == "" {
		loc.Name = ts.Name
	}
	if ts.LocationElevation != nil {
		loc.Altitude = *ts.LocationElevation
	}

	for key, kind := range referenceKeys {
		if ref, ok := meta[key].(string); ok && strings.TrimSpace(ref) != "" {
			loc.References[kind] = strings.TrimSpace(ref)
		}
	}

	loc.Constants = domain.ConstantOverrides{
		Albedo:          number(meta["albedo"]),
		AngstromA:       number(meta["angstromA"]),
		AngstromB:       number(meta["angstromB"]),
		LakeCoefficient: number(meta["lakeCoefficient"]),
	}
	return loc
}

// number reads a JSON number or numeric string.
func number(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}

// seriesIndex resolves path and exchange-id references and remembers each
// series' unit.
type seriesIndex struct {
	mu         sync.RWMutex
	byPath     map[string]string
	byExchange map[string]string
	units      map[string]string
}

func newSeriesIndex() *seriesIndex {
	return &seriesIndex{
		byPath:     make(map[string]string),
		byExchange: make(map[string]string),
		units:      make(map[string]string),
	}
}

func (i *seriesIndex) add(series []timeSeries) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, ts := range series {
		if ts.Path != "" {
			i.byPath[ts.Path] = ts.ID
		}
		if ts.ExchangeID != "" {
			i.byExchange[ts.ExchangeID] = ts.ID
		}
		if ts.UnitSymbol != "" {
			i.units[ts.ID] = ts.UnitSymbol
		}
	}
}

// resolve returns the series id a reference points to.
func (i *seriesIndex) resolve(ref domain.SeriesReference) (string, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var id string
	var ok bool
	switch ref.Type {
	case domain.RefTimeSeriesID:
		return ref.Value, nil
	case domain.RefPath:
		id, ok = i.byPath[ref.Value]
	case domain.RefExchangeID:
		id, ok = i.byExchange[ref.Value]
	}
	if !ok {
		return "", fmt.Errorf("unknown %s reference %q", ref.Type, ref.Value)
	}
	return id, nil
}

func (i *seriesIndex) unit(id string) string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.units[id]
}
