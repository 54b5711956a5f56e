package portal

import (
	"context"
	"sync"

	"github.com/couchcryptid/lake-evaporation-etl/internal/domain"
	"github.com/couchcryptid/lake-evaporation-etl/internal/observability"
)

// CatalogueFetcher lists a datasource's raster series for one model.
type CatalogueFetcher interface {
	FetchRasterCatalogue(ctx context.Context, datasourceID, model string) ([]domain.RasterSeries, error)
}

// CachedCatalogue keeps catalogue listings for the duration of a run.
type CachedCatalogue struct {
	inner   CatalogueFetcher
	metrics *observability.Metrics

	mu      sync.RWMutex
	entries map[catalogueKey][]domain.RasterSeries
}

type catalogueKey struct {
	datasource string
	model      string
}

// NewCachedCatalogue creates a cache decorator around a catalogue fetcher.
func NewCachedCatalogue(inner CatalogueFetcher, metrics *observability.Metrics) *CachedCatalogue {
	return &CachedCatalogue{
		inner:   inner,
		metrics: metrics,
		entries: make(map[catalogueKey][]domain.RasterSeries),
	}
}

func (c *CachedCatalogue) FetchRasterCatalogue(ctx context.Context, datasourceID, model string) ([]domain.RasterSeries, error) {
	key := catalogueKey{datasource: datasourceID, model: model}

	c.mu.RLock()
	series, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.metrics.CatalogueCache.WithLabelValues("hit").Inc()
		return series, nil
	}

	c.metrics.CatalogueCache.WithLabelValues("miss").Inc()
	series, err := c.inner.FetchRasterCatalogue(ctx, datasourceID, model)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = series
	c.mu.Unlock()
	return series, nil
}

// Reset drops every cached listing.
func (c *CachedCatalogue) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}
