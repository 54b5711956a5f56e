package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/lake-evaporation-etl/internal/domain"
)

func sampleResult(locationID, seriesID string) domain.EvaporationResult {
	zurich, _ := time.LoadLocation("Europe/Zurich")
	return domain.EvaporationResult{
		LocationID:    locationID,
		TimeSeriesID:  seriesID,
		Date:          time.Date(2024, 6, 18, 0, 0, 0, 0, zurich),
		ValueMMPerDay: 4.34,
		Algorithm:     domain.AlgorithmShuttleworth,
		Sunshine:      domain.SunshineEstimate{Hours: 8, Method: "measured"},
		Sources: map[domain.Kind]domain.Source{
			domain.KindTemperature: {Origin: domain.OriginSensor},
			domain.KindHumidity:    {Origin: domain.OriginSensor},
			domain.KindWindSpeed:   {Origin: domain.OriginRaster, Model: domain.ModelICONEU},
			domain.KindPressure:    {Origin: domain.OriginSensor},
		},
		RunID: "run-1",
	}
}

func TestClient_LoadBatch(t *testing.T) {
	p, srv := newPortalServer(t)
	var (
		mu     sync.Mutex
		bodies []writeRequest
	)
	p.mux.HandleFunc("POST /timeseries/evap-1/data", func(w http.ResponseWriter, r *http.Request) {
		var body writeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	p.mux.HandleFunc("POST /timeseries/evap-2/data", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "read only series", http.StatusForbidden)
	})

	err := testClient(srv.URL).LoadBatch(context.Background(), []domain.EvaporationResult{
		sampleResult("loc-1", "evap-1"),
		sampleResult("loc-2", "evap-2"),
		sampleResult("loc-3", ""),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write location loc-2 to evap-2")
	assert.Contains(t, err.Error(), "location loc-3: no target time series")

	require.Len(t, bodies, 1)
	got := bodies[0]
	assert.Equal(t, "2024-06-18T00:00:00", got.Timestamp)
	assert.InDelta(t, 4.34, got.Value, 1e-9)
	assert.Equal(t, writeMetadata{
		ValueUnit:      "mm",
		ValueType:      "daily_evaporation",
		Algorithm:      "shuttleworth",
		Origin:         "mixed",
		SunshineMethod: "measured",
		Sources: map[string]string{
			"temperature": "sensor",
			"humidity":    "sensor",
			"wind_speed":  "raster:icon_eu",
			"pressure":    "sensor",
		},
		RunID: "run-1",
	}, got.Metadata)
}

func TestClient_LoadBatchStopsOnCancel(t *testing.T) {
	_, srv := newPortalServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := testClient(srv.URL).LoadBatch(ctx, []domain.EvaporationResult{sampleResult("loc-1", "evap-1")})
	assert.ErrorIs(t, err, context.Canceled)
}
