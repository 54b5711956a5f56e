//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/lake-evaporation-etl/internal/adapter/kafka"
	"github.com/couchcryptid/lake-evaporation-etl/internal/adapter/portal"
	"github.com/couchcryptid/lake-evaporation-etl/internal/config"
	"github.com/couchcryptid/lake-evaporation-etl/internal/domain"
	"github.com/couchcryptid/lake-evaporation-etl/internal/observability"
	"github.com/couchcryptid/lake-evaporation-etl/internal/pipeline"
)

const testResultsTopic = "test-lake-evaporation-results"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("lake-evaporation"))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start kafka container")

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

// fakePortal serves two tagged lakes. The second has no humidity series and
// no coordinates, so it can only be skipped.
type fakePortal struct {
	mu     sync.Mutex
	writes map[string]json.RawMessage
}

func newFakePortal(t *testing.T) *httptest.Server {
	t.Helper()
	fp := &fakePortal{writes: make(map[string]json.RawMessage)}
	readings := map[string]string{
		"ta": `[{"timestamp":"2023-06-29T05:00:00Z","value":19.5},{"timestamp":"2023-06-29T15:00:00Z","value":25.0}]`,
		"rh": `[{"timestamp":"2023-06-29T05:00:00Z","value":85},{"timestamp":"2023-06-29T15:00:00Z","value":65}]`,
		"ws": `[{"timestamp":"2023-06-29T06:00:00Z","value":7},{"timestamp":"2023-06-29T18:00:00Z","value":11}]`,
		"pa": `[{"timestamp":"2023-06-29T06:00:00Z","value":1013}]`,
		"sd": `[{"timestamp":"2023-06-29T12:00:00Z","value":8}]`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Csrf-Token", "it-token")
	})
	mux.HandleFunc("GET /organizations", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"organizations":[{"id":"org","name":"Water board","timeZone":"UTC"}]}`)
	})
	mux.HandleFunc("GET /organizations/org/timeSeries", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[
		  {"id":"evap-a","locationId":"lake-a","locationName":"Lake A","locationLatitude":51,"locationLongitude":0.5,"locationElevation":23,
		   "metadata":{"lakeEvaporation":{"Temps":"tsPath(/a/TA)","RHTs":"tsId(rh)","WSpeedTs":"tsId(ws)","AirPressureTs":"tsId(pa)","hoursOfSunshineTs":"tsId(sd)"}}},
		  {"id":"evap-b","locationId":"lake-b","locationName":"Lake B",
		   "metadata":{"lakeEvaporation":{"Temps":"tsId(ta)","WSpeedTs":"tsId(ws)","AirPressureTs":"tsId(pa)"}}},
		  {"id":"ta","path":"/a/TA","unitSymbol":"°C"},
		  {"id":"rh","unitSymbol":"%"},
		  {"id":"ws","unitSymbol":"km/h"},
		  {"id":"pa","unitSymbol":"hPa"},
		  {"id":"sd","unitSymbol":"h"}
		]`)
	})
	mux.HandleFunc("GET /timeseries/{id}/data", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, readings[r.PathValue("id")])
	})
	mux.HandleFunc("POST /timeseries/{id}/data", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fp.mu.Lock()
		fp.writes[r.PathValue("id")] = body
		fp.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !strings.HasPrefix(r.URL.Path, "/auth/") && r.Header.Get("X-Csrf-Token") != "it-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestKafkaWriter verifies that kafka.Writer publishes results keyed by
// location with provenance headers.
func TestKafkaWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testResultsTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testResultsTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	result := domain.EvaporationResult{
		LocationID:    "lake-a",
		TimeSeriesID:  "evap-a",
		Date:          time.Date(2023, 6, 29, 0, 0, 0, 0, time.UTC),
		ValueMMPerDay: 4.34,
		Algorithm:     domain.AlgorithmShuttleworth,
		Sources:       map[domain.Kind]domain.Source{domain.KindTemperature: {Origin: domain.OriginSensor}},
		RunID:         "run-1",
		CalculatedAt:  time.Date(2023, 6, 30, 1, 0, 0, 0, time.UTC),
	}
	require.NoError(t, writer.LoadBatch(ctx, []domain.EvaporationResult{result}))

	msg := readOne(ctx, t, broker)
	assert.Equal(t, "lake-a", string(msg.Key))
	headers := headerMap(msg)
	assert.Equal(t, "run-1", headers["run_id"])
	assert.Equal(t, "sensor", headers["origin_summary"])
	_, err := time.Parse(time.RFC3339, headers["calculated_at"])
	assert.NoError(t, err, "calculated_at should be valid RFC3339")

	var got domain.EvaporationResult
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.InDelta(t, 4.34, got.ValueMMPerDay, 1e-9)
}

// TestPipelineEndToEnd runs discovery, calculation and both sinks against a
// fake portal and a real Kafka broker.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testResultsTopic)
	portalSrv := newFakePortal(t)

	metrics := observability.NewMetricsForTesting()
	client := portal.NewClient(portal.Options{
		BaseURL:       portalSrv.URL,
		Username:      "etl",
		Password:      "secret",
		Timeout:       5 * time.Second,
		MaxRetries:    1,
		RetryInterval: 10 * time.Millisecond,
	}, discardLogger(), metrics)

	settings := pipeline.DefaultRasterSettings("1")
	settings.Enabled = false
	resolver := pipeline.NewResolver(portal.NewCachedCatalogue(client, metrics), client, settings, discardLogger(), metrics)
	processor := pipeline.NewProcessor(client, resolver, domain.DefaultConstants(), discardLogger(), metrics)

	writer := kafka.NewWriter(&config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testResultsTopic}, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(client, processor, []pipeline.Sink{
		{Name: "portal", Loader: client},
		{Name: "kafka", Loader: writer},
	}, pipeline.Options{Timezone: "UTC"}, discardLogger(), metrics)

	target := time.Date(2023, 6, 29, 0, 0, 0, 0, time.UTC)
	summary, err := p.RunOnce(ctx, &target)
	require.NoError(t, err)

	assert.Equal(t, "2023-06-29", summary.TargetDate)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	require.NoError(t, p.CheckReadiness(ctx))

	msg := readOne(ctx, t, broker)
	assert.Equal(t, "lake-a", string(msg.Key))

	var got domain.EvaporationResult
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.InDelta(t, 4.3415, got.ValueMMPerDay, 0.05)
	assert.Equal(t, "evap-a", got.TimeSeriesID)
	assert.Equal(t, summary.RunID, got.RunID)
}

func readOne(ctx context.Context, t *testing.T, broker string) kafkago.Message {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testResultsTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from results topic")
	return msg
}

func headerMap(msg kafkago.Message) map[string]string {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return headers
}
