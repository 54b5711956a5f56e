package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/lake-evaporation-etl/internal/domain"
	"github.com/couchcryptid/lake-evaporation-etl/internal/observability"
	"github.com/couchcryptid/lake-evaporation-etl/internal/pipeline"
)

func newPipeline(src pipeline.LocationSource, f pipeline.ReadingFetcher, sinks []pipeline.Sink, opts pipeline.Options) (*pipeline.Pipeline, *pipelineMetrics) {
	m := newTestMetrics()
	proc := pipeline.NewProcessor(f, nil, domain.DefaultConstants(), discardLogger(), m)
	return pipeline.New(src, proc, sinks, opts, discardLogger(), m), &pipelineMetrics{m}
}

type pipelineMetrics struct{ *observability.Metrics }

func (m *pipelineMetrics) outcome(o string) float64 {
	return testutil.ToFloat64(m.LocationsProcessed.WithLabelValues(o))
}

func twoLakes() *fakeSource {
	complete := lakeAt("complete", 51.0, 10.0)
	incomplete := lakeAt("incomplete", 51.0, 10.0)
	delete(incomplete.References, domain.KindPressure)
	return &fakeSource{locations: []domain.LocationMetadata{complete, incomplete}}
}

func TestPipeline_RunOnce_HappyPath(t *testing.T) {
	day := referenceDay()
	loader := &recordingLoader{}
	p, m := newPipeline(twoLakes(), &fakeFetcher{readings: referenceReadings(day)},
		[]pipeline.Sink{{Name: "portal", Loader: loader}}, pipeline.Options{})

	require.Error(t, p.CheckReadiness(context.Background()))

	target := day.Date
	summary, err := p.RunOnce(context.Background(), &target)
	require.NoError(t, err)

	require.Len(t, loader.batches, 1)
	require.Len(t, loader.batches[0], 1)
	res := loader.batches[0][0]
	assert.Equal(t, "complete", res.LocationID)
	assert.Equal(t, summary.RunID, res.RunID)
	assert.InDelta(t, referenceEvaporation, res.ValueMMPerDay, 0.05)

	assert.Equal(t, "2023-06-29", summary.TargetDate)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Failed)
	require.Len(t, summary.Locations, 2)
	assert.Equal(t, domain.OutcomeSkipped, summary.Locations[1].Outcome)
	assert.Contains(t, summary.Locations[1].Reason, "pressure")

	assert.InDelta(t, 1, m.outcome(domain.OutcomeCompleted), 0)
	assert.InDelta(t, 1, m.outcome(domain.OutcomeSkipped), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ResultsWritten.WithLabelValues("portal", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")), 0)

	require.NoError(t, p.CheckReadiness(context.Background()))
	last, ok := p.LastRun()
	require.True(t, ok)
	assert.Equal(t, summary.RunID, last.RunID)
}

func TestPipeline_RunOnce_DryRunSkipsSinks(t *testing.T) {
	day := referenceDay()
	loader := &recordingLoader{}
	p, _ := newPipeline(twoLakes(), &fakeFetcher{readings: referenceReadings(day)},
		[]pipeline.Sink{{Name: "portal", Loader: loader}}, pipeline.Options{DryRun: true})

	target := day.Date
	summary, err := p.RunOnce(context.Background(), &target)
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.Completed)
	assert.Zero(t, loader.count())
}

func TestPipeline_RunOnce_SinkFailureDoesNotStopOtherSinks(t *testing.T) {
	day := referenceDay()
	failing := &recordingLoader{err: errUpstream}
	kafka := &recordingLoader{}
	p, m := newPipeline(twoLakes(), &fakeFetcher{readings: referenceReadings(day)},
		[]pipeline.Sink{{Name: "portal", Loader: failing}, {Name: "kafka", Loader: kafka}}, pipeline.Options{})

	target := day.Date
	summary, err := p.RunOnce(context.Background(), &target)
	require.Error(t, err)
	assert.ErrorIs(t, err, errUpstream)
	assert.Contains(t, err.Error(), "sink portal")
	assert.Contains(t, summary.Error, "sink portal")

	assert.Equal(t, 1, kafka.count())
	assert.InDelta(t, 1, testutil.ToFloat64(m.ResultsWritten.WithLabelValues("portal", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RunsTotal.WithLabelValues("error")), 0)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_RunOnce_DiscoveryFailure(t *testing.T) {
	loader := &recordingLoader{}
	p, _ := newPipeline(&fakeSource{err: errUpstream}, &fakeFetcher{},
		[]pipeline.Sink{{Name: "portal", Loader: loader}}, pipeline.Options{})

	target := referenceDay().Date
	_, err := p.RunOnce(context.Background(), &target)
	require.ErrorIs(t, err, errUpstream)
	assert.Zero(t, loader.count())

	last, ok := p.LastRun()
	require.True(t, ok)
	assert.NotEmpty(t, last.Error)
}

func TestPipeline_RunOnce_FailedLocationDoesNotAbortBatch(t *testing.T) {
	day := referenceDay()
	src := twoLakes()
	broken := lakeAt("broken-tz", 51.0, 10.0)
	broken.Timezone = "Mars/Olympus"
	src.locations = append([]domain.LocationMetadata{broken}, src.locations...)

	loader := &recordingLoader{}
	p, m := newPipeline(src, &fakeFetcher{readings: referenceReadings(day)},
		[]pipeline.Sink{{Name: "portal", Loader: loader}}, pipeline.Options{})

	target := day.Date
	summary, err := p.RunOnce(context.Background(), &target)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Completed)
	assert.InDelta(t, 1, m.outcome(domain.OutcomeFailed), 0)
	assert.Equal(t, 1, loader.count())
}

func TestPipeline_RunOnce_DefaultsToPreviousDay(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2023, time.June, 30, 1, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	day := referenceDay()
	loader := &recordingLoader{}
	p, _ := newPipeline(twoLakes(), &fakeFetcher{readings: referenceReadings(day)},
		[]pipeline.Sink{{Name: "portal", Loader: loader}}, pipeline.Options{})

	summary, err := p.RunOnce(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "2023-06-29", summary.TargetDate)
	require.Equal(t, 1, loader.count())
	assert.Equal(t, day.Date, loader.batches[0][0].Date)
}

func TestPipeline_Run_StartupAndScheduledRuns(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2023, time.June, 30, 0, 30, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	clock := clockwork.NewFakeClockAt(time.Date(2023, time.June, 30, 0, 30, 0, 0, time.UTC))
	loader := &recordingLoader{loaded: make(chan struct{}, 4)}
	src := twoLakes()
	p, m := newPipeline(src, &fakeFetcher{readings: referenceReadings(referenceDay())},
		[]pipeline.Sink{{Name: "portal", Loader: loader}},
		pipeline.Options{RunHour: 1, RunAtStartup: true, Clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	waitLoaded(t, loader)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PipelineRunning), 0)

	// Next run is at 01:00, thirty minutes away.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(30 * time.Minute)
	waitLoaded(t, loader)
	assert.Equal(t, 2, src.calls)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.InDelta(t, 0, testutil.ToFloat64(m.PipelineRunning), 0)
}

func TestPipeline_Run_RetriesDiscoveryFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &fakeSource{err: errUpstream}
	p, _ := newPipeline(src, &fakeFetcher{}, nil, pipeline.Options{
		RunAtStartup:   true,
		MaxRunAttempts: 2,
		RetryBackoff:   time.Minute,
		Clock:          clock,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// First attempt fails and sleeps on the backoff timer.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)

	// Second attempt fails for good; the scheduler waits for the next day.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, 2, src.calls)

	cancel()
	require.NoError(t, <-done)
}

func waitLoaded(t *testing.T, l *recordingLoader) {
	t.Helper()
	select {
	case <-l.loaded:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for results")
	}
}
