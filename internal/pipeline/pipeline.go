package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	sharedretry "github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/lake-evaporation-etl/internal/domain"
	"github.com/couchcryptid/lake-evaporation-etl/internal/observability"
)

// LocationSource lists the locations to calculate evaporation for.
type LocationSource interface {
	Discover(ctx context.Context) ([]domain.LocationMetadata, error)
}

// ResultLoader writes a run's results to a destination.
type ResultLoader interface {
	LoadBatch(ctx context.Context, results []domain.EvaporationResult) error
}

// Sink is a named ResultLoader.
type Sink struct {
	Name   string
	Loader ResultLoader
}

// Options configures scheduling and run behaviour.
type Options struct {
	// Timezone is used for locations that carry none and for the scheduler.
	Timezone     string
	RunHour      int
	RunAtStartup bool
	DryRun       bool
	// MaxRunAttempts bounds retries of a run that failed before processing
	// any location.
	MaxRunAttempts int
	RetryBackoff   time.Duration
	Clock          clockwork.Clock
}

var errDiscovery = errors.New("discover locations")

// Pipeline orchestrates the daily discover-process-load run.
type Pipeline struct {
	source    LocationSource
	processor *Processor
	sinks     []Sink
	opts      Options
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool

	mu      sync.RWMutex
	lastRun *domain.RunSummary
}

// New creates a Pipeline with the given stages and observability.
func New(source LocationSource, processor *Processor, sinks []Sink, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Timezone == "" {
		opts.Timezone = "UTC"
	}
	if opts.MaxRunAttempts <= 0 {
		opts.MaxRunAttempts = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 30 * time.Second
	}
	return &Pipeline{
		source:    source,
		processor: processor,
		sinks:     sinks,
		opts:      opts,
		clock:     opts.Clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a run has completed, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no evaporation run has completed yet")
	}
	return nil
}

// LastRun returns the summary of the most recent run.
func (p *Pipeline) LastRun() (domain.RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.lastRun == nil {
		return domain.RunSummary{}, false
	}
	return *p.lastRun, true
}

// Run executes a run at startup if configured, then one per day at the run
// hour, until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	loc, err := time.LoadLocation(p.opts.Timezone)
	if err != nil {
		return fmt.Errorf("scheduler timezone: %w", err)
	}

	p.logger.Info("scheduler started", "run_hour", p.opts.RunHour, "timezone", p.opts.Timezone, "dry_run", p.opts.DryRun)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	if p.opts.RunAtStartup {
		p.runWithRetry(ctx)
	}

	for {
		now := p.clock.Now()
		next := nextRunAt(now, p.opts.RunHour, loc)
		p.logger.Info("next run scheduled", "at", next)

		select {
		case <-ctx.Done():
			p.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-p.clock.After(next.Sub(now)):
		}
		p.runWithRetry(ctx)
	}
}

// runWithRetry runs for the previous day, retrying with backoff when
// discovery fails.
func (p *Pipeline) runWithRetry(ctx context.Context) {
	backoff := p.opts.RetryBackoff
	for attempt := 1; ; attempt++ {
		_, err := p.RunOnce(ctx, nil)
		if err == nil || ctx.Err() != nil {
			return
		}
		if !errors.Is(err, errDiscovery) || attempt >= p.opts.MaxRunAttempts {
			p.logger.Error("run failed", "error", err, "attempt", attempt)
			return
		}
		p.logger.Warn("run failed, retrying", "error", err, "attempt", attempt, "backoff", backoff)
		if !p.sleepWithContext(ctx, backoff) {
			return
		}
		backoff = sharedretry.NextBackoff(backoff, maxRetryBackoff)
	}
}

// RunOnce calculates every discovered location for target and hands the
// results to the sinks. A nil target means the previous day in each
// location's timezone. Location failures are recorded in the summary and
// never abort the run.
func (p *Pipeline) RunOnce(ctx context.Context, target *time.Time) (domain.RunSummary, error) {
	runID := uuid.NewString()
	start := p.clock.Now()
	log := p.logger.With("run_id", runID)

	summary := domain.RunSummary{RunID: runID, StartedAt: start.UTC(), DryRun: p.opts.DryRun}
	if day, err := p.dayFor(target, p.opts.Timezone); err == nil {
		summary.TargetDate = day.Date.Format(time.DateOnly)
	}
	log.Info("run started", "target_date", summary.TargetDate)

	p.processor.BeginRun()

	err := p.run(ctx, log, target, &summary)

	summary.FinishedAt = p.clock.Now().UTC()
	p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())
	if err != nil {
		summary.Error = err.Error()
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
	} else {
		p.metrics.RunsTotal.WithLabelValues("success").Inc()
		p.metrics.LastSuccessTimestamp.Set(float64(summary.FinishedAt.Unix()))
		p.ready.Store(true)
	}

	p.mu.Lock()
	p.lastRun = &summary
	p.mu.Unlock()

	log.Info("run finished",
		"completed", summary.Completed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"raster_substitutions", summary.Raster,
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	)
	return summary, err
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, target *time.Time, summary *domain.RunSummary) error {
	locations, err := p.source.Discover(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", errDiscovery, err)
	}
	log.Info("locations discovered", "count", len(locations))

	results := make([]domain.EvaporationResult, 0, len(locations))
	for _, loc := range locations {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		outcome, res := p.processLocation(ctx, log, loc, target, summary.RunID)
		summary.Record(outcome)
		p.metrics.LocationsProcessed.WithLabelValues(outcome.Outcome).Inc()
		if res != nil {
			results = append(results, *res)
			if res.UsedRaster() {
				summary.Raster++
			}
		}
	}

	if p.opts.DryRun {
		log.Info("dry run, results not written", "results", len(results))
		return nil
	}
	return p.load(ctx, log, results)
}

func (p *Pipeline) processLocation(ctx context.Context, log *slog.Logger, loc domain.LocationMetadata, target *time.Time, runID string) (domain.LocationOutcome, *domain.EvaporationResult) {
	outcome := domain.LocationOutcome{LocationID: loc.LocationID, Name: loc.Name}

	tz := loc.Timezone
	if tz == "" {
		tz = p.opts.Timezone
	}
	day, err := p.dayFor(target, tz)
	if err != nil {
		log.Error("location day window", "location_id", loc.LocationID, "error", err)
		outcome.Outcome, outcome.Reason = domain.OutcomeFailed, err.Error()
		return outcome, nil
	}
	outcome.Date = day.Date.Format(time.DateOnly)

	res, err := p.processor.Process(ctx, loc, day, runID)
	if err != nil {
		outcome.Outcome, outcome.Reason = classify(err), err.Error()
		level := slog.LevelWarn
		if outcome.Outcome == domain.OutcomeFailed {
			level = slog.LevelError
		}
		log.Log(ctx, level, "location "+outcome.Outcome,
			"location_id", loc.LocationID, "date", outcome.Date, "error", err)
		return outcome, nil
	}

	value := res.ValueMMPerDay
	outcome.Outcome = domain.OutcomeCompleted
	outcome.Value = &value
	outcome.Origin = res.OriginSummary()
	log.Info("evaporation calculated",
		"location_id", loc.LocationID,
		"date", outcome.Date,
		"value_mm", value,
		"origin", outcome.Origin,
		"sunshine_method", res.Sunshine.Method,
	)
	return outcome, &res
}

// load hands results to every sink. A failing sink does not stop the others.
func (p *Pipeline) load(ctx context.Context, log *slog.Logger, results []domain.EvaporationResult) error {
	if len(results) == 0 {
		return nil
	}
	var errs []error
	for _, s := range p.sinks {
		if err := s.Loader.LoadBatch(ctx, results); err != nil {
			log.Error("load results failed", "sink", s.Name, "results", len(results), "error", err)
			p.metrics.ResultsWritten.WithLabelValues(s.Name, "error").Add(float64(len(results)))
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name, err))
			continue
		}
		p.metrics.ResultsWritten.WithLabelValues(s.Name, "success").Add(float64(len(results)))
	}
	return errors.Join(errs...)
}

func (p *Pipeline) dayFor(target *time.Time, tz string) (domain.DayRange, error) {
	if target != nil {
		return domain.DayRangeIn(*target, tz)
	}
	return domain.PreviousDay(tz)
}

// classify maps a processing error to a location outcome.
func classify(err error) string {
	var incomplete *domain.IncompleteDataError
	var invalid *domain.ValidationError
	if errors.As(err, &incomplete) || errors.As(err, &invalid) {
		return domain.OutcomeSkipped
	}
	return domain.OutcomeFailed
}

// nextRunAt returns the next occurrence of hour:00 in loc strictly after now.
func nextRunAt(now time.Time, hour int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	if !next.After(now) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, 0, 0, 0, loc)
	}
	return next
}

const maxRetryBackoff = 10 * time.Minute

func (p *Pipeline) sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
