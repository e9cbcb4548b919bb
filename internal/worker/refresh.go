package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/caparker/openaq-fetch/internal/airquality"
	"github.com/caparker/openaq-fetch/internal/sink"
)

// Fetcher runs one adapter invocation. *airquality.Service implements it.
type Fetcher interface {
	Fetch(ctx context.Context, src airquality.Source) (*airquality.Result, error)
}

// RefreshJob fetches every configured source and hands results to a sink.
type RefreshJob struct {
	config  RefreshConfig
	logger  zerolog.Logger
	fetcher Fetcher
	sink    sink.Sink

	metrics *RefreshMetrics
}

// RefreshMetrics tracks fetch job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns           int64
	SuccessfulFetches   int64
	FailedFetches       int64
	MeasurementsWritten int64
	SinkFailures        int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config  RefreshConfig
	Logger  zerolog.Logger
	Fetcher Fetcher

	// Sink receives each successful result. Nil discards results.
	Sink sink.Sink
}

// NewRefreshJob creates a new fetch job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	return &RefreshJob{
		config:  cfg.Config.withDefaults(),
		logger:  cfg.Logger,
		fetcher: cfg.Fetcher,
		sink:    cfg.Sink,
		metrics: &RefreshMetrics{},
	}
}

// RefreshResult contains the result of one pass.
type RefreshResult struct {
	RunID        string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	TotalSources int
	Successful   int
	Failed       int
	Measurements int
	Errors       []RefreshError
}

// RefreshError describes one failed source.
type RefreshError struct {
	Adapter string
	URL     string
	Kind    string
	Error   string
}

// Run fetches every source once. When at is set, adapters select the
// reporting window containing it instead of the most recent one.
func (j *RefreshJob) Run(ctx context.Context, at *time.Time) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{
		RunID:        uuid.NewString(),
		StartTime:    startTime,
		TotalSources: len(j.config.Sources),
	}

	logger := j.logger.With().Str("run_id", result.RunID).Logger()
	event := logger.Info().
		Int("total_sources", result.TotalSources).
		Int("concurrency", j.config.Concurrency)
	if at != nil {
		event = event.Time("datetime", *at)
	}
	event.Msg("starting fetch job")

	sources := make(chan airquality.Source, len(j.config.Sources))
	results := make(chan sourceResult, len(j.config.Sources))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.fetchWorker(ctx, logger, sources, results)
		}()
	}

	for _, src := range j.config.Sources {
		if at != nil {
			t := *at
			src.Datetime = &t
		}
		sources <- src
	}
	close(sources)

	go func() {
		wg.Wait()
		close(results)
	}()

	for sr := range results {
		if sr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, *sr.err)
			continue
		}
		result.Successful++
		result.Measurements += sr.measurements
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("measurements", result.Measurements).
		Msg("fetch job completed")

	return result
}

type sourceResult struct {
	measurements int
	err          *RefreshError
}

func (j *RefreshJob) fetchWorker(ctx context.Context, logger zerolog.Logger, sources <-chan airquality.Source, results chan<- sourceResult) {
	for src := range sources {
		select {
		case <-ctx.Done():
			results <- sourceResult{err: &RefreshError{
				Adapter: src.Adapter,
				URL:     src.URL,
				Kind:    "cancelled",
				Error:   ctx.Err().Error(),
			}}
		default:
			results <- j.fetchSource(ctx, logger, src)
		}
	}
}

func (j *RefreshJob) fetchSource(ctx context.Context, logger zerolog.Logger, src airquality.Source) sourceResult {
	srcCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	res, err := j.fetcher.Fetch(srcCtx, src)
	if err != nil {
		ae := airquality.Classify(src.Adapter, err)
		return sourceResult{err: &RefreshError{
			Adapter: src.Adapter,
			URL:     src.URL,
			Kind:    ae.Kind.Error(),
			Error:   ae.Error(),
		}}
	}

	if j.sink != nil {
		if err := j.sink.Write(srcCtx, res.Name, res.Measurements); err != nil {
			j.metrics.mu.Lock()
			j.metrics.SinkFailures++
			j.metrics.mu.Unlock()

			logger.Error().
				Err(err).
				Str("adapter", res.Name).
				Int("measurements", len(res.Measurements)).
				Msg("sink write failed")
			return sourceResult{err: &RefreshError{
				Adapter: src.Adapter,
				URL:     src.URL,
				Kind:    "sink",
				Error:   err.Error(),
			}}
		}
	}

	return sourceResult{measurements: len(res.Measurements)}
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulFetches += int64(result.Successful)
	j.metrics.FailedFetches += int64(result.Failed)
	j.metrics.MeasurementsWritten += int64(result.Measurements)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// Adapters returns the distinct adapters the job fetches, in source order.
func (j *RefreshJob) Adapters() []string {
	return j.config.Adapters()
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:           j.metrics.TotalRuns,
		SuccessfulFetches:   j.metrics.SuccessfulFetches,
		FailedFetches:       j.metrics.FailedFetches,
		MeasurementsWritten: j.metrics.MeasurementsWritten,
		SinkFailures:        j.metrics.SinkFailures,
		LastRunAt:           j.metrics.LastRunAt,
		LastRunDuration:     j.metrics.LastRunDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":           m.TotalRuns,
		"successful_fetches":   m.SuccessfulFetches,
		"failed_fetches":       m.FailedFetches,
		"measurements_written": m.MeasurementsWritten,
		"sink_failures":        m.SinkFailures,
		"last_run_at":          m.LastRunAt,
		"last_run_duration":    m.LastRunDuration.String(),
		"total_duration":       m.TotalDuration.String(),
	}
}
