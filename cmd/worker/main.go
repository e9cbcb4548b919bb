// Package main provides the entrypoint for the fetch worker. The worker
// runs fetch passes over the configured sources on a schedule, or on
// demand when a Pub/Sub subscription is configured, and writes the
// measurements to the configured sinks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/caparker/openaq-fetch/internal/adapters"
	"github.com/caparker/openaq-fetch/internal/airquality"
	"github.com/caparker/openaq-fetch/internal/api/middleware"
	"github.com/caparker/openaq-fetch/internal/api/response"
	"github.com/caparker/openaq-fetch/internal/config"
	"github.com/caparker/openaq-fetch/internal/provider/resilience"
	"github.com/caparker/openaq-fetch/internal/sink"
	"github.com/caparker/openaq-fetch/internal/telemetry"
	"github.com/caparker/openaq-fetch/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "openaq-fetch-worker"

	once := flag.Bool("once", false, "run a single fetch pass and exit")
	datetime := flag.String("datetime", "", "fetch the reporting window at this RFC 3339 time instead of the latest")
	flag.Parse()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log = log.Level(cfg.LogLevel)

	var at *time.Time
	if *datetime != "" {
		t, err := time.Parse(time.RFC3339, *datetime)
		if err != nil {
			log.Fatal().Err(err).Str("datetime", *datetime).Msg("invalid -datetime")
		}
		at = &t
	}

	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.SourcesFile).Msg("failed to load sources")
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Environment).
		Int("sources", len(sources.Enabled())).
		Strs("sinks", cfg.Sinks).
		Msg("starting fetch worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	fetchMetrics, err := telemetry.NewFetchMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize fetch metrics")
	}

	registry := resilience.NewRegistry()
	service := airquality.NewService(airquality.ServiceConfig{
		Adapters: adapters.New(cfg.Fetch, registry, log),
		Logger:   log,
		Health:   registry,
		Metrics:  fetchMetrics,
	})

	out, err := openSinks(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open sinks")
	}
	defer func() {
		if err := out.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close sinks")
		}
	}()

	refreshCfg := worker.DefaultRefreshConfig(sources.Enabled())
	refreshCfg.Concurrency = cfg.Fetch.Concurrency
	refreshCfg.Timeout = cfg.Fetch.TotalTimeout
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  refreshCfg,
		Logger:  log,
		Fetcher: service,
		Sink:    out,
	})

	if *once {
		result := job.Run(ctx, at)
		if result.Successful == 0 && result.TotalSources > 0 {
			log.Error().Int("failed", result.Failed).Msg("every source failed")
			os.Exit(1) //nolint:gocritic // deferred cleanup is best-effort on failure
		}
		return
	}

	server := healthServer(cfg.Port, job, log)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if cfg.PubSub.Subscription != "" {
		runPubSub(ctx, cfg, job, log)
	} else {
		runSchedule(ctx, cfg.Fetch.Interval, job, at, log)
	}

	log.Info().Msg("shutting down worker")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// openSinks opens every configured sink. Sinks opened before a failing one
// are closed again.
func openSinks(ctx context.Context, cfg *config.Config, log zerolog.Logger) (sink.Multi, error) {
	openers := make([]sink.Opener, 0, len(cfg.Sinks))
	for _, name := range cfg.Sinks {
		switch name {
		case config.SinkStdout:
			openers = append(openers, func(context.Context) (sink.Sink, error) {
				return sink.NewJSONLines(nopCloser{os.Stdout}), nil
			})

		case config.SinkPostgres:
			dbCfg := cfg.Database.ForWriters(cfg.Fetch.Concurrency)
			openers = append(openers, func(ctx context.Context) (sink.Sink, error) {
				pg, err := sink.OpenPostgres(ctx, dbCfg)
				if err != nil {
					return nil, fmt.Errorf("postgres sink: %w", err)
				}
				log.Info().
					Str("host", dbCfg.Host).
					Str("database", dbCfg.Database).
					Int("max_conns", dbCfg.MaxConns).
					Msg("postgres sink connected")
				return pg, nil
			})

		case config.SinkPubSub:
			openers = append(openers, func(ctx context.Context) (sink.Sink, error) {
				ps, err := sink.NewPubSub(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
				if err != nil {
					return nil, fmt.Errorf("pubsub sink: %w", err)
				}
				return ps, nil
			})

		case config.SinkKafka:
			openers = append(openers, func(context.Context) (sink.Sink, error) {
				return sink.NewKafka(sink.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)), nil
			})
		}
	}
	return sink.Open(ctx, openers...)
}

// nopCloser keeps the JSON lines sink from closing stdout.
type nopCloser struct{ *os.File }

func (nopCloser) Close() error { return nil }

// runSchedule runs a pass immediately and then once per interval until ctx
// is cancelled.
func runSchedule(ctx context.Context, interval time.Duration, job *worker.RefreshJob, at *time.Time, log zerolog.Logger) {
	log.Info().Dur("interval", interval).Msg("running on schedule")

	job.Run(ctx, at)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job.Run(ctx, at)
		}
	}
}

// runPubSub serves trigger messages until ctx is cancelled.
func runPubSub(ctx context.Context, cfg *config.Config, job *worker.RefreshJob, log zerolog.Logger) {
	handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.PubSub.ProjectID,
		SubscriptionName: cfg.PubSub.Subscription,
		RefreshJob:       job,
		Logger:           log,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create pubsub handler")
		return
	}
	defer func() {
		if err := handler.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pubsub handler")
		}
	}()

	if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("pubsub receive stopped")
	}
}

func healthServer(port string, job *worker.RefreshJob, log zerolog.Logger) *http.Server {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Logger(log))
	mux.Use(middleware.Recovery(log))
	mux.Use(middleware.ContentTypeJSON)

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"version":  Version,
			"adapters": job.Adapters(),
			"metrics":  job.MetricsSnapshot(),
		})
	})

	return &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}
