// Package api provides the HTTP API of the fetch service.
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/caparker/openaq-fetch/internal/airquality"
	"github.com/caparker/openaq-fetch/internal/api/handler"
	"github.com/caparker/openaq-fetch/internal/api/middleware"
	"github.com/caparker/openaq-fetch/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	Service     *airquality.Service
	Registry    *resilience.Registry

	// Sources are the only targets the measurements endpoint fetches.
	Sources []airquality.Source

	// FetchTimeout bounds each adapter call made on behalf of a request.
	FetchTimeout time.Duration
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "openaq-fetch-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry)
	adaptersHandler := handler.NewAdaptersHandler(cfg.Service, cfg.Sources, cfg.FetchTimeout)

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)    // 100 req/min
	fetchRateLimit := middleware.RateLimitByAdapter(middleware.ExpensiveRateLimit) // 30 req/min per adapter

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/adapters", func(r chi.Router) {
			r.With(standardRateLimit).Get("/", adaptersHandler.ListAdapters)
			// Each call reaches an upstream source.
			r.With(fetchRateLimit).Get("/{name}/measurements", adaptersHandler.GetMeasurements)
		})
	})

	return r
}
