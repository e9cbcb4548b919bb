// Package adapters assembles the registered source adapters and their
// resilient transports from process configuration.
package adapters

import (
	"github.com/rs/zerolog"

	"github.com/caparker/openaq-fetch/internal/airquality"
	"github.com/caparker/openaq-fetch/internal/airquality/acumar"
	"github.com/caparker/openaq-fetch/internal/airquality/luchtmeetnet"
	"github.com/caparker/openaq-fetch/internal/airquality/southafrica"
	"github.com/caparker/openaq-fetch/internal/airquality/stockholm"
	"github.com/caparker/openaq-fetch/internal/config"
	"github.com/caparker/openaq-fetch/internal/provider/resilience"
)

// clientConfig applies the configured fetch budgets and breaker policy to
// the default client settings of one adapter. MaxRetries is always taken
// from cfg, so zero disables retries.
func clientConfig(name string, cfg config.FetchConfig, registry *resilience.Registry, log zerolog.Logger) resilience.ClientConfig {
	c := resilience.DefaultClientConfig(name)
	if cfg.ConnectTimeout > 0 {
		c.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.ResponseTimeout > 0 {
		c.ResponseHeaderTimeout = cfg.ResponseTimeout
		c.Timeout = cfg.ResponseTimeout
	}
	c.MaxRetries = uint64(max(cfg.MaxRetries, 0))

	breaker := resilience.DefaultCircuitBreakerConfig(name)
	if cfg.Breaker.MinRequests > 0 {
		breaker.MinRequests = uint32(cfg.Breaker.MinRequests)
	}
	if cfg.Breaker.FailureRatio > 0 {
		breaker.FailureRatio = cfg.Breaker.FailureRatio
	}
	if cfg.Breaker.OpenTimeout > 0 {
		breaker.OpenTimeout = cfg.Breaker.OpenTimeout
	}
	breaker.OnStateChange = resilience.LogStateChanges(log)
	c.CircuitBreaker = &breaker

	c.Registry = registry
	return c
}

// New builds every known adapter. Each gets its own circuit breaker,
// registered with registry under the adapter name.
func New(cfg config.FetchConfig, registry *resilience.Registry, log zerolog.Logger) []airquality.Adapter {
	stockholmCfg := clientConfig(stockholm.Name, cfg, registry, log)
	stockholmCfg.InsecureSkipVerify = true

	return []airquality.Adapter{
		southafrica.NewClient(southafrica.ClientConfig{
			HTTPClient: resilience.NewClient(clientConfig(southafrica.Name, cfg, registry, log)),
			Logger:     log.With().Str("adapter", southafrica.Name).Logger(),
		}),
		stockholm.NewClient(stockholm.ClientConfig{
			HTTPClient: resilience.NewClient(stockholmCfg),
			Logger:     log.With().Str("adapter", stockholm.Name).Logger(),
		}),
		acumar.NewClient(acumar.ClientConfig{
			HTTPClient: resilience.NewClient(clientConfig(acumar.Name, cfg, registry, log)),
			Logger:     log.With().Str("adapter", acumar.Name).Logger(),
		}),
		luchtmeetnet.NewClient(luchtmeetnet.ClientConfig{
			HTTPClient: resilience.NewClient(clientConfig(luchtmeetnet.Name, cfg, registry, log)),
			Logger:     log.With().Str("adapter", luchtmeetnet.Name).Logger(),
		}),
	}
}
