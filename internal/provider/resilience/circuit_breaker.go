// Package resilience provides the HTTP transport adapters fetch sources
// through: per-source circuit breakers, connect and response budgets, retries
// and health tracking.
package resilience

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Trip policy applied to a source when nothing else is configured.
const (
	DefaultMinRequests  uint32  = 5
	DefaultFailureRatio float64 = 0.5
	DefaultOpenTimeout          = 60 * time.Second
)

// CircuitBreakerConfig is the trip policy of one source's breaker.
type CircuitBreakerConfig struct {
	// Name is the source the breaker guards.
	Name string

	// MinRequests is how many requests the breaker must see before the
	// failure ratio is considered.
	// Default: 5
	MinRequests uint32

	// FailureRatio trips the breaker once reached.
	// Default: 0.5
	FailureRatio float64

	// MaxRequests is the number of trial requests let through while half-open.
	// Default: 1
	MaxRequests uint32

	// Interval clears the counts while closed. Zero keeps them until the
	// state changes.
	Interval time.Duration

	// OpenTimeout is how long a tripped source is skipped before a trial
	// request is let through.
	// Default: 60 seconds
	OpenTimeout time.Duration

	// ReadyToTrip overrides MinRequests and FailureRatio when set.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange is called when the breaker changes state.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig returns the default trip policy for a source.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MinRequests:  DefaultMinRequests,
		FailureRatio: DefaultFailureRatio,
		MaxRequests:  1,
		OpenTimeout:  DefaultOpenTimeout,
	}
}

// TripAfter returns a ReadyToTrip func that trips once at least minRequests
// have been made and the failure ratio reaches ratio.
func TripAfter(minRequests uint32, ratio float64) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if counts.Requests == 0 || counts.Requests < minRequests {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
	}
}

// DefaultReadyToTrip trips after 5 requests at a 50% failure rate.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	return TripAfter(DefaultMinRequests, DefaultFailureRatio)(counts)
}

// LogStateChanges returns an OnStateChange func that logs every transition.
// Opening is logged at warn, since the source is skipped until it recovers.
func LogStateChanges(log zerolog.Logger) func(string, gobreaker.State, gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		evt := log.Info()
		if to == gobreaker.StateOpen {
			evt = log.Warn()
		}
		evt.Str("source", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state changed")
	}
}

// NewCircuitBreaker creates a breaker for cfg, filling unset fields with the
// defaults.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	if cfg.MinRequests == 0 {
		cfg.MinRequests = DefaultMinRequests
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = DefaultFailureRatio
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultOpenTimeout
	}

	readyToTrip := cfg.ReadyToTrip
	if readyToTrip == nil {
		readyToTrip = TripAfter(cfg.MinRequests, cfg.FailureRatio)
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.OpenTimeout,
		ReadyToTrip:   readyToTrip,
		OnStateChange: cfg.OnStateChange,
	})
}
