package airquality

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/caparker/openaq-fetch/internal/telemetry"
)

const tracerName = "github.com/caparker/openaq-fetch/internal/airquality"

// Adapter fetches one kind of source and returns canonical measurements.
// Implementations return either a result or an error, never both.
type Adapter interface {
	// Name is the stable identifier sources refer to.
	Name() string

	// FetchData fetches and normalizes the source.
	FetchData(ctx context.Context, src Source) (*Result, error)
}

// HealthRecorder receives the outcome of every adapter call.
type HealthRecorder interface {
	RecordSuccess(name string)
	RecordFailure(name string, err error)
}

// ServiceConfig holds configuration for the adapter service.
type ServiceConfig struct {
	// Adapters are registered at construction.
	Adapters []Adapter

	// Logger for drop diagnostics and failures.
	Logger zerolog.Logger

	// Health is optional; it is told about every call outcome.
	Health HealthRecorder

	// Metrics is optional.
	Metrics *telemetry.FetchMetrics
}

// Service is the boundary every adapter call goes through. It translates
// errors into the adapter failure kinds, recovers from panics and drops
// measurements that violate the canonical invariants.
type Service struct {
	logger  zerolog.Logger
	health  HealthRecorder
	metrics *telemetry.FetchMetrics

	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewService creates a new adapter service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		logger:   cfg.Logger,
		health:   cfg.Health,
		metrics:  cfg.Metrics,
		adapters: make(map[string]Adapter, len(cfg.Adapters)),
	}
	for _, a := range cfg.Adapters {
		s.Register(a)
	}
	return s
}

// Register adds or replaces an adapter.
func (s *Service) Register(a Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapters[a.Name()] = a
}

// Adapter returns the adapter registered under name.
func (s *Service) Adapter(name string) (Adapter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.adapters[name]
	return a, ok
}

// Names returns the registered adapter names, sorted.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.adapters))
	for name := range s.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fetch runs the adapter named by src.Adapter. Failures are returned as
// *AdapterError; an unregistered adapter yields ErrAdapterNotRegistered.
func (s *Service) Fetch(ctx context.Context, src Source) (*Result, error) {
	a, ok := s.Adapter(src.Adapter)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAdapterNotRegistered, src.Adapter)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "adapter.fetch")
	span.SetAttributes(
		attribute.String("adapter.name", a.Name()),
		attribute.String("source.url", src.URL),
		attribute.Bool("source.exact_window", src.Datetime != nil),
	)
	defer span.End()

	ctx = WithDropRecorder(ctx, s.recordDrop)

	start := time.Now()
	result, err := s.call(ctx, a, src)
	s.metrics.RecordFetch(ctx, a.Name(), time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if s.health != nil {
			s.health.RecordFailure(a.Name(), err)
		}
		s.logger.Error().
			Err(err).
			Str("adapter", a.Name()).
			Str("url", src.URL).
			Msg("adapter fetch failed")
		return nil, err
	}

	if s.health != nil {
		s.health.RecordSuccess(a.Name())
	}
	span.SetAttributes(attribute.Int("measurements.count", len(result.Measurements)))
	s.metrics.RecordEmitted(ctx, a.Name(), len(result.Measurements))
	return result, nil
}

// call invokes the adapter, converting panics and unclassified errors.
func (s *Service) call(ctx context.Context, a Adapter, src Source) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = Classify(a.Name(), panicError(r))
		}
	}()

	res, err := a.FetchData(ctx, src)
	if err != nil {
		return nil, Classify(a.Name(), err)
	}
	if res == nil {
		return nil, Classify(a.Name(), errors.New("adapter returned no result"))
	}

	return &Result{
		Name:         a.Name(),
		Measurements: s.filter(ctx, a.Name(), res.Measurements),
	}, nil
}

// filter drops measurements that break the canonical invariants.
func (s *Service) filter(ctx context.Context, adapter string, in []Measurement) []Measurement {
	out := make([]Measurement, 0, len(in))
	for i := range in {
		if err := in[i].Validate(); err != nil {
			s.Drop(ctx, adapter, in[i].Location, err)
			continue
		}
		out = append(out, in[i])
	}
	return out
}

// Drop logs and counts a reading discarded by a soft failure.
func (s *Service) Drop(ctx context.Context, adapter, location string, reason error) {
	LogDrop(s.logger, adapter, location, reason)
	s.recordDrop(ctx, adapter, reason)
}

func (s *Service) recordDrop(ctx context.Context, adapter string, reason error) {
	s.metrics.RecordDropped(ctx, adapter, DropReason(reason))
}

// DropRecorder counts a reading an adapter discarded.
type DropRecorder func(ctx context.Context, adapter string, reason error)

type dropRecorderKey struct{}

// WithDropRecorder returns a context whose ReportDrop calls are counted by record.
func WithDropRecorder(ctx context.Context, record DropRecorder) context.Context {
	return context.WithValue(ctx, dropRecorderKey{}, record)
}

// ReportDrop is how adapters discard a reading: it logs the diagnostic and
// counts it with the recorder carried by ctx, if any.
func ReportDrop(ctx context.Context, log zerolog.Logger, adapter, location string, reason error) {
	LogDrop(log, adapter, location, reason)
	if record, ok := ctx.Value(dropRecorderKey{}).(DropRecorder); ok && record != nil {
		record(ctx, adapter, reason)
	}
}

// LogDrop writes the diagnostic for a dropped reading.
func LogDrop(log zerolog.Logger, adapter, location string, reason error) {
	log.Warn().
		Str("adapter", adapter).
		Str("location", location).
		Str("reason", DropReason(reason)).
		Err(reason).
		Msg("dropping reading")
}

// DropReason returns a short label for a soft failure.
func DropReason(err error) string {
	switch {
	case errors.Is(err, ErrUnmappedParameter):
		return "unmapped_parameter"
	case errors.Is(err, ErrMissingValue):
		return "missing_value"
	case errors.Is(err, ErrNonFiniteValue):
		return "non_finite_value"
	case errors.Is(err, ErrUnknownUnit):
		return "unknown_unit"
	case errors.Is(err, ErrUnresolvedLocation):
		return "unresolved_location"
	case errors.Is(err, ErrInvalidDate):
		return "invalid_date"
	default:
		return "other"
	}
}

// panicError does not wrap r, so a recovered panic always classifies as
// ErrUnknownAdapter.
func panicError(r any) error {
	return fmt.Errorf("panic: %v", r)
}
