package airquality_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caparker/openaq-fetch/internal/airquality"
	"github.com/caparker/openaq-fetch/internal/telemetry"
)

// mockAdapter is a test adapter that returns configurable data.
type mockAdapter struct {
	name       string
	result     *airquality.Result
	err        error
	panicWith  any
	fetchCount atomic.Int32

	mu         sync.Mutex
	lastSource airquality.Source
}

func (m *mockAdapter) Name() string { return m.name }

func (m *mockAdapter) FetchData(_ context.Context, src airquality.Source) (*airquality.Result, error) {
	m.fetchCount.Add(1)
	m.mu.Lock()
	m.lastSource = src
	m.mu.Unlock()
	if m.panicWith != nil {
		panic(m.panicWith)
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockHealth records outcomes reported by the service.
type mockHealth struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (h *mockHealth) RecordSuccess(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.successes = append(h.successes, name)
}

func (h *mockHealth) RecordFailure(name string, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = append(h.failures, name)
}

func validMeasurement(location string) airquality.Measurement {
	return airquality.Measurement{
		Location:        location,
		City:            "Johannesburg",
		Coordinates:     &airquality.Coordinates{Latitude: -26.25, Longitude: 27.95},
		Parameter:       airquality.PollutantPM10,
		Value:           12,
		Unit:            airquality.UnitMicrogramsPerCubicMeter,
		Date:            airquality.Date{UTC: "2021-01-01T10:00:00Z", Local: "2021-01-01T12:00:00+02:00"},
		AveragingPeriod: airquality.HourlyAverage,
		Attribution:     []airquality.Attribution{{Name: "test"}},
	}
}

func newService(t *testing.T, log zerolog.Logger, health airquality.HealthRecorder, adapters ...airquality.Adapter) *airquality.Service {
	t.Helper()
	metrics, err := telemetry.NewFetchMetrics()
	require.NoError(t, err)
	return airquality.NewService(airquality.ServiceConfig{
		Adapters: adapters,
		Logger:   log,
		Health:   health,
		Metrics:  metrics,
	})
}

func TestService_Fetch(t *testing.T) {
	adapter := &mockAdapter{
		name:   "test",
		result: &airquality.Result{Name: "unused", Measurements: []airquality.Measurement{validMeasurement("A")}},
	}
	health := &mockHealth{}
	svc := newService(t, zerolog.Nop(), health, adapter)

	src := airquality.Source{URL: "http://example.test", Adapter: "test", City: "Johannesburg"}
	result, err := svc.Fetch(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, "test", result.Name)
	require.Len(t, result.Measurements, 1)
	assert.Equal(t, "A", result.Measurements[0].Location)
	assert.Equal(t, src, adapter.lastSource)
	assert.Equal(t, []string{"test"}, health.successes)
	assert.Empty(t, health.failures)
}

func TestService_Fetch_NotRegistered(t *testing.T) {
	svc := newService(t, zerolog.Nop(), nil)

	result, err := svc.Fetch(context.Background(), airquality.Source{Adapter: "missing"})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, airquality.ErrAdapterNotRegistered)
}

func TestService_Fetch_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    error
		message string
	}{
		{
			name:    "fetch failure",
			err:     fmt.Errorf("%w: unexpected status 503", airquality.ErrFetch),
			kind:    airquality.ErrFetch,
			message: "Failure to load data url.",
		},
		{
			name:    "parse failure",
			err:     fmt.Errorf("%w: bad json", airquality.ErrParse),
			kind:    airquality.ErrParse,
			message: "Failure to parse data.",
		},
		{
			name:    "row not found",
			err:     fmt.Errorf("station %q: %w", "x", airquality.ErrRowNotFound),
			kind:    airquality.ErrRowNotFound,
			message: "No row matched the requested datetime.",
		},
		{
			name:    "unclassified error",
			err:     errors.New("index out of range"),
			kind:    airquality.ErrUnknownAdapter,
			message: "Unknown adapter error.",
		},
		{
			name:    "soft failure escaping an adapter",
			err:     airquality.ErrMissingValue,
			kind:    airquality.ErrUnknownAdapter,
			message: "Unknown adapter error.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health := &mockHealth{}
			svc := newService(t, zerolog.Nop(), health, &mockAdapter{name: "test", err: tt.err})

			result, err := svc.Fetch(context.Background(), airquality.Source{Adapter: "test"})
			assert.Nil(t, result)
			require.Error(t, err)

			var ae *airquality.AdapterError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, "test", ae.Adapter)
			assert.Equal(t, tt.kind, ae.Kind)
			assert.Equal(t, tt.message, ae.Message())
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, []string{"test"}, health.failures)
		})
	}
}

func TestService_Fetch_RecoversPanic(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{name: "string", value: "boom"},
		{name: "error", value: errors.New("nil map write")},
		{name: "error wrapping a known kind", value: fmt.Errorf("%w: wrapped", airquality.ErrParse)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, zerolog.Nop(), nil, &mockAdapter{name: "test", panicWith: tt.value})

			var (
				result *airquality.Result
				err    error
			)
			assert.NotPanics(t, func() {
				result, err = svc.Fetch(context.Background(), airquality.Source{Adapter: "test"})
			})
			assert.Nil(t, result)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "panic")
			assert.ErrorIs(t, err, airquality.ErrUnknownAdapter)
		})
	}
}

func TestService_Fetch_NilResult(t *testing.T) {
	svc := newService(t, zerolog.Nop(), nil, &mockAdapter{name: "test"})

	result, err := svc.Fetch(context.Background(), airquality.Source{Adapter: "test"})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, airquality.ErrUnknownAdapter)
}

func TestService_Fetch_FiltersInvalidMeasurements(t *testing.T) {
	noCoords := validMeasurement("no-coords")
	noCoords.Coordinates = nil

	nan := validMeasurement("nan")
	nan.Value = math.NaN()

	inf := validMeasurement("inf")
	inf.Value = math.Inf(1)

	badParam := validMeasurement("bad-param")
	badParam.Parameter = "temperature"

	skewed := validMeasurement("skewed")
	skewed.Date.Local = "2021-01-01T13:00:00+02:00"

	adapter := &mockAdapter{
		name: "test",
		result: &airquality.Result{Measurements: []airquality.Measurement{
			validMeasurement("first"), noCoords, nan, inf, badParam, skewed, validMeasurement("last"),
		}},
	}

	var logs bytes.Buffer
	svc := newService(t, zerolog.New(&logs), nil, adapter)

	result, err := svc.Fetch(context.Background(), airquality.Source{Adapter: "test"})
	require.NoError(t, err)
	require.Len(t, result.Measurements, 2)
	assert.Equal(t, "first", result.Measurements[0].Location)
	assert.Equal(t, "last", result.Measurements[1].Location)

	out := logs.String()
	for _, want := range []string{"no-coords", "nan", "inf", "bad-param", "skewed"} {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, out, "unresolved_location")
	assert.Contains(t, out, "non_finite_value")
	assert.Contains(t, out, "unmapped_parameter")
	assert.Contains(t, out, "invalid_date")
}

func TestService_Fetch_EmptyIsSuccess(t *testing.T) {
	svc := newService(t, zerolog.Nop(), nil, &mockAdapter{name: "test", result: &airquality.Result{}})

	result, err := svc.Fetch(context.Background(), airquality.Source{Adapter: "test"})
	require.NoError(t, err)
	assert.NotNil(t, result.Measurements)
	assert.Empty(t, result.Measurements)
}

func TestService_Registry(t *testing.T) {
	svc := newService(t, zerolog.Nop(), nil,
		&mockAdapter{name: "stockholm"},
		&mockAdapter{name: "acumar"},
	)
	svc.Register(&mockAdapter{name: "southafrica"})

	assert.Equal(t, []string{"acumar", "southafrica", "stockholm"}, svc.Names())

	a, ok := svc.Adapter("acumar")
	require.True(t, ok)
	assert.Equal(t, "acumar", a.Name())

	_, ok = svc.Adapter("missing")
	assert.False(t, ok)
}

func TestService_Fetch_Concurrent(t *testing.T) {
	adapter := &mockAdapter{
		name:   "test",
		result: &airquality.Result{Measurements: []airquality.Measurement{validMeasurement("A")}},
	}
	svc := newService(t, zerolog.Nop(), &mockHealth{}, adapter)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, err := svc.Fetch(ctx, airquality.Source{Adapter: "test"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), adapter.fetchCount.Load())
}

func TestDropReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: x", airquality.ErrUnmappedParameter), "unmapped_parameter"},
		{airquality.ErrMissingValue, "missing_value"},
		{airquality.ErrNonFiniteValue, "non_finite_value"},
		{airquality.ErrUnknownUnit, "unknown_unit"},
		{airquality.ErrUnresolvedLocation, "unresolved_location"},
		{airquality.ErrInvalidDate, "invalid_date"},
		{errors.New("other"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, airquality.DropReason(tt.err))
		})
	}
}
