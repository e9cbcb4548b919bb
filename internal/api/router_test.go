package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caparker/openaq-fetch/internal/airquality"
	"github.com/caparker/openaq-fetch/internal/api"
	"github.com/caparker/openaq-fetch/internal/api/models"
	"github.com/caparker/openaq-fetch/internal/provider/resilience"
)

// stubAdapter returns a fixed result or error and remembers the last source.
type stubAdapter struct {
	name   string
	result *airquality.Result
	err    error

	mu   sync.Mutex
	last airquality.Source
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) FetchData(_ context.Context, src airquality.Source) (*airquality.Result, error) {
	a.mu.Lock()
	a.last = src
	a.mu.Unlock()
	return a.result, a.err
}

func (a *stubAdapter) lastSource() airquality.Source {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

func measurement() airquality.Measurement {
	return airquality.Measurement{
		Location:        "Diepkloof",
		City:            "Johannesburg",
		Coordinates:     &airquality.Coordinates{Latitude: -26.25, Longitude: 27.95},
		Parameter:       airquality.PollutantPM10,
		Value:           12,
		Unit:            airquality.UnitMicrogramsPerCubicMeter,
		Date:            airquality.Date{UTC: "2021-01-01T10:00:00Z", Local: "2021-01-01T12:00:00+02:00"},
		AveragingPeriod: airquality.HourlyAverage,
		Attribution:     []airquality.Attribution{{Name: "SAAQIS"}},
	}
}

// sourceURL is the configured URL of the test source for adapter.
func sourceURL(adapter string) string {
	return "https://" + adapter + ".example.test/data"
}

// newTestRouter configures one source per adapter.
func newTestRouter(registry *resilience.Registry, adapters ...airquality.Adapter) http.Handler {
	logger := zerolog.New(io.Discard)
	sources := make([]airquality.Source, 0, len(adapters))
	for _, a := range adapters {
		sources = append(sources, airquality.Source{
			URL:     sourceURL(a.Name()),
			Adapter: a.Name(),
			Country: "ZA",
			City:    "Johannesburg",
		})
	}
	svcCfg := airquality.ServiceConfig{Adapters: adapters, Logger: logger}
	if registry != nil {
		svcCfg.Health = registry
	}
	return api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "2024-01-01T00:00:00Z",
		Logger:    logger,
		Service:   airquality.NewService(svcCfg),
		Registry:  registry,
		Sources:   sources,
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return rec
}

func TestHealthCheck(t *testing.T) {
	rec := get(t, newTestRouter(nil), "/v1/ops/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
	assert.Equal(t, []interface{}{}, health.Details["providers"])
}

func TestHealthCheck_ListsProviders(t *testing.T) {
	registry := resilience.NewRegistry()
	resilience.NewClient(resilience.ClientConfig{Name: "stockholm", Registry: registry})
	resilience.NewClient(resilience.ClientConfig{Name: "acumar", Registry: registry})

	rec := get(t, newTestRouter(registry), "/v1/ops/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, []interface{}{"acumar", "stockholm"}, health.Details["providers"])
}

func TestReadinessCheck(t *testing.T) {
	rec := get(t, newTestRouter(nil), "/v1/ops/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSystemStatus(t *testing.T) {
	registry := resilience.NewRegistry()
	resilience.NewClient(resilience.ClientConfig{Name: "acumar", Registry: registry})
	resilience.NewClient(resilience.ClientConfig{Name: "stockholm", Registry: registry})

	failing := &stubAdapter{name: "acumar", err: fmt.Errorf("%w: status 503", airquality.ErrFetch)}
	working := &stubAdapter{name: "stockholm", result: &airquality.Result{}}
	router := newTestRouter(registry, failing, working)

	get(t, router, "/v1/adapters/acumar/measurements")
	get(t, router, "/v1/adapters/stockholm/measurements")

	rec := get(t, router, "/v1/ops/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status, "closed circuits are healthy")
	require.Len(t, status.Providers, 2)

	byName := map[string]models.ProviderStatus{}
	for _, p := range status.Providers {
		byName[p.Provider] = p
	}
	acumar := byName["acumar"]
	assert.Equal(t, "closed", acumar.CircuitState)
	assert.NotNil(t, acumar.LastFailureAt)
	require.NotNil(t, acumar.Message)
	assert.Contains(t, *acumar.Message, "status 503")

	assert.NotNil(t, byName["stockholm"].LastSuccessAt)
	assert.Nil(t, byName["stockholm"].Message)
}

func TestSystemStatus_NoRegistry(t *testing.T) {
	rec := get(t, newTestRouter(nil), "/v1/ops/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(mustField(t, rec.Body.Bytes(), "providers")))
}

func TestListAdapters(t *testing.T) {
	router := newTestRouter(nil, &stubAdapter{name: "stockholm"}, &stubAdapter{name: "acumar"})

	rec := get(t, router, "/v1/adapters")
	require.Equal(t, http.StatusOK, rec.Code)

	var list models.AdapterList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, []string{"acumar", "stockholm"}, list.Items)
}

func TestGetMeasurements(t *testing.T) {
	adapter := &stubAdapter{name: "southafrica", result: &airquality.Result{
		Measurements: []airquality.Measurement{measurement()},
	}}
	router := newTestRouter(nil, adapter)

	rec := get(t, router, "/v1/adapters/southafrica/measurements?url="+url.QueryEscape(sourceURL("southafrica"))+"&datetime=2021-01-01T10:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result airquality.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "southafrica", result.Name)
	require.Len(t, result.Measurements, 1)
	assert.Equal(t, "Diepkloof", result.Measurements[0].Location)

	src := adapter.lastSource()
	assert.Equal(t, sourceURL("southafrica"), src.URL)
	assert.Equal(t, "ZA", src.Country)
	assert.Equal(t, "Johannesburg", src.City)
	require.NotNil(t, src.Datetime)
	assert.True(t, src.Datetime.Equal(time.Date(2021, time.January, 1, 10, 0, 0, 0, time.UTC)))
}

func TestGetMeasurements_RecentWindow(t *testing.T) {
	adapter := &stubAdapter{name: "acumar", result: &airquality.Result{}}
	rec := get(t, newTestRouter(nil, adapter), "/v1/adapters/acumar/measurements")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, adapter.lastSource().Datetime)
	assert.JSONEq(t, `{"name":"acumar","measurements":[]}`, rec.Body.String())
}

func TestGetMeasurements_Errors(t *testing.T) {
	tests := []struct {
		name    string
		adapter *stubAdapter
		path    string
		status  int
		typ     string
	}{
		{
			name:   "unknown adapter",
			path:   "/v1/adapters/nowhere/measurements",
			status: http.StatusNotFound,
			typ:    models.ProblemTypeNotFound,
		},
		{
			name:   "unconfigured url",
			path:   "/v1/adapters/acumar/measurements?url=" + url.QueryEscape("http://169.254.169.254/latest/meta-data/"),
			status: http.StatusBadRequest,
			typ:    models.ProblemTypeValidation,
		},
		{
			name:   "invalid datetime",
			path:   "/v1/adapters/acumar/measurements?datetime=yesterday",
			status: http.StatusBadRequest,
			typ:    models.ProblemTypeValidation,
		},
		{
			name:    "fetch failure",
			adapter: &stubAdapter{name: "acumar", err: fmt.Errorf("%w: status 500", airquality.ErrFetch)},
			path:    "/v1/adapters/acumar/measurements",
			status:  http.StatusBadGateway,
			typ:     models.ProblemTypeFetch,
		},
		{
			name:    "parse failure",
			adapter: &stubAdapter{name: "acumar", err: fmt.Errorf("%w: no table", airquality.ErrParse)},
			path:    "/v1/adapters/acumar/measurements",
			status:  http.StatusBadGateway,
			typ:     models.ProblemTypeParse,
		},
		{
			name:    "missing row",
			adapter: &stubAdapter{name: "acumar", err: airquality.ErrRowNotFound},
			path:    "/v1/adapters/acumar/measurements?datetime=2024-10-13T12:00:00Z",
			status:  http.StatusNotFound,
			typ:     models.ProblemTypeRowNotFound,
		},
		{
			name:    "unclassified failure",
			adapter: &stubAdapter{name: "acumar", err: errors.New("boom")},
			path:    "/v1/adapters/acumar/measurements",
			status:  http.StatusInternalServerError,
			typ:     models.ProblemTypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := tt.adapter
			if adapter == nil {
				adapter = &stubAdapter{name: "acumar", result: &airquality.Result{}}
			}

			rec := get(t, newTestRouter(nil, adapter), tt.path)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			var p models.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
			assert.Equal(t, tt.typ, p.Type)
			assert.NotEmpty(t, p.TraceID)
		})
	}
}

func TestGetMeasurements_OnlyConfiguredSourcesAreFetched(t *testing.T) {
	adapter := &stubAdapter{name: "stockholm", result: &airquality.Result{}}
	router := newTestRouter(nil, adapter)

	rec := get(t, router, "/v1/adapters/stockholm/measurements?url="+url.QueryEscape("http://10.0.0.1:8080/admin"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, adapter.lastSource().Adapter, "adapter must not be called")

	rec = get(t, router, "/v1/adapters/stockholm/measurements")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sourceURL("stockholm"), adapter.lastSource().URL)
}

func TestGetMeasurements_RegisteredButNotConfigured(t *testing.T) {
	logger := zerolog.New(io.Discard)
	adapter := &stubAdapter{name: "luchtmeetnet", result: &airquality.Result{}}
	router := api.NewRouter(api.RouterConfig{
		Logger:  logger,
		Service: airquality.NewService(airquality.ServiceConfig{Adapters: []airquality.Adapter{adapter}, Logger: logger}),
	})

	rec := get(t, router, "/v1/adapters/luchtmeetnet/measurements?url="+url.QueryEscape("https://api.luchtmeetnet.nl/open_api"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, adapter.lastSource().Adapter)
}

func TestNotFoundRoute(t *testing.T) {
	rec := get(t, newTestRouter(nil), "/v1/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func mustField(t *testing.T, body []byte, key string) json.RawMessage {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &fields))
	return fields[key]
}
