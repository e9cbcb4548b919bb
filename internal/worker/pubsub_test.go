package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caparker/openaq-fetch/internal/worker"
)

func newHandler(fetcher *fakeFetcher, out *fakeSink, adapters ...string) *worker.JobHandler {
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  worker.RefreshConfig{Sources: sources(adapters...)},
		Logger:  zerolog.Nop(),
		Fetcher: fetcher,
		Sink:    out,
	})
	return worker.NewJobHandler(job, zerolog.Nop())
}

func TestJobHandler_FetchSources(t *testing.T) {
	fetcher := &fakeFetcher{}
	out := &fakeSink{}
	h := newHandler(fetcher, out, "acumar", "southafrica")

	err := h.Handle(context.Background(), []byte(`{"job_type":"fetch_sources","datetime":"2024-10-13T12:00:00Z"}`))
	require.NoError(t, err)

	require.Len(t, fetcher.calls, 2)
	want := time.Date(2024, 10, 13, 12, 0, 0, 0, time.UTC)
	for _, c := range fetcher.calls {
		require.NotNil(t, c.Datetime)
		assert.True(t, want.Equal(*c.Datetime))
	}
	assert.Equal(t, 4, out.written["acumar"]+out.written["southafrica"])
}

func TestJobHandler_FetchSources_TooManyFailures(t *testing.T) {
	fetcher := &fakeFetcher{fail: map[string]error{
		"acumar":    errors.New("boom"),
		"stockholm": errors.New("boom"),
	}}
	h := newHandler(fetcher, &fakeSink{}, "acumar", "stockholm", "southafrica")

	err := h.Handle(context.Background(), []byte(`{"job_type":"fetch_sources"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2/3")
}

func TestJobHandler_HealthCheck(t *testing.T) {
	fetcher := &fakeFetcher{}
	out := &fakeSink{}
	h := newHandler(fetcher, out, "acumar", "southafrica")

	require.NoError(t, h.Handle(context.Background(), []byte(`{"job_type":"health_check"}`)))
	require.Len(t, fetcher.calls, 1, "health check probes the first source only")
	assert.Equal(t, "acumar", fetcher.calls[0].Adapter)
	assert.Empty(t, out.written, "health check does not write to sinks")

	failing := newHandler(&fakeFetcher{fail: map[string]error{"acumar": errors.New("down")}}, out, "acumar")
	assert.Error(t, failing.Handle(context.Background(), []byte(`{"job_type":"health_check"}`)))
}

func TestJobHandler_InvalidMessages(t *testing.T) {
	h := newHandler(&fakeFetcher{}, &fakeSink{}, "acumar")

	err := h.Handle(context.Background(), []byte(`not json`))
	assert.ErrorIs(t, err, worker.ErrInvalidMessage)

	err = h.Handle(context.Background(), []byte(`{"job_type":"fetch_sources","datetime":"yesterday"}`))
	assert.ErrorIs(t, err, worker.ErrInvalidMessage)

	assert.NoError(t, h.Handle(context.Background(), []byte(`{"job_type":"alert_evaluation"}`)), "unknown job types are acknowledged")
}
