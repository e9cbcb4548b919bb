package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/caparker/openaq-fetch/internal/airquality"
	"github.com/caparker/openaq-fetch/internal/api/models"
	"github.com/caparker/openaq-fetch/internal/api/response"
)

// AdaptersHandler exposes the registered adapters over HTTP. Fetches only
// ever target the configured sources.
type AdaptersHandler struct {
	service *airquality.Service
	sources []airquality.Source
	timeout time.Duration
}

// NewAdaptersHandler creates a new AdaptersHandler. A positive timeout
// bounds each adapter call.
func NewAdaptersHandler(service *airquality.Service, sources []airquality.Source, timeout time.Duration) *AdaptersHandler {
	return &AdaptersHandler{service: service, sources: sources, timeout: timeout}
}

// ListAdapters handles GET /v1/adapters.
func (h *AdaptersHandler) ListAdapters(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.AdapterList{Items: h.service.Names()})
}

// GetMeasurements handles GET /v1/adapters/{name}/measurements.
//
// Query parameters: url picks one of the adapter's configured sources (the
// first one when omitted); datetime (RFC 3339) selects a historical window
// instead of the most recent one.
func (h *AdaptersHandler) GetMeasurements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := chi.URLParam(r, "name")

	src, ok := h.source(name, q.Get("url"))
	if !ok {
		if q.Get("url") != "" && h.configured(name) {
			response.BadRequest(w, r, "url is not a configured source of this adapter", []models.FieldError{
				{Field: "url", Message: fmt.Sprintf("no %s source has this url", name), Code: "not_configured"},
			})
			return
		}
		response.NotFound(w, r, fmt.Sprintf("no source configured for adapter %q", name))
		return
	}

	if raw := q.Get("datetime"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, r, "datetime must be an RFC 3339 timestamp", []models.FieldError{
				{Field: "datetime", Message: err.Error(), Code: "invalid_format"},
			})
			return
		}
		src.Datetime = &at
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.service.Fetch(ctx, src)
	if err != nil {
		response.AdapterFailure(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

// source returns a copy of the configured source of adapter whose URL is
// url, or the adapter's first source when url is empty.
func (h *AdaptersHandler) source(adapter, url string) (airquality.Source, bool) {
	for _, src := range h.sources {
		if src.Adapter == adapter && (url == "" || src.URL == url) {
			return src, true
		}
	}
	return airquality.Source{}, false
}

func (h *AdaptersHandler) configured(adapter string) bool {
	_, ok := h.source(adapter, "")
	return ok
}
