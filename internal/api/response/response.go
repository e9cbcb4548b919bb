// Package response writes JSON and problem responses.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/caparker/openaq-fetch/internal/airquality"
	"github.com/caparker/openaq-fetch/internal/api/middleware"
	"github.com/caparker/openaq-fetch/internal/api/models"
)

// JSON writes a JSON response with the given status code.
// Includes X-Request-Id header for correlation.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set(middleware.RequestIDHeader, requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(data)
	}
}

// Error writes a Problem+JSON error response.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errors))
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), detail))
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(middleware.GetRequestID(r.Context()), detail))
}

// ServiceUnavailable writes a 503 Service Unavailable error response.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(middleware.GetRequestID(r.Context()), detail))
}

// AdapterFailure maps a failed adapter call to a problem:
// unreachable or unparseable sources are 502, a missing reporting window
// and unregistered adapters are 404, anything else is 500.
func AdapterFailure(w http.ResponseWriter, r *http.Request, err error) {
	traceID := middleware.GetRequestID(r.Context())

	if errors.Is(err, airquality.ErrAdapterNotRegistered) {
		Error(w, r, models.NewNotFound(traceID, err.Error()))
		return
	}

	ae := airquality.Classify("", err)
	var problem *models.Problem
	switch ae.Kind {
	case airquality.ErrFetch:
		problem = models.NewBadGateway(models.ProblemTypeFetch, ae.Message(), traceID, ae.Error())
	case airquality.ErrParse:
		problem = models.NewBadGateway(models.ProblemTypeParse, ae.Message(), traceID, ae.Error())
	case airquality.ErrRowNotFound:
		problem = models.NewProblem(models.ProblemTypeRowNotFound, ae.Message(), http.StatusNotFound, traceID).
			WithDetail(ae.Error())
	default:
		problem = models.NewInternalError(traceID, ae.Message())
	}
	Error(w, r, problem)
}
