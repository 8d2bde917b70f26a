// Package response writes JSON and Problem+JSON bodies.
package response

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/vayuwatch/vayuwatch/internal/api/middleware"
	"github.com/vayuwatch/vayuwatch/internal/api/models"
)

// JSON writes data with the given status and the request's X-Request-Id.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Cached writes a 200 JSON response with Cache-Control and Last-Modified
// derived from when the data was fetched and how long it stays fresh.
func Cached(w http.ResponseWriter, r *http.Request, data interface{}, fetchedAt time.Time, ttl time.Duration) {
	if !fetchedAt.IsZero() {
		w.Header().Set("Last-Modified", fetchedAt.UTC().Format(http.TimeFormat))

		remaining := ttl - time.Since(fetchedAt)
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(remaining.Seconds())))
	}
	JSON(w, r, http.StatusOK, data)
}

// Error writes problem with the request path as its instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 validation problem.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errors))
}

// NotFound writes a 404 problem.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), detail))
}

// NoCoverage writes a 404 problem for a coordinate without nearby stations.
func NoCoverage(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNoCoverage(middleware.GetRequestID(r.Context()), detail))
}

// InternalError writes a 500 problem.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(middleware.GetRequestID(r.Context()), detail))
}

// ServiceUnavailable writes a 503 problem.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(middleware.GetRequestID(r.Context()), detail))
}
