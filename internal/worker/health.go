package worker

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vayuwatch/vayuwatch/internal/api/response"
)

// HealthResponse is the worker's /health body.
type HealthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Refresh map[string]any `json:"refresh"`
	Alerts  AlertStats     `json:"alerts"`
}

// AlertStats summarises the alert feed.
type AlertStats struct {
	Cycles uint64 `json:"cycles"`
	Raised uint64 `json:"raised"`
}

// NewHealthRouter serves GET /health for platform liveness checks.
// feed may be nil.
func NewHealthRouter(version string, job *RefreshJob, feed *AlertFeed) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := HealthResponse{
			Status:  "healthy",
			Version: version,
			Refresh: job.MetricsSnapshot(),
		}
		if feed != nil {
			body.Alerts.Cycles, body.Alerts.Raised = feed.Stats()
		}
		response.JSON(w, r, http.StatusOK, body)
	})
	return r
}
