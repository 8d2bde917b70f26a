package handler

import (
	"net/http"

	"github.com/vayuwatch/vayuwatch/internal/api/models"
	"github.com/vayuwatch/vayuwatch/internal/api/response"
)

// AlertHandler serves recently raised AQI change alerts.
type AlertHandler struct {
	source AlertSource
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(source AlertSource) *AlertHandler {
	return &AlertHandler{source: source}
}

// ListAlerts handles GET /v1/alerts, newest first.
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.NewAlertList(h.source.Recent()))
}
