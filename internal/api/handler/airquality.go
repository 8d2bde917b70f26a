package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
	"github.com/vayuwatch/vayuwatch/internal/api/middleware"
	"github.com/vayuwatch/vayuwatch/internal/api/models"
	"github.com/vayuwatch/vayuwatch/internal/api/response"
	"github.com/vayuwatch/vayuwatch/internal/weather"
)

// AirQualityHandler serves stations, satellite data, weather and point
// estimates.
type AirQualityHandler struct {
	service AirQualityService
	logger  zerolog.Logger
}

// NewAirQualityHandler creates a new AirQualityHandler.
func NewAirQualityHandler(service AirQualityService, logger zerolog.Logger) *AirQualityHandler {
	return &AirQualityHandler{service: service, logger: logger}
}

// ListStations handles GET /v1/stations.
func (h *AirQualityHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	set, err := h.service.Stations(r.Context())
	if err != nil {
		h.fail(w, r, err, "stations")
		return
	}

	body := models.StationList{
		Items: models.NewStations(set.Stations),
		Meta: models.StationListMeta{
			Count:     len(set.Stations),
			Sources:   set.Sources,
			FetchedAt: models.Timestamp(set.FetchedAt),
			Synthetic: set.Synthetic,
		},
	}
	response.Cached(w, r, body, set.FetchedAt, h.service.CacheTTL())
}

// ListSatelliteData handles GET /v1/satellite.
func (h *AirQualityHandler) ListSatelliteData(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.FetchSatelliteData(r.Context())
	if err != nil {
		h.fail(w, r, err, "satellite")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewSatelliteList(data))
}

// GetWeather handles GET /v1/weather?lat=&lon=.
func (h *AirQualityHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	lat, lng, fieldErrs := parseCoordinates(r)
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid coordinates", fieldErrs)
		return
	}

	snap, err := h.service.FetchWeatherData(r.Context(), lat, lng)
	if err != nil {
		h.fail(w, r, err, "weather")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewWeather(snap))
}

// EstimateAQI handles GET /v1/aqi?lat=&lon=.
func (h *AirQualityHandler) EstimateAQI(w http.ResponseWriter, r *http.Request) {
	lat, lng, fieldErrs := parseCoordinates(r)
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid coordinates", fieldErrs)
		return
	}

	est, err := h.service.EstimateAQI(r.Context(), lat, lng)
	if err != nil {
		h.fail(w, r, err, "aqi estimate")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewPointEstimate(est))
}

// fail maps domain errors to Problem responses.
func (h *AirQualityHandler) fail(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, weather.ErrInvalidCoordinates):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, airquality.ErrNoStationsInRange):
		response.NoCoverage(w, r, "no monitoring station within range of the requested coordinate")
	case r.Context().Err() != nil:
		response.ServiceUnavailable(w, r, "request cancelled before "+what+" data was available")
	default:
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("resource", what).
			Msg("request failed")
		response.InternalError(w, r, "failed to load "+what+" data")
	}
}
