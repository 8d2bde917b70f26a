// Package api provides the HTTP API for VayuWatch.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/vayuwatch/vayuwatch/internal/api/handler"
	"github.com/vayuwatch/vayuwatch/internal/api/middleware"
	"github.com/vayuwatch/vayuwatch/internal/api/models"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	AirQuality handler.AirQualityService
	Alerts     handler.AlertSource
	Providers  handler.ProviderHealthSource
}

// NewRouter creates a chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "vayuwatch-api"
	}

	// Order matters: the request ID must exist before tracing and logging.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS)
	r.Use(middleware.RequireGET)
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewNotFound(middleware.GetRequestID(r.Context()), "no route for "+r.URL.Path)
		problem.Instance = r.URL.Path
		problem.Write(w)
	})

	var streamMetrics handler.StreamMetrics
	if cfg.Metrics != nil {
		streamMetrics = cfg.Metrics
	}

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.AirQuality, cfg.Providers)
	aqHandler := handler.NewAirQualityHandler(cfg.AirQuality, cfg.Logger)
	alertHandler := handler.NewAlertHandler(cfg.Alerts)
	streamHandler := handler.NewStreamHandler(cfg.AirQuality, streamMetrics, cfg.Logger)

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)
	lookupRateLimit := middleware.RateLimitByIP(middleware.LookupRateLimit)
	streamRateLimit := middleware.RateLimitByIP(middleware.StreamRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Cached aggregate reads.
		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/stations", aqHandler.ListStations)
			r.Get("/satellite", aqHandler.ListSatelliteData)
			r.Get("/alerts", alertHandler.ListAlerts)
		})

		// Per-coordinate lookups may reach an upstream provider.
		r.Group(func(r chi.Router) {
			r.Use(lookupRateLimit)
			r.Get("/weather", aqHandler.GetWeather)
			r.Get("/aqi", aqHandler.EstimateAQI)
		})

		r.With(streamRateLimit).Get("/stations/stream", streamHandler.StreamStations)
	})

	return r
}
