// Package handler provides HTTP handlers for the VayuWatch API.
package handler

import (
	"context"
	"time"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
	"github.com/vayuwatch/vayuwatch/internal/alerts"
	"github.com/vayuwatch/vayuwatch/internal/monitor"
	"github.com/vayuwatch/vayuwatch/internal/provider/resilience"
	"github.com/vayuwatch/vayuwatch/internal/satellite"
	"github.com/vayuwatch/vayuwatch/internal/weather"
)

// AirQualityService is the data source for the read endpoints.
// *monitor.Service implements it.
type AirQualityService interface {
	Stations(ctx context.Context) (*monitor.StationSet, error)
	FetchSatelliteData(ctx context.Context) ([]satellite.Datum, error)
	FetchWeatherData(ctx context.Context, lat, lng float64) (*weather.Snapshot, error)
	EstimateAQI(ctx context.Context, lat, lng float64) (*airquality.PointEstimate, error)
	SetupRealTimeUpdates(callback func([]airquality.Station)) (unsubscribe func())
	Status() monitor.Status
	CacheTTL() time.Duration
}

// AlertSource lists recently raised alerts. *alerts.Detector implements it.
type AlertSource interface {
	Recent() []alerts.Alert
}

// ProviderHealthSource reports upstream provider health.
// *resilience.Registry implements it.
type ProviderHealthSource interface {
	Snapshot() []resilience.ProviderHealth
}
