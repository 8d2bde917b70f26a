// Package app assembles the data layer shared by the API server and the
// worker from a loaded Config.
package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
	"github.com/vayuwatch/vayuwatch/internal/airquality/datagov"
	"github.com/vayuwatch/vayuwatch/internal/airquality/openweathermap"
	"github.com/vayuwatch/vayuwatch/internal/airquality/waqi"
	"github.com/vayuwatch/vayuwatch/internal/alerts"
	"github.com/vayuwatch/vayuwatch/internal/cache"
	"github.com/vayuwatch/vayuwatch/internal/config"
	"github.com/vayuwatch/vayuwatch/internal/monitor"
	"github.com/vayuwatch/vayuwatch/internal/provider/resilience"
	"github.com/vayuwatch/vayuwatch/internal/satellite"
	"github.com/vayuwatch/vayuwatch/internal/weather"
	weatherowm "github.com/vayuwatch/vayuwatch/internal/weather/openweathermap"
)

// Recorder receives adapter and cache metrics.
type Recorder interface {
	airquality.RequestRecorder
	monitor.CacheRecorder
}

// App is the assembled data layer.
type App struct {
	Registry *resilience.Registry
	Monitor  *monitor.Service
	Detector *alerts.Detector

	// Adapters lists enabled adapters in priority order.
	Adapters []string
}

// Build wires adapters, caches and services. Adapters without
// credentials are left out. metrics may be nil.
func Build(cfg config.Config, metrics Recorder, logger zerolog.Logger) (*App, error) {
	registry := resilience.NewRegistry()

	var owm *openweathermap.Client
	var adapters []airquality.Adapter

	for _, name := range cfg.AdapterOrder {
		var adapter interface {
			airquality.Adapter
			HTTPClient() *resilience.Client
		}

		switch name {
		case waqi.ProviderName:
			if cfg.WAQIToken == "" {
				logger.Warn().Str("adapter", name).Msg("WAQI_API_TOKEN not set, adapter disabled")
				continue
			}
			adapter = waqi.NewClient(waqi.Config{Token: cfg.WAQIToken, Logger: logger})
		case datagov.ProviderName:
			if cfg.DataGovAPIKey == "" {
				logger.Warn().Str("adapter", name).Msg("DATA_GOV_API_KEY not set, adapter disabled")
				continue
			}
			adapter = datagov.NewClient(datagov.Config{
				APIKey:     cfg.DataGovAPIKey,
				ResourceID: cfg.DataGovResourceID,
				Logger:     logger,
			})
		case openweathermap.ProviderName:
			if cfg.OpenWeatherAPIKey == "" {
				logger.Warn().Str("adapter", name).Msg("OPENWEATHER_API_KEY not set, adapter disabled")
				continue
			}
			owm = openweathermap.NewClient(openweathermap.Config{APIKey: cfg.OpenWeatherAPIKey, Logger: logger})
			adapter = owm
		default:
			return nil, fmt.Errorf("unknown adapter %q in AQI_ADAPTER_ORDER", name)
		}

		registry.Register(adapter.Name(), adapter.HTTPClient())
		adapters = append(adapters, adapter)
	}

	aggCfg := airquality.AggregatorConfig{
		Adapters:       adapters,
		Logger:         logger,
		AdapterTimeout: cfg.AdapterTimeout,
		DedupThreshold: cfg.DedupThresholdDeg,
		Health:         registry,
	}
	if metrics != nil {
		aggCfg.Metrics = metrics
	}
	aggregator := airquality.NewAggregator(aggCfg)

	satCfg := satellite.ServiceConfig{Logger: logger}
	if owm != nil {
		satCfg.Source = satellite.NewForecastSource(satellite.ForecastConfig{Client: owm, Logger: logger})
	}

	weatherCfg := weather.ServiceConfig{Logger: logger}
	if cfg.OpenWeatherAPIKey != "" {
		client := weatherowm.NewClient(weatherowm.ClientConfig{APIKey: cfg.OpenWeatherAPIKey, Logger: logger})
		registry.Register(client.Name(), client.HTTPClient())
		weatherCfg.Provider = client
	}

	monCfg := monitor.Config{
		Aggregator:   aggregator,
		Satellite:    satellite.NewService(satCfg),
		Weather:      weather.NewService(weatherCfg),
		Cache:        cache.New(cache.Config{TTL: cfg.CacheTTL}),
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	}
	if metrics != nil {
		monCfg.Metrics = metrics
	}

	return &App{
		Registry: registry,
		Monitor:  monitor.NewService(monCfg),
		Detector: alerts.NewDetector(alerts.Config{Logger: logger}),
		Adapters: aggregator.AdapterNames(),
	}, nil
}
