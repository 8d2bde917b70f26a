// Package openweathermap provides current weather from OpenWeatherMap.
package openweathermap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
	"github.com/vayuwatch/vayuwatch/internal/provider/resilience"
	"github.com/vayuwatch/vayuwatch/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openweathermap-weather"

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
)

// ErrMissingAPIKey is returned for every call when no key is configured.
var ErrMissingAPIKey = errors.New("openweathermap: api key not configured")

// ClientConfig holds configuration for the OpenWeatherMap weather client.
type ClientConfig struct {
	APIKey  string
	BaseURL string

	// HTTPClient defaults to a resilient client.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
	Now    func() time.Time
}

// Client is an OpenWeatherMap current-weather client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
	now        func() time.Time
}

// NewClient creates a new OpenWeatherMap weather client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
		now:        now,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// HTTPClient exposes the underlying client for health registration.
func (c *Client) HTTPClient() *resilience.Client {
	return c.httpClient
}

// GetCurrentWeather fetches current weather for a location, converting
// wind to km/h and visibility to km.
func (c *Client) GetCurrentWeather(ctx context.Context, lat, lng float64) (*weather.Snapshot, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	url := fmt.Sprintf("%s/weather?lat=%.6f&lon=%.6f&appid=%s&units=metric",
		c.baseURL, lat, lng, c.apiKey)

	var resp currentWeatherResponse
	if err := c.httpClient.GetJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("current weather: %w", err)
	}

	return c.toSnapshot(lat, lng, &resp), nil
}

func (c *Client) toSnapshot(lat, lng float64, resp *currentWeatherResponse) *weather.Snapshot {
	snap := &weather.Snapshot{
		Lat:           lat,
		Lng:           lng,
		Temperature:   resp.Main.Temp,
		Humidity:      resp.Main.Humidity,
		WindSpeed:     weather.MetersPerSecondToKmh(resp.Wind.Speed),
		WindDirection: resp.Wind.Deg,
		Pressure:      resp.Main.Pressure,
		Visibility:    weather.MetersToKm(float64(resp.Visibility)),
		Condition:     weather.ConditionUnknown,
		ObservedAt:    c.now(),
		Provenance:    airquality.ProvenanceLive,
	}
	if resp.Dt > 0 {
		snap.ObservedAt = time.Unix(resp.Dt, 0).UTC()
	}
	if len(resp.Weather) > 0 {
		snap.Condition = mapCondition(resp.Weather[0].Main)
		snap.Description = resp.Weather[0].Description
	}
	return snap
}

func mapCondition(owm string) weather.Condition {
	switch owm {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		return weather.ConditionClouds
	case "Rain":
		return weather.ConditionRain
	case "Drizzle":
		return weather.ConditionDrizzle
	case "Thunderstorm":
		return weather.ConditionThunderstorm
	case "Mist":
		return weather.ConditionMist
	case "Fog":
		return weather.ConditionFog
	case "Haze":
		return weather.ConditionHaze
	case "Smoke":
		return weather.ConditionSmoke
	case "Dust", "Sand", "Ash":
		return weather.ConditionDust
	default:
		return weather.ConditionUnknown
	}
}

type currentWeatherResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Pressure float64 `json:"pressure"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Visibility int `json:"visibility"`
	Wind       struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Dt int64 `json:"dt"`
}
