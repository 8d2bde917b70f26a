// Package openweathermap adapts the OpenWeatherMap air pollution API to
// canonical stations, one per configured city.
package openweathermap

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
	"github.com/vayuwatch/vayuwatch/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the OWM API root.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

	// ProviderName identifies this adapter.
	ProviderName = "openweathermap"
)

// Config holds configuration for the OWM air pollution adapter.
type Config struct {
	// APIKey is required. Empty disables the adapter.
	APIKey string

	BaseURL string

	// Cities queried each cycle (default: airquality.MajorCities).
	Cities []airquality.City

	Client *resilience.Client
	Logger zerolog.Logger
	Now    func() time.Time
}

// Client is the OWM air pollution adapter.
type Client struct {
	cfg     Config
	baseURL string
	http    *resilience.Client
	logger  zerolog.Logger
}

// NewClient creates an OWM air pollution adapter.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if len(cfg.Cities) == 0 {
		cfg.Cities = airquality.MajorCities
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	httpClient := cfg.Client
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    httpClient,
		logger:  cfg.Logger.With().Str("adapter", ProviderName).Logger(),
	}
}

// Name implements airquality.Adapter.
func (c *Client) Name() string {
	return ProviderName
}

// HTTPClient exposes the underlying client for health registration.
func (c *Client) HTTPClient() *resilience.Client {
	return c.http
}

// PollutionResponse is the shape of both /air_pollution and
// /air_pollution/forecast.
type PollutionResponse struct {
	List []PollutionEntry `json:"list"`
}

// PollutionEntry is one hourly sample. Components are in µg/m³.
type PollutionEntry struct {
	Dt   int64 `json:"dt"`
	Main struct {
		AQI int `json:"aqi"`
	} `json:"main"`
	Components Components `json:"components"`
}

// Components are OWM pollutant concentrations in µg/m³.
type Components struct {
	CO   float64 `json:"co"`
	NO2  float64 `json:"no2"`
	O3   float64 `json:"o3"`
	SO2  float64 `json:"so2"`
	PM25 float64 `json:"pm2_5"`
	PM10 float64 `json:"pm10"`
}

// FetchStations implements airquality.Adapter. Cities are queried
// concurrently; results keep city order and failed cities are skipped.
func (c *Client) FetchStations(ctx context.Context) ([]airquality.Station, error) {
	if c.cfg.APIKey == "" {
		return nil, airquality.ErrAdapterSkipped
	}

	now := c.cfg.Now()
	results := make([]*airquality.Station, len(c.cfg.Cities))
	errs := make([]error, len(c.cfg.Cities))

	var wg sync.WaitGroup
	for i, city := range c.cfg.Cities {
		wg.Add(1)
		go func(i int, city airquality.City) {
			defer wg.Done()
			results[i], errs[i] = c.fetchCity(ctx, city, now)
		}(i, city)
	}
	wg.Wait()

	var stations []airquality.Station
	var firstErr error
	for i, s := range results {
		if errs[i] != nil {
			c.logger.Warn().Err(errs[i]).Str("city", c.cfg.Cities[i].Name).Msg("air pollution fetch failed")
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		if s != nil {
			stations = append(stations, *s)
		}
	}

	if len(stations) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return stations, nil
}

func (c *Client) fetchCity(ctx context.Context, city airquality.City, now time.Time) (*airquality.Station, error) {
	var resp PollutionResponse
	if err := c.FetchPollution(ctx, "/air_pollution", city.Lat, city.Lng, &resp); err != nil {
		return nil, err
	}
	if len(resp.List) == 0 {
		return nil, nil
	}

	s := ToStation(city, resp.List[0], now)
	return &s, nil
}

// FetchPollution calls an air pollution endpoint for one coordinate.
func (c *Client) FetchPollution(ctx context.Context, path string, lat, lng float64, out *PollutionResponse) error {
	u := fmt.Sprintf("%s%s?lat=%.4f&lon=%.4f&appid=%s", c.baseURL, path, lat, lng, c.cfg.APIKey)
	if err := c.http.GetJSON(ctx, u, out); err != nil {
		return fmt.Errorf("air pollution %s: %w", path, err)
	}
	return nil
}

// ToStation converts one sample into a canonical station: categorical AQI
// is mapped onto 0-500 and CO converted to mg/m³.
func ToStation(city airquality.City, e PollutionEntry, now time.Time) airquality.Station {
	updated := now
	if e.Dt > 0 {
		updated = time.Unix(e.Dt, 0).UTC()
	}

	return airquality.Station{
		ID:          airquality.StationID(airquality.SourceOWM, airquality.Slug(city.Name)),
		Source:      airquality.SourceOWM,
		Name:        city.Name,
		Lat:         city.Lat,
		Lng:         city.Lng,
		AQI:         airquality.CategoricalAQI(e.Main.AQI),
		PM25:        e.Components.PM25,
		PM10:        e.Components.PM10,
		NO2:         e.Components.NO2,
		SO2:         e.Components.SO2,
		CO:          airquality.MicrogramsToMilligrams(e.Components.CO),
		O3:          e.Components.O3,
		LastUpdated: updated,
		Provenance:  airquality.ProvenanceLive,
	}
}
