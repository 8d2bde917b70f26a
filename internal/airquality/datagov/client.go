// Package datagov adapts the data.gov.in CPCB real-time air quality
// resource to canonical stations.
package datagov

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
	"github.com/vayuwatch/vayuwatch/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the data.gov.in resource API root.
	DefaultBaseURL = "https://api.data.gov.in/resource"

	// DefaultResourceID is the CPCB real-time AQI dataset.
	DefaultResourceID = "3b01bcb8-0b14-4abf-b6f2-c1bfd384ba69"

	// ProviderName identifies this adapter.
	ProviderName = "datagov"

	// lastUpdateLayout is the dataset's timestamp format, in IST.
	lastUpdateLayout = "02-01-2006 15:04:05"
)

var ist = time.FixedZone("IST", 5*3600+1800)

// Config holds configuration for the data.gov.in adapter.
type Config struct {
	// APIKey is required. Empty disables the adapter.
	APIKey string

	BaseURL    string
	ResourceID string

	// PageSize is the "limit" per request (default: 500).
	PageSize int

	// MaxPages bounds pagination (default: 10).
	MaxPages int

	Client *resilience.Client
	Logger zerolog.Logger
	Now    func() time.Time
}

// Client is the data.gov.in adapter.
type Client struct {
	cfg     Config
	baseURL string
	http    *resilience.Client
	logger  zerolog.Logger
}

// NewClient creates a data.gov.in adapter.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ResourceID == "" {
		cfg.ResourceID = DefaultResourceID
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	httpClient := cfg.Client
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = 15 * time.Second
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

type recordsResponse struct {
	Total   json.Number `json:"total"`
	Count   json.Number `json:"count"`
	Records []record    `json:"records"`
}

// record is one pollutant reading at one station. All values are strings.
type record struct {
	Station      string `json:"station"`
	City         string `json:"city"`
	State        string `json:"state"`
	LastUpdate   string `json:"last_update"`
	Latitude     string `json:"latitude"`
	Longitude    string `json:"longitude"`
	PollutantID  string `json:"pollutant_id"`
	AvgValue     string `json:"avg_value"`
	PollutantAvg string `json:"pollutant_avg"`
}

// FetchStations implements airquality.Adapter. The dataset has one row per
// station and pollutant; rows are grouped by station and the composite
// AQI is the highest CPCB sub-index.
func (c *Client) FetchStations(ctx context.Context) ([]airquality.Station, error) {
	if c.cfg.APIKey == "" {
		return nil, airquality.ErrAdapterSkipped
	}

	records, err := c.fetchAll(ctx)
	if err != nil && len(records) == 0 {
		return nil, err
	}
	if err != nil {
		c.logger.Warn().Err(err).Int("records", len(records)).Msg("pagination stopped early, using partial result")
	}

	stations := group(records, c.cfg.Now())
	c.logger.Debug().
		Int("records", len(records)).
		Int("stations", len(stations)).
		Msg("datagov stations fetched")
	return stations, nil
}

func (c *Client) fetchAll(ctx context.Context) ([]record, error) {
	var all []record

	for page := 0; page < c.cfg.MaxPages; page++ {
		q := url.Values{}
		q.Set("api-key", c.cfg.APIKey)
		q.Set("format", "json")
		q.Set("limit", strconv.Itoa(c.cfg.PageSize))
		q.Set("offset", strconv.Itoa(page*c.cfg.PageSize))

		var resp recordsResponse
		u := fmt.Sprintf("%s/%s?%s", c.baseURL, c.cfg.ResourceID, q.Encode())
		if err := c.http.GetJSON(ctx, u, &resp); err != nil {
			return all, fmt.Errorf("fetch page %d: %w", page, err)
		}

		all = append(all, resp.Records...)

		total, _ := resp.Total.Int64()
		if len(resp.Records) < c.cfg.PageSize || (total > 0 && int64(len(all)) >= total) {
			break
		}
	}
	return all, nil
}

type stationKey struct {
	station string
	city    string
}

// group folds pollutant rows into stations, keeping first-seen order.
// Stations whose coordinates cannot be parsed are dropped.
func group(records []record, now time.Time) []airquality.Station {
	index := make(map[stationKey]int)
	var stations []airquality.Station
	invalid := make(map[stationKey]bool)

	for _, r := range records {
		key := stationKey{station: strings.TrimSpace(r.Station), city: strings.TrimSpace(r.City)}
		if invalid[key] {
			continue
		}

		i, ok := index[key]
		if !ok {
			lat, errLat := strconv.ParseFloat(strings.TrimSpace(r.Latitude), 64)
			lng, errLng := strconv.ParseFloat(strings.TrimSpace(r.Longitude), 64)
			if errLat != nil || errLng != nil {
				invalid[key] = true
				continue
			}

			name := key.station
			if name == "" {
				name = fmt.Sprintf("Station %d", len(stations)+1)
			}
			updated, err := time.ParseInLocation(lastUpdateLayout, strings.TrimSpace(r.LastUpdate), ist)
			if err != nil {
				updated = now
			}

			stations = append(stations, airquality.Station{
				ID:          airquality.StationID(ProviderName, airquality.Slug(name+" "+key.city)),
				Source:      airquality.SourceDataGov,
				Name:        name,
				Lat:         lat,
				Lng:         lng,
				LastUpdated: updated,
				Provenance:  airquality.ProvenanceLive,
			})
			i = len(stations) - 1
			index[key] = i
		}

		setPollutant(&stations[i], r.PollutantID, value(r))
	}

	for i := range stations {
		stations[i].AQI = airquality.CompositeAQI(stations[i])
	}
	return stations
}

// value reads avg_value, then pollutant_avg. "NA" and blanks are 0.
func value(r record) float64 {
	for _, raw := range []string{r.AvgValue, r.PollutantAvg} {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.EqualFold(raw, "NA") {
			continue
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 {
			return v
		}
	}
	return 0
}

func setPollutant(s *airquality.Station, id string, v float64) {
	switch strings.ToUpper(strings.TrimSpace(id)) {
	case "PM2.5":
		s.PM25 = v
	case "PM10":
		s.PM10 = v
	case "NO2":
		s.NO2 = v
	case "SO2":
		s.SO2 = v
	case "CO":
		s.CO = v
	case "OZONE", "O3":
		s.O3 = v
	}
}
