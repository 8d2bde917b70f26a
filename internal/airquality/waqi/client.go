// Package waqi adapts the World Air Quality Index API to canonical stations.
package waqi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
	"github.com/vayuwatch/vayuwatch/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the WAQI API root.
	DefaultBaseURL = "https://api.waqi.info"

	// ProviderName identifies this adapter.
	ProviderName = "waqi"

	// IndiaBounds is "south,west,north,east" covering the Indian mainland.
	IndiaBounds = "8,68,37,97"
)

// DefaultKeywords are the cities queried when the bounds endpoint yields nothing.
var DefaultKeywords = []string{
	"Delhi", "Mumbai", "Bangalore", "Chennai", "Kolkata", "Hyderabad", "Pune", "Ahmedabad",
}

// ErrBadStatus is returned when WAQI answers with status other than "ok".
var ErrBadStatus = errors.New("waqi: response status not ok")

// Config holds configuration for the WAQI adapter.
type Config struct {
	// Token is the API token. Empty disables the adapter.
	Token string

	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Bounds defaults to IndiaBounds.
	Bounds string

	// DetailLimit caps how many stations get a per-station detail call
	// for pollutant values (default: 20). Negative disables detail calls.
	DetailLimit int

	// DetailWorkers bounds concurrent detail calls (default: 4).
	DetailWorkers int

	// Keywords for the search fallback (default: DefaultKeywords).
	Keywords []string

	// ResultsPerKeyword caps search hits kept per keyword (default: 5).
	ResultsPerKeyword int

	// Client is the upstream HTTP client. Nil builds one rate limited to
	// 5 requests per second.
	Client *resilience.Client

	Logger zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Client is the WAQI adapter.
type Client struct {
	cfg     Config
	baseURL string
	http    *resilience.Client
	logger  zerolog.Logger
	now     func() time.Time
}

// NewClient creates a WAQI adapter.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Bounds == "" {
		cfg.Bounds = IndiaBounds
	}
	if cfg.DetailLimit == 0 {
		cfg.DetailLimit = 20
	}
	if cfg.DetailWorkers <= 0 {
		cfg.DetailWorkers = 4
	}
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = DefaultKeywords
	}
	if cfg.ResultsPerKeyword <= 0 {
		cfg.ResultsPerKeyword = 5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	httpClient := cfg.Client
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.RatePerSecond = 5
		clientCfg.Burst = 5
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    httpClient,
		logger:  cfg.Logger.With().Str("adapter", ProviderName).Logger(),
		now:     cfg.Now,
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

// API response types.

type boundsResponse struct {
	Status string        `json:"status"`
	Data   []boundsEntry `json:"data"`
}

type boundsEntry struct {
	Lat     float64     `json:"lat"`
	Lon     float64     `json:"lon"`
	UID     int         `json:"uid"`
	AQI     aqiValue    `json:"aqi"`
	Station stationInfo `json:"station"`
}

type stationInfo struct {
	Name string `json:"name"`
	Time string `json:"time"`
}

type searchResponse struct {
	Status string        `json:"status"`
	Data   []searchEntry `json:"data"`
}

type searchEntry struct {
	UID  int      `json:"uid"`
	AQI  aqiValue `json:"aqi"`
	Time struct {
		Stime string `json:"stime"`
	} `json:"time"`
	Station struct {
		Name string    `json:"name"`
		Geo  []float64 `json:"geo"`
	} `json:"station"`
}

type feedResponse struct {
	Status string   `json:"status"`
	Data   feedData `json:"data"`
}

type feedData struct {
	IAQI map[string]struct {
		V float64 `json:"v"`
	} `json:"iaqi"`
	Time struct {
		ISO string `json:"iso"`
	} `json:"time"`
}

// FetchStations implements airquality.Adapter. Stations come from the
// bounds endpoint, or from per-city keyword searches when bounds fails or
// is empty. The first DetailLimit stations are then enriched with
// per-pollutant values from the feed endpoint.
func (c *Client) FetchStations(ctx context.Context) ([]airquality.Station, error) {
	if c.cfg.Token == "" {
		return nil, airquality.ErrAdapterSkipped
	}

	stations, err := c.fetchBounds(ctx)
	if err != nil || len(stations) == 0 {
		if err != nil {
			c.logger.Warn().Err(err).Msg("bounds query failed, falling back to keyword search")
		}
		stations = c.searchKeywords(ctx)
	}
	if len(stations) == 0 {
		if err != nil {
			return nil, err
		}
		return nil, nil
	}

	c.enrich(ctx, stations)

	c.logger.Debug().Int("stations", len(stations)).Msg("waqi stations fetched")
	return stations, nil
}

func (c *Client) fetchBounds(ctx context.Context) ([]airquality.Station, error) {
	q := url.Values{}
	q.Set("latlng", c.cfg.Bounds)
	q.Set("networks", "all")
	q.Set("token", c.cfg.Token)

	var resp boundsResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/v2/map/bounds?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("fetch bounds: %w", err)
	}
	if resp.Status != "ok" {
		return nil, ErrBadStatus
	}

	now := c.now()
	stations := make([]airquality.Station, 0, len(resp.Data))
	for _, e := range resp.Data {
		if !validCoordinate(e.Lat, e.Lon) {
			continue
		}
		stations = append(stations, c.toStation(e.UID, e.Station.Name, e.Lat, e.Lon, e.AQI, e.Station.Time, now))
	}
	return stations, nil
}

// searchKeywords queries each keyword in order, keeping at most
// ResultsPerKeyword hits per keyword and skipping UIDs already seen.
func (c *Client) searchKeywords(ctx context.Context) []airquality.Station {
	now := c.now()
	seen := make(map[int]bool)
	var stations []airquality.Station

	for _, keyword := range c.cfg.Keywords {
		if ctx.Err() != nil {
			break
		}

		q := url.Values{}
		q.Set("keyword", keyword)
		q.Set("token", c.cfg.Token)

		var resp searchResponse
		if err := c.http.GetJSON(ctx, c.baseURL+"/search/?"+q.Encode(), &resp); err != nil {
			c.logger.Warn().Err(err).Str("keyword", keyword).Msg("keyword search failed")
			continue
		}
		if resp.Status != "ok" {
			continue
		}

		kept := 0
		for _, e := range resp.Data {
			if kept >= c.cfg.ResultsPerKeyword {
				break
			}
			if seen[e.UID] || len(e.Station.Geo) < 2 || !validCoordinate(e.Station.Geo[0], e.Station.Geo[1]) {
				continue
			}
			seen[e.UID] = true
			kept++
			stations = append(stations, c.toStation(e.UID, e.Station.Name, e.Station.Geo[0], e.Station.Geo[1], e.AQI, e.Time.Stime, now))
		}
	}
	return stations
}

// enrich fills pollutant values for the first DetailLimit stations. A
// failed detail call leaves that station's pollutants at zero.
func (c *Client) enrich(ctx context.Context, stations []airquality.Station) {
	limit := c.cfg.DetailLimit
	if limit < 0 {
		return
	}
	if limit > len(stations) {
		limit = len(stations)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < c.cfg.DetailWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				c.fetchDetail(ctx, &stations[i])
			}
		}()
	}

	for i := 0; i < limit; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()
}

func (c *Client) fetchDetail(ctx context.Context, s *airquality.Station) {
	uid := strings.TrimPrefix(s.ID, ProviderName+"-")
	u := fmt.Sprintf("%s/feed/@%s/?token=%s", c.baseURL, uid, url.QueryEscape(c.cfg.Token))

	var resp feedResponse
	if err := c.http.GetJSON(ctx, u, &resp); err != nil {
		c.logger.Debug().Err(err).Str("station", s.ID).Msg("detail fetch failed")
		return
	}
	if resp.Status != "ok" {
		return
	}

	iaqi := func(key string) float64 { return concentration(key, resp.Data.IAQI[key].V) }
	s.PM25 = iaqi("pm25")
	s.PM10 = iaqi("pm10")
	s.NO2 = iaqi("no2")
	s.SO2 = iaqi("so2")
	s.CO = iaqi("co")
	s.O3 = iaqi("o3")

	if t, ok := parseTime(resp.Data.Time.ISO); ok {
		s.LastUpdated = t
	}
}

func (c *Client) toStation(uid int, name string, lat, lon float64, aqi aqiValue, ts string, now time.Time) airquality.Station {
	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("Station %d", uid)
	}
	updated, ok := parseTime(ts)
	if !ok {
		updated = now
	}

	return airquality.Station{
		ID:          airquality.StationID(ProviderName, strconv.Itoa(uid)),
		Source:      airquality.SourceWAQI,
		Name:        name,
		Lat:         lat,
		Lng:         lon,
		AQI:         float64(aqi),
		LastUpdated: updated,
		Provenance:  airquality.ProvenanceLive,
	}
}

// aqiValue decodes WAQI's AQI, which arrives as a string in bulk endpoints
// and as a number in the feed. "-" and anything unparsable decode to 0.
type aqiValue float64

func (a *aqiValue) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		*a = 0
		return nil
	}
	*a = aqiValue(v)
	return nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func validCoordinate(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180 && !(lat == 0 && lon == 0)
}
