package waqi_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
	"github.com/vayuwatch/vayuwatch/internal/airquality/waqi"
	"github.com/vayuwatch/vayuwatch/internal/provider/resilience"
)

var fixedNow = time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

func testClient(t *testing.T, serverURL string, mutate func(*waqi.Config)) *waqi.Client {
	t.Helper()

	httpCfg := resilience.DefaultClientConfig("waqi-test")
	httpCfg.MaxRetries = -1

	cfg := waqi.Config{
		Token:    "test-token",
		BaseURL:  serverURL,
		Client:   resilience.NewClient(httpCfg),
		Keywords: []string{"Delhi", "Mumbai"},
		Logger:   zerolog.New(io.Discard),
		Now:      func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return waqi.NewClient(cfg)
}

const boundsBody = `{
  "status": "ok",
  "data": [
    {"lat": 28.6139, "lon": 77.209, "uid": 101, "aqi": "182",
     "station": {"name": "Anand Vihar, Delhi", "time": "2025-11-03T08:00:00+05:30"}},
    {"lat": 19.076, "lon": 72.8777, "uid": 202, "aqi": "-",
     "station": {"name": "", "time": ""}},
    {"lat": 0, "lon": 0, "uid": 303, "aqi": "50", "station": {"name": "Nowhere"}}
  ]
}`

const feedBody = `{
  "status": "ok",
  "data": {
    "aqi": 182,
    "iaqi": {"pm25": {"v": 182}, "pm10": {"v": 140}, "no2": {"v": 31.5}, "o3": {"v": 12}},
    "time": {"iso": "2025-11-03T08:30:00+05:30"}
  }
}`

func TestClient_FetchStations_Bounds(t *testing.T) {
	var detailCalls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.URL.Query().Get("token"))
		switch {
		case r.URL.Path == "/v2/map/bounds":
			assert.Equal(t, waqi.IndiaBounds, r.URL.Query().Get("latlng"))
			_, _ = w.Write([]byte(boundsBody))
		case r.URL.Path == "/feed/@101/":
			detailCalls.Add(1)
			_, _ = w.Write([]byte(feedBody))
		default:
			detailCalls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	stations, err := testClient(t, server.URL, nil).FetchStations(context.Background())
	require.NoError(t, err)
	require.Len(t, stations, 2, "0,0 coordinate is dropped")

	delhi := stations[0]
	assert.Equal(t, "waqi-101", delhi.ID)
	assert.Equal(t, airquality.SourceWAQI, delhi.Source)
	assert.Equal(t, "Anand Vihar, Delhi", delhi.Name)
	assert.Equal(t, 182.0, delhi.AQI)
	// Sub-indices are converted back to concentrations.
	assert.InDelta(t, 115.5, delhi.PM25, 0.05)
	assert.InDelta(t, 233.8, delhi.PM10, 0.05)
	assert.InDelta(t, 62.8, delhi.NO2, 0.05)
	assert.InDelta(t, 25.4, delhi.O3, 0.05)
	assert.Equal(t, 0.0, delhi.SO2, "missing pollutant defaults to zero")
	assert.Equal(t, airquality.ProvenanceLive, delhi.Provenance)
	assert.True(t, delhi.LastUpdated.Equal(time.Date(2025, 11, 3, 3, 0, 0, 0, time.UTC)))

	mumbai := stations[1]
	assert.Equal(t, "Station 202", mumbai.Name)
	assert.Equal(t, 0.0, mumbai.AQI, "dash AQI is unknown")
	assert.Equal(t, fixedNow, mumbai.LastUpdated)

	assert.Equal(t, int32(2), detailCalls.Load())
}

func TestClient_FetchStations_SearchFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/map/bounds":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/search/":
			switch r.URL.Query().Get("keyword") {
			case "Delhi":
				_, _ = w.Write([]byte(`{"status":"ok","data":[
					{"uid":1,"aqi":"150","time":{"stime":"2025-11-03 08:00:00"},"station":{"name":"Delhi A","geo":[28.61,77.20]}},
					{"uid":2,"aqi":"160","station":{"name":"Delhi B","geo":[28.70,77.10]}},
					{"uid":3,"aqi":"170","station":{"name":"Delhi C","geo":[28.50,77.30]}}
				]}`))
			case "Mumbai":
				_, _ = w.Write([]byte(`{"status":"ok","data":[
					{"uid":2,"aqi":"160","station":{"name":"Delhi B","geo":[28.70,77.10]}},
					{"uid":4,"aqi":"90","station":{"name":"Mumbai A","geo":[19.07,72.87]}},
					{"uid":5,"aqi":"95","station":{"name":"Mumbai B","geo":[]}}
				]}`))
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := testClient(t, server.URL, func(cfg *waqi.Config) {
		cfg.ResultsPerKeyword = 2
		cfg.DetailLimit = -1
	})

	stations, err := client.FetchStations(context.Background())
	require.NoError(t, err)

	got := make([]string, 0, len(stations))
	for _, s := range stations {
		got = append(got, s.ID)
	}
	assert.Equal(t, []string{"waqi-1", "waqi-2", "waqi-4"}, got)
	assert.Equal(t, 150.0, stations[0].AQI)
	assert.True(t, stations[0].LastUpdated.Equal(time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC)))
}

func TestClient_FetchStations_AllFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	stations, err := testClient(t, server.URL, nil).FetchStations(context.Background())
	assert.Error(t, err)
	assert.Empty(t, stations)
}

func TestClient_FetchStations_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/map/bounds" {
			_, _ = w.Write([]byte(`{"status":"error","data":"Invalid key"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"error"}`))
	}))
	defer server.Close()

	stations, err := testClient(t, server.URL, nil).FetchStations(context.Background())
	assert.Empty(t, stations)
	assert.Error(t, err)
}

func TestClient_SkippedWithoutToken(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := testClient(t, server.URL, func(cfg *waqi.Config) { cfg.Token = "" })

	stations, err := client.FetchStations(context.Background())
	assert.ErrorIs(t, err, airquality.ErrAdapterSkipped)
	assert.Empty(t, stations)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, "waqi", client.Name())
}
