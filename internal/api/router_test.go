package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
	"github.com/vayuwatch/vayuwatch/internal/alerts"
	"github.com/vayuwatch/vayuwatch/internal/api"
	"github.com/vayuwatch/vayuwatch/internal/api/models"
	"github.com/vayuwatch/vayuwatch/internal/cache"
	"github.com/vayuwatch/vayuwatch/internal/monitor"
	"github.com/vayuwatch/vayuwatch/internal/provider/resilience"
	"github.com/vayuwatch/vayuwatch/internal/satellite"
	"github.com/vayuwatch/vayuwatch/internal/weather"
)

type stubAdapter struct {
	name     string
	stations []airquality.Station
	err      error
	calls    atomic.Int32
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) FetchStations(context.Context) ([]airquality.Station, error) {
	a.calls.Add(1)
	return a.stations, a.err
}

type stubWeather struct{}

func (stubWeather) Name() string { return "stub-weather" }

func (stubWeather) GetCurrentWeather(_ context.Context, lat, lng float64) (*weather.Snapshot, error) {
	return &weather.Snapshot{
		Lat: lat, Lng: lng, Temperature: 29.5, Humidity: 62, WindSpeed: 2,
		Condition: weather.ConditionSmoke, ObservedAt: time.Now(), Provenance: airquality.ProvenanceLive,
	}, nil
}

type testEnv struct {
	router   http.Handler
	adapter  *stubAdapter
	failing  *stubAdapter
	registry *resilience.Registry
	detector *alerts.Detector
	service  *monitor.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	env := &testEnv{
		adapter: &stubAdapter{name: "waqi", stations: []airquality.Station{
			{ID: "waqi-1", Source: airquality.SourceWAQI, Name: "Anand Vihar", Lat: 28.6469, Lng: 77.3164, AQI: 240, PM25: 150, LastUpdated: time.Now(), Provenance: airquality.ProvenanceLive},
			{ID: "waqi-2", Source: airquality.SourceWAQI, Name: "Bandra", Lat: 19.0596, Lng: 72.8295, AQI: 95, PM25: 40, LastUpdated: time.Now(), Provenance: airquality.ProvenanceLive},
		}},
		failing:  &stubAdapter{name: "datagov", err: errors.New("upstream 503")},
		registry: resilience.NewRegistry(),
		detector: alerts.NewDetector(alerts.Config{Logger: logger}),
	}

	env.service = monitor.NewService(monitor.Config{
		Aggregator: airquality.NewAggregator(airquality.AggregatorConfig{
			Adapters: []airquality.Adapter{env.adapter, env.failing},
			Logger:   logger,
			Health:   env.registry,
		}),
		Satellite: satellite.NewService(satellite.ServiceConfig{Logger: logger}),
		Weather:   weather.NewService(weather.ServiceConfig{Provider: stubWeather{}, Logger: logger}),
		Cache:     cache.New(cache.Config{TTL: 5 * time.Minute}),
		Logger:    logger,
	})
	t.Cleanup(func() { env.service.Stop() })

	env.router = api.NewRouter(api.RouterConfig{
		Version:    "test",
		BuildTime:  "2025-11-01T00:00:00Z",
		Logger:     logger,
		AirQuality: env.service,
		Alerts:     env.detector,
		Providers:  env.registry,
	})
	return env
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/v1/ops/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	health := decode[models.Health](t, rec)
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestReady_ListsAdapters(t *testing.T) {
	env := newTestEnv(t)

	health := decode[models.Health](t, env.get(t, "/v1/ops/ready"))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, []interface{}{"waqi", "datagov"}, health.Details["adapters"])
}

func TestListStations(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/v1/stations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "max-age=")

	body := decode[models.StationList](t, rec)
	require.Len(t, body.Items, 2)
	assert.Equal(t, 2, body.Meta.Count)
	assert.Equal(t, map[string]int{"waqi": 2}, body.Meta.Sources)
	assert.False(t, body.Meta.Synthetic)
	assert.Equal(t, "very_unhealthy", body.Items[0].Status)
	assert.Equal(t, "live", body.Items[0].Provenance)

	// Second request is served from cache.
	env.get(t, "/v1/stations")
	assert.Equal(t, int32(1), env.adapter.calls.Load())
}

func TestListStations_SyntheticFallback(t *testing.T) {
	env := newTestEnv(t)
	env.adapter.stations = nil

	body := decode[models.StationList](t, env.get(t, "/v1/stations"))
	assert.True(t, body.Meta.Synthetic)
	assert.Equal(t, len(airquality.DefaultSyntheticCatalogue), body.Meta.Count)
	assert.Equal(t, "synthetic", body.Items[0].Provenance)
}

func TestListSatelliteData(t *testing.T) {
	env := newTestEnv(t)

	body := decode[models.SatelliteList](t, env.get(t, "/v1/satellite"))
	assert.Len(t, body.Items, satellite.SyntheticPoints)
}

func TestGetWeather(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/v1/weather?lat=28.61&lon=77.21")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[models.Weather](t, rec)
	assert.Equal(t, 28.61, body.Point.Lat)
	assert.Equal(t, "SMOKE", body.Condition)
	assert.Equal(t, "CALM", body.WindCategory)
}

func TestGetWeather_InvalidCoordinates(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		query string
		field string
		code  string
	}{
		{"lon=77.2", "lat", models.CodeRequired},
		{"lat=abc&lon=77.2", "lat", models.CodeInvalid},
		{"lat=28.6&lon=181", "lon", models.CodeOutOfRange},
		{"lat=NaN&lon=77.2", "lat", models.CodeOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.get(t, "/v1/weather?"+tt.query)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			problem := decode[models.Problem](t, rec)
			require.Len(t, problem.Errors, 1)
			assert.Equal(t, tt.field, problem.Errors[0].Field)
			assert.Equal(t, tt.code, problem.Errors[0].Code)
		})
	}
}

func TestEstimateAQI(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/v1/aqi?lat=28.65&lng=77.32")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[models.PointEstimate](t, rec)
	assert.Equal(t, "waqi-1", body.NearestStationID)
	assert.Equal(t, 240.0, body.AQI)
	assert.Equal(t, "very_unhealthy", body.Status)
}

func TestEstimateAQI_NoCoverage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/v1/aqi?lat=8.5&lon=93.0")
	require.Equal(t, http.StatusNotFound, rec.Code)

	problem := decode[models.Problem](t, rec)
	assert.Equal(t, models.ProblemTypeNoCoverage, problem.Type)
	assert.Equal(t, "/v1/aqi", problem.Instance)
}

func TestListAlerts(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/v1/alerts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())

	env.detector.Observe(env.adapter.stations)

	body := decode[models.AlertList](t, env.get(t, "/v1/alerts"))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "waqi-1", body.Items[0].StationID)
	assert.Equal(t, "critical", body.Items[0].Severity)
}

func TestSystemStatus_ReportsFailingProvider(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < resilience.UnhealthyAfter; i++ {
		env.service.Cache().InvalidateAll()
		env.get(t, "/v1/stations")
	}

	body := decode[models.SystemStatus](t, env.get(t, "/v1/ops/status"))
	assert.Equal(t, models.HealthStatusDegraded, body.Status)
	assert.Equal(t, uint64(resilience.UnhealthyAfter), body.Polling.LastCycleSeq)

	byName := make(map[string]models.ProviderStatus)
	for _, p := range body.Providers {
		byName[p.Provider] = p
	}
	require.Contains(t, byName, "datagov")
	assert.Equal(t, models.HealthStatusFail, byName["datagov"].Status)
	require.NotNil(t, byName["datagov"].Message)
	assert.Contains(t, *byName["datagov"].Message, "upstream 503")
	assert.Equal(t, models.HealthStatusOK, byName["waqi"].Status)
	assert.Equal(t, uint64(resilience.UnhealthyAfter), byName["waqi"].Successes)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/v1/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, models.ProblemTypeNotFound, decode[models.Problem](t, rec).Type)

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/stations", strings.NewReader("{}")))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStationStream(t *testing.T) {
	env := newTestEnv(t)
	env.service.Start()

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/stations/stream", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg models.StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, models.StreamTypeStations, msg.Type)
	assert.Len(t, msg.Items, 2)
	require.NotNil(t, msg.Meta)
	assert.Equal(t, 2, msg.Meta.Count)

	assert.Eventually(t, func() bool {
		return env.service.Status().Subscriptions == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool {
		return env.service.Status().Subscriptions == 0
	}, 2*time.Second, 10*time.Millisecond)
}
