package openweathermap_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
	"github.com/vayuwatch/vayuwatch/internal/provider/resilience"
	"github.com/vayuwatch/vayuwatch/internal/weather"
	"github.com/vayuwatch/vayuwatch/internal/weather/openweathermap"
)

func newClient(serverURL, key string) *openweathermap.Client {
	httpCfg := resilience.DefaultClientConfig("owm-weather-test")
	httpCfg.MaxRetries = -1
	return openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     key,
		BaseURL:    serverURL,
		HTTPClient: resilience.NewClient(httpCfg),
		Logger:     zerolog.New(io.Discard),
	})
}

func TestClient_GetCurrentWeather(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("lat"), "28.61")
		assert.Contains(t, r.URL.Query().Get("lon"), "77.20")
		assert.Equal(t, "secret", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))

		_, _ = w.Write([]byte(`{
			"weather": [{"main": "Haze", "description": "haze"}],
			"main": {"temp": 27.4, "pressure": 1012, "humidity": 61},
			"visibility": 1800,
			"wind": {"speed": 2.5, "deg": 300},
			"dt": 1762160400
		}`))
	}))
	defer server.Close()

	snap, err := newClient(server.URL, "secret").GetCurrentWeather(context.Background(), 28.6139, 77.2090)
	require.NoError(t, err)

	assert.Equal(t, 27.4, snap.Temperature)
	assert.Equal(t, 61.0, snap.Humidity)
	assert.InDelta(t, 9.0, snap.WindSpeed, 1e-9, "2.5 m/s is 9 km/h")
	assert.Equal(t, 300.0, snap.WindDirection)
	assert.Equal(t, 1012.0, snap.Pressure)
	assert.Equal(t, 1.8, snap.Visibility)
	assert.Equal(t, weather.ConditionHaze, snap.Condition)
	assert.Equal(t, time.Unix(1762160400, 0).UTC(), snap.ObservedAt)
	assert.Equal(t, airquality.ProvenanceLive, snap.Provenance)
}

func TestClient_GetCurrentWeather_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newClient(server.URL, "secret").GetCurrentWeather(context.Background(), 28.6, 77.2)
	var statusErr *resilience.StatusError
	assert.ErrorAs(t, err, &statusErr)
}

func TestClient_GetCurrentWeather_MissingKey(t *testing.T) {
	_, err := newClient("http://127.0.0.1:1", "").GetCurrentWeather(context.Background(), 28.6, 77.2)
	assert.ErrorIs(t, err, openweathermap.ErrMissingAPIKey)
}

func TestClient_Name(t *testing.T) {
	assert.Equal(t, openweathermap.ProviderName, newClient("", "k").Name())
}
