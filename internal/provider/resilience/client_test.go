package resilience_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vayuwatch/vayuwatch/internal/provider/resilience"
)

func fastConfig(name string) resilience.ClientConfig {
	breaker := resilience.DefaultBreakerConfig()
	breaker.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.Requests >= 100 }

	cfg := resilience.DefaultClientConfig(name)
	cfg.InitialInterval = 5 * time.Millisecond
	cfg.MaxInterval = 20 * time.Millisecond
	cfg.Breaker = &breaker
	return cfg
}

func TestClient_GetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "vayuwatch-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"status":"ok","data":[1,2]}`))
	}))
	defer server.Close()

	cfg := fastConfig("test")
	cfg.UserAgent = "vayuwatch-test"
	client := resilience.NewClient(cfg)

	var out struct {
		Status string `json:"status"`
		Data   []int  `json:"data"`
	}
	require.NoError(t, client.GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, []int{1, 2}, out.Data)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := resilience.NewClient(fastConfig("retry"))

	var out map[string]any
	require.NoError(t, client.GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_RetriesTooManyRequests(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := resilience.NewClient(fastConfig("429"))

	var out map[string]any
	require.NoError(t, client.GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, int32(2), attempts.Load())
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`invalid key`))
	}))
	defer server.Close()

	client := resilience.NewClient(fastConfig("401"))

	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, &out)

	var statusErr *resilience.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "invalid key", statusErr.Body)
	assert.False(t, statusErr.Retryable())
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_ExhaustedRetriesReturnsLastStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := resilience.NewClient(fastConfig("502"))

	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, &out)

	var statusErr *resilience.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.True(t, statusErr.Retryable())
}

func TestClient_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := resilience.NewClient(fastConfig("decode"))

	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, &out)
	assert.ErrorContains(t, err, "decode response")
}

func TestClient_BreakerOpens(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := resilience.DefaultClientConfig("trip")
	cfg.MaxRetries = -1
	client := resilience.NewClient(cfg)

	for i := 0; i < 5; i++ {
		var out map[string]any
		_ = client.GetJSON(context.Background(), server.URL, &out)
	}
	require.Equal(t, gobreaker.StateOpen, client.BreakerState())

	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, &out)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(5), attempts.Load(), "open breaker must not reach upstream")
}

func TestClient_RateLimitSpacesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := fastConfig("limited")
	cfg.RatePerSecond = 20
	cfg.Burst = 1
	client := resilience.NewClient(cfg)

	start := time.Now()
	for i := 0; i < 4; i++ {
		var out map[string]any
		require.NoError(t, client.GetJSON(context.Background(), server.URL, &out))
	}
	// Three waits of 50ms after the initial burst token.
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}

func TestClient_RateLimitRespectsDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := fastConfig("deadline")
	cfg.RatePerSecond = 0.1
	cfg.Burst = 1
	client := resilience.NewClient(cfg)

	var out map[string]any
	require.NoError(t, client.GetJSON(context.Background(), server.URL, &out))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := client.GetJSON(ctx, server.URL, &out)
	assert.ErrorIs(t, err, resilience.ErrRateLimited)
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	client := resilience.NewClient(fastConfig("cancel"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out map[string]any
	assert.Error(t, client.GetJSON(ctx, server.URL, &out))
}

func TestTripOnFailureRatio(t *testing.T) {
	tests := []struct {
		name   string
		counts gobreaker.Counts
		want   bool
	}{
		{"too few requests", gobreaker.Counts{Requests: 4, TotalFailures: 4}, false},
		{"low failure rate", gobreaker.Counts{Requests: 10, TotalFailures: 4}, false},
		{"half failing", gobreaker.Counts{Requests: 10, TotalFailures: 5}, true},
		{"five of five", gobreaker.Counts{Requests: 5, TotalFailures: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resilience.TripOnFailureRatio(tt.counts))
		})
	}
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := resilience.DefaultClientConfig("waqi")

	assert.Equal(t, "waqi", cfg.Name)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.MaxRetries)
	require.NotNil(t, cfg.Breaker)
	assert.Equal(t, 60*time.Second, cfg.Breaker.OpenFor)
}
