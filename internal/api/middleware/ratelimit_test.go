package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vayuwatch/vayuwatch/internal/api/middleware"
	"github.com/vayuwatch/vayuwatch/internal/api/models"
)

func limited(limit int) http.Handler {
	cfg := middleware.RateLimitConfig{RequestLimit: limit, WindowLength: time.Minute}
	return middleware.RateLimitByIP(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func requestFrom(handler http.Handler, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/stations", http.NoBody)
	req.RemoteAddr = addr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP_BlocksOverLimitWithProblem(t *testing.T) {
	handler := limited(2)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, requestFrom(handler, "10.1.0.1:4000").Code)
	}

	rec := requestFrom(handler, "10.1.0.1:4000")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	assert.Equal(t, models.ProblemTypeTooManyRequests, problem.Type)
	assert.Equal(t, "/v1/stations", problem.Instance)
}

func TestRateLimitByIP_SeparateBucketsPerIP(t *testing.T) {
	handler := limited(1)

	assert.Equal(t, http.StatusOK, requestFrom(handler, "10.2.0.1:4000").Code)
	assert.Equal(t, http.StatusTooManyRequests, requestFrom(handler, "10.2.0.1:4000").Code)
	assert.Equal(t, http.StatusOK, requestFrom(handler, "10.2.0.2:4000").Code)
}

func TestRateLimitConfigs(t *testing.T) {
	assert.Equal(t, 120, middleware.StandardRateLimit.RequestLimit)
	assert.Equal(t, 30, middleware.LookupRateLimit.RequestLimit)
	assert.Equal(t, 10, middleware.StreamRateLimit.RequestLimit)
}
