package middleware_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vayuwatch/vayuwatch/internal/api/middleware"
)

func TestRecovery_WritesProblemAndLogsRoute(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(zerolog.New(&buf)))
	r.Get("/v1/stations/{id}", func(http.ResponseWriter, *http.Request) {
		panic(errors.New("nil station"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stations/waqi-1", http.NoBody))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "/v1/stations/waqi-1", problem["instance"])
	assert.NotEmpty(t, problem["traceId"])

	entry := decodeLog(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "handler panicked", entry["message"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/v1/stations/{id}", entry["route"])
	assert.Equal(t, "*errors.errorString", entry["panic_type"])
	assert.Equal(t, "nil station", entry["panic"])
	assert.Equal(t, false, entry["response_started"])
	assert.Equal(t, problem["traceId"], entry["request_id"])
	assert.NotEmpty(t, entry["stack"])
}

func TestRecovery_StartedResponseIsNotOverwritten(t *testing.T) {
	var buf bytes.Buffer
	handler := middleware.Recovery(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[`))
		panic("encoder blew up")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stations", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"items":[`, rec.Body.String())

	entry := decodeLog(t, &buf)
	assert.Equal(t, true, entry["response_started"])
	assert.Equal(t, "string", entry["panic_type"])
}

func TestRecovery_AbortHandlerIsRepanicked(t *testing.T) {
	handler := middleware.Recovery(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/stations", http.NoBody))
	})
}

func TestRecovery_PassesThroughWithoutPanic(t *testing.T) {
	var buf bytes.Buffer
	handler := middleware.Recovery(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, buf.Len())
}
