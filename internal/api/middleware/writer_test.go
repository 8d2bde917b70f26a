package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vayuwatch/vayuwatch/internal/api/middleware"
)

// Websocket upgrades must survive every wrapping middleware.
func TestMiddlewareChain_AllowsWebsocketUpgrade(t *testing.T) {
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	upgrader := websocket.Upgrader{}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("hello"))
	})

	handler := middleware.RequestID(
		middleware.Tracing("vayuwatch-api")(
			metrics.Middleware()(
				middleware.Logger(zerolog.New(io.Discard))(inner),
			),
		),
	)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(msg))
}
