package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/vayuwatch/vayuwatch/internal/airquality"
	"github.com/vayuwatch/vayuwatch/internal/api/middleware"
	"github.com/vayuwatch/vayuwatch/internal/api/models"
)

// Websocket timings.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// StreamMetrics tracks open stream connections.
type StreamMetrics interface {
	StreamOpened(ctx context.Context)
	StreamClosed(ctx context.Context)
}

// StreamHandler pushes the full station list over a websocket: once on
// connect and again on every poll.
type StreamHandler struct {
	service  AirQualityService
	upgrader websocket.Upgrader
	metrics  StreamMetrics
	logger   zerolog.Logger
}

// NewStreamHandler creates a new StreamHandler. metrics may be nil.
func NewStreamHandler(service AirQualityService, metrics StreamMetrics, logger zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			// Public read-only data; browsers on any origin may subscribe.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		metrics: metrics,
		logger:  logger,
	}
}

// StreamStations handles GET /v1/stations/stream.
func (h *StreamHandler) StreamStations(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Detached from the request; the hijacked connection outlives it.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if h.metrics != nil {
		h.metrics.StreamOpened(ctx)
		defer h.metrics.StreamClosed(ctx)
	}

	log := h.logger.With().
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("remote_addr", r.RemoteAddr).
		Logger()
	log.Info().Msg("station stream opened")

	// Only the latest list matters; a slow client skips intermediate ones.
	updates := make(chan []airquality.Station, 1)
	unsubscribe := h.service.SetupRealTimeUpdates(func(stations []airquality.Station) {
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- stations:
		default:
		}
	})
	defer unsubscribe()

	go h.readLoop(conn, cancel)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("station stream closed")
			return

		case stations := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(stationMessage(stations)); err != nil {
				log.Debug().Err(err).Msg("station stream write failed")
				return
			}

		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so pongs and close frames are processed,
// and cancels the stream when the client goes away.
func (h *StreamHandler) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func stationMessage(stations []airquality.Station) models.StreamMessage {
	return models.StreamMessage{
		Type:  models.StreamTypeStations,
		Items: models.NewStations(stations),
		Meta: &models.StreamMeta{
			Count:   len(stations),
			Sources: airquality.SourceCounts(stations),
			SentAt:  models.Timestamp(time.Now()),
		},
	}
}
