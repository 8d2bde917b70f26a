package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types carried in RefreshMessage.JobType.
const (
	JobProviderRefresh = "provider_refresh"
	JobHealthCheck     = "health_check"
)

// ErrUnknownJob is returned for messages with an unrecognised job type.
// Such messages are acked so they are not redelivered.
var ErrUnknownJob = errors.New("unknown job type")

// healthCheckPoint is central Delhi.
var healthCheckPoint = Point{Lat: 28.6139, Lon: 77.2090}

// Refresher drops cached data and pushes a fresh poll to subscribers.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshMessage represents a refresh job message.
type RefreshMessage struct {
	JobType    string `json:"job_type"`
	RefreshAll bool   `json:"refresh_all,omitempty"`
	CheckOnly  bool   `json:"check_only,omitempty"`
}

// Dispatcher runs jobs described by RefreshMessages.
type Dispatcher struct {
	refreshJob *RefreshJob
	refresher  Refresher
	source     Source
	logger     zerolog.Logger
}

// NewDispatcher creates a dispatcher. refresher may be nil, in which case
// refresh_all only re-warms caches that have expired.
func NewDispatcher(job *RefreshJob, refresher Refresher, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		refreshJob: job,
		refresher:  refresher,
		source:     job.source,
		logger:     logger,
	}
}

// Process decodes and runs one message.
func (d *Dispatcher) Process(ctx context.Context, data []byte) error {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("parsing message: %w", err)
	}

	switch msg.JobType {
	case JobProviderRefresh:
		if msg.CheckOnly {
			return d.healthCheck(ctx)
		}
		return d.providerRefresh(ctx, msg)
	case JobHealthCheck:
		return d.healthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

func (d *Dispatcher) providerRefresh(ctx context.Context, msg RefreshMessage) error {
	d.logger.Info().
		Bool("refresh_all", msg.RefreshAll).
		Msg("starting provider refresh")

	if msg.RefreshAll && d.refresher != nil {
		if err := d.refresher.Refresh(ctx); err != nil {
			return fmt.Errorf("refreshing stations: %w", err)
		}
	}

	result := d.refreshJob.Run(ctx)

	if result.NetworkFailed() {
		return fmt.Errorf("network refresh failed: %s", result.Errors[0].Error)
	}
	if result.Failed > result.Successful {
		return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.TotalPoints)
	}
	return nil
}

func (d *Dispatcher) healthCheck(ctx context.Context) error {
	d.logger.Debug().Msg("running health check")

	job := NewRefreshJob(RefreshJobConfig{
		Config: RefreshConfig{
			Targets: []RefreshTarget{{
				Name:     "health-check",
				Priority: 1,
				Points:   []Point{healthCheckPoint},
			}},
			Concurrency:     1,
			Timeout:         10 * time.Second,
			RefreshStations: true,
			RefreshWeather:  true,
		},
		Logger: d.logger,
		Source: d.source,
	})

	result := job.Run(ctx)
	if result.Failed > 0 || result.NetworkFailed() {
		return fmt.Errorf("health check failed: %d errors", len(result.Errors))
	}

	d.logger.Debug().Msg("health check passed")
	return nil
}

// PubSubHandler receives refresh jobs from a Pub/Sub subscription.
type PubSubHandler struct {
	*Dispatcher

	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		Dispatcher:       cfg.Dispatcher,
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
	}, nil
}

// Start processes messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	start := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	err := h.Process(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrUnknownJob):
		logger.Warn().Err(err).Msg("ignoring message")
		msg.Ack()
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	default:
		logger.Info().Dur("duration", time.Since(start)).Msg("job completed successfully")
		msg.Ack()
	}
}
