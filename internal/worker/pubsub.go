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

// Job types accepted on the trigger subscription.
const (
	JobFetchSources = "fetch_sources"
	JobHealthCheck  = "health_check"
)

// ErrInvalidMessage is returned for trigger payloads that cannot be decoded.
var ErrInvalidMessage = errors.New("invalid trigger message")

// TriggerMessage requests a fetch pass.
type TriggerMessage struct {
	JobType string `json:"job_type"`

	// Datetime selects a historical reporting window, RFC 3339.
	Datetime string `json:"datetime,omitempty"`
}

// JobHandler executes decoded trigger messages against a RefreshJob.
type JobHandler struct {
	refreshJob *RefreshJob
	logger     zerolog.Logger
}

// NewJobHandler creates a handler for job.
func NewJobHandler(job *RefreshJob, logger zerolog.Logger) *JobHandler {
	return &JobHandler{refreshJob: job, logger: logger}
}

// Handle runs the job described by data. Unknown job types are ignored so
// they are not redelivered.
func (h *JobHandler) Handle(ctx context.Context, data []byte) error {
	var msg TriggerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	switch msg.JobType {
	case JobFetchSources:
		return h.handleFetch(ctx, msg)
	case JobHealthCheck:
		return h.handleHealthCheck(ctx)
	default:
		h.logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return nil
	}
}

func (h *JobHandler) handleFetch(ctx context.Context, msg TriggerMessage) error {
	var at *time.Time
	if msg.Datetime != "" {
		t, err := time.Parse(time.RFC3339, msg.Datetime)
		if err != nil {
			return fmt.Errorf("%w: datetime %q", ErrInvalidMessage, msg.Datetime)
		}
		at = &t
	}

	result := h.refreshJob.Run(ctx, at)

	// Consider it successful if at least half succeeded.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many fetch failures: %d/%d", result.Failed, result.TotalSources)
	}
	return nil
}

func (h *JobHandler) handleHealthCheck(ctx context.Context) error {
	h.logger.Debug().Msg("running health check")

	if len(h.refreshJob.config.Sources) == 0 {
		return nil
	}

	// Fetch the first source only, without writing to sinks.
	check := NewRefreshJob(RefreshJobConfig{
		Config: RefreshConfig{
			Sources:     h.refreshJob.config.Sources[:1],
			Concurrency: 1,
			Timeout:     10 * time.Second,
		},
		Logger:  h.logger,
		Fetcher: h.refreshJob.fetcher,
	})

	result := check.Run(ctx, nil)
	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %s", result.Errors[0].Error)
	}

	h.logger.Debug().Msg("health check passed")
	return nil
}

// PubSubHandler receives trigger messages from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	jobs             *JobHandler
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// A pass can take a while; keep redelivery pressure low.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		jobs:             NewJobHandler(cfg.RefreshJob, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
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
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	if err := h.jobs.Handle(ctx, msg.Data); err != nil {
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	msg.Ack()
}
