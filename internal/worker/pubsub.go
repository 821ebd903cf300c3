package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/pushgate/pushgate/internal/device"
	"github.com/pushgate/pushgate/internal/dispatch"
	"github.com/pushgate/pushgate/internal/subscriber"
)

// Dispatcher runs one notification batch for a user.
type Dispatcher interface {
	NotifyUser(ctx context.Context, userID, title, body string, data map[string]any) (*dispatch.Result, error)
}

// NotifyMessage is one notification job consumed from the subscription.
type NotifyMessage struct {
	UserID string         `json:"user_id"`
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Data   map[string]any `json:"data,omitempty"`
}

// PubSubHandler consumes notification jobs and runs them through the
// dispatch service.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       Dispatcher
	jobTimeout       time.Duration
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	Config     Config
	Dispatcher Dispatcher
	Logger     zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.Config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	sub := client.Subscriber(cfg.Config.SubscriptionName)
	sub.ReceiveSettings.MaxOutstandingMessages = cfg.Config.MaxOutstanding
	sub.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       sub,
		subscriptionName: cfg.Config.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		jobTimeout:       cfg.Config.JobTimeout,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting notification worker")

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

	logger.Debug().Msg("received notification job")

	retry, err := h.process(ctx, msg.Data)
	if err != nil {
		if retry {
			logger.Error().Err(err).Msg("notification job failed, will retry")
			msg.Nack()
			return
		}
		// Redelivery cannot fix a bad payload or an unknown user.
		logger.Warn().Err(err).Msg("notification job dropped")
		msg.Ack()
		return
	}

	logger.Info().
		Dur("duration", time.Since(startTime)).
		Msg("notification job completed")

	msg.Ack()
}

// process runs one job. The returned bool tells the caller whether a
// failure is worth redelivering: transient failures are, permanently bad
// jobs are not.
func (h *PubSubHandler) process(ctx context.Context, data []byte) (bool, error) {
	var job NotifyMessage
	if err := json.Unmarshal(data, &job); err != nil {
		return false, fmt.Errorf("parsing job: %w", err)
	}
	if job.UserID == "" || job.Title == "" || job.Body == "" {
		return false, errors.New("job missing user_id, title, or body")
	}

	ctx, cancel := context.WithTimeout(ctx, h.jobTimeout)
	defer cancel()

	result, err := h.dispatcher.NotifyUser(ctx, job.UserID, job.Title, job.Body, job.Data)
	if err != nil {
		var vErr *device.ValidationError
		if errors.Is(err, subscriber.ErrNotFound) || errors.As(err, &vErr) {
			return false, err
		}
		return true, err
	}

	if result.Failed > 0 {
		h.logger.Warn().
			Str("user", job.UserID).
			Int("failed", result.Failed).
			Int("successful", result.Successful).
			Msg("batch completed with per-device failures")
	}

	return false, nil
}
