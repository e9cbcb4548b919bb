package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub/v2"

	"github.com/caparker/openaq-fetch/internal/airquality"
)

// PubSub publishes one message per batch.
type PubSub struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
}

// NewPubSub creates a publisher for topic in projectID.
func NewPubSub(ctx context.Context, projectID, topic string) (*PubSub, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	return &PubSub{client: client, publisher: client.Publisher(topic)}, nil
}

func (s *PubSub) Write(ctx context.Context, adapter string, ms []airquality.Measurement) error {
	if len(ms) == 0 {
		return nil
	}
	msg, err := BatchMessage(adapter, ms)
	if err != nil {
		return err
	}
	if _, err := s.publisher.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish batch: %w", err)
	}
	return nil
}

func (s *PubSub) Close() error {
	s.publisher.Stop()
	return s.client.Close()
}

// BatchMessage encodes a batch as a Result payload with routing attributes.
func BatchMessage(adapter string, ms []airquality.Measurement) (*pubsub.Message, error) {
	data, err := json.Marshal(airquality.Result{Name: adapter, Measurements: ms})
	if err != nil {
		return nil, fmt.Errorf("serialize batch: %w", err)
	}
	return &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"adapter": adapter,
			"count":   strconv.Itoa(len(ms)),
		},
	}, nil
}
