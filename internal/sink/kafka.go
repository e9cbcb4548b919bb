package sink

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/caparker/openaq-fetch/internal/airquality"
)

// MessageWriter is the subset of *kafkago.Writer the Kafka sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Kafka produces one message per measurement.
type Kafka struct {
	writer MessageWriter
}

// NewKafkaWriter creates a producer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
}

// NewKafka creates a Kafka sink.
func NewKafka(w MessageWriter) *Kafka {
	return &Kafka{writer: w}
}

func (s *Kafka) Write(ctx context.Context, adapter string, ms []airquality.Measurement) error {
	if len(ms) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(ms))
	for i := range ms {
		msg, err := KafkaMessage(adapter, ms[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return s.writer.WriteMessages(ctx, msgs...)
}

func (s *Kafka) Close() error {
	return s.writer.Close()
}

// KafkaMessage serializes m keyed by adapter, location and parameter so one
// series always lands on the same partition.
func KafkaMessage(adapter string, m airquality.Measurement) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize measurement: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(adapter + "/" + m.Location + "/" + string(m.Parameter)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "adapter", Value: []byte(adapter)},
			{Key: "date_utc", Value: []byte(m.Date.UTC)},
		},
	}, nil
}
