// Package config loads process configuration from the environment and the
// source list from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/caparker/openaq-fetch/internal/database"
)

// Environment validation errors.
var (
	ErrInvalidDuration  = errors.New("invalid duration")
	ErrInvalidInteger   = errors.New("invalid integer")
	ErrInvalidRatio     = errors.New("invalid ratio")
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrUnknownSink      = errors.New("unknown sink")
	ErrMissingKafkaAddr = errors.New("KAFKA_BROKERS is required for the kafka sink")
	ErrMissingPubSub    = errors.New("PUBSUB_PROJECT_ID and PUBSUB_TOPIC are required for the pubsub sink")
)

// Sink names accepted in SINKS.
const (
	SinkStdout   = "stdout"
	SinkPostgres = "postgres"
	SinkPubSub   = "pubsub"
	SinkKafka    = "kafka"
)

// Config is the process configuration shared by cmd/api and cmd/worker.
type Config struct {
	Port        string
	Environment string
	LogLevel    zerolog.Level
	SourcesFile string

	Fetch FetchConfig

	OTELEnabled  bool
	OTLPEndpoint string

	Sinks  []string
	PubSub PubSubConfig
	Kafka  KafkaConfig

	Database database.Config
}

// FetchConfig controls adapter transport and the worker schedule.
// MaxRetries of zero disables retries.
type FetchConfig struct {
	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration
	TotalTimeout    time.Duration
	MaxRetries      int
	Interval        time.Duration
	Concurrency     int

	Breaker BreakerConfig
}

// BreakerConfig is the trip policy of every source's circuit breaker.
type BreakerConfig struct {
	MinRequests  int
	FailureRatio float64
	OpenTimeout  time.Duration
}

// PubSubConfig names the trigger subscription and the output topic.
type PubSubConfig struct {
	ProjectID    string
	Subscription string
	Topic        string
}

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	level, err := zerolog.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLogLevel, err)
	}

	var fetch FetchConfig
	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"FETCH_CONNECT_TIMEOUT", "1s", &fetch.ConnectTimeout},
		{"FETCH_RESPONSE_TIMEOUT", "5s", &fetch.ResponseTimeout},
		{"FETCH_TOTAL_TIMEOUT", "30s", &fetch.TotalTimeout},
		{"FETCH_INTERVAL", "1h", &fetch.Interval},
		{"BREAKER_OPEN_TIMEOUT", "60s", &fetch.Breaker.OpenTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = parseDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}
	if fetch.MaxRetries, err = parseInt("FETCH_MAX_RETRIES", "3"); err != nil {
		return nil, err
	}
	if fetch.Concurrency, err = parseInt("FETCH_CONCURRENCY", "3"); err != nil {
		return nil, err
	}
	if fetch.Breaker.MinRequests, err = parseInt("BREAKER_MIN_REQUESTS", "5"); err != nil {
		return nil, err
	}
	if fetch.Breaker.FailureRatio, err = parseRatio("BREAKER_FAILURE_RATIO", "0.5"); err != nil {
		return nil, err
	}

	db, err := database.ConfigFromEnv()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:         getEnvOrDefault("APP_PORT", "8080"),
		Environment:  getEnvOrDefault("APP_ENV", "development"),
		LogLevel:     level,
		SourcesFile:  getEnvOrDefault("SOURCES_FILE", "sources.yaml"),
		Fetch:        fetch,
		OTELEnabled:  os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		Sinks:        splitList(getEnvOrDefault("SINKS", SinkStdout)),
		PubSub: PubSubConfig{
			ProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
			Subscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
			Topic:        os.Getenv("PUBSUB_TOPIC"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnvOrDefault("KAFKA_TOPIC", "measurements"),
		},
		Database: db,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements of the selected sinks.
func (c *Config) Validate() error {
	for _, s := range c.Sinks {
		switch s {
		case SinkStdout, SinkPostgres:
		case SinkPubSub:
			if c.PubSub.ProjectID == "" || c.PubSub.Topic == "" {
				return ErrMissingPubSub
			}
		case SinkKafka:
			if len(c.Kafka.Brokers) == 0 {
				return ErrMissingKafkaAddr
			}
		default:
			return fmt.Errorf("%w: %q", ErrUnknownSink, s)
		}
	}
	return nil
}

// HasSink reports whether name is among the configured sinks.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, key)
	}
	return d, nil
}

func parseInt(key, def string) (int, error) {
	n, err := strconv.Atoi(getEnvOrDefault(key, def))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidInteger, key)
	}
	return n, nil
}

func parseRatio(key, def string) (float64, error) {
	f, err := strconv.ParseFloat(getEnvOrDefault(key, def), 64)
	if err != nil || f <= 0 || f > 1 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidRatio, key)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
