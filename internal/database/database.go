// Package database opens the PostgreSQL pool the measurements sink writes
// through.
package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInvalidConfig is returned by ConfigFromEnv for unparsable DB_* values.
var ErrInvalidConfig = errors.New("invalid database config")

// Config holds database connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// ApplicationName is reported to the server in pg_stat_activity.
	ApplicationName string

	// ConnectTimeout bounds establishing each connection.
	ConnectTimeout time.Duration

	// MaxConns caps the pool. Zero leaves the pgxpool default; ForWriters
	// raises it to the number of concurrent writers.
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
}

// ConfigFromEnv creates a Config from DB_* environment variables.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		User:            getEnvOrDefault("DB_USER", "openaq"),
		Password:        getEnvOrDefault("DB_PASSWORD", "localdev"),
		Database:        getEnvOrDefault("DB_NAME", "openaq"),
		SSLMode:         getEnvOrDefault("DB_SSL_MODE", "disable"),
		ApplicationName: getEnvOrDefault("DB_APPLICATION_NAME", "openaq-fetch"),
	}

	ints := []struct {
		key string
		def string
		dst *int
	}{
		{"DB_PORT", "5432", &cfg.Port},
		{"DB_MAX_CONNS", "0", &cfg.MaxConns},
		{"DB_MIN_CONNS", "1", &cfg.MinConns},
	}
	for _, i := range ints {
		n, err := strconv.Atoi(getEnvOrDefault(i.key, i.def))
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, i.key)
		}
		*i.dst = n
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"DB_CONNECT_TIMEOUT", "5s", &cfg.ConnectTimeout},
		{"DB_CONN_MAX_LIFETIME", "30m", &cfg.ConnMaxLifetime},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnvOrDefault(d.key, d.def))
		if err != nil || v < 0 {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, d.key)
		}
		*d.dst = v
	}

	return cfg, nil
}

// ForWriters returns a copy of c whose pool can serve n concurrent sink
// writes. Each write holds one connection for its whole batch.
func (c Config) ForWriters(n int) Config {
	if c.MaxConns < n {
		c.MaxConns = n
	}
	if c.MaxConns > 0 && c.MinConns > c.MaxConns {
		c.MinConns = c.MaxConns
	}
	return c
}

// ConnectionString returns the PostgreSQL connection URL. Credentials are
// escaped.
func (c Config) ConnectionString() string {
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if c.ApplicationName != "" {
		q.Set("application_name", c.ApplicationName)
	}
	if secs := int(c.ConnectTimeout / time.Second); secs > 0 {
		q.Set("connect_timeout", strconv.Itoa(secs))
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Connect creates a connection pool, verifies it and applies each schema
// statement in order. The pool is closed when any step fails.
func Connect(ctx context.Context, cfg Config, schema ...string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns) //nolint:gosec // validated non-negative by ConfigFromEnv
	}
	if cfg.MinConns > 0 && cfg.MinConns <= int(poolConfig.MaxConns) {
		poolConfig.MinConns = int32(cfg.MinConns) //nolint:gosec // bounded by MaxConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}

	return pool, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
