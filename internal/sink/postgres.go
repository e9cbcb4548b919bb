package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/caparker/openaq-fetch/internal/airquality"
	"github.com/caparker/openaq-fetch/internal/database"
)

// Batcher is the subset of *pgxpool.Pool the Postgres sink needs.
type Batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresSchema creates the measurements table when it does not exist.
const PostgresSchema = `
	CREATE TABLE IF NOT EXISTS measurements (
		adapter          TEXT NOT NULL,
		location         TEXT NOT NULL,
		city             TEXT NOT NULL,
		latitude         DOUBLE PRECISION NOT NULL,
		longitude        DOUBLE PRECISION NOT NULL,
		parameter        TEXT NOT NULL,
		value            DOUBLE PRECISION NOT NULL,
		unit             TEXT NOT NULL,
		date_utc         TIMESTAMPTZ NOT NULL,
		date_local       TEXT NOT NULL,
		averaging_period JSONB NOT NULL,
		attribution      JSONB NOT NULL,
		PRIMARY KEY (adapter, location, parameter, date_utc)
	)
`

const insertMeasurement = `
	INSERT INTO measurements (
		adapter, location, city, latitude, longitude,
		parameter, value, unit, date_utc, date_local,
		averaging_period, attribution
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (adapter, location, parameter, date_utc) DO UPDATE SET
		value = EXCLUDED.value,
		unit = EXCLUDED.unit
`

// Postgres upserts measurements into the measurements table.
type Postgres struct {
	db    Batcher
	close func()
}

// NewPostgres creates a Postgres sink over db. The pool is owned by the caller.
func NewPostgres(db Batcher) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres connects to the database, creates the measurements table and
// returns a sink that owns the pool.
func OpenPostgres(ctx context.Context, cfg database.Config) (*Postgres, error) {
	pool, err := database.Connect(ctx, cfg, PostgresSchema)
	if err != nil {
		return nil, err
	}
	return &Postgres{db: pool, close: pool.Close}, nil
}

func (s *Postgres) Write(ctx context.Context, adapter string, ms []airquality.Measurement) error {
	if len(ms) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range ms {
		m := &ms[i]
		if m.Coordinates == nil {
			return fmt.Errorf("%w: %q", airquality.ErrUnresolvedLocation, m.Location)
		}
		utc, _, err := m.Date.Instants()
		if err != nil {
			return err
		}
		period, err := json.Marshal(m.AveragingPeriod)
		if err != nil {
			return fmt.Errorf("marshal averaging period: %w", err)
		}
		attribution, err := json.Marshal(m.Attribution)
		if err != nil {
			return fmt.Errorf("marshal attribution: %w", err)
		}

		batch.Queue(insertMeasurement,
			adapter, m.Location, m.City, m.Coordinates.Latitude, m.Coordinates.Longitude,
			string(m.Parameter), m.Value, m.Unit, utc, m.Date.Local,
			period, attribution,
		)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := range ms {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert measurement %d: %w", i, err)
		}
	}
	return nil
}

// Close closes the pool when the sink opened it.
func (s *Postgres) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
