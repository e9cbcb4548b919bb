// Package sink hands normalized measurement batches to downstream systems.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/caparker/openaq-fetch/internal/airquality"
)

// Sink receives the measurements of one successful adapter call.
type Sink interface {
	Write(ctx context.Context, adapter string, ms []airquality.Measurement) error
	Close() error
}

// Multi writes every batch to each sink in order.
type Multi []Sink

// Write delivers ms to every sink. A failing sink does not stop the others.
func (m Multi) Write(ctx context.Context, adapter string, ms []airquality.Measurement) error {
	var errs []error
	for i, s := range m {
		if err := s.Write(ctx, adapter, ms); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Opener opens one sink.
type Opener func(ctx context.Context) (Sink, error)

// Open opens every sink in order. When one fails, the sinks already opened
// are closed and the open error is returned with any close errors.
func Open(ctx context.Context, openers ...Opener) (Multi, error) {
	out := make(Multi, 0, len(openers))
	for _, open := range openers {
		s, err := open(ctx)
		if err != nil {
			return nil, errors.Join(err, out.Close())
		}
		out = append(out, s)
	}
	return out, nil
}
