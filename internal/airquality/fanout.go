package airquality

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// StationFetcher fetches the measurements of one station.
type StationFetcher[T any] func(ctx context.Context, station T) ([]Measurement, error)

// FanOut runs fetch once per station concurrently and waits for every task
// to settle. Failed stations are logged and skipped; results keep station
// order. When every station fails the joined station errors are returned.
func FanOut[T any](ctx context.Context, log zerolog.Logger, stations []T, name func(T) string, fetch StationFetcher[T]) ([]Measurement, error) {
	if len(stations) == 0 {
		return []Measurement{}, nil
	}

	results := make([][]Measurement, len(stations))
	errs := make([]error, len(stations))

	var wg sync.WaitGroup
	for i, station := range stations {
		wg.Add(1)
		go func(i int, station T) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = panicError(r)
				}
			}()
			results[i], errs[i] = fetch(ctx, station)
		}(i, station)
	}
	wg.Wait()

	measurements := []Measurement{}
	var failed []error
	for i, err := range errs {
		if err != nil {
			log.Warn().
				Err(err).
				Str("station", name(stations[i])).
				Msg("station fetch failed")
			failed = append(failed, err)
			continue
		}
		measurements = append(measurements, results[i]...)
	}

	if len(failed) == len(stations) {
		return nil, errors.Join(failed...)
	}
	return measurements, nil
}
