// Package worker runs scheduled and triggered fetch passes over the
// configured sources.
package worker

import (
	"time"

	"github.com/caparker/openaq-fetch/internal/airquality"
)

// RefreshConfig holds configuration for the fetch job.
type RefreshConfig struct {
	// Sources are the adapter invocations of one pass, in priority order.
	Sources []airquality.Source

	// Concurrency is the number of sources fetched at once.
	// Default: 3
	Concurrency int

	// Timeout bounds each source fetch including its sink writes.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default job configuration for sources.
func DefaultRefreshConfig(sources []airquality.Source) RefreshConfig {
	return RefreshConfig{
		Sources:     sources,
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	def := DefaultRefreshConfig(c.Sources)
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// Adapters returns the distinct adapter names of the configured sources.
func (c RefreshConfig) Adapters() []string {
	seen := make(map[string]bool, len(c.Sources))
	var names []string
	for _, s := range c.Sources {
		if !seen[s.Adapter] {
			seen[s.Adapter] = true
			names = append(names, s.Adapter)
		}
	}
	return names
}
