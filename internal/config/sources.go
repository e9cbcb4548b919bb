package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/caparker/openaq-fetch/internal/airquality"
)

// Source list validation errors.
var (
	ErrNoSources            = errors.New("at least one source is required")
	ErrNoEnabledSources     = errors.New("at least one source must be enabled")
	ErrSourceMissingAdapter = errors.New("adapter is required")
	ErrSourceMissingURL     = errors.New("url is required")
	ErrSourceMissingCountry = errors.New("country is required")
)

// SourceConfig is one entry of the sources file.
type SourceConfig struct {
	URL     string `yaml:"url"`
	Adapter string `yaml:"adapter"`
	Country string `yaml:"country"`
	City    string `yaml:"city"`
	Enabled bool   `yaml:"enabled"`
}

// Sources is the parsed sources file.
type Sources struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadSources reads and validates a sources file.
func LoadSources(path string) (*Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes and validates YAML source definitions.
func ParseSources(data []byte) (*Sources, error) {
	var s Sources
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse sources YAML: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("sources validation failed: %w", err)
	}
	return &s, nil
}

// Validate checks every source has what an adapter needs to run.
func (s *Sources) Validate() error {
	if len(s.Sources) == 0 {
		return ErrNoSources
	}

	enabled := 0
	for i, src := range s.Sources {
		if src.Adapter == "" {
			return fmt.Errorf("%w: source[%d]", ErrSourceMissingAdapter, i)
		}
		if src.URL == "" {
			return fmt.Errorf("%w: source[%d]", ErrSourceMissingURL, i)
		}
		if src.Country == "" {
			return fmt.Errorf("%w: source[%d]", ErrSourceMissingCountry, i)
		}
		if src.Enabled {
			enabled++
		}
	}

	if enabled == 0 {
		return ErrNoEnabledSources
	}
	return nil
}

// Enabled returns the enabled sources as adapter invocations, in file order.
func (s *Sources) Enabled() []airquality.Source {
	var out []airquality.Source
	for _, src := range s.Sources {
		if !src.Enabled {
			continue
		}
		out = append(out, airquality.Source{
			URL:     src.URL,
			Adapter: src.Adapter,
			Country: src.Country,
			City:    src.City,
		})
	}
	return out
}
