// Package southafrica provides the adapter for the South African Air Quality
// Information System station feed.
package southafrica

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/caparker/openaq-fetch/internal/airquality"
	"github.com/caparker/openaq-fetch/internal/provider/resilience"
)

const (
	// Name identifies this adapter in source descriptors.
	Name = "southafrica"

	// dateLayout matches DateVal, e.g. "2021-01-0112:00".
	dateLayout = "2006-01-0215:04"

	// notAvailable is published in place of a missing location name.
	notAvailable = "N/A"
)

var (
	resolver = airquality.MustTimeResolver("Africa/Johannesburg", dateLayout)

	attribution = []airquality.Attribution{
		{Name: "South African Air Quality Information System", URL: "http://saaqis.environment.gov.za"},
	}

	// The feed publishes an empty value for a zero reading.
	normalizer = airquality.Normalizer{EmptyIsZero: true}
)

// ClientConfig holds configuration for the South Africa adapter.
type ClientConfig struct {
	// HTTPClient executes requests. If nil, a resilient client is created.
	HTTPClient airquality.HTTPDoer

	// Logger receives per-reading drop diagnostics.
	Logger zerolog.Logger
}

// Client is the South Africa adapter.
type Client struct {
	httpClient airquality.HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new South Africa adapter.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(Name))
	}

	return &Client{
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the adapter name.
func (c *Client) Name() string {
	return Name
}

// API response types.

type stationData struct {
	Location  string                 `json:"location"`
	Name      string                 `json:"name"`
	City      string                 `json:"city"`
	Latitude  textValue              `json:"latitude"`
	Longitude textValue              `json:"longitude"`
	Monitors  map[string]monitorData `json:"monitors"`
}

type monitorData struct {
	Value         textValue `json:"value"`
	DateVal       textValue `json:"DateVal"`
	PollutantName string    `json:"Pollutantname"`
	Unit          string    `json:"unit"`
}

// textValue holds a JSON string or number as text. Valid is false for null
// or an absent field.
type textValue struct {
	Text  string
	Valid bool
}

func (v *textValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = textValue{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = textValue{Text: s, Valid: true}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = textValue{Text: n.String(), Valid: true}
	return nil
}

// FetchData fetches src.URL and returns one measurement per station monitor.
func (c *Client) FetchData(ctx context.Context, src airquality.Source) (*airquality.Result, error) {
	body, err := airquality.FetchBody(ctx, c.httpClient, src.URL)
	if err != nil {
		return nil, err
	}

	var stations []stationData
	if err := json.Unmarshal(body, &stations); err != nil {
		return nil, fmt.Errorf("%w: decode stations: %v", airquality.ErrParse, err)
	}

	measurements := []airquality.Measurement{}
	for i := range stations {
		measurements = append(measurements, c.stationMeasurements(ctx, &stations[i])...)
	}

	return &airquality.Result{Name: Name, Measurements: measurements}, nil
}

func (c *Client) stationMeasurements(ctx context.Context, s *stationData) []airquality.Measurement {
	location := s.Location
	if strings.TrimSpace(location) == notAvailable {
		location = s.Name
	}
	coords := s.coordinates()

	keys := make([]string, 0, len(s.Monitors))
	for k := range s.Monitors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]airquality.Measurement, 0, len(keys))
	for _, k := range keys {
		m := s.Monitors[k]
		if !m.Value.Valid || !m.DateVal.Valid {
			continue
		}

		date, err := resolver.Resolve(m.DateVal.Text)
		if err != nil {
			airquality.ReportDrop(ctx, c.logger, Name, location, err)
			continue
		}

		measurement, err := normalizer.Normalize(airquality.RawReading{
			Location:  location,
			City:      s.City,
			Parameter: m.PollutantName,
			Value:     m.Value.Text,
			Unit:      m.Unit,
		}, date, coords, attribution)
		if err != nil {
			airquality.ReportDrop(ctx, c.logger, Name, location, err)
			continue
		}
		out = append(out, measurement)
	}
	return out
}

// coordinates returns nil when either axis is missing or not numeric.
func (s *stationData) coordinates() *airquality.Coordinates {
	if !s.Latitude.Valid || !s.Longitude.Valid {
		return nil
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(s.Latitude.Text), 64)
	if err != nil {
		return nil
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(s.Longitude.Text), 64)
	if err != nil {
		return nil
	}
	return &airquality.Coordinates{Latitude: lat, Longitude: lon}
}
