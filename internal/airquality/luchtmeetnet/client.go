// Package luchtmeetnet provides the adapter for the Dutch Luchtmeetnet open API.
package luchtmeetnet

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/caparker/openaq-fetch/internal/airquality"
	"github.com/caparker/openaq-fetch/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the Luchtmeetnet API.
	DefaultBaseURL = "https://api.luchtmeetnet.nl/open_api"

	// Name identifies this adapter in source descriptors.
	Name = "luchtmeetnet"

	// unit is what the API reports every component in.
	unit = "µg/m³"
)

var (
	resolver = airquality.MustTimeResolver("Europe/Amsterdam", time.RFC3339)

	attribution = []airquality.Attribution{
		{Name: "Luchtmeetnet", URL: "https://www.luchtmeetnet.nl"},
	}

	normalizer = airquality.Normalizer{}
)

// ClientConfig holds configuration for the Luchtmeetnet client.
type ClientConfig struct {
	// BaseURL is the API base URL used when a source has no URL
	// (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use.
	// If nil, a default resilient client will be created.
	HTTPClient airquality.HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Logger receives per-reading drop diagnostics.
	Logger zerolog.Logger
}

// Client is a Luchtmeetnet API client.
type Client struct {
	baseURL    string
	httpClient airquality.HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Luchtmeetnet client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		clientCfg := resilience.DefaultClientConfig(Name)
		clientCfg.Timeout = timeout
		clientCfg.ResponseHeaderTimeout = timeout
		clientCfg.InitialInterval = 200 * time.Millisecond
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the adapter name.
func (c *Client) Name() string {
	return Name
}

// API response types (from Luchtmeetnet API).

type stationsResponse struct {
	Pagination paginationInfo `json:"pagination"`
	Data       []stationData  `json:"data"`
}

type stationData struct {
	Number   string    `json:"number"`
	Location string    `json:"location"`
	Geometry *geometry `json:"geometry"`
}

type stationDetailResponse struct {
	Data stationData `json:"data"`
}

// geometry is a GeoJSON point: coordinates are [longitude, latitude].
type geometry struct {
	Coordinates []float64 `json:"coordinates"`
}

func (g *geometry) coordinates() *airquality.Coordinates {
	if g == nil || len(g.Coordinates) < 2 {
		return nil
	}
	lon, lat := g.Coordinates[0], g.Coordinates[1]
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil
	}
	return &airquality.Coordinates{Latitude: lat, Longitude: lon}
}

// Station is one monitoring station of the network. Coordinates is nil
// until the station's geometry is known.
type Station struct {
	Number      string
	Name        string
	Coordinates *airquality.Coordinates
	URL         string
}

type paginationInfo struct {
	CurrentPage   int `json:"current_page"`
	LastPage      int `json:"last_page"`
	PerPage       int `json:"per_page"`
	TotalElements int `json:"total_elements"`
}

type measurementsResponse struct {
	Pagination paginationInfo    `json:"pagination"`
	Data       []measurementData `json:"data"`
}

type measurementData struct {
	StationNumber     string      `json:"station_number"`
	Formula           string      `json:"formula"`
	Value             json.Number `json:"value"`
	TimestampMeasured string      `json:"timestamp_measured"`
}

// FetchData reads the station list and the latest measurements and joins
// them on station number. src.URL overrides the configured base URL.
// Stations listed without a geometry are looked up individually; readings
// of stations whose position stays unknown are dropped.
func (c *Client) FetchData(ctx context.Context, src airquality.Source) (*airquality.Result, error) {
	baseURL := c.baseURL
	if src.URL != "" {
		baseURL = strings.TrimSuffix(src.URL, "/")
	}

	stations, err := c.FetchStations(ctx, baseURL)
	if err != nil {
		return nil, err
	}

	raw, err := c.fetchMeasurements(ctx, baseURL)
	if err != nil {
		return nil, err
	}

	measurements := make([]airquality.Measurement, 0, len(raw))
	resolved := make(map[string]bool, len(stations))
	for i := range raw {
		number := raw[i].StationNumber
		if s, ok := stations[number]; ok && s.Coordinates == nil && !resolved[number] {
			resolved[number] = true
			s.Coordinates = c.stationCoordinates(ctx, s)
			stations[number] = s
		}

		m, err := c.toMeasurement(&raw[i], stations, src.City)
		if err != nil {
			airquality.ReportDrop(ctx, c.logger, Name, number, err)
			continue
		}
		measurements = append(measurements, m)
	}

	return &airquality.Result{Name: Name, Measurements: measurements}, nil
}

// FetchStations retrieves all monitoring stations keyed by station number.
func (c *Client) FetchStations(ctx context.Context, baseURL string) (map[string]Station, error) {
	stations := make(map[string]Station)

	for page, lastPage := 1, 1; page <= lastPage; page++ {
		var resp stationsResponse
		if err := c.getPage(ctx, fmt.Sprintf("%s/stations?page=%d", baseURL, page), &resp); err != nil {
			return nil, err
		}
		for _, s := range resp.Data {
			stations[s.Number] = Station{
				Number:      s.Number,
				Name:        s.Location,
				Coordinates: s.Geometry.coordinates(),
				URL:         fmt.Sprintf("%s/stations/%s", baseURL, s.Number),
			}
		}
		lastPage = resp.Pagination.LastPage
	}

	return stations, nil
}

// stationCoordinates reads the position from the station detail endpoint.
// Failures leave the station unresolved.
func (c *Client) stationCoordinates(ctx context.Context, s Station) *airquality.Coordinates {
	var resp stationDetailResponse
	if err := c.getPage(ctx, s.URL, &resp); err != nil {
		c.logger.Warn().
			Err(err).
			Str("adapter", Name).
			Str("station", s.Number).
			Msg("station detail unavailable")
		return nil
	}
	return resp.Data.Geometry.coordinates()
}

// fetchMeasurements retrieves the latest measurements of every station.
func (c *Client) fetchMeasurements(ctx context.Context, baseURL string) ([]measurementData, error) {
	var all []measurementData

	for page, lastPage := 1, 1; page <= lastPage; page++ {
		var resp measurementsResponse
		if err := c.getPage(ctx, fmt.Sprintf("%s/measurements?page=%d", baseURL, page), &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)
		lastPage = resp.Pagination.LastPage
	}

	return all, nil
}

func (c *Client) getPage(ctx context.Context, url string, v any) error {
	body, err := airquality.FetchBody(ctx, c.httpClient, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", airquality.ErrParse, url, err)
	}
	return nil
}

// toMeasurement converts API measurement data to a canonical measurement.
func (c *Client) toMeasurement(m *measurementData, stations map[string]Station, city string) (airquality.Measurement, error) {
	date, err := resolver.Resolve(m.TimestampMeasured)
	if err != nil {
		return airquality.Measurement{}, err
	}

	var coords *airquality.Coordinates
	location := m.StationNumber
	if s, ok := stations[m.StationNumber]; ok {
		location = s.Name
		coords = s.Coordinates
	}

	return normalizer.Normalize(airquality.RawReading{
		Location:  location,
		City:      city,
		Parameter: m.Formula,
		Value:     m.Value.String(),
		Unit:      unit,
	}, date, coords, attribution)
}
