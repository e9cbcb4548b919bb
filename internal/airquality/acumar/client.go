// Package acumar provides the adapter for the ACUMAR continuous monitoring
// stations in the Matanza-Riachuelo basin, published as hourly HTML tables.
package acumar

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/caparker/openaq-fetch/internal/airquality"
	"github.com/caparker/openaq-fetch/internal/provider/resilience"
)

const (
	// Name identifies this adapter in source descriptors.
	Name = "acumar"

	city = "Buenos Aires"

	dateLayout = "02/01/06"
	hourSuffix = "hs."

	// firstValueColumn is the index of the first pollutant cell in a row.
	firstValueColumn = 2
)

// Window sizes. The newest row is provisional and skipped in recent mode.
const (
	RecentOffset = 1
	RecentRows   = 3
	ExactRows    = 1
)

// DefaultStations are the stations the adapter reads.
var DefaultStations = []airquality.Station{
	{
		Name:        "EMC I Dock Sud",
		TableIndex:  0,
		Coordinates: airquality.Coordinates{Latitude: -34.667375, Longitude: -58.329231},
		URL:         "http://jmb.acumar.gov.ar/calidad/contaminantes.php",
	},
	{
		Name:        "EMC II La Matanza",
		TableIndex:  0,
		Coordinates: airquality.Coordinates{Latitude: -34.883175, Longitude: -58.682542},
		URL:         "http://jmb.acumar.gov.ar/calidad/contaminantesEmcII.php",
	},
}

// columns lists the pollutant of each value cell, in table order.
var columns = []airquality.Pollutant{
	airquality.PollutantNO2,
	airquality.PollutantNO,
	airquality.PollutantNOx,
	airquality.PollutantO3,
	airquality.PollutantPM10,
	airquality.PollutantPM25,
	airquality.PollutantSO2,
	airquality.PollutantCO,
}

var (
	resolver   = airquality.MustTimeResolver("America/Argentina/Buenos_Aires", dateLayout+" 15")
	normalizer = airquality.Normalizer{}
)

// ClientConfig holds configuration for the ACUMAR adapter.
type ClientConfig struct {
	// HTTPClient executes requests. If nil, a resilient client is created.
	HTTPClient airquality.HTTPDoer

	// Stations overrides DefaultStations.
	Stations []airquality.Station

	// Logger receives per-station failures and per-reading drops.
	Logger zerolog.Logger
}

// Client is the ACUMAR adapter.
type Client struct {
	httpClient airquality.HTTPDoer
	stations   []airquality.Station
	logger     zerolog.Logger
}

// NewClient creates a new ACUMAR adapter.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(Name))
	}

	stations := cfg.Stations
	if len(stations) == 0 {
		stations = DefaultStations
	}

	return &Client{
		httpClient: httpClient,
		stations:   stations,
		logger:     cfg.Logger,
	}
}

// Name returns the adapter name.
func (c *Client) Name() string {
	return Name
}

// FetchData reads every station concurrently. With src.Datetime set only
// the row for that hour is read; otherwise the most recent settled rows are.
//
// A station without the requested row is skipped. When no station has it
// the joined station errors match airquality.ErrRowNotFound.
func (c *Client) FetchData(ctx context.Context, src airquality.Source) (*airquality.Result, error) {
	req := windowFor(src)

	measurements, err := airquality.FanOut(ctx, c.logger, c.stations,
		func(s airquality.Station) string { return s.Name },
		func(ctx context.Context, s airquality.Station) ([]airquality.Measurement, error) {
			return c.fetchStation(ctx, s, req)
		},
	)
	if err != nil {
		return nil, err
	}

	return &airquality.Result{Name: Name, Measurements: measurements}, nil
}

func windowFor(src airquality.Source) airquality.WindowRequest {
	req := airquality.WindowRequest{
		Offset:    RecentOffset,
		NumRows:   RecentRows,
		Normalize: normalizeCell,
	}
	if src.Datetime != nil {
		local := src.Datetime.In(resolver.Location())
		req.Date = local.Format(dateLayout)
		req.Hour = local.Format("15")
		req.Offset = 0
		req.NumRows = ExactRows
	}
	return req
}

// normalizeCell strips the " hs." hour suffix and zero-pads hours so "9 hs."
// compares equal to "09".
func normalizeCell(col int, cell string) string {
	cell = strings.TrimSpace(cell)
	if col != airquality.HourColumn {
		return cell
	}
	cell = strings.TrimSpace(strings.TrimSuffix(cell, hourSuffix))
	if h, err := strconv.Atoi(cell); err == nil {
		return fmt.Sprintf("%02d", h)
	}
	return cell
}

func (c *Client) fetchStation(ctx context.Context, s airquality.Station, req airquality.WindowRequest) ([]airquality.Measurement, error) {
	body, err := airquality.FetchBody(ctx, c.httpClient, s.URL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: load html: %v", airquality.ErrParse, err)
	}

	table := doc.Find("table").Eq(s.TableIndex)
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: station %q has no table %d", airquality.ErrParse, s.Name, s.TableIndex)
	}

	rows, err := airquality.MatchRows(dataRows(table), req)
	if err != nil {
		return nil, fmt.Errorf("station %q: %w", s.Name, err)
	}

	var out []airquality.Measurement
	for _, row := range rows {
		out = append(out, c.rowMeasurements(ctx, s, row)...)
	}
	return out, nil
}

// dataRows returns the td texts of every row that has data cells.
func dataRows(table *goquery.Selection) [][]string {
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		row := make([]string, 0, cells.Length())
		cells.Each(func(_ int, td *goquery.Selection) {
			row = append(row, strings.TrimSpace(td.Text()))
		})
		rows = append(rows, row)
	})
	return rows
}

func (c *Client) rowMeasurements(ctx context.Context, s airquality.Station, row []string) []airquality.Measurement {
	if len(row) <= airquality.HourColumn {
		airquality.ReportDrop(ctx, c.logger, Name, s.Name, airquality.ErrInvalidDate)
		return nil
	}

	hour := normalizeCell(airquality.HourColumn, row[airquality.HourColumn])
	date, err := resolver.Resolve(normalizeCell(airquality.DateColumn, row[airquality.DateColumn]) + " " + hour)
	if err != nil {
		airquality.ReportDrop(ctx, c.logger, Name, s.Name, err)
		return nil
	}

	attribution := []airquality.Attribution{{Name: "ACUMAR", URL: s.URL}}

	out := make([]airquality.Measurement, 0, len(columns))
	for i, p := range columns {
		col := firstValueColumn + i
		if col >= len(row) {
			airquality.ReportDrop(ctx, c.logger, Name, s.Name, fmt.Errorf("%w: no %s cell", airquality.ErrMissingValue, p))
			continue
		}

		unit := "µg/m³"
		if p == airquality.PollutantCO {
			unit = "mg/m³"
		}

		coords := s.Coordinates
		m, err := normalizer.Normalize(airquality.RawReading{
			Location:  s.Name,
			City:      city,
			Parameter: string(p),
			Value:     row[col],
			Unit:      unit,
		}, date, &coords, attribution)
		if err != nil {
			airquality.ReportDrop(ctx, c.logger, Name, s.Name, err)
			continue
		}
		// The tables publish 0 for hours the analyser did not report.
		if m.Value == 0 {
			airquality.ReportDrop(ctx, c.logger, Name, s.Name, fmt.Errorf("%w: %s placeholder zero", airquality.ErrMissingValue, p))
			continue
		}
		out = append(out, m)
	}
	return out
}
