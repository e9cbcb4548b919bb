// Package stockholm provides the adapter for the SLB "luften idag" page,
// which renders current readings for the Stockholm, Uppsala and Gävle
// networks from inline scripts.
package stockholm

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/caparker/openaq-fetch/internal/airquality"
	"github.com/caparker/openaq-fetch/internal/provider/resilience"
)

const (
	// Name identifies this adapter in source descriptors.
	Name = "stockholm"

	// blockDelimiter separates readings inside one rendered cell.
	blockDelimiter = "█"

	// defaultUnit is what the page reports every value in.
	defaultUnit = "ug/m3"
)

var (
	resolver = airquality.MustTimeResolver("Europe/Stockholm", "15:04")

	attribution = []airquality.Attribution{
		{Name: "SLB", URL: "http://slb.nu/slbanalys/luften-idag/"},
	}

	normalizer = airquality.Normalizer{}

	// scriptLine matches document.getElementById("pm10_col1").innerHTML = "...";
	scriptLine = regexp.MustCompile(`document\.getElementById\("([a-z0-9]+)_col[12]"\)\.innerHTML\s*=\s*(.*)$`)

	// dateText matches the "(13 okt kl. 14:00)" heading of a cell.
	dateText = regexp.MustCompile(`\(([^)]*kl\.[^)]*)\)`)

	swedishMonths = map[string]time.Month{
		"jan": time.January,
		"feb": time.February,
		"mar": time.March,
		"apr": time.April,
		"maj": time.May,
		"jun": time.June,
		"jul": time.July,
		"aug": time.August,
		"sep": time.September,
		"okt": time.October,
		"nov": time.November,
		"dec": time.December,
	}
)

// ClientConfig holds configuration for the Stockholm adapter.
type ClientConfig struct {
	// HTTPClient executes requests. If nil, a resilient client with TLS
	// verification disabled is created; the site's chain does not verify.
	HTTPClient airquality.HTTPDoer

	// Clock supplies "today" for headings that omit the date.
	// Default: real clock.
	Clock clockwork.Clock

	// Logger receives per-reading drop diagnostics.
	Logger zerolog.Logger
}

// Client is the Stockholm adapter.
type Client struct {
	httpClient airquality.HTTPDoer
	clock      clockwork.Clock
	logger     zerolog.Logger
}

// NewClient creates a new Stockholm adapter.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(Name)
		clientCfg.InsecureSkipVerify = true
		httpClient = resilience.NewClient(clientCfg)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Client{
		httpClient: httpClient,
		clock:      clock,
		logger:     cfg.Logger,
	}
}

// Name returns the adapter name.
func (c *Client) Name() string {
	return Name
}

// FetchData fetches the page at src.URL and returns every reading it shows
// for a known site.
func (c *Client) FetchData(ctx context.Context, src airquality.Source) (*airquality.Result, error) {
	body, err := airquality.FetchBody(ctx, c.httpClient, src.URL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: load html: %v", airquality.ErrParse, err)
	}

	content := doc.Find(".entry-content")
	if content.Length() == 0 {
		return nil, fmt.Errorf("%w: no .entry-content section", airquality.ErrParse)
	}

	cells := map[airquality.Pollutant][]string{}
	var parseErr error
	content.Each(func(_ int, s *goquery.Selection) {
		html, err := s.Html()
		if err != nil {
			parseErr = err
			return
		}
		for _, line := range strings.Split(html, "\n") {
			p, blocks, ok := scriptBlocks(line)
			if !ok {
				continue
			}
			cells[p] = append(cells[p], blocks...)
		}
	})
	if parseErr != nil {
		return nil, fmt.Errorf("%w: render section: %v", airquality.ErrParse, parseErr)
	}

	measurements := []airquality.Measurement{}
	for _, p := range airquality.Pollutants {
		measurements = append(measurements, c.readings(ctx, p, cells[p])...)
	}

	return &airquality.Result{Name: Name, Measurements: measurements}, nil
}

// scriptBlocks extracts the text blocks assigned to a pollutant cell by one
// script line.
func scriptBlocks(line string) (airquality.Pollutant, []string, bool) {
	m := scriptLine.FindStringSubmatch(line)
	if m == nil {
		return "", nil, false
	}
	p := airquality.Pollutant(m[1])
	if !p.IsCanonical() {
		return "", nil, false
	}

	fragment := strings.TrimSpace(m[2])
	fragment = strings.TrimSuffix(fragment, ";")
	fragment = strings.Trim(strings.TrimSpace(fragment), `"'`)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", nil, false
	}
	return p, airquality.SplitBlocks(doc.Text(), blockDelimiter), true
}

// readings turns the blocks of one pollutant into measurements. A heading
// block sets the date for the readings that follow it.
func (c *Client) readings(ctx context.Context, p airquality.Pollutant, blocks []string) []airquality.Measurement {
	var (
		date    airquality.Date
		hasDate bool
		out     []airquality.Measurement
	)

	for _, block := range blocks {
		if m := dateText.FindStringSubmatch(block); m != nil {
			d, err := c.resolveDate(m[1])
			if err != nil {
				airquality.ReportDrop(ctx, c.logger, Name, block, err)
				hasDate = false
				continue
			}
			date, hasDate = d, true
			continue
		}

		// Stray separators and whitespace-only fragments.
		if len([]rune(block)) <= 2 {
			continue
		}

		location, value, ok := splitReading(block)
		if !ok {
			airquality.ReportDrop(ctx, c.logger, Name, block, airquality.ErrUnresolvedLocation)
			continue
		}
		if !hasDate {
			airquality.ReportDrop(ctx, c.logger, Name, location, airquality.ErrInvalidDate)
			continue
		}

		coords, _ := stations.Lookup(location)
		measurement, err := normalizer.Normalize(airquality.RawReading{
			Location:  location,
			City:      cityOf(location),
			Parameter: string(p),
			Value:     value,
			Unit:      defaultUnit,
		}, date, coords, attribution)
		if err != nil {
			airquality.ReportDrop(ctx, c.logger, Name, location, err)
			continue
		}
		out = append(out, measurement)
	}
	return out
}

// splitReading splits "Hornsgatan: 12 ug/m3" into its site and value text.
func splitReading(block string) (location, value string, ok bool) {
	i := strings.LastIndex(block, ":")
	if i < 0 {
		return "", "", false
	}
	location = strings.TrimSpace(strings.ReplaceAll(block[:i], ":", ""))
	if location == "" {
		return "", "", false
	}

	value = strings.ReplaceAll(block[i+1:], `"`, "")
	for _, unit := range []string{"ug/m3", "µg/m³", "µg/m3"} {
		value = strings.ReplaceAll(value, unit, "")
	}
	return location, strings.TrimSpace(value), true
}

func cityOf(location string) string {
	switch {
	case strings.Contains(location, "Uppsala"):
		return "Uppsala"
	case strings.Contains(location, "Gävle"):
		return "Gävle"
	default:
		return "Stockholm"
	}
}

// resolveDate reads a heading such as "13 okt kl. 14:00" or "kl. 14:00".
// The page never prints a year; it is taken from the clock and moved back
// a year when that would put the reading in the future.
func (c *Client) resolveDate(text string) (airquality.Date, error) {
	parts := strings.SplitN(text, "kl.", 2)
	if len(parts) != 2 {
		return airquality.Date{}, fmt.Errorf("%w: %q", airquality.ErrInvalidDate, text)
	}

	clockTime, err := resolver.Parse(strings.TrimSpace(parts[1]))
	if err != nil {
		return airquality.Date{}, err
	}

	loc := resolver.Location()
	now := c.clock.Now().In(loc)
	year, month, day := now.Date()

	if dayMonth := strings.Fields(parts[0]); len(dayMonth) >= 2 {
		d, err := strconv.Atoi(dayMonth[0])
		if err != nil {
			return airquality.Date{}, fmt.Errorf("%w: day %q", airquality.ErrInvalidDate, dayMonth[0])
		}
		name := []rune(strings.ToLower(strings.TrimSuffix(dayMonth[1], ".")))
		if len(name) > 3 {
			name = name[:3]
		}
		m, ok := swedishMonths[string(name)]
		if !ok {
			return airquality.Date{}, fmt.Errorf("%w: month %q", airquality.ErrInvalidDate, dayMonth[1])
		}
		day, month = d, m
	}

	t := time.Date(year, month, day, clockTime.Hour(), clockTime.Minute(), 0, 0, loc)
	if t.After(now.Add(24 * time.Hour)) {
		t = t.AddDate(-1, 0, 0)
	}
	return resolver.At(t), nil
}
