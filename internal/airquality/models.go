// Package airquality provides the adapter contract and the normalization
// pipeline that turns source-specific air quality readings into canonical
// measurements.
package airquality

import (
	"time"
)

// Pollutant is a canonical parameter identifier.
type Pollutant string

const (
	PollutantPM25 Pollutant = "pm25"
	PollutantPM10 Pollutant = "pm10"
	PollutantNO2  Pollutant = "no2"
	PollutantSO2  Pollutant = "so2"
	PollutantO3   Pollutant = "o3"
	PollutantCO   Pollutant = "co"
	PollutantBC   Pollutant = "bc"
	PollutantNO   Pollutant = "no"
	PollutantNOx  Pollutant = "nox"
)

// Pollutants lists the canonical parameter vocabulary in a stable order.
var Pollutants = []Pollutant{
	PollutantPM25,
	PollutantPM10,
	PollutantNO2,
	PollutantSO2,
	PollutantO3,
	PollutantCO,
	PollutantBC,
	PollutantNO,
	PollutantNOx,
}

// IsCanonical reports whether p belongs to the canonical vocabulary.
func (p Pollutant) IsCanonical() bool {
	for _, c := range Pollutants {
		if p == c {
			return true
		}
	}
	return false
}

// Canonical unit strings.
const (
	UnitMicrogramsPerCubicMeter = "µg/m³"
	UnitMilligramsPerCubicMeter = "mg/m³"
	UnitPPM                     = "ppm"
)

// Source describes one adapter invocation. It is never mutated by adapters.
type Source struct {
	URL     string `json:"url" yaml:"url"`
	Adapter string `json:"adapter" yaml:"adapter"`
	Country string `json:"country" yaml:"country"`
	City    string `json:"city" yaml:"city"`

	// Datetime selects a historical reporting window instead of the most
	// recent one when set.
	Datetime *time.Time `json:"datetime,omitempty" yaml:"-"`
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Station is static per-adapter configuration.
type Station struct {
	Name        string
	TableIndex  int
	Coordinates Coordinates
	URL         string
}

// Date holds the same instant rendered in UTC and in the source's local zone.
type Date struct {
	UTC   string `json:"utc"`
	Local string `json:"local"`
}

// AveragingPeriod is the window a single value represents.
type AveragingPeriod struct {
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
}

// HourlyAverage is the averaging period every current adapter reports.
var HourlyAverage = AveragingPeriod{Unit: "hours", Value: 1}

// Attribution credits the publisher of a measurement.
type Attribution struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Measurement is the canonical output record.
type Measurement struct {
	Location        string          `json:"location"`
	City            string          `json:"city"`
	Coordinates     *Coordinates    `json:"coordinates"`
	Parameter       Pollutant       `json:"parameter"`
	Value           float64         `json:"value"`
	Unit            string          `json:"unit"`
	Date            Date            `json:"date"`
	AveragingPeriod AveragingPeriod `json:"averagingPeriod"`
	Attribution     []Attribution   `json:"attribution"`
}

// RawReading is one text cell set before numeric and unit interpretation.
type RawReading struct {
	Location  string
	City      string
	Parameter string
	Value     string
	Unit      string
}

// Result is the success payload of an adapter call.
type Result struct {
	Name         string        `json:"name"`
	Measurements []Measurement `json:"measurements"`
}
