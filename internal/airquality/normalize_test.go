package airquality_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caparker/openaq-fetch/internal/airquality"
)

func TestNormalizer_Parameter(t *testing.T) {
	tests := []struct {
		label string
		want  airquality.Pollutant
		ok    bool
	}{
		{"pm25", airquality.PollutantPM25, true},
		{"PM2.5", airquality.PollutantPM25, true},
		{"PM 2,5", airquality.PollutantPM25, true},
		{"pm_2.5", airquality.PollutantPM25, true},
		{"PM10", airquality.PollutantPM10, true},
		{"NO2", airquality.PollutantNO2, true},
		{"NO₂", airquality.PollutantNO2, true},
		{"Nitrogen dioxide", airquality.PollutantNO2, true},
		{"SO2", airquality.PollutantSO2, true},
		{"Sulphur Dioxide", airquality.PollutantSO2, true},
		{"Ozone", airquality.PollutantO3, true},
		{"O3", airquality.PollutantO3, true},
		{"CO", airquality.PollutantCO, true},
		{"Carbon monoxide", airquality.PollutantCO, true},
		{"BC", airquality.PollutantBC, true},
		{"NO", airquality.PollutantNO, true},
		{"NOx", airquality.PollutantNOx, true},
		{" nox ", airquality.PollutantNOx, true},
		{"Benzene", "", false},
		{"", "", false},
		{"temperature", "", false},
	}

	var n airquality.Normalizer
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := n.Parameter(tt.label)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizer_Value(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		emptyIsZero bool
		want        float64
		wantErr     error
	}{
		{name: "integer", text: "12", want: 12},
		{name: "decimal", text: "12.5", want: 12.5},
		{name: "decimal comma", text: "12,5", want: 12.5},
		{name: "explicit zero", text: "0", want: 0},
		{name: "padded", text: "  7 ", want: 7},
		{name: "negative", text: "-1.5", want: -1.5},
		{name: "empty is missing", text: "", wantErr: airquality.ErrMissingValue},
		{name: "empty is zero", text: "", emptyIsZero: true, want: 0},
		{name: "null", text: "null", wantErr: airquality.ErrMissingValue},
		{name: "null with empty is zero", text: "null", emptyIsZero: true, wantErr: airquality.ErrMissingValue},
		{name: "text", text: "s/d", wantErr: airquality.ErrMissingValue},
		{name: "nan", text: "NaN", wantErr: airquality.ErrNonFiniteValue},
		{name: "infinity", text: "+Inf", wantErr: airquality.ErrNonFiniteValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := airquality.Normalizer{EmptyIsZero: tt.emptyIsZero}
			got, err := n.Value(tt.text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizer_Unit(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		unit      string
		pollutant airquality.Pollutant
		want      float64
		wantUnit  string
		wantErr   bool
	}{
		{name: "ascii micrograms", value: 12, unit: "ug/m3", pollutant: airquality.PollutantPM10, want: 12, wantUnit: "µg/m³"},
		{name: "micro sign", value: 12, unit: "µg/m³", pollutant: airquality.PollutantPM10, want: 12, wantUnit: "µg/m³"},
		{name: "greek mu", value: 12, unit: "μg/m3", pollutant: airquality.PollutantPM10, want: 12, wantUnit: "µg/m³"},
		{name: "spaced upper case", value: 12, unit: "UG / M3", pollutant: airquality.PollutantPM10, want: 12, wantUnit: "µg/m³"},
		{name: "co stays in milligrams", value: 0.61, unit: "mg/m³", pollutant: airquality.PollutantCO, want: 0.61, wantUnit: "mg/m³"},
		{name: "milligrams scaled for other pollutants", value: 0.5, unit: "mg/m3", pollutant: airquality.PollutantNO2, want: 500, wantUnit: "µg/m³"},
		{name: "nanograms", value: 1500, unit: "ng/m3", pollutant: airquality.PollutantBC, want: 1.5, wantUnit: "µg/m³"},
		{name: "ppm", value: 0.04, unit: "ppm", pollutant: airquality.PollutantO3, want: 0.04, wantUnit: "ppm"},
		{name: "ppb", value: 40, unit: "ppb", pollutant: airquality.PollutantO3, want: 0.04, wantUnit: "ppm"},
		{name: "pphm", value: 4, unit: "pphm", pollutant: airquality.PollutantO3, want: 0.04, wantUnit: "ppm"},
		{name: "unknown", value: 1, unit: "knots", pollutant: airquality.PollutantO3, wantErr: true},
		{name: "empty", value: 1, unit: "", pollutant: airquality.PollutantO3, wantErr: true},
	}

	var n airquality.Normalizer
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, unit, err := n.Unit(tt.value, tt.unit, tt.pollutant)
			if tt.wantErr {
				assert.ErrorIs(t, err, airquality.ErrUnknownUnit)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, tt.wantUnit, unit)
		})
	}
}

func TestNormalizer_Normalize(t *testing.T) {
	date := airquality.Date{UTC: "2021-01-01T10:00:00Z", Local: "2021-01-01T12:00:00+02:00"}
	coords := &airquality.Coordinates{Latitude: -26.25, Longitude: 27.95}
	attribution := []airquality.Attribution{{Name: "SAAQIS"}}

	t.Run("valid reading", func(t *testing.T) {
		m, err := airquality.Normalizer{}.Normalize(airquality.RawReading{
			Location:  " Diepkloof ",
			City:      "Johannesburg",
			Parameter: "PM2.5",
			Value:     "14",
			Unit:      "ug/m3",
		}, date, coords, attribution)
		require.NoError(t, err)

		assert.Equal(t, "Diepkloof", m.Location)
		assert.Equal(t, airquality.PollutantPM25, m.Parameter)
		assert.Equal(t, 14.0, m.Value)
		assert.Equal(t, "µg/m³", m.Unit)
		assert.Equal(t, date, m.Date)
		assert.Equal(t, coords, m.Coordinates)
		assert.Equal(t, airquality.HourlyAverage, m.AveragingPeriod)
		assert.Equal(t, attribution, m.Attribution)
		assert.NoError(t, m.Validate())
	})

	t.Run("soft failures", func(t *testing.T) {
		tests := []struct {
			name    string
			reading airquality.RawReading
			coords  *airquality.Coordinates
			want    error
		}{
			{"unmapped parameter", airquality.RawReading{Parameter: "Benzene", Value: "1", Unit: "ug/m3"}, coords, airquality.ErrUnmappedParameter},
			{"missing coordinates", airquality.RawReading{Parameter: "pm10", Value: "1", Unit: "ug/m3"}, nil, airquality.ErrUnresolvedLocation},
			{"missing value", airquality.RawReading{Parameter: "pm10", Value: "", Unit: "ug/m3"}, coords, airquality.ErrMissingValue},
			{"unknown unit", airquality.RawReading{Parameter: "pm10", Value: "1", Unit: "AQI"}, coords, airquality.ErrUnknownUnit},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := airquality.Normalizer{}.Normalize(tt.reading, date, tt.coords, attribution)
				assert.ErrorIs(t, err, tt.want)
			})
		}
	})
}
