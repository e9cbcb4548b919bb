package airquality_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caparker/openaq-fetch/internal/airquality"
)

func TestMeasurement_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *airquality.Measurement)
		want   error
	}{
		{name: "valid", mutate: func(*airquality.Measurement) {}},
		{name: "zero value is valid", mutate: func(m *airquality.Measurement) { m.Value = 0 }},
		{name: "nil coordinates", mutate: func(m *airquality.Measurement) { m.Coordinates = nil }, want: airquality.ErrUnresolvedLocation},
		{name: "nan", mutate: func(m *airquality.Measurement) { m.Value = math.NaN() }, want: airquality.ErrNonFiniteValue},
		{name: "negative infinity", mutate: func(m *airquality.Measurement) { m.Value = math.Inf(-1) }, want: airquality.ErrNonFiniteValue},
		{name: "unknown parameter", mutate: func(m *airquality.Measurement) { m.Parameter = "pm1" }, want: airquality.ErrUnmappedParameter},
		{name: "missing utc", mutate: func(m *airquality.Measurement) { m.Date.UTC = "" }, want: airquality.ErrInvalidDate},
		{name: "missing local", mutate: func(m *airquality.Measurement) { m.Date.Local = "" }, want: airquality.ErrInvalidDate},
		{name: "different instants", mutate: func(m *airquality.Measurement) { m.Date.UTC = "2021-01-01T12:00:00Z" }, want: airquality.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMeasurement("Diepkloof")
			tt.mutate(&m)

			err := m.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMeasurement_JSONShape(t *testing.T) {
	m := validMeasurement("Diepkloof")

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	for _, key := range []string{"location", "city", "coordinates", "parameter", "value", "unit", "date", "averagingPeriod", "attribution"} {
		assert.Contains(t, got, key)
	}
	assert.Equal(t, map[string]any{"utc": "2021-01-01T10:00:00Z", "local": "2021-01-01T12:00:00+02:00"}, got["date"])
	assert.Equal(t, map[string]any{"unit": "hours", "value": float64(1)}, got["averagingPeriod"])
	assert.Equal(t, "pm10", got["parameter"])
}

func TestPollutant_IsCanonical(t *testing.T) {
	for _, p := range airquality.Pollutants {
		assert.True(t, p.IsCanonical(), string(p))
	}
	assert.False(t, airquality.Pollutant("PM25").IsCanonical())
	assert.False(t, airquality.Pollutant("").IsCanonical())
}
