package airquality_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caparker/openaq-fetch/internal/airquality"
)

func TestCoordinateTable_Lookup(t *testing.T) {
	table := airquality.CoordinateTable{
		"Hornsgatan":  {Latitude: 59.31713214, Longitude: 18.04878744},
		"Hornsgatan ": {Latitude: 1, Longitude: 1},
	}

	c, ok := table.Lookup("  Hornsgatan\n")
	require.True(t, ok)
	assert.Equal(t, 59.31713214, c.Latitude)

	c.Latitude = 0
	again, _ := table.Lookup("Hornsgatan")
	assert.Equal(t, 59.31713214, again.Latitude, "lookups must not alias the table")

	_, ok = table.Lookup("hornsgatan")
	assert.False(t, ok, "matching is case sensitive")

	c, ok = table.Lookup("Okänd plats")
	assert.False(t, ok)
	assert.Nil(t, c)
}
