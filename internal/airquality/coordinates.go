package airquality

import "strings"

// CoordinateTable maps a station display name to its fixed position.
// Historical aliases and misspellings of the same station are extra keys.
type CoordinateTable map[string]Coordinates

// Lookup resolves a station name by exact match on the trimmed name.
// It returns a fresh pointer so callers may not alias the table entry.
func (t CoordinateTable) Lookup(name string) (*Coordinates, bool) {
	c, ok := t[strings.TrimSpace(name)]
	if !ok {
		return nil, false
	}
	return &c, true
}
