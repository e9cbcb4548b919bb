package airquality

import (
	"fmt"
	"strings"
)

// Column positions of the date and hour cells in tabular sources.
const (
	DateColumn = 0
	HourColumn = 1
)

// WindowRequest selects the rows relevant to one adapter call.
//
// When Date is set the matcher runs in exact-window mode and looks for the
// first row whose date and hour cells equal Date and Hour. Otherwise it runs
// in recent-window mode and returns NumRows rows starting Offset rows from
// the most recent end of the table.
type WindowRequest struct {
	Date    string
	Hour    string
	Offset  int
	NumRows int

	// Normalize cleans a cell before comparison. Defaults to TrimSpace.
	Normalize func(col int, cell string) string
}

// Exact reports whether the request targets a specific reporting window.
func (r WindowRequest) Exact() bool {
	return r.Date != ""
}

func (r WindowRequest) normalize(col int, cell string) string {
	if r.Normalize != nil {
		return r.Normalize(col, cell)
	}
	return strings.TrimSpace(cell)
}

// FindRow returns the index of the first row matching the requested date and
// hour, or -1 when there is none.
func FindRow(rows [][]string, req WindowRequest) int {
	for i, row := range rows {
		if len(row) <= HourColumn {
			continue
		}
		if req.normalize(DateColumn, row[DateColumn]) == req.Date &&
			req.normalize(HourColumn, row[HourColumn]) == req.Hour {
			return i
		}
	}
	return -1
}

// MatchRows returns the window of rows selected by req. Rows must be ordered
// most recent first, as the sources publish them.
//
// In exact-window mode a missing row is reported as ErrRowNotFound rather
// than falling back to the start of the table, which would mislabel stale
// data with the requested time.
func MatchRows(rows [][]string, req WindowRequest) ([][]string, error) {
	if req.NumRows <= 0 {
		return nil, nil
	}

	start := req.Offset
	if req.Exact() {
		start = FindRow(rows, req)
		if start < 0 {
			return nil, fmt.Errorf("%w: date %q hour %q", ErrRowNotFound, req.Date, req.Hour)
		}
	}

	if start < 0 {
		start = 0
	}
	if start >= len(rows) {
		return nil, nil
	}
	end := start + req.NumRows
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], nil
}

// SplitBlocks splits delimiter-joined text into trimmed, non-empty blocks.
func SplitBlocks(text, delim string) []string {
	parts := strings.Split(text, delim)
	blocks := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			blocks = append(blocks, p)
		}
	}
	return blocks
}
