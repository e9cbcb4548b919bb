package airquality

import (
	"fmt"
	"strings"
	"time"

	// Sources declare IANA zones; the host's zoneinfo must not matter.
	_ "time/tzdata"
)

const (
	localLayout = "2006-01-02T15:04:05-07:00"
	utcLayout   = "2006-01-02T15:04:05Z"
)

// TimeResolver parses source date text in the source's fixed timezone.
type TimeResolver struct {
	loc    *time.Location
	layout string
}

// NewTimeResolver creates a resolver for an IANA zone and a Go time layout.
func NewTimeResolver(zone, layout string) (*TimeResolver, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load zone %q: %w", zone, err)
	}
	return &TimeResolver{loc: loc, layout: layout}, nil
}

// MustTimeResolver is NewTimeResolver for package-level adapter configuration.
func MustTimeResolver(zone, layout string) *TimeResolver {
	r, err := NewTimeResolver(zone, layout)
	if err != nil {
		panic(err)
	}
	return r
}

// Location returns the source zone.
func (r *TimeResolver) Location() *time.Location {
	return r.loc
}

// Parse reads text with the declared layout in the source zone.
func (r *TimeResolver) Parse(text string) (time.Time, error) {
	t, err := time.ParseInLocation(r.layout, strings.TrimSpace(text), r.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, text, err)
	}
	return t, nil
}

// Resolve parses text and renders the instant as a Date.
func (r *TimeResolver) Resolve(text string) (Date, error) {
	t, err := r.Parse(text)
	if err != nil {
		return Date{}, err
	}
	return r.At(t), nil
}

// At renders t in the source zone and in UTC.
func (r *TimeResolver) At(t time.Time) Date {
	return Date{
		UTC:   t.UTC().Format(utcLayout),
		Local: t.In(r.loc).Format(localLayout),
	}
}

// Instants parses both sides of a Date back into times.
func (d Date) Instants() (utc, local time.Time, err error) {
	utc, err = time.Parse(time.RFC3339, d.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: utc %q", ErrInvalidDate, d.UTC)
	}
	local, err = time.Parse(time.RFC3339, d.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: local %q", ErrInvalidDate, d.Local)
	}
	return utc, local, nil
}
