// Package studyday buckets instants into study days. A study day starts at a
// fixed local hour (04:00 by default) rather than at midnight, so late-night
// work counts towards the previous day.
package studyday

import (
	"fmt"
	"time"
)

// DefaultStartHour is the local hour at which a new study day begins.
const DefaultStartHour = 4

// Layout is the format of bucket keys.
const Layout = "2006-01-02"

// Bucketer maps instants to study-day keys in a fixed location.
type Bucketer struct {
	loc       *time.Location
	startHour int
}

// New returns a Bucketer for loc whose days begin at startHour.
func New(loc *time.Location, startHour int) (*Bucketer, error) {
	if startHour < 0 || startHour > 23 {
		return nil, fmt.Errorf("study day start hour %d out of range", startHour)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Bucketer{loc: loc, startHour: startHour}, nil
}

// Load resolves an IANA zone name ("Local" and "" mean the host zone).
func Load(zone string, startHour int) (*Bucketer, error) {
	loc := time.Local
	if zone != "" && zone != "Local" {
		var err error
		loc, err = time.LoadLocation(zone)
		if err != nil {
			return nil, fmt.Errorf("loading time zone %q: %w", zone, err)
		}
	}
	return New(loc, startHour)
}

// Start returns the instant the study day containing t began.
func (b *Bucketer) Start(t time.Time) time.Time {
	local := t.In(b.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), b.startHour, 0, 0, 0, b.loc)
	if local.Before(start) {
		start = time.Date(local.Year(), local.Month(), local.Day()-1, b.startHour, 0, 0, 0, b.loc)
	}
	return start
}

// Bucket returns the YYYY-MM-DD key of the study day containing t.
func (b *Bucketer) Bucket(t time.Time) string {
	return b.Start(t).Format(Layout)
}

// SinceStart reports how far into its study day t falls.
func (b *Bucketer) SinceStart(t time.Time) time.Duration {
	return t.Sub(b.Start(t))
}

// Range returns the half-open interval [start, end) covered by a bucket key.
func (b *Bucketer) Range(key string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(Layout, key, b.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing study day %q: %w", key, err)
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), b.startHour, 0, 0, 0, b.loc)
	end := time.Date(day.Year(), day.Month(), day.Day()+1, b.startHour, 0, 0, 0, b.loc)
	return start, end, nil
}
