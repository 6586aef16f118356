// Package schedule is the deadline normalization and bucketing engine.
// Everything here is a pure function of its arguments: the current instant
// and the display timezone are always passed in, never read from ambient
// process state.
package schedule

import (
	"fmt"
	"time"
)

// DateKey is a calendar date as observed in some timezone. It has no time
// component; equality is exact (year, month, day) match.
type DateKey struct {
	Year  int
	Month time.Month
	Day   int
}

// String formats the key as YYYY-MM-DD.
func (k DateKey) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", k.Year, int(k.Month), k.Day)
}

// ParseDateKey parses a YYYY-MM-DD string.
func ParseDateKey(s string) (DateKey, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return DateKey{}, fmt.Errorf("parse date key %q: %w", s, err)
	}
	return DateKey{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// LocationFor resolves an IANA zone name. An unknown or empty name falls
// back to the process-local zone: the result is only ever used for display
// and bucketing, never for rewriting a stored instant.
func LocationFor(tz string) *time.Location {
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}

// DateKeyOf returns the calendar date of an instant as observed in the
// named timezone.
func DateKeyOf(t time.Time, tz string) DateKey {
	lt := t.In(LocationFor(tz))
	return DateKey{Year: lt.Year(), Month: lt.Month(), Day: lt.Day()}
}
