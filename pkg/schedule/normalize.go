package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultOffset is the UTC offset assumed for deadline strings that carry
// no zone information. It is a deployment-wide constant, configurable at
// startup, not derived from any user's timezone.
const DefaultOffset = "+05:00"

var (
	dateOnlyRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	localTimeRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[T ](\d{2}:\d{2})$`)
	offsetRe    = regexp.MustCompile(`^([+-])(\d{2}):(\d{2})$`)
)

// Normalize converts a raw deadline input into its canonical form.
// Precedence, first match wins:
//   - blank input returns "" (no deadline);
//   - a bare YYYY-MM-DD date passes through unchanged — the receiving side
//     decides what time of day a date-only deadline means;
//   - a local YYYY-MM-DD HH:MM (T or space separator) gets a T separator,
//     :00 seconds, and the given default offset appended;
//   - anything else passes through unchanged and is validated, if at all,
//     at the storage boundary.
//
// An empty offset selects DefaultOffset.
func Normalize(raw, offset string) string {
	if offset == "" {
		offset = DefaultOffset
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if dateOnlyRe.MatchString(s) {
		return s
	}
	if m := localTimeRe.FindStringSubmatch(s); m != nil {
		return m[1] + "T" + m[2] + ":00" + offset
	}
	return s
}

// Denormalize renders an instant as a local display string in the named zone.
func Denormalize(t time.Time, tz string) string {
	return t.In(LocationFor(tz)).Format("2006-01-02 15:04")
}

// OffsetZone converts an "+HH:MM" offset string into a fixed location.
// Malformed offsets yield the DefaultOffset zone.
func OffsetZone(offset string) *time.Location {
	m := offsetRe.FindStringSubmatch(offset)
	if m == nil {
		m = offsetRe.FindStringSubmatch(DefaultOffset)
	}
	h, _ := strconv.Atoi(m[2])
	min, _ := strconv.Atoi(m[3])
	sec := h*3600 + min*60
	if m[1] == "-" {
		sec = -sec
	}
	return time.FixedZone(m[1]+m[2]+":"+m[3], sec)
}

var instantLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseInstant parses an ISO-8601 timestamp into an absolute instant.
// A trailing Z or numeric offset is honored; a string without either is
// read in the given default offset. Date-only strings resolve to 23:59:00
// local, matching how the store interprets date-only deadlines.
func ParseInstant(s, offset string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	loc := OffsetZone(offset)
	for _, layout := range instantLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		if layout == "2006-01-02" {
			t = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, loc)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// EndOfDay returns 23:59:00 of now's calendar day in the named zone.
// This is the "today" deadline shortcut.
func EndOfDay(now time.Time, tz string) time.Time {
	lt := now.In(LocationFor(tz))
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 23, 59, 0, 0, lt.Location())
}

// EndOfTomorrow returns 23:59:00 of the next calendar day in the named zone.
func EndOfTomorrow(now time.Time, tz string) time.Time {
	return EndOfDay(now.AddDate(0, 0, 1), tz)
}

// NextWeek returns 09:00 on the coming Monday in the named zone. When now
// is already a Monday the result is the following Monday, never today.
func NextWeek(now time.Time, tz string) time.Time {
	lt := now.In(LocationFor(tz))
	days := (8 - int(lt.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	target := lt.AddDate(0, 0, days)
	return time.Date(target.Year(), target.Month(), target.Day(), 9, 0, 0, 0, lt.Location())
}

// RemindAt computes the reminder instant for a deadline and an
// advance-notice preference in minutes.
func RemindAt(due time.Time, offsetMin int) time.Time {
	return due.Add(-time.Duration(offsetMin) * time.Minute)
}
