package schedule

import (
	"strings"
	"time"

	"github.com/sabr2007/smart-tasker-bot/pkg/task"
)

// NextOccurrence computes the following deadline for a recurring task.
// The time of day and zone of the input are preserved. Monthly recurrence
// clamps to the last day of the shorter month (Jan 31 -> Feb 28/29) rather
// than spilling into the next one. An unknown kind behaves as daily, and a
// custom interval below one day is treated as one. Empty or unparseable
// input yields "".
func NextOccurrence(dueISO, kind string, interval int) string {
	s := strings.TrimSpace(dueISO)
	if s == "" {
		return ""
	}
	utc := strings.HasSuffix(s, "Z")
	if utc {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return ""
	}

	var next time.Time
	switch kind {
	case task.RecurWeekly:
		next = t.AddDate(0, 0, 7)
	case task.RecurMonthly:
		next = addMonthClamped(t)
	case task.RecurCustom:
		if interval < 1 {
			interval = 1
		}
		next = t.AddDate(0, 0, interval)
	default: // daily, and anything unrecognized
		next = t.AddDate(0, 0, 1)
	}

	out := next.Format(time.RFC3339)
	if utc {
		out = strings.Replace(out, "+00:00", "Z", 1)
	}
	return out
}

// addMonthClamped advances one calendar month, clamping the day so that
// e.g. Jan 31 becomes Feb 28 instead of Mar 3.
func addMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	if last := time.Date(year, month+1, 0, 0, 0, 0, 0, t.Location()).Day(); day > last {
		day = last
	}
	hour, min, sec := t.Clock()
	return time.Date(year, month, day, hour, min, sec, t.Nanosecond(), t.Location())
}
