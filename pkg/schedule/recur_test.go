package schedule

import (
	"testing"

	"github.com/sabr2007/smart-tasker-bot/pkg/task"
)

func TestNextOccurrence(t *testing.T) {
	cases := []struct {
		name     string
		due      string
		kind     string
		interval int
		want     string
	}{
		{"daily", "2026-01-01T10:00:00Z", task.RecurDaily, 0, "2026-01-02T10:00:00Z"},
		{"weekly", "2026-01-01T10:00:00Z", task.RecurWeekly, 0, "2026-01-08T10:00:00Z"},
		{"monthly", "2026-01-15T10:00:00Z", task.RecurMonthly, 0, "2026-02-15T10:00:00Z"},
		{"monthly clamps to month end", "2026-01-31T10:00:00Z", task.RecurMonthly, 0, "2026-02-28T10:00:00Z"},
		{"monthly clamps in leap year", "2024-01-31T10:00:00Z", task.RecurMonthly, 0, "2024-02-29T10:00:00Z"},
		{"monthly across year boundary", "2025-12-31T10:00:00Z", task.RecurMonthly, 0, "2026-01-31T10:00:00Z"},
		{"custom interval", "2026-01-01T10:00:00Z", task.RecurCustom, 3, "2026-01-04T10:00:00Z"},
		{"custom interval below one", "2026-01-01T10:00:00Z", task.RecurCustom, 0, "2026-01-02T10:00:00Z"},
		{"unknown kind acts as daily", "2026-01-01T10:00:00Z", "fortnightly", 0, "2026-01-02T10:00:00Z"},
		{"preserves time of day", "2026-01-01T15:30:45Z", task.RecurDaily, 0, "2026-01-02T15:30:45Z"},
		{"preserves offset", "2026-01-01T10:00:00+05:00", task.RecurDaily, 0, "2026-01-02T10:00:00+05:00"},
		{"empty input", "", task.RecurDaily, 0, ""},
		{"unparseable input", "someday", task.RecurDaily, 0, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextOccurrence(tc.due, tc.kind, tc.interval)
			if got != tc.want {
				t.Errorf("NextOccurrence(%q, %s, %d) = %q, want %q", tc.due, tc.kind, tc.interval, got, tc.want)
			}
		})
	}
}
