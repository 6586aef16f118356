package schedule

import (
	"sort"
	"time"

	"github.com/sabr2007/smart-tasker-bot/pkg/task"
)

// GridCell is one cell of the month calendar. Blank cells pad the first
// and last week so every row has seven cells; days from neighboring months
// are never shown.
type GridCell struct {
	Day      int  `json:"day"` // 0 for blank placeholders
	Blank    bool `json:"blank"`
	IsToday  bool `json:"is_today"`
	HasTasks bool `json:"has_tasks"`
}

// GridRow is one Monday-first week of the month grid.
type GridRow []GridCell

// BuildGrid produces the month calendar for year/month0 (January = 0).
// Weeks run Monday-first, so a month starting on Sunday gets six leading
// placeholders and a month starting on Monday gets none. Each day cell is
// flagged when it is now's calendar date in tz and when at least one
// non-completed task is due on it.
func BuildGrid(year, month0 int, tasks []task.Task, now time.Time, tz string) []GridRow {
	loc := LocationFor(tz)
	month := time.Month(month0 + 1)

	// Day 0 of the next month is the last day of this one.
	daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()

	// Shift Sunday=0..Saturday=6 so Monday maps to 0.
	firstWeekday := int(time.Date(year, month, 1, 0, 0, 0, 0, loc).Weekday())
	leading := (firstWeekday + 6) % 7

	today := DateKeyOf(now, tz)

	dueDays := make(map[int]bool)
	for i := range tasks {
		t := &tasks[i]
		if t.CompletedAt != nil || t.DueAt == nil {
			continue
		}
		key := DateKeyOf(*t.DueAt, tz)
		if key.Year == year && key.Month == month {
			dueDays[key.Day] = true
		}
	}

	cells := make([]GridCell, leading, leading+daysInMonth)
	for i := range cells {
		cells[i] = GridCell{Blank: true}
	}
	for day := 1; day <= daysInMonth; day++ {
		cells = append(cells, GridCell{
			Day:      day,
			IsToday:  today == DateKey{Year: year, Month: month, Day: day},
			HasTasks: dueDays[day],
		})
	}
	for len(cells)%7 != 0 {
		cells = append(cells, GridCell{Blank: true})
	}

	rows := make([]GridRow, 0, len(cells)/7)
	for i := 0; i < len(cells); i += 7 {
		rows = append(rows, GridRow(cells[i:i+7]))
	}
	return rows
}

// TasksOnDate returns the non-completed tasks due on the given calendar
// date, ascending by due time. Tasks without a deadline never appear.
func TasksOnDate(key DateKey, tasks []task.Task, tz string) []task.Task {
	var out []task.Task
	for i := range tasks {
		t := &tasks[i]
		if t.CompletedAt != nil || t.DueAt == nil {
			continue
		}
		if DateKeyOf(*t.DueAt, tz) == key {
			out = append(out, tasks[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DueAt.Before(*out[j].DueAt)
	})
	return out
}
