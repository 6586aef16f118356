package api

import (
	"net/http"
	"time"

	"github.com/sabr2007/smart-tasker-bot/pkg/schedule"
)

// handleBuckets returns the user's active tasks partitioned into the
// ordered due-status buckets, computed fresh against the current instant
// and the user's display timezone.
func (s *Server) handleBuckets(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)

	tz, err := s.users.Timezone(r.Context(), userID)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	tasks, err := s.tasks.Active(r.Context(), userID)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}

	now := time.Now()
	writeJSON(w, 200, map[string]any{
		"timezone":     tz,
		"generated_at": now.UTC().Format(time.RFC3339),
		"buckets":      schedule.Bucketize(tasks, now, tz),
	})
}

// handleCalendar returns the Monday-first month grid. year defaults to the
// current year, month (1..12) to the current month, both as observed in
// the user's timezone.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)

	tz, err := s.users.Timezone(r.Context(), userID)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	tasks, err := s.tasks.Active(r.Context(), userID)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}

	now := time.Now()
	today := schedule.DateKeyOf(now, tz)
	year := queryInt(r, "year", today.Year)
	month := queryInt(r, "month", int(today.Month))
	if month < 1 || month > 12 {
		writeError(w, 422, "month must be 1..12")
		return
	}

	writeJSON(w, 200, map[string]any{
		"timezone": tz,
		"year":     year,
		"month":    month,
		"weeks":    schedule.BuildGrid(year, month-1, tasks, now, tz),
	})
}
