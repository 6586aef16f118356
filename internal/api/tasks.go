package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sabr2007/smart-tasker-bot/pkg/activity"
	"github.com/sabr2007/smart-tasker-bot/pkg/schedule"
	"github.com/sabr2007/smart-tasker-bot/pkg/task"
)

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.Active(r.Context(), requestUser(r))
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, tasks)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Get(r.Context(), requestUser(r), r.PathValue("id"))
	if err != nil {
		writeError(w, 404, err.Error())
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text             string `json:"text"`
		DeadlineISO      string `json:"deadline_iso"`
		DeadlineShortcut string `json:"deadline_shortcut"`
		Recurrence       string `json:"recurrence"`
		RecurInterval    int    `json:"recur_interval"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeError(w, 422, "text is required")
		return
	}
	if req.DeadlineISO != "" && req.DeadlineShortcut != "" {
		writeError(w, 422, "deadline_iso and deadline_shortcut are mutually exclusive")
		return
	}

	t := &task.Task{
		UserID:        requestUser(r),
		Text:          req.Text,
		Recurrence:    req.Recurrence,
		RecurInterval: req.RecurInterval,
	}
	if req.DeadlineShortcut != "" {
		due, err := s.shortcutInstant(r, req.DeadlineShortcut)
		if err != nil {
			writeError(w, 422, "deadline_shortcut: "+err.Error())
			return
		}
		t.DueAt = &due
	} else if norm := schedule.Normalize(req.DeadlineISO, s.offset); norm != "" {
		due, err := schedule.ParseInstant(norm, s.offset)
		if err != nil {
			writeError(w, 422, "deadline_iso: "+err.Error())
			return
		}
		t.DueAt = &due
	}

	result, err := s.tasks.Create(r.Context(), t)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	s.record(r, result.ID, activity.TaskCreated, map[string]any{"text": result.Text})
	writeJSON(w, 201, result)
}

// handleTaskPatch updates text and/or deadline_iso. A deadline_iso of null
// clears the deadline; an omitted field is left untouched. A deadline
// change re-syncs remind_at from the stored advance-notice preference.
func (s *Server) handleTaskPatch(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	id := r.PathValue("id")

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}

	existing, err := s.tasks.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, 404, err.Error())
		return
	}

	updates := map[string]any{}
	action := activity.TaskUpdated

	if raw, ok := fields["text"]; ok {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			writeError(w, 400, "text: "+err.Error())
			return
		}
		text = strings.TrimSpace(text)
		if text == "" {
			writeError(w, 422, "text is required")
			return
		}
		updates["text"] = text
	}

	if raw, ok := fields["deadline_iso"]; ok {
		action = activity.TaskRescheduled
		if string(raw) == "null" {
			// Deadline off, reminders with it.
			updates["due_at"] = nil
			updates["remind_at"] = nil
			updates["remind_offset_min"] = nil
		} else {
			var deadline string
			if err := json.Unmarshal(raw, &deadline); err != nil {
				writeError(w, 400, "deadline_iso: "+err.Error())
				return
			}
			norm := schedule.Normalize(deadline, s.offset)
			if norm == "" {
				updates["due_at"] = nil
				updates["remind_at"] = nil
				updates["remind_offset_min"] = nil
			} else {
				due, err := schedule.ParseInstant(norm, s.offset)
				if err != nil {
					writeError(w, 422, "deadline_iso: "+err.Error())
					return
				}
				updates["due_at"] = due
				if existing.RemindOffsetMin != nil {
					updates["remind_at"] = schedule.RemindAt(due, *existing.RemindOffsetMin)
				} else {
					updates["remind_at"] = due
					updates["remind_offset_min"] = 0
				}
			}
		}
	}

	if raw, ok := fields["deadline_shortcut"]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			writeError(w, 400, "deadline_shortcut: "+err.Error())
			return
		}
		due, err := s.shortcutInstant(r, name)
		if err != nil {
			writeError(w, 422, "deadline_shortcut: "+err.Error())
			return
		}
		action = activity.TaskRescheduled
		updates["due_at"] = due
		if existing.RemindOffsetMin != nil {
			updates["remind_at"] = schedule.RemindAt(due, *existing.RemindOffsetMin)
		} else {
			updates["remind_at"] = due
			updates["remind_offset_min"] = 0
		}
	}

	if len(updates) == 0 {
		writeJSON(w, 200, existing)
		return
	}

	t, err := s.tasks.Update(r.Context(), userID, id, updates)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	s.record(r, t.ID, action, nil)
	writeJSON(w, 200, t)
}

// handleTaskComplete marks a task done. Completing a recurring task spawns
// the next occurrence and reports its ID.
func (s *Server) handleTaskComplete(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	id := r.PathValue("id")

	done, err := s.tasks.Complete(r.Context(), userID, id)
	if err != nil {
		writeError(w, 404, err.Error())
		return
	}
	s.record(r, done.ID, activity.TaskCompleted, nil)

	newTaskID := ""
	if done.Recurring() {
		nextISO := schedule.NextOccurrence(done.DueAt.Format(time.RFC3339), done.Recurrence, done.RecurInterval)
		if next, err := schedule.ParseInstant(nextISO, s.offset); err == nil {
			spawned, err := s.tasks.Create(r.Context(), &task.Task{
				UserID:          userID,
				Text:            done.Text,
				DueAt:           &next,
				RemindOffsetMin: done.RemindOffsetMin,
				Recurrence:      done.Recurrence,
				RecurInterval:   done.RecurInterval,
			})
			if err != nil {
				log.Error("spawn recurring occurrence", "task", id, "err", err)
			} else {
				newTaskID = spawned.ID
				s.record(r, spawned.ID, activity.TaskCreated, map[string]any{"recurring_from": id})
			}
		}
	}

	writeJSON(w, 200, map[string]any{"ok": true, "new_task_id": newTaskID})
}

func (s *Server) handleTaskReopen(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Reopen(r.Context(), requestUser(r), r.PathValue("id"))
	if err != nil {
		writeError(w, 404, err.Error())
		return
	}
	s.record(r, t.ID, activity.TaskReopened, nil)
	writeJSON(w, 200, map[string]any{"ok": true})
}

func (s *Server) handleTaskArchive(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Archive(r.Context(), requestUser(r), r.PathValue("id"))
	if err != nil {
		writeError(w, 404, err.Error())
		return
	}
	s.record(r, t.ID, activity.TaskArchived, nil)
	writeJSON(w, 200, map[string]any{"ok": true})
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.tasks.Delete(r.Context(), requestUser(r), id); err != nil {
		writeError(w, 404, err.Error())
		return
	}
	s.record(r, id, activity.TaskDeleted, nil)
	writeJSON(w, 200, map[string]any{"ok": true})
}

func (s *Server) handleTaskArchiveList(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)
	tasks, err := s.tasks.Archived(r.Context(), requestUser(r), limit)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, tasks)
}

// handleCompletedList returns tasks completed at or after ?since. Without
// since it falls back to the ten most recent archive entries.
func (s *Server) handleCompletedList(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	sinceRaw := r.URL.Query().Get("since")

	if sinceRaw == "" {
		tasks, err := s.tasks.Archived(r.Context(), userID, 10)
		if err != nil {
			writeError(w, 500, err.Error())
			return
		}
		writeJSON(w, 200, tasks)
		return
	}

	since, err := schedule.ParseInstant(sinceRaw, s.offset)
	if err != nil {
		writeError(w, 422, "since: "+err.Error())
		return
	}
	tasks, err := s.tasks.CompletedSince(r.Context(), userID, since)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, tasks)
}

func (s *Server) handleArchiveClear(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.ClearArchive(r.Context(), requestUser(r)); err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

// shortcutInstant resolves a named relative deadline against the caller's
// timezone: "today" ends today, "tomorrow" ends tomorrow, "next_week" is
// 09:00 on the coming Monday (a full week out when today is Monday).
func (s *Server) shortcutInstant(r *http.Request, name string) (time.Time, error) {
	tz, err := s.users.Timezone(r.Context(), requestUser(r))
	if err != nil {
		tz = ""
	}
	now := time.Now()
	switch name {
	case "today":
		return schedule.EndOfDay(now, tz), nil
	case "tomorrow":
		return schedule.EndOfTomorrow(now, tz), nil
	case "next_week":
		return schedule.NextWeek(now, tz), nil
	default:
		return time.Time{}, fmt.Errorf("unknown shortcut %q", name)
	}
}

// record appends to the activity log; log failures must not fail the
// mutation they describe.
func (s *Server) record(r *http.Request, taskID, action string, detail map[string]any) {
	if _, err := s.activity.Append(r.Context(), requestUser(r), taskID, action, "api", detail); err != nil {
		log.Error("append activity", "action", action, "err", err)
	}
}
