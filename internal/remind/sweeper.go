// Package remind is the reminder daemon: a sweeper that fires per-task
// reminders when remind_at passes, and a daily digest sent at each user's
// local morning.
package remind

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sabr2007/smart-tasker-bot/pkg/activity"
	"github.com/sabr2007/smart-tasker-bot/pkg/schedule"
	"github.com/sabr2007/smart-tasker-bot/pkg/task"
	"github.com/sabr2007/smart-tasker-bot/pkg/user"

	"github.com/sabr2007/smart-tasker-bot/internal/notify"
)

// Sweeper polls for tasks whose remind_at has passed and notifies their
// owners. Reminders are one-shot: a fired reminder is cleared so the next
// sweep doesn't repeat it.
type Sweeper struct {
	tasks    task.Store
	users    user.Store
	activity *activity.Bus
	notifier notify.Notifier
	interval time.Duration
}

// NewSweeper creates a Sweeper polling at the given interval.
func NewSweeper(tasks task.Store, users user.Store, act *activity.Bus, notifier notify.Notifier, interval time.Duration) *Sweeper {
	return &Sweeper{tasks: tasks, users: users, activity: act, notifier: notifier, interval: interval}
}

// Run sweeps until ctx is cancelled. It catches up immediately on startup
// so reminders missed during downtime fire on the first pass.
func (s *Sweeper) Run(ctx context.Context) {
	log.Info("sweeper running", "interval", s.interval)

	s.sweep(ctx, time.Now())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("sweeper shutting down")
			return
		case now := <-ticker.C:
			s.sweep(ctx, now)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in sweep", "err", r)
		}
	}()

	due, err := s.tasks.DueReminders(ctx, now)
	if err != nil {
		log.Error("fetch due reminders", "err", err)
		return
	}

	for i := range due {
		s.fire(ctx, &due[i])
	}
}

// fire re-checks the task before notifying: a dashboard reschedule or
// completion may have landed between the fetch and now, in which case the
// stale reminder is dropped.
func (s *Sweeper) fire(ctx context.Context, stale *task.Task) {
	t, err := s.tasks.Get(ctx, stale.UserID, stale.ID)
	if err != nil {
		log.Warn("reminder task vanished", "task", stale.ID, "err", err)
		return
	}
	if t.Status != task.StatusActive || t.RemindAt == nil {
		return
	}
	if stale.RemindAt != nil && !t.RemindAt.Equal(*stale.RemindAt) {
		// Rescheduled since the sweep started; the new remind_at will
		// fire on its own sweep.
		return
	}

	tz, err := s.users.Timezone(ctx, t.UserID)
	if err != nil {
		log.Error("user timezone", "user", t.UserID, "err", err)
		tz = ""
	}
	if err := s.notifier.Send(ctx, t.UserID, reminderText(t, tz)); err != nil {
		// Leave remind_at in place so the next sweep retries delivery.
		log.Error("send reminder", "task", t.ID, "user", t.UserID, "err", err)
		return
	}

	if _, err := s.tasks.Update(ctx, t.UserID, t.ID, map[string]any{"remind_at": nil}); err != nil {
		log.Error("clear fired reminder", "task", t.ID, "err", err)
	}
	if _, err := s.activity.Append(ctx, t.UserID, t.ID, activity.ReminderSent, "remindd", nil); err != nil {
		log.Error("record reminder", "task", t.ID, "err", err)
	}
}

func reminderText(t *task.Task, tz string) string {
	if t.DueAt == nil {
		return fmt.Sprintf("⏰ Reminder: %s", t.Text)
	}
	return fmt.Sprintf("⏰ Reminder: %s\nDue %s", t.Text, schedule.Denormalize(*t.DueAt, tz))
}
