package remind

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sabr2007/smart-tasker-bot/pkg/activity"
	"github.com/sabr2007/smart-tasker-bot/pkg/schedule"
	"github.com/sabr2007/smart-tasker-bot/pkg/task"
	"github.com/sabr2007/smart-tasker-bot/pkg/user"

	"github.com/sabr2007/smart-tasker-bot/internal/notify"
)

// Digest sends each user with active tasks a bucketized morning summary.
// "Morning" is a wall-clock minute-of-day evaluated in the user's own
// timezone, so users around the world get their digest at the same local
// hour.
type Digest struct {
	tasks    task.Store
	users    user.Store
	activity *activity.Bus
	notifier notify.Notifier

	clockMin int // minutes past local midnight

	// lastSent tracks the local date each user last got a digest for.
	// In-memory only: a daemon restart can re-send one digest, which
	// beats silently skipping a day.
	lastSent map[int64]schedule.DateKey
}

// NewDigest creates a Digest firing at clockMin minutes past local midnight.
func NewDigest(tasks task.Store, users user.Store, act *activity.Bus, notifier notify.Notifier, clockMin int) *Digest {
	return &Digest{
		tasks:    tasks,
		users:    users,
		activity: act,
		notifier: notifier,
		clockMin: clockMin,
		lastSent: make(map[int64]schedule.DateKey),
	}
}

// Run checks every minute whether any user's local clock has crossed the
// digest time, until ctx is cancelled.
func (d *Digest) Run(ctx context.Context) {
	log.Info("digest running", "clock_min", d.clockMin)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("digest shutting down")
			return
		case now := <-ticker.C:
			d.tick(ctx, now)
		}
	}
}

func (d *Digest) tick(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in digest tick", "err", r)
		}
	}()

	userIDs, err := d.tasks.UsersWithActiveTasks(ctx)
	if err != nil {
		log.Error("list users with active tasks", "err", err)
		return
	}

	for _, userID := range userIDs {
		tz, err := d.users.Timezone(ctx, userID)
		if err != nil {
			log.Error("user timezone", "user", userID, "err", err)
			continue
		}

		local := now.In(schedule.LocationFor(tz))
		if local.Hour()*60+local.Minute() < d.clockMin {
			continue
		}
		key := schedule.DateKeyOf(now, tz)
		if d.lastSent[userID] == key {
			continue
		}

		if d.send(ctx, userID, tz, now) {
			d.lastSent[userID] = key
		}
	}
}

func (d *Digest) send(ctx context.Context, userID int64, tz string, now time.Time) bool {
	tasks, err := d.tasks.Active(ctx, userID)
	if err != nil {
		log.Error("active tasks for digest", "user", userID, "err", err)
		return false
	}
	if len(tasks) == 0 {
		return true // nothing to say; counts as sent for the day
	}

	if err := d.notifier.Send(ctx, userID, digestText(tasks, now, tz)); err != nil {
		log.Error("send digest", "user", userID, "err", err)
		return false
	}
	if _, err := d.activity.Append(ctx, userID, "", activity.DigestSent, "remindd",
		map[string]any{"task_count": len(tasks)}); err != nil {
		log.Error("record digest", "user", userID, "err", err)
	}
	return true
}

var bucketTitles = map[schedule.Bucket]string{
	schedule.BucketOverdue:    "🔥 Overdue",
	schedule.BucketDueToday:   "📌 Due today",
	schedule.BucketUpcoming:   "🗓 Upcoming",
	schedule.BucketNoDeadline: "📋 No deadline",
}

func digestText(tasks []task.Task, now time.Time, tz string) string {
	var b strings.Builder
	b.WriteString("☀️ Good morning! Your tasks:\n")

	for _, group := range schedule.Bucketize(tasks, now, tz) {
		fmt.Fprintf(&b, "\n%s\n", bucketTitles[group.Bucket])
		for _, t := range group.Tasks {
			if t.DueAt != nil {
				fmt.Fprintf(&b, "• %s — %s\n", t.Text, schedule.Denormalize(*t.DueAt, tz))
			} else {
				fmt.Fprintf(&b, "• %s\n", t.Text)
			}
		}
	}
	return b.String()
}
