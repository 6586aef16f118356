package schedule

import (
	"time"

	"github.com/sabr2007/smart-tasker-bot/pkg/task"
)

// Bucket is a derived, never-persisted classification of a task at a point
// in time.
type Bucket string

const (
	BucketOverdue    Bucket = "overdue"
	BucketDueToday   Bucket = "due_today"
	BucketUpcoming   Bucket = "upcoming"
	BucketNoDeadline Bucket = "no_deadline"
	BucketCompleted  Bucket = "completed"
)

// bucketOrder is the fixed emission order. Completed is last and appears
// only in archive-style views.
var bucketOrder = []Bucket{BucketOverdue, BucketDueToday, BucketUpcoming, BucketNoDeadline, BucketCompleted}

// BucketGroup is one non-empty bucket with its tasks in snapshot order.
type BucketGroup struct {
	Bucket Bucket      `json:"bucket"`
	Tasks  []task.Task `json:"tasks"`
}

// Classify assigns a task to exactly one bucket. Rules are checked in
// order; the first match wins:
//  1. completed_at set: Completed;
//  2. due_at strictly before now: Overdue;
//  3. due_at on now's calendar date in tz: Due Today;
//  4. due_at set (future, not today): Upcoming;
//  5. no due_at: No Deadline.
func Classify(t *task.Task, now time.Time, tz string) Bucket {
	switch {
	case t.CompletedAt != nil:
		return BucketCompleted
	case t.DueAt == nil:
		return BucketNoDeadline
	case t.DueAt.Before(now):
		return BucketOverdue
	case DateKeyOf(*t.DueAt, tz) == DateKeyOf(now, tz):
		return BucketDueToday
	default:
		return BucketUpcoming
	}
}

// Bucketize partitions a task snapshot for the active-list view. Completed
// tasks are excluded entirely. Groups come out in the fixed bucket order,
// empty groups are omitted, and within a group tasks keep the snapshot's
// order. The result is recomputed fresh from the inputs on every call; no
// bucket state is kept anywhere.
func Bucketize(tasks []task.Task, now time.Time, tz string) []BucketGroup {
	return bucketize(tasks, now, tz, false)
}

// BucketizeWithCompleted is Bucketize for archive-style views: completed
// tasks are included, always as the last group.
func BucketizeWithCompleted(tasks []task.Task, now time.Time, tz string) []BucketGroup {
	return bucketize(tasks, now, tz, true)
}

func bucketize(tasks []task.Task, now time.Time, tz string, includeCompleted bool) []BucketGroup {
	byBucket := make(map[Bucket][]task.Task, len(bucketOrder))
	for i := range tasks {
		b := Classify(&tasks[i], now, tz)
		if b == BucketCompleted && !includeCompleted {
			continue
		}
		byBucket[b] = append(byBucket[b], tasks[i])
	}

	var groups []BucketGroup
	for _, b := range bucketOrder {
		if len(byBucket[b]) == 0 {
			continue
		}
		groups = append(groups, BucketGroup{Bucket: b, Tasks: byBucket[b]})
	}
	return groups
}
