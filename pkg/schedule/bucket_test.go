package schedule

import (
	"testing"
	"time"

	"github.com/sabr2007/smart-tasker-bot/pkg/task"
)

func mkTask(id string, due *time.Time, completed *time.Time) task.Task {
	return task.Task{ID: id, Text: "task " + id, Status: task.StatusActive, DueAt: due, CompletedAt: completed}
}

func tp(t time.Time) *time.Time { return &t }

func TestClassify(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		task task.Task
		want Bucket
	}{
		{"completed wins over overdue", mkTask("a", tp(now.Add(-48*time.Hour)), tp(now.Add(-time.Hour))), BucketCompleted},
		{"past due is overdue", mkTask("b", tp(now.Add(-time.Minute)), nil), BucketOverdue},
		{"later today is due today", mkTask("c", tp(now.Add(3*time.Hour)), nil), BucketDueToday},
		{"future date is upcoming", mkTask("d", tp(now.AddDate(0, 0, 3)), nil), BucketUpcoming},
		{"no deadline", mkTask("e", nil, nil), BucketNoDeadline},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(&tc.task, now, "UTC")
			if got != tc.want {
				t.Errorf("Classify = %s, want %s", got, tc.want)
			}
		})
	}
}

// TestClassifyOverdueRegardlessOfTimezone: a due instant strictly before now
// is Overdue no matter what display timezone is in play.
func TestClassifyOverdueRegardlessOfTimezone(t *testing.T) {
	now := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	tsk := mkTask("a", tp(now.Add(-30*time.Minute)), nil)

	for _, tz := range []string{"UTC", "Asia/Almaty", "America/Los_Angeles", "Pacific/Kiritimati"} {
		if got := Classify(&tsk, now, tz); got != BucketOverdue {
			t.Errorf("tz %s: Classify = %s, want overdue", tz, got)
		}
	}
}

// TestClassifyDueTodayDependsOnTimezone: the same future instant can be
// "today" in one zone and "upcoming" in another.
func TestClassifyDueTodayDependsOnTimezone(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	// 23:00 UTC is still March 10 in UTC but already March 11 in Almaty.
	tsk := mkTask("a", tp(time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)), nil)

	if got := Classify(&tsk, now, "UTC"); got != BucketDueToday {
		t.Errorf("UTC: Classify = %s, want due_today", got)
	}
	if got := Classify(&tsk, now, "Asia/Almaty"); got != BucketUpcoming {
		t.Errorf("Almaty: Classify = %s, want upcoming", got)
	}
}

func TestBucketizeExcludesCompleted(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tasks := []task.Task{
		mkTask("done", tp(now.Add(-time.Hour)), tp(now)),
		mkTask("open", nil, nil),
	}

	groups := Bucketize(tasks, now, "UTC")
	for _, g := range groups {
		if g.Bucket == BucketCompleted {
			t.Fatal("active view must not contain a completed bucket")
		}
		for _, tsk := range g.Tasks {
			if tsk.CompletedAt != nil {
				t.Errorf("completed task %s leaked into bucket %s", tsk.ID, g.Bucket)
			}
		}
	}

	withDone := BucketizeWithCompleted(tasks, now, "UTC")
	last := withDone[len(withDone)-1]
	if last.Bucket != BucketCompleted || len(last.Tasks) != 1 {
		t.Errorf("archive view should end with the completed group, got %+v", withDone)
	}
}

func TestBucketizeOrderAndOmission(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tasks := []task.Task{
		mkTask("up", tp(now.AddDate(0, 0, 5)), nil),
		mkTask("over", tp(now.Add(-time.Hour)), nil),
		mkTask("none", nil, nil),
	}

	groups := Bucketize(tasks, now, "UTC")
	want := []Bucket{BucketOverdue, BucketUpcoming, BucketNoDeadline}
	if len(groups) != len(want) {
		t.Fatalf("got %d groups, want %d (empty buckets must be omitted)", len(groups), len(want))
	}
	for i, g := range groups {
		if g.Bucket != want[i] {
			t.Errorf("group %d = %s, want %s", i, g.Bucket, want[i])
		}
	}
}

func TestBucketizeStableWithinBucket(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	// Three upcoming tasks in deliberately non-chronological snapshot order.
	tasks := []task.Task{
		mkTask("first", tp(now.AddDate(0, 0, 9)), nil),
		mkTask("second", tp(now.AddDate(0, 0, 2)), nil),
		mkTask("third", tp(now.AddDate(0, 0, 5)), nil),
	}

	groups := Bucketize(tasks, now, "UTC")
	if len(groups) != 1 || groups[0].Bucket != BucketUpcoming {
		t.Fatalf("unexpected grouping: %+v", groups)
	}
	for i, want := range []string{"first", "second", "third"} {
		if groups[0].Tasks[i].ID != want {
			t.Errorf("position %d = %s, want %s (insertion order)", i, groups[0].Tasks[i].ID, want)
		}
	}
}

func TestBucketizeIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tasks := []task.Task{
		mkTask("a", tp(now.Add(-time.Hour)), nil),
		mkTask("b", tp(now.Add(time.Hour)), nil),
		mkTask("c", nil, nil),
	}

	first := Bucketize(tasks, now, "UTC")
	second := Bucketize(tasks, now, "UTC")
	if len(first) != len(second) {
		t.Fatalf("group counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Bucket != second[i].Bucket || len(first[i].Tasks) != len(second[i].Tasks) {
			t.Fatalf("group %d differs between calls", i)
		}
		for j := range first[i].Tasks {
			if first[i].Tasks[j].ID != second[i].Tasks[j].ID {
				t.Errorf("group %d position %d differs: %s vs %s", i, j, first[i].Tasks[j].ID, second[i].Tasks[j].ID)
			}
		}
	}
}

func TestBucketizeNoDoubleMembership(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tasks := []task.Task{
		mkTask("a", tp(now.Add(-time.Hour)), nil),
		mkTask("b", tp(now.Add(time.Hour)), nil),
		mkTask("c", tp(now.AddDate(0, 0, 2)), nil),
		mkTask("d", nil, nil),
		mkTask("e", tp(now), tp(now)),
	}

	seen := make(map[string]int)
	for _, g := range BucketizeWithCompleted(tasks, now, "UTC") {
		for _, tsk := range g.Tasks {
			seen[tsk.ID]++
		}
	}
	if len(seen) != len(tasks) {
		t.Errorf("expected every task classified once, saw %d of %d", len(seen), len(tasks))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("task %s appeared %d times", id, n)
		}
	}
}
