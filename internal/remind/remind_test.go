package remind

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sabr2007/smart-tasker-bot/pkg/activity"
	"github.com/sabr2007/smart-tasker-bot/pkg/task"
	"github.com/sabr2007/smart-tasker-bot/pkg/user"
)

// --- fakes ---

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

type sentMessage struct {
	userID int64
	text   string
}

func (n *fakeNotifier) Send(_ context.Context, userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("delivery failed")
	}
	n.sent = append(n.sent, sentMessage{userID, text})
	return nil
}

func (n *fakeNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

type memTaskStore struct {
	tasks map[string]*task.Task
}

func newMemTaskStore(tasks ...*task.Task) *memTaskStore {
	s := &memTaskStore{tasks: make(map[string]*task.Task)}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return s
}

func (s *memTaskStore) Create(_ context.Context, t *task.Task) (*task.Task, error) {
	s.tasks[t.ID] = t
	return t, nil
}

func (s *memTaskStore) Get(_ context.Context, userID int64, id string) (*task.Task, error) {
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, fmt.Errorf("task %s not found", id)
	}
	cp := *t
	return &cp, nil
}

func (s *memTaskStore) Active(_ context.Context, userID int64) ([]task.Task, error) {
	var out []task.Task
	for _, t := range s.tasks {
		if t.UserID == userID && t.Status == task.StatusActive {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memTaskStore) Update(_ context.Context, userID int64, id string, updates map[string]any) (*task.Task, error) {
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, fmt.Errorf("task %s not found", id)
	}
	if v, ok := updates["remind_at"]; ok {
		if v == nil {
			t.RemindAt = nil
		} else {
			at := v.(time.Time)
			t.RemindAt = &at
		}
	}
	cp := *t
	return &cp, nil
}

func (s *memTaskStore) Complete(_ context.Context, _ int64, id string) (*task.Task, error) {
	return s.tasks[id], nil
}
func (s *memTaskStore) Reopen(_ context.Context, _ int64, id string) (*task.Task, error) {
	return s.tasks[id], nil
}
func (s *memTaskStore) Archive(_ context.Context, _ int64, id string) (*task.Task, error) {
	return s.tasks[id], nil
}
func (s *memTaskStore) Delete(context.Context, int64, string) error { return nil }
func (s *memTaskStore) Archived(context.Context, int64, int) ([]task.Task, error) {
	return nil, nil
}
func (s *memTaskStore) CompletedSince(context.Context, int64, time.Time) ([]task.Task, error) {
	return nil, nil
}
func (s *memTaskStore) ClearArchive(context.Context, int64) error { return nil }

func (s *memTaskStore) UsersWithActiveTasks(context.Context) ([]int64, error) {
	seen := map[int64]bool{}
	var out []int64
	for _, t := range s.tasks {
		if t.Status == task.StatusActive && !seen[t.UserID] {
			seen[t.UserID] = true
			out = append(out, t.UserID)
		}
	}
	return out, nil
}

func (s *memTaskStore) DueReminders(_ context.Context, now time.Time) ([]task.Task, error) {
	var out []task.Task
	for _, t := range s.tasks {
		if t.Status == task.StatusActive && t.RemindAt != nil && !t.RemindAt.After(now) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memTaskStore) Count(context.Context) (int, error)       { return len(s.tasks), nil }
func (s *memTaskStore) ActiveCount(context.Context) (int, error) { return len(s.tasks), nil }
func (s *memTaskStore) EnsureTable(context.Context) error        { return nil }

type memUserStore struct {
	timezones map[int64]string
}

func (s *memUserStore) Get(_ context.Context, userID int64) (*user.Settings, error) {
	return &user.Settings{UserID: userID, Timezone: s.timezones[userID]}, nil
}
func (s *memUserStore) SetTimezone(_ context.Context, userID int64, tz string) (*user.Settings, error) {
	s.timezones[userID] = tz
	return &user.Settings{UserID: userID, Timezone: tz}, nil
}
func (s *memUserStore) Timezone(_ context.Context, userID int64) (string, error) {
	return s.timezones[userID], nil
}
func (s *memUserStore) EnsureTable(context.Context) error { return nil }

type memActivityStore struct {
	entries []activity.Entry
}

func (s *memActivityStore) Append(_ context.Context, userID int64, taskID, action, source string, detail map[string]any) (*activity.Entry, error) {
	e := activity.Entry{ID: fmt.Sprintf("e-%d", len(s.entries)+1), UserID: userID, TaskID: taskID, Action: action, Source: source, Detail: detail}
	s.entries = append(s.entries, e)
	return &e, nil
}
func (s *memActivityStore) Recent(context.Context, int64, int) ([]activity.Entry, error) {
	return nil, nil
}
func (s *memActivityStore) ByTask(context.Context, int64, string, int) ([]activity.Entry, error) {
	return nil, nil
}
func (s *memActivityStore) Since(context.Context, int64, string, int) ([]activity.Entry, error) {
	return nil, nil
}
func (s *memActivityStore) Count(context.Context) (int, error) { return len(s.entries), nil }
func (s *memActivityStore) EnsureTable(context.Context) error  { return nil }

func tp(t time.Time) *time.Time { return &t }

// --- sweeper tests ---

func TestSweepFiresDueReminder(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	due := now.Add(30 * time.Minute)
	store := newMemTaskStore(&task.Task{
		ID: "t1", UserID: 7, Text: "submit report", Status: task.StatusActive,
		DueAt: tp(due), RemindAt: tp(now.Add(-time.Minute)),
	})
	notifier := &fakeNotifier{}
	actStore := &memActivityStore{}
	sw := NewSweeper(store, &memUserStore{timezones: map[int64]string{7: "UTC"}}, activity.NewBus(actStore), notifier, time.Minute)

	sw.sweep(context.Background(), now)

	msgs := notifier.messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(msgs))
	}
	if msgs[0].userID != 7 {
		t.Errorf("sent to %d, want 7", msgs[0].userID)
	}
	if !strings.Contains(msgs[0].text, "submit report") {
		t.Errorf("message %q missing task text", msgs[0].text)
	}
	if store.tasks["t1"].RemindAt != nil {
		t.Error("fired reminder not cleared")
	}
	if len(actStore.entries) != 1 || actStore.entries[0].Action != activity.ReminderSent {
		t.Errorf("activity = %+v, want one reminder.sent", actStore.entries)
	}
}

func TestSweepSkipsFutureReminder(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store := newMemTaskStore(&task.Task{
		ID: "t1", UserID: 7, Text: "later", Status: task.StatusActive,
		RemindAt: tp(now.Add(time.Hour)),
	})
	notifier := &fakeNotifier{}
	sw := NewSweeper(store, &memUserStore{timezones: map[int64]string{}}, activity.NewBus(&memActivityStore{}), notifier, time.Minute)

	sw.sweep(context.Background(), now)

	if len(notifier.messages()) != 0 {
		t.Error("future reminder fired early")
	}
	if store.tasks["t1"].RemindAt == nil {
		t.Error("unfired reminder was cleared")
	}
}

func TestSweepDropsRescheduledReminder(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	stale := task.Task{
		ID: "t1", UserID: 7, Text: "moved", Status: task.StatusActive,
		RemindAt: tp(now.Add(-time.Minute)),
	}
	// In the store the task has already been rescheduled to a later time.
	store := newMemTaskStore(&task.Task{
		ID: "t1", UserID: 7, Text: "moved", Status: task.StatusActive,
		RemindAt: tp(now.Add(2 * time.Hour)),
	})
	notifier := &fakeNotifier{}
	sw := NewSweeper(store, &memUserStore{timezones: map[int64]string{}}, activity.NewBus(&memActivityStore{}), notifier, time.Minute)

	sw.fire(context.Background(), &stale)

	if len(notifier.messages()) != 0 {
		t.Error("stale reminder fired after reschedule")
	}
	if store.tasks["t1"].RemindAt == nil {
		t.Error("rescheduled reminder was cleared")
	}
}

func TestSweepKeepsReminderOnDeliveryFailure(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store := newMemTaskStore(&task.Task{
		ID: "t1", UserID: 7, Text: "flaky", Status: task.StatusActive,
		RemindAt: tp(now.Add(-time.Minute)),
	})
	notifier := &fakeNotifier{fail: true}
	sw := NewSweeper(store, &memUserStore{timezones: map[int64]string{}}, activity.NewBus(&memActivityStore{}), notifier, time.Minute)

	sw.sweep(context.Background(), now)

	if store.tasks["t1"].RemindAt == nil {
		t.Error("reminder cleared although delivery failed; retry is impossible")
	}
}

func TestSweepIgnoresCompletedTask(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store := newMemTaskStore(&task.Task{
		ID: "t1", UserID: 7, Text: "done already", Status: task.StatusDone,
		RemindAt: tp(now.Add(-time.Minute)),
	})
	notifier := &fakeNotifier{}
	sw := NewSweeper(store, &memUserStore{timezones: map[int64]string{}}, activity.NewBus(&memActivityStore{}), notifier, time.Minute)

	sw.sweep(context.Background(), now)

	if len(notifier.messages()) != 0 {
		t.Error("reminder fired for a completed task")
	}
}

// --- digest tests ---

func TestDigestFiresAtLocalMorning(t *testing.T) {
	// 07:30 digest. At 02:31 UTC it is 07:31 in Almaty (+05:00) but
	// 02:31 in London, so only the Almaty user gets the digest.
	now := time.Date(2026, 6, 10, 2, 31, 0, 0, time.UTC)
	store := newMemTaskStore(
		&task.Task{ID: "t1", UserID: 1, Text: "almaty task", Status: task.StatusActive},
		&task.Task{ID: "t2", UserID: 2, Text: "london task", Status: task.StatusActive},
	)
	users := &memUserStore{timezones: map[int64]string{1: "Asia/Almaty", 2: "Europe/London"}}
	notifier := &fakeNotifier{}
	d := NewDigest(store, users, activity.NewBus(&memActivityStore{}), notifier, 7*60+30)

	d.tick(context.Background(), now)

	msgs := notifier.messages()
	if len(msgs) != 1 || msgs[0].userID != 1 {
		t.Fatalf("messages = %+v, want exactly one to user 1", msgs)
	}
	if !strings.Contains(msgs[0].text, "almaty task") {
		t.Errorf("digest %q missing task text", msgs[0].text)
	}
}

func TestDigestSentOncePerLocalDay(t *testing.T) {
	now := time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)
	store := newMemTaskStore(
		&task.Task{ID: "t1", UserID: 1, Text: "daily", Status: task.StatusActive},
	)
	users := &memUserStore{timezones: map[int64]string{1: "UTC"}}
	notifier := &fakeNotifier{}
	d := NewDigest(store, users, activity.NewBus(&memActivityStore{}), notifier, 7*60+30)

	d.tick(context.Background(), now)
	d.tick(context.Background(), now.Add(time.Minute))
	d.tick(context.Background(), now.Add(2*time.Hour))

	if got := len(notifier.messages()); got != 1 {
		t.Fatalf("sent %d digests in one day, want 1", got)
	}

	// Next local day fires again.
	d.tick(context.Background(), now.AddDate(0, 0, 1))
	if got := len(notifier.messages()); got != 2 {
		t.Errorf("sent %d digests across two days, want 2", got)
	}
}

func TestDigestRetriesAfterDeliveryFailure(t *testing.T) {
	now := time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)
	store := newMemTaskStore(
		&task.Task{ID: "t1", UserID: 1, Text: "daily", Status: task.StatusActive},
	)
	users := &memUserStore{timezones: map[int64]string{1: "UTC"}}
	notifier := &fakeNotifier{fail: true}
	d := NewDigest(store, users, activity.NewBus(&memActivityStore{}), notifier, 7*60+30)

	d.tick(context.Background(), now)
	if len(notifier.messages()) != 0 {
		t.Fatal("failed delivery recorded a message")
	}

	notifier.fail = false
	d.tick(context.Background(), now.Add(time.Minute))
	if got := len(notifier.messages()); got != 1 {
		t.Errorf("sent %d digests after recovery, want 1", got)
	}
}

func TestDigestGroupsByBucket(t *testing.T) {
	now := time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)
	store := newMemTaskStore(
		&task.Task{ID: "t1", UserID: 1, Text: "late one", Status: task.StatusActive, DueAt: tp(now.Add(-24 * time.Hour))},
		&task.Task{ID: "t2", UserID: 1, Text: "today one", Status: task.StatusActive, DueAt: tp(now.Add(10 * time.Hour))},
		&task.Task{ID: "t3", UserID: 1, Text: "someday one", Status: task.StatusActive},
	)
	users := &memUserStore{timezones: map[int64]string{1: "UTC"}}
	notifier := &fakeNotifier{}
	d := NewDigest(store, users, activity.NewBus(&memActivityStore{}), notifier, 7*60+30)

	d.tick(context.Background(), now)

	msgs := notifier.messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d digests, want 1", len(msgs))
	}
	text := msgs[0].text
	for _, want := range []string{"Overdue", "Due today", "No deadline", "late one", "today one", "someday one"} {
		if !strings.Contains(text, want) {
			t.Errorf("digest missing %q:\n%s", want, text)
		}
	}
	if idxOverdue, idxToday := strings.Index(text, "Overdue"), strings.Index(text, "Due today"); idxOverdue > idxToday {
		t.Error("overdue section should precede due-today")
	}
}
