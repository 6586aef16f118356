package task

import (
	"context"
	"time"
)

// Task statuses.
const (
	StatusActive   = "active"
	StatusDone     = "done"
	StatusArchived = "archived"
)

// Recurrence kinds. An empty kind means the task does not repeat.
const (
	RecurDaily   = "daily"
	RecurWeekly  = "weekly"
	RecurMonthly = "monthly"
	RecurCustom  = "custom"
)

// Task is a single user task. DueAt and RemindAt are absolute instants;
// a nil DueAt means the task has no deadline.
type Task struct {
	ID              string     `json:"id"`
	UserID          int64      `json:"user_id"`
	Text            string     `json:"text"`
	Status          string     `json:"status"`
	DueAt           *time.Time `json:"due_at,omitempty"`
	RemindAt        *time.Time `json:"remind_at,omitempty"`
	RemindOffsetMin *int       `json:"remind_offset_min,omitempty"`
	Recurrence      string     `json:"recurrence,omitempty"`
	RecurInterval   int        `json:"recur_interval,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Recurring reports whether completing the task should spawn a next occurrence.
func (t *Task) Recurring() bool {
	return t.Recurrence != "" && t.DueAt != nil
}

// Store is the contract for task persistence.
type Store interface {
	Create(ctx context.Context, t *Task) (*Task, error)
	Get(ctx context.Context, userID int64, id string) (*Task, error)
	Active(ctx context.Context, userID int64) ([]Task, error)
	Update(ctx context.Context, userID int64, id string, updates map[string]any) (*Task, error)
	Complete(ctx context.Context, userID int64, id string) (*Task, error)
	Reopen(ctx context.Context, userID int64, id string) (*Task, error)
	Archive(ctx context.Context, userID int64, id string) (*Task, error)
	Delete(ctx context.Context, userID int64, id string) error
	Archived(ctx context.Context, userID int64, limit int) ([]Task, error)
	CompletedSince(ctx context.Context, userID int64, since time.Time) ([]Task, error)
	ClearArchive(ctx context.Context, userID int64) error
	UsersWithActiveTasks(ctx context.Context) ([]int64, error)
	DueReminders(ctx context.Context, now time.Time) ([]Task, error)
	Count(ctx context.Context) (int, error)
	ActiveCount(ctx context.Context) (int, error)
	EnsureTable(ctx context.Context) error
}
