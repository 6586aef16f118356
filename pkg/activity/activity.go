// Package activity is the append-only log of task actions. Every mutation
// that reaches the store leaves an entry here, which also feeds the
// dashboard's live stream.
package activity

import (
	"context"
	"time"
)

// Well-known actions.
const (
	TaskCreated     = "task.created"
	TaskUpdated     = "task.updated"
	TaskRescheduled = "task.rescheduled"
	TaskCompleted   = "task.completed"
	TaskReopened    = "task.reopened"
	TaskArchived    = "task.archived"
	TaskDeleted     = "task.deleted"
	ReminderSent    = "reminder.sent"
	DigestSent      = "digest.sent"
)

// Entry is one recorded action.
type Entry struct {
	ID        string         `json:"id"` // UUID v7 (time-ordered)
	UserID    int64          `json:"user_id"`
	TaskID    string         `json:"task_id,omitempty"`
	Action    string         `json:"action"`
	Source    string         `json:"source"` // "api", "remindd", "bot"
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store is the contract for activity persistence.
type Store interface {
	Append(ctx context.Context, userID int64, taskID, action, source string, detail map[string]any) (*Entry, error)
	Recent(ctx context.Context, userID int64, limit int) ([]Entry, error)
	ByTask(ctx context.Context, userID int64, taskID string, limit int) ([]Entry, error)
	Since(ctx context.Context, userID int64, afterID string, limit int) ([]Entry, error)
	Count(ctx context.Context) (int, error)
	EnsureTable(ctx context.Context) error
}
