package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskColumns = "id, user_id, text, status, due_at, remind_at, remind_offset_min, recurrence, recur_interval, created_at, updated_at, completed_at"

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the tasks table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id                TEXT PRIMARY KEY,
			user_id           BIGINT NOT NULL,
			text              TEXT NOT NULL,
			status            TEXT NOT NULL DEFAULT 'active',
			due_at            TIMESTAMPTZ,
			remind_at         TIMESTAMPTZ,
			remind_offset_min INTEGER,
			recurrence        TEXT NOT NULL DEFAULT '',
			recur_interval    INTEGER NOT NULL DEFAULT 0,
			created_at        TIMESTAMPTZ DEFAULT NOW(),
			updated_at        TIMESTAMPTZ DEFAULT NOW(),
			completed_at      TIMESTAMPTZ
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_user_status ON tasks(user_id, status)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_remind ON tasks(remind_at) WHERE remind_at IS NOT NULL AND status = 'active'`)
	return err
}

// Create inserts a new task.
func (s *PgStore) Create(ctx context.Context, t *Task) (*Task, error) {
	t.ID = uuid.Must(uuid.NewV7()).String()
	now := time.Now().Truncate(time.Microsecond)
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = StatusActive
	}
	// A deadline implies an at-deadline reminder unless the caller set one.
	if t.DueAt != nil && t.RemindAt == nil && t.RemindOffsetMin == nil {
		due := *t.DueAt
		zero := 0
		t.RemindAt = &due
		t.RemindOffsetMin = &zero
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.UserID, t.Text, t.Status, t.DueAt, t.RemindAt, t.RemindOffsetMin,
		t.Recurrence, t.RecurInterval, t.CreatedAt, t.UpdatedAt, t.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// Get retrieves a single task scoped to its owner.
func (s *PgStore) Get(ctx context.Context, userID int64, id string) (*Task, error) {
	var t Task
	err := s.pool.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`, id, userID).
		Scan(taskDest(&t)...)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return &t, nil
}

// Active returns the user's active tasks in creation order.
func (s *PgStore) Active(ctx context.Context, userID int64) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = $1 AND status = 'active'
		ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list active tasks: %w", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// Update modifies task fields. Supported keys: text, due_at, remind_at,
// remind_offset_min, recurrence, recur_interval. Nil values write NULL.
func (s *PgStore) Update(ctx context.Context, userID int64, id string, updates map[string]any) (*Task, error) {
	now := time.Now().Truncate(time.Microsecond)

	setClauses := "updated_at = $1"
	args := []any{now}
	argIdx := 2

	for _, k := range []string{"text", "due_at", "remind_at", "remind_offset_min", "recurrence", "recur_interval"} {
		v, ok := updates[k]
		if !ok {
			continue
		}
		setClauses += fmt.Sprintf(", %s = $%d", k, argIdx)
		args = append(args, v)
		argIdx++
	}

	args = append(args, id, userID)
	query := fmt.Sprintf(
		"UPDATE tasks SET %s WHERE id = $%d AND user_id = $%d RETURNING %s",
		setClauses, argIdx, argIdx+1, taskColumns)

	var t Task
	if err := s.pool.QueryRow(ctx, query, args...).Scan(taskDest(&t)...); err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	return &t, nil
}

// Complete marks a task done. Reminders stop with the task.
func (s *PgStore) Complete(ctx context.Context, userID int64, id string) (*Task, error) {
	now := time.Now().Truncate(time.Microsecond)
	var t Task
	err := s.pool.QueryRow(ctx, `
		UPDATE tasks SET status = 'done', updated_at = $1, completed_at = $1, remind_at = NULL
		WHERE id = $2 AND user_id = $3
		RETURNING `+taskColumns, now, id, userID).
		Scan(taskDest(&t)...)
	if err != nil {
		return nil, fmt.Errorf("complete task %s: %w", id, err)
	}
	return &t, nil
}

// Reopen returns a task to the active state and clears completed_at.
func (s *PgStore) Reopen(ctx context.Context, userID int64, id string) (*Task, error) {
	now := time.Now().Truncate(time.Microsecond)
	var t Task
	err := s.pool.QueryRow(ctx, `
		UPDATE tasks SET status = 'active', updated_at = $1, completed_at = NULL
		WHERE id = $2 AND user_id = $3
		RETURNING `+taskColumns, now, id, userID).
		Scan(taskDest(&t)...)
	if err != nil {
		return nil, fmt.Errorf("reopen task %s: %w", id, err)
	}
	return &t, nil
}

// Archive marks a task archived.
func (s *PgStore) Archive(ctx context.Context, userID int64, id string) (*Task, error) {
	now := time.Now().Truncate(time.Microsecond)
	var t Task
	err := s.pool.QueryRow(ctx, `
		UPDATE tasks SET status = 'archived', updated_at = $1, remind_at = NULL
		WHERE id = $2 AND user_id = $3
		RETURNING `+taskColumns, now, id, userID).
		Scan(taskDest(&t)...)
	if err != nil {
		return nil, fmt.Errorf("archive task %s: %w", id, err)
	}
	return &t, nil
}

// Delete removes a task permanently.
func (s *PgStore) Delete(ctx context.Context, userID int64, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete task %s: not found", id)
	}
	return nil
}

// Archived returns the user's done and archived tasks, most recently completed first.
func (s *PgStore) Archived(ctx context.Context, userID int64, limit int) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = $1 AND status IN ('done', 'archived')
		ORDER BY completed_at DESC NULLS LAST, updated_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list archived tasks: %w", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// CompletedSince returns tasks completed at or after the given instant.
func (s *PgStore) CompletedSince(ctx context.Context, userID int64, since time.Time) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = $1 AND completed_at IS NOT NULL AND completed_at >= $2
		ORDER BY completed_at DESC`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list completed tasks: %w", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// ClearArchive removes the user's done and archived tasks.
func (s *PgStore) ClearArchive(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE user_id = $1 AND status IN ('done', 'archived')`, userID)
	if err != nil {
		return fmt.Errorf("clear archive: %w", err)
	}
	return nil
}

// UsersWithActiveTasks returns the distinct owners of active tasks, for the daily digest.
func (s *PgStore) UsersWithActiveTasks(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT user_id FROM tasks WHERE status = 'active' ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("users with active tasks: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return ids, nil
}

// DueReminders returns active tasks whose reminder instant has passed,
// oldest reminder first.
func (s *PgStore) DueReminders(ctx context.Context, now time.Time) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE status = 'active' AND remind_at IS NOT NULL AND remind_at <= $1
		ORDER BY remind_at ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("due reminders: %w", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// Count returns total task count.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}

// ActiveCount returns count of active tasks.
func (s *PgStore) ActiveCount(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE status = 'active'`).Scan(&n)
	return n, err
}

func taskDest(t *Task) []any {
	return []any{
		&t.ID, &t.UserID, &t.Text, &t.Status, &t.DueAt, &t.RemindAt, &t.RemindOffsetMin,
		&t.Recurrence, &t.RecurInterval, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
	}
}

func scanTaskRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Task, error) {
	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(taskDest(&t)...); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}
