package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed activity store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the activity table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS activity (
			id         TEXT PRIMARY KEY,
			user_id    BIGINT NOT NULL,
			task_id    TEXT NOT NULL DEFAULT '',
			action     TEXT NOT NULL,
			source     TEXT NOT NULL DEFAULT '',
			detail     JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_activity_user ON activity(user_id, created_at)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_activity_task ON activity(task_id) WHERE task_id != ''`)
	return err
}

// Append records one action.
func (s *PgStore) Append(ctx context.Context, userID int64, taskID, action, source string, detail map[string]any) (*Entry, error) {
	e := &Entry{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		TaskID:    taskID,
		Action:    action,
		Source:    source,
		Detail:    detail,
		CreatedAt: time.Now().Truncate(time.Microsecond),
	}
	if e.Detail == nil {
		e.Detail = map[string]any{}
	}

	detailJSON, err := json.Marshal(e.Detail)
	if err != nil {
		return nil, fmt.Errorf("marshal detail: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO activity (id, user_id, task_id, action, source, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`,
		e.ID, e.UserID, e.TaskID, e.Action, e.Source, string(detailJSON), e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append activity: %w", err)
	}
	return e, nil
}

// Recent returns the user's latest entries, newest first.
func (s *PgStore) Recent(ctx context.Context, userID int64, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, task_id, action, source, detail, created_at
		FROM activity WHERE user_id = $1
		ORDER BY id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	defer rows.Close()
	return scanEntryRows(rows)
}

// ByTask returns entries for one task, newest first.
func (s *PgStore) ByTask(ctx context.Context, userID int64, taskID string, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, task_id, action, source, detail, created_at
		FROM activity WHERE user_id = $1 AND task_id = $2
		ORDER BY id DESC LIMIT $3`, userID, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("activity by task: %w", err)
	}
	defer rows.Close()
	return scanEntryRows(rows)
}

// Since returns entries after a given entry ID, oldest first. UUID v7 IDs
// sort in creation order, which makes this a cheap cursor for SSE
// reconnect catch-up.
func (s *PgStore) Since(ctx context.Context, userID int64, afterID string, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, task_id, action, source, detail, created_at
		FROM activity WHERE user_id = $1 AND id > $2
		ORDER BY id ASC LIMIT $3`, userID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("activity since %s: %w", afterID, err)
	}
	defer rows.Close()
	return scanEntryRows(rows)
}

// Count returns total entry count.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activity`).Scan(&n)
	return n, err
}

func scanEntryRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var detailJSON []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.TaskID, &e.Action, &e.Source, &detailJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(detailJSON, &e.Detail); err != nil {
			e.Detail = map[string]any{}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return entries, nil
}
