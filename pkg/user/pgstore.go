package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed settings store.
type PgStore struct {
	pool      *pgxpool.Pool
	defaultTZ string
}

// NewPgStore creates a PgStore. defaultTZ is assigned to users seen for
// the first time.
func NewPgStore(pool *pgxpool.Pool, defaultTZ string) *PgStore {
	return &PgStore{pool: pool, defaultTZ: defaultTZ}
}

// EnsureTable creates the users table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			user_id    BIGINT PRIMARY KEY,
			timezone   TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`)
	return err
}

// Get returns the user's settings, creating the row on first access.
func (s *PgStore) Get(ctx context.Context, userID int64) (*Settings, error) {
	var st Settings
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, timezone, created_at, updated_at FROM users WHERE user_id = $1`, userID).
		Scan(&st.UserID, &st.Timezone, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.create(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	return &st, nil
}

// SetTimezone updates the user's display timezone.
func (s *PgStore) SetTimezone(ctx context.Context, userID int64, tz string) (*Settings, error) {
	now := time.Now().Truncate(time.Microsecond)
	var st Settings
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (user_id, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO UPDATE SET timezone = $2, updated_at = $3
		RETURNING user_id, timezone, created_at, updated_at`, userID, tz, now).
		Scan(&st.UserID, &st.Timezone, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("set timezone for user %d: %w", userID, err)
	}
	return &st, nil
}

// Timezone returns the user's timezone, falling back to the store default.
func (s *PgStore) Timezone(ctx context.Context, userID int64) (string, error) {
	var tz string
	err := s.pool.QueryRow(ctx, `SELECT timezone FROM users WHERE user_id = $1`, userID).Scan(&tz)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.defaultTZ, nil
	}
	if err != nil {
		return "", fmt.Errorf("timezone for user %d: %w", userID, err)
	}
	return tz, nil
}

func (s *PgStore) create(ctx context.Context, userID int64) (*Settings, error) {
	now := time.Now().Truncate(time.Microsecond)
	st := &Settings{UserID: userID, Timezone: s.defaultTZ, CreatedAt: now, UpdatedAt: now}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (user_id, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO NOTHING`, userID, s.defaultTZ, now)
	if err != nil {
		return nil, fmt.Errorf("create user %d: %w", userID, err)
	}
	return st, nil
}
