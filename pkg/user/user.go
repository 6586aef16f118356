// Package user holds per-user display settings. Settings only affect how
// instants are shown and bucketized; stored deadlines are never rewritten
// when a timezone changes.
package user

import (
	"context"
	"time"
)

// Settings is what the system knows about a user beyond their tasks.
type Settings struct {
	UserID    int64     `json:"user_id"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CommonTimezones is the list offered by the dashboard's timezone picker.
var CommonTimezones = []string{
	"Asia/Almaty",
	"Asia/Tashkent",
	"Asia/Bishkek",
	"Europe/Moscow",
	"Europe/London",
	"Europe/Paris",
	"Europe/Berlin",
	"America/New_York",
	"America/Los_Angeles",
	"Asia/Tokyo",
	"Asia/Shanghai",
	"Asia/Dubai",
	"Australia/Sydney",
	"Asia/Ho_Chi_Minh",
}

// Store is the contract for settings persistence.
type Store interface {
	// Get returns the user's settings, creating a row with the default
	// timezone on first access.
	Get(ctx context.Context, userID int64) (*Settings, error)

	// SetTimezone updates the user's display timezone.
	SetTimezone(ctx context.Context, userID int64, tz string) (*Settings, error)

	// Timezone returns just the timezone name, with the store default for
	// unknown users.
	Timezone(ctx context.Context, userID int64) (string, error)

	// EnsureTable creates the users table if it doesn't exist.
	EnsureTable(ctx context.Context) error
}
