// Package config loads service configuration from defaults, an optional
// TOML file, and environment variable overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds everything the binaries need at startup.
type Config struct {
	// ListenAddr is the API server bind address.
	ListenAddr string `toml:"listen_addr"`

	// DatabaseURL is the Postgres connection string.
	DatabaseURL string `toml:"database_url"`

	// BotToken is the host chat platform's bot token; it signs dashboard
	// init data and authenticates notification sends.
	BotToken string `toml:"bot_token"`

	// SessionSecret signs session tokens. SessionTTL bounds their life.
	SessionSecret string        `toml:"session_secret"`
	SessionTTL    time.Duration `toml:"-"`
	SessionTTLStr string        `toml:"session_ttl"`

	// DefaultOffset is the UTC offset assumed for deadline strings that
	// carry no zone information, e.g. "+05:00".
	DefaultOffset string `toml:"default_offset"`

	// DefaultTimezone is assigned to users who never picked one.
	DefaultTimezone string `toml:"default_timezone"`

	// DigestTime is the local wall-clock time ("HH:MM") at which each
	// user's daily digest goes out, in that user's timezone.
	DigestTime string `toml:"digest_time"`

	// SweepInterval is how often the reminder daemon polls for due
	// reminders.
	SweepInterval    time.Duration `toml:"-"`
	SweepIntervalStr string        `toml:"sweep_interval"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `toml:"log_level"`
}

// Load builds the configuration: defaults, then the TOML file at path (if
// path is empty, smart-tasker.toml in the working directory is tried), then
// environment variables.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = "smart-tasker.toml"
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	loadFromEnv(cfg)

	if err := finalize(cfg); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ListenAddr:       ":8080",
		SessionTTLStr:    "24h",
		DefaultOffset:    "+05:00",
		DefaultTimezone:  "Asia/Almaty",
		DigestTime:       "07:30",
		SweepIntervalStr: "30s",
		LogLevel:         "info",
	}
}

func loadFromEnv(cfg *Config) {
	setString(&cfg.ListenAddr, "TASKER_LISTEN_ADDR")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.BotToken, "TASKER_BOT_TOKEN")
	setString(&cfg.SessionSecret, "TASKER_SESSION_SECRET")
	setString(&cfg.SessionTTLStr, "TASKER_SESSION_TTL")
	setString(&cfg.DefaultOffset, "TASKER_DEFAULT_OFFSET")
	setString(&cfg.DefaultTimezone, "TASKER_DEFAULT_TIMEZONE")
	setString(&cfg.DigestTime, "TASKER_DIGEST_TIME")
	setString(&cfg.SweepIntervalStr, "TASKER_SWEEP_INTERVAL")
	setString(&cfg.LogLevel, "TASKER_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func finalize(cfg *Config) error {
	ttl, err := time.ParseDuration(cfg.SessionTTLStr)
	if err != nil {
		return fmt.Errorf("session_ttl %q: %w", cfg.SessionTTLStr, err)
	}
	cfg.SessionTTL = ttl

	sweep, err := time.ParseDuration(cfg.SweepIntervalStr)
	if err != nil {
		return fmt.Errorf("sweep_interval %q: %w", cfg.SweepIntervalStr, err)
	}
	cfg.SweepInterval = sweep

	if _, err := parseClock(cfg.DigestTime); err != nil {
		return err
	}
	return nil
}

// DigestClock returns the digest time as minutes past local midnight.
func (c *Config) DigestClock() int {
	min, _ := parseClock(c.DigestTime)
	return min
}

func parseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("digest_time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("digest_time %q: bad hour", s)
	}
	m, err := strconv.Atoi(s[3:])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("digest_time %q: bad minute", s)
	}
	return h*60 + m, nil
}
