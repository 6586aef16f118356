// The server binary serves the task API.
package main

import (
	"context"
	"flag"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/sabr2007/smart-tasker-bot/internal/api"
	"github.com/sabr2007/smart-tasker-bot/internal/auth"
	"github.com/sabr2007/smart-tasker-bot/internal/config"
	"github.com/sabr2007/smart-tasker-bot/internal/db"
	"github.com/sabr2007/smart-tasker-bot/pkg/activity"
	"github.com/sabr2007/smart-tasker-bot/pkg/task"
	"github.com/sabr2007/smart-tasker-bot/pkg/user"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("load config", "err", err)
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.SessionSecret == "" {
		log.Fatal("session_secret is required")
	}

	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("connect", "err", err)
	}
	defer pool.Close()

	tasks := task.NewPgStore(pool)
	users := user.NewPgStore(pool, cfg.DefaultTimezone)
	actStore := activity.NewPgStore(pool)

	if err := tasks.EnsureTable(ctx); err != nil {
		log.Fatal("ensure tasks table", "err", err)
	}
	if err := users.EnsureTable(ctx); err != nil {
		log.Fatal("ensure users table", "err", err)
	}
	if err := actStore.EnsureTable(ctx); err != nil {
		log.Fatal("ensure activity table", "err", err)
	}

	sessions := auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
	server := api.New(tasks, users, activity.NewBus(actStore), sessions, cfg.BotToken, cfg.DefaultOffset)

	log.Info("listening", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, server); err != nil {
		log.Fatal("listen", "err", err)
	}
}
