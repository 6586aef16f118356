// The remindd binary runs the reminder sweeper and the daily digest.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sabr2007/smart-tasker-bot/internal/config"
	"github.com/sabr2007/smart-tasker-bot/internal/db"
	"github.com/sabr2007/smart-tasker-bot/internal/notify"
	"github.com/sabr2007/smart-tasker-bot/internal/remind"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("connect", "err", err)
	}
	defer pool.Close()

	tasks := task.NewPgStore(pool)
	users := user.NewPgStore(pool, cfg.DefaultTimezone)
	actStore := activity.NewPgStore(pool)

	// The API server creates the tables; wait for them on a cold start.
	for i := 0; i < 30; i++ {
		if _, err = tasks.Count(ctx); err == nil {
			break
		}
		log.Warn("waiting for tables", "attempt", i+1, "err", err)
		time.Sleep(time.Second)
	}
	if err != nil {
		log.Fatal("tables never became ready", "err", err)
	}

	bus := activity.NewBus(actStore)
	notifier := notify.NewBotSender(cfg.BotToken, "")
	sweeper := remind.NewSweeper(tasks, users, bus, notifier, cfg.SweepInterval)
	digest := remind.NewDigest(tasks, users, bus, notifier, cfg.DigestClock())

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		log.Info("shutting down", "signal", sig)
		cancel()
	}()

	log.Info("remindd started")
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		digest.Run(ctx)
	}()
	wg.Wait()
}
