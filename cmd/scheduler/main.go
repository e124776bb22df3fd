package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"vocero/internal/scheduler"
	"vocero/platform/config"
	"vocero/platform/logger"
)

// The scheduler binary only enqueues periodic maintenance tasks; the API
// process consumes them against its live conversation store.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	if cfg.RedisURL == "" {
		panic("REDIS_URL is required for the scheduler binary")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sch, err := scheduler.NewScheduler(cfg, log)
	if err != nil {
		log.Error("failed to initialize scheduler", "error", err)
		panic("failed to initialize scheduler: " + err.Error())
	}

	if err := sch.Start(); err != nil {
		log.Error("scheduler failed to start", "error", err)
		panic("scheduler failed to start: " + err.Error())
	}

	<-ctx.Done()
	log.Info("shutdown signal received, stopping scheduler")
	sch.Shutdown()
}
