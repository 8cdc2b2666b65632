package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fieldlabs/profile-service/internal/app"
	"github.com/fieldlabs/profile-service/internal/config"
	"github.com/fieldlabs/profile-service/internal/platform/log"
)

func main() {
	// Missing .env is fine; real config comes from the environment.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := log.New(cfg.AppEnv)
	defer func() {
		if err := logger.Sync(); err != nil {
			return
		}
	}()

	if err := app.Run(ctx, cfg, logger); err != nil {
		logger.Error("service exited with error", log.Err(err))
	}

	time.Sleep(100 * time.Millisecond)
}
