package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"chatsino/internal/app"
	"chatsino/internal/common"
	"chatsino/internal/config"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := app.NewLogger(cfg)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to start: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Seed(ctx); err != nil {
		a.Close()
		logger.Fatalf("Failed to seed clients: %v", err)
	}

	code := 1
	common.WithRecover(logger, func() {
		if err := a.Run(ctx); err != nil {
			logger.WithError(err).Error("server stopped with error")
			return
		}
		code = 0
	}, "server panicked")

	// Run shuts down on its own; this covers a panic that skipped it.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	a.Shutdown(shutdownCtx)
	cancel()
	stop()
	os.Exit(code)
}
