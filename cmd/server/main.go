package main

import (
	"context"
	"log/slog"
	"os"

	"case-console/internal/app"
	"case-console/internal/config"
	"case-console/internal/logger"
)

func main() {
	logger.New(os.Stdout, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.New(os.Stdout, cfg.LogLevel)

	application, err := app.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
