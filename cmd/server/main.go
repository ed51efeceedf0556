// Package main implements the entry point for the CourseHub enrollment API
// server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/coursehub-api/internal/config"
	"github.com/phrazzld/coursehub-api/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"run a database migration command (up, down, status, version) and exit")
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		slog.Error("coursehub-api exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run loads configuration, sets up logging and then either executes a
// migration command or serves HTTP until SIGINT or SIGTERM.
func run(migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.Bool("auto_approve", cfg.Ledger.AutoApprove),
		slog.Bool("queue_enabled", cfg.Queue.Enabled))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrateCmd != "" {
		return migrate(ctx, cfg, migrateCmd, log)
	}

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.cleanup()

	return app.Run(ctx)
}
