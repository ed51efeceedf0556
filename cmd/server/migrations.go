package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/coursehub-api/internal/config"
	"github.com/phrazzld/coursehub-api/internal/platform/postgres"
	"github.com/pressly/goose/v3"
)

// migrationTableName is the table goose uses to track applied migrations.
const migrationTableName = "schema_migrations"

var migrationCommands = map[string]func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error{
	"up":      goose.UpContext,
	"down":    goose.DownContext,
	"status":  goose.StatusContext,
	"version": goose.VersionContext,
}

// slogGooseLogger adapts the goose logger interface to slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf logs at error level. It does not exit; the error is returned to
// main instead.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// migrate opens the configured database and runs command against the
// embedded migrations.
func migrate(ctx context.Context, cfg *config.Config, command string, log *slog.Logger) error {
	if _, ok := migrationCommands[command]; !ok {
		return fmt.Errorf("unknown migration command %q", command)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is required to run migrations")
	}

	db, err := openDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database connection", slog.String("error", err.Error()))
		}
	}()

	return runMigrations(ctx, db, command, log)
}

// runMigrations executes a goose command using the migrations embedded in
// the postgres package.
func runMigrations(ctx context.Context, db *sql.DB, command string, log *slog.Logger) error {
	fn, ok := migrationCommands[command]
	if !ok {
		return fmt.Errorf("unknown migration command %q", command)
	}

	goose.SetBaseFS(postgres.Migrations)
	goose.SetTableName(migrationTableName)
	goose.SetLogger(&slogGooseLogger{logger: log.With(slog.String("component", "migrations"))})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	log.Info("running migrations", slog.String("command", command))
	if err := fn(ctx, db, postgres.MigrationsDir); err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}
	log.Info("migrations finished", slog.String("command", command))
	return nil
}
