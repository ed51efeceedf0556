package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/phrazzld/coursehub-api/internal/api"
	"github.com/phrazzld/coursehub-api/internal/config"
	"github.com/phrazzld/coursehub-api/internal/events"
	"github.com/phrazzld/coursehub-api/internal/observability"
	"github.com/phrazzld/coursehub-api/internal/platform/memory"
	"github.com/phrazzld/coursehub-api/internal/platform/postgres"
	"github.com/phrazzld/coursehub-api/internal/platform/queue"
	"github.com/phrazzld/coursehub-api/internal/service/auth"
	"github.com/phrazzld/coursehub-api/internal/service/enrollment"
	"github.com/phrazzld/coursehub-api/internal/store"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// Connections. db is nil with the memory driver; redis and taskClient
	// are nil unless the queue is enabled.
	db         *sql.DB
	redis      *redis.Client
	taskClient *asynq.Client

	unitOfWork store.UnitOfWork
	metrics    *observability.Metrics
	emitter    *events.InMemoryEventEmitter

	ledger   enrollment.Ledger
	query    enrollment.QueryService
	verifier auth.TokenVerifier

	// checkers are probed by /ready.
	checkers map[string]api.Checker
}

// newApplication creates a new application instance with all dependencies
// initialized. On error every connection opened so far is closed.
func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger) (*application, error) {
	app := &application{
		config:   cfg,
		logger:   log,
		metrics:  observability.NewMetrics(),
		emitter:  events.NewInMemoryEventEmitter(log),
		checkers: make(map[string]api.Checker),
	}
	if err := app.init(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	log.Info("application initialized",
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.Bool("auto_approve", cfg.Ledger.AutoApprove),
		slog.Int("max_retries", cfg.Ledger.MaxRetries))
	return app, nil
}

func (app *application) init(ctx context.Context) error {
	cfg := app.config

	app.metrics.Registerer().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := app.setupStorage(ctx); err != nil {
		return err
	}

	app.emitter.RegisterHandler(events.NewLoggingHandler(app.logger))
	app.emitter.RegisterHandler(app.metrics)
	if cfg.Queue.Enabled {
		if err := app.setupQueue(ctx); err != nil {
			return err
		}
	}

	var err error
	app.ledger, err = enrollment.NewLedger(
		app.unitOfWork,
		enrollment.Config{
			AutoApprove:    cfg.Ledger.AutoApprove,
			MaxRetries:     cfg.Ledger.MaxRetries,
			RetryBaseDelay: cfg.Ledger.RetryBaseDelay,
		},
		app.logger,
		enrollment.WithEmitter(app.emitter),
		enrollment.WithRetryObserver(app.metrics),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize enrollment ledger: %w", err)
	}
	app.query = enrollment.NewQueryService(app.unitOfWork.Stores(), app.logger)

	app.verifier, err = auth.NewTokenVerifier(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize token verifier: %w", err)
	}
	return nil
}

// setupStorage opens the configured backing store.
func (app *application) setupStorage(ctx context.Context) error {
	switch app.config.Storage.Driver {
	case "postgres":
		db, err := openDatabase(ctx, app.config.Database, app.logger)
		if err != nil {
			return err
		}
		app.db = db
		app.unitOfWork = postgres.NewUnitOfWork(db, app.logger)
		app.checkers["database"] = db.PingContext

	case "memory":
		mem := memory.New(app.logger)
		if path := app.config.Storage.SeedFile; path != "" {
			if err := mem.LoadSeedFile(path); err != nil {
				return fmt.Errorf("failed to load seed file %s: %w", path, err)
			}
			app.logger.Info("memory store seeded", slog.String("seed_file", path))
		} else {
			app.logger.Warn("memory store started without a seed file; every enrollment will fail until data is loaded")
		}
		app.unitOfWork = mem

	default:
		return fmt.Errorf("unsupported storage driver %q", app.config.Storage.Driver)
	}
	return nil
}

// setupQueue connects to Redis and forwards committed enrollment events to
// the task queue.
func (app *application) setupQueue(ctx context.Context) error {
	rdb, err := queue.NewRedisClient(ctx, app.config.Queue.RedisAddr)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.redis = rdb
	app.checkers["redis"] = func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}

	app.taskClient = queue.NewClient(app.config.Queue.RedisAddr)
	app.emitter.RegisterHandler(queue.NewPublisher(app.taskClient, app.config.Queue.Name, app.logger))

	app.logger.Info("enrollment events will be published",
		slog.String("queue", app.config.Queue.Name))
	return nil
}

// cleanup releases all resources held by the application.
func (app *application) cleanup() {
	if app.taskClient != nil {
		if err := app.taskClient.Close(); err != nil {
			app.logger.Error("failed to close task queue client", slog.String("error", err.Error()))
		}
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("failed to close redis client", slog.String("error", err.Error()))
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", slog.String("error", err.Error()))
		}
	}
}
