package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	votationengine "quorum/contexts/meeting-governance/votation-engine"
	postgresadapter "quorum/contexts/meeting-governance/votation-engine/adapters/postgres"
	"quorum/internal/platform/config"
	"quorum/internal/platform/db"
	"quorum/internal/platform/httpserver"
	"quorum/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	database *db.Database
	worker   *WorkerApp
	logger   *slog.Logger
}

type WorkerApp struct {
	database     *db.Database
	module       votationengine.Module
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	database, module, err := buildModule(cfg, logger)
	if err != nil {
		return nil, err
	}

	app := &APIApp{
		server:   httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort)),
		database: database,
		logger:   logger,
	}
	if cfg.EmbedWorker {
		app.worker = &WorkerApp{
			module:       module,
			pollInterval: cfg.OutboxPollInterval,
			logger:       logger,
		}
	}
	return app, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	database, module, err := buildModule(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &WorkerApp{
		database:     database,
		module:       module,
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}, nil
}

func buildModule(cfg config.Config, logger *slog.Logger) (*db.Database, votationengine.Module, error) {
	if cfg.DatabaseDriver == config.DriverPostgres && strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, votationengine.Module{}, errors.New("POSTGRES_DSN is required")
	}

	database, err := db.Open(cfg)
	if err != nil {
		return nil, votationengine.Module{}, err
	}
	if cfg.AutoMigrate {
		if err := postgresadapter.Migrate(database.DB); err != nil {
			_ = database.Close()
			return nil, votationengine.Module{}, err
		}
	}

	bus := messaging.NewBus(cfg.BroadcastBuffer, logger)
	repo := postgresadapter.NewRepository(database.DB, logger)
	module := votationengine.NewModule(votationengine.Dependencies{
		Store:                  repo,
		Outbox:                 repo,
		Publisher:              bus,
		Subscriber:             bus,
		Clock:                  postgresadapter.SystemClock{},
		IDGen:                  postgresadapter.UUIDGenerator{},
		CastRetryLimit:         cfg.CastRetryLimit,
		ManualBallotLimit:      cfg.ManualBallotLimit,
		OutboxBatchSize:        cfg.OutboxBatchSize,
		EventDedupTTL:          cfg.EventDedupTTL,
		DisableCatalogConsumer: !cfg.EnableCatalogConsumer,
		Logger:                 logger,
	})
	return database, module, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"embedded_worker", a.worker != nil,
		)
	}
	if a.worker != nil {
		go func() {
			if err := a.worker.Run(ctx); err != nil {
				a.logger.Error("embedded worker stopped",
					"event", "bootstrap_embedded_worker_stopped",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
		}()
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.database != nil {
		return a.database.Close()
	}
	return nil
}

// Run starts the catalog consumer and relays the outbox every poll interval
// until ctx ends. Relay failures are logged and retried on the next tick.
func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.module.Catalog.Start(ctx); err != nil {
		return err
	}

	interval := w.pollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", interval.String(),
	)

	for {
		if _, err := w.module.Relay.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("outbox relay cycle failed",
				"event", "bootstrap_outbox_relay_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.database != nil {
		return w.database.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
