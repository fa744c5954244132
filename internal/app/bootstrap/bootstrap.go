package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	distributionengine "remnant/contexts/recovery-core/distribution-engine"
	"remnant/contexts/recovery-core/distribution-engine/adapters/memory"
	postgresadapter "remnant/contexts/recovery-core/distribution-engine/adapters/postgres"
	"remnant/contexts/recovery-core/distribution-engine/adapters/pricefeed"
	"remnant/contexts/recovery-core/distribution-engine/application/commands"
	workerapp "remnant/contexts/recovery-core/distribution-engine/application/workers"
	"remnant/contexts/recovery-core/distribution-engine/ports"
	"remnant/internal/platform/config"
	"remnant/internal/platform/db"
	"remnant/internal/platform/httpserver"
	"remnant/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	outboxRelay  workerapp.OutboxRelay
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.VaultConfigPath) == "" {
		return nil, errors.New("VAULT_CONFIG_PATH is required")
	}
	vaultConfig, err := loadVaultConfig(cfg.VaultConfigPath)
	if err != nil {
		return nil, err
	}

	// The claim-record ledger and fund custody are external systems. Until
	// their integrations land the in-process store stands in for them, the
	// same way the messaging layer stands in for an external broker.
	store := memory.NewStore(memory.Seed{})

	deps := distributionengine.Dependencies{
		Config: vaultConfig,
		Params: engineParams(cfg),
		Repo:   store,
		Ledger: store,
		Funds:  store,
		Assets: store.Assets(),
		Prices: priceSource(cfg),
		Clock:  store,
		IDGen:  store,
		Outbox: store,
		Logger: logger,
	}

	var pg *db.Postgres
	if strings.TrimSpace(cfg.PostgresDSN) != "" {
		pg, err = db.Connect(dbOptions(cfg))
		if err != nil {
			return nil, err
		}
		repo := postgresadapter.NewRepository(pg.DB, vaultConfig.VaultID, logger)
		if err := repo.AutoMigrate(); err != nil {
			_ = pg.Close()
			return nil, err
		}
		deps.Repo = repo
		deps.Outbox = repo
		deps.Clock = postgresadapter.SystemClock{}
		deps.IDGen = postgresadapter.UUIDGenerator{}
	}

	module := distributionengine.NewModule(deps)
	module.Store = store

	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(dbOptions(cfg))
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, "", logger)
	return &WorkerApp{
		postgres: pg,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.outboxRelay.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func engineParams(cfg config.Config) commands.Params {
	params := commands.DefaultParams()
	params.ObjectionWindow = cfg.ObjectionWindow
	params.ChallengeWindow = cfg.ChallengeWindow
	params.VetoCooldown = cfg.VetoCooldown
	params.UnclaimedDeadline = cfg.UnclaimedDeadline
	params.VetoThresholdBps = cfg.VetoThresholdBps
	params.QuorumBps = cfg.QuorumBps
	params.ExecutionFeeBps = cfg.ExecutionFeeBps
	if minBond, ok := new(big.Int).SetString(cfg.MinBond, 10); ok && minBond.Sign() > 0 {
		params.MinBond = minBond
	}
	return params
}

func dbOptions(cfg config.Config) db.Options {
	return db.Options{
		DSN:             cfg.PostgresDSN,
		MaxOpenConns:    int(cfg.DBMaxOpenConns),
		MaxIdleConns:    int(cfg.DBMaxIdleConns),
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}
}

func priceSource(cfg config.Config) ports.PriceSource {
	if strings.TrimSpace(cfg.PriceFeedURL) == "" {
		return nil
	}
	return pricefeed.HTTPSource{
		BaseURL: strings.TrimRight(cfg.PriceFeedURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
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
