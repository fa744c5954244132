package distributionengine

import (
	"log/slog"

	httpadapter "remnant/contexts/recovery-core/distribution-engine/adapters/http"
	"remnant/contexts/recovery-core/distribution-engine/adapters/memory"
	"remnant/contexts/recovery-core/distribution-engine/application/commands"
	"remnant/contexts/recovery-core/distribution-engine/application/queries"
	"remnant/contexts/recovery-core/distribution-engine/domain/entities"
	"remnant/contexts/recovery-core/distribution-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Config entities.VaultConfig
	Params commands.Params
	Repo   ports.VaultRepository
	Ledger ports.ClaimRecordLedger
	Funds  ports.RecoveryFunds
	Assets ports.UnderlyingAssets
	Prices ports.PriceSource
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Outbox ports.OutboxWriter
	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	commandUseCase := commands.UseCase{
		Config: deps.Config,
		Params: deps.Params,
		Repo:   deps.Repo,
		Ledger: deps.Ledger,
		Funds:  deps.Funds,
		Assets: deps.Assets,
		Prices: deps.Prices,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Outbox: deps.Outbox,
		Logger: deps.Logger,
	}
	queryUseCase := queries.UseCase{
		Config: deps.Config,
		Repo:   deps.Repo,
		Ledger: deps.Ledger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Commands: commandUseCase,
			Queries:  queryUseCase,
			Logger:   deps.Logger,
		},
	}
}

func NewInMemoryModule(config entities.VaultConfig, seed memory.Seed, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Config: config,
		Params: commands.DefaultParams(),
		Repo:   store,
		Ledger: store,
		Funds:  store,
		Assets: store.Assets(),
		Clock:  store,
		IDGen:  store,
		Outbox: store,
		Logger: logger,
	})
	module.Store = store
	return module
}
