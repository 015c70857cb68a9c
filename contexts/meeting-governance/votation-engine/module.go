package votationengine

import (
	"log/slog"
	"time"

	httpadapter "quorum/contexts/meeting-governance/votation-engine/adapters/http"
	"quorum/contexts/meeting-governance/votation-engine/adapters/memory"
	"quorum/contexts/meeting-governance/votation-engine/application/audit"
	"quorum/contexts/meeting-governance/votation-engine/application/ballots"
	"quorum/contexts/meeting-governance/votation-engine/application/commands"
	"quorum/contexts/meeting-governance/votation-engine/application/queries"
	"quorum/contexts/meeting-governance/votation-engine/application/tickets"
	"quorum/contexts/meeting-governance/votation-engine/application/votations"
	"quorum/contexts/meeting-governance/votation-engine/application/workers"
	"quorum/contexts/meeting-governance/votation-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Engine  commands.EngineUseCase
	Tally   queries.TallyUseCase
	Relay   workers.OutboxRelay
	Catalog workers.CatalogConsumer
	Store   *memory.Store
}

type Dependencies struct {
	Store                  ports.Store
	Outbox                 ports.OutboxRepository
	Publisher              ports.EventPublisher
	Subscriber             ports.EventSubscriber
	Clock                  ports.Clock
	IDGen                  ports.IDGenerator
	CastRetryLimit         int
	ManualBallotLimit      int
	OutboxBatchSize        int
	EventDedupTTL          time.Duration
	DisableCatalogConsumer bool
	Logger                 *slog.Logger
}

func NewModule(deps Dependencies) Module {
	resolver := tickets.Resolver{
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	stateMachine := votations.StateMachine{
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	ledger := ballots.Ledger{
		Audit: audit.Trail{
			Clock:  deps.Clock,
			IDGen:  deps.IDGen,
			Logger: deps.Logger,
		},
		Clock:             deps.Clock,
		IDGen:             deps.IDGen,
		ManualBallotLimit: deps.ManualBallotLimit,
		Logger:            deps.Logger,
	}
	engine := commands.EngineUseCase{
		Store:          deps.Store,
		Tickets:        resolver,
		Votations:      stateMachine,
		Ballots:        ledger,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		CastRetryLimit: deps.CastRetryLimit,
		Logger:         deps.Logger,
	}
	tally := queries.TallyUseCase{
		Repos:   deps.Store,
		Tickets: resolver,
		Logger:  deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Engine: engine,
			Tally:  tally,
			Logger: deps.Logger,
		},
		Engine: engine,
		Tally:  tally,
		Relay: workers.OutboxRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			BatchSize: deps.OutboxBatchSize,
			Logger:    deps.Logger,
		},
		Catalog: workers.CatalogConsumer{
			Subscriber: deps.Subscriber,
			Store:      deps.Store,
			Votations:  stateMachine,
			Clock:      deps.Clock,
			IDGen:      deps.IDGen,
			DedupTTL:   deps.EventDedupTTL,
			Disabled:   deps.DisableCatalogConsumer,
			Logger:     deps.Logger,
		},
	}
}

// NewInMemoryModule wires the engine to a process-local store. The bus may be
// nil when the caller never runs the relay or the catalog consumer.
func NewInMemoryModule(publisher ports.EventPublisher, subscriber ports.EventSubscriber, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Store:                  store,
		Outbox:                 store,
		Publisher:              publisher,
		Subscriber:             subscriber,
		Clock:                  store,
		IDGen:                  store,
		DisableCatalogConsumer: subscriber == nil,
		Logger:                 logger,
	})
	module.Store = store
	return module
}
