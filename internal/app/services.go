package app

import (
	"gorm.io/gorm"

	dataagg "github.com/yungbote/mes-backend/internal/data/aggregates"
	"github.com/yungbote/mes-backend/internal/data/repos"
	domainagg "github.com/yungbote/mes-backend/internal/domain/aggregates"
	"github.com/yungbote/mes-backend/internal/jobs/sweeper"
	"github.com/yungbote/mes-backend/internal/observability"
	"github.com/yungbote/mes-backend/internal/pkg/logger"
	"github.com/yungbote/mes-backend/internal/services"
)

type Services struct {
	Ledger    domainagg.TraceLedgerAggregate
	Publisher services.EventPublisher
	Traces    services.TraceService
	Sweeper   *sweeper.Sweeper
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet repos.Repos, clients Clients, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	ledger := dataagg.NewTraceLedgerAggregate(dataagg.TraceLedgerAggregateDeps{
		Base: dataagg.BaseDeps{
			DB:    db,
			Log:   log,
			Hooks: dataagg.NewObservabilityHooks(metrics),
		},
		WorkOrders:   reposet.WorkOrders,
		Executions:   reposet.Executions,
		Recipes:      reposet.Recipes,
		Counters:     reposet.Counters,
		TraceRecords: reposet.TraceRecords,
	})

	var publisher services.EventPublisher = services.NoopEventPublisher{}
	if clients.EventBus != nil {
		publisher = services.NewEventPublisher(log, clients.EventBus, metrics)
	}

	traces := services.NewTraceService(db, log, ledger, reposet.TraceRecords, publisher, metrics, cfg.Trace)

	return Services{
		Ledger:    ledger,
		Publisher: publisher,
		Traces:    traces,
		Sweeper:   sweeper.New(log, traces, cfg.Sweep),
	}
}
