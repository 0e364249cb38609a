package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/mes-backend/internal/data/repos/production"
	"github.com/yungbote/mes-backend/internal/pkg/logger"
)

type WorkOrderRepo = production.WorkOrderRepo
type WorkOrderExecutionRepo = production.WorkOrderExecutionRepo
type BomRecipeRepo = production.BomRecipeRepo
type SequenceCounterRepo = production.SequenceCounterRepo
type TraceRecordRepo = production.TraceRecordRepo

type TraceFilter = production.TraceFilter
type TracePage = production.TracePage

// Repos bundles every table repo the ledger needs.
type Repos struct {
	WorkOrders   WorkOrderRepo
	Executions   WorkOrderExecutionRepo
	Recipes      BomRecipeRepo
	Counters     SequenceCounterRepo
	TraceRecords TraceRecordRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		WorkOrders:   production.NewWorkOrderRepo(db, log),
		Executions:   production.NewWorkOrderExecutionRepo(db, log),
		Recipes:      production.NewBomRecipeRepo(db, log),
		Counters:     production.NewSequenceCounterRepo(db, log),
		TraceRecords: production.NewTraceRecordRepo(db, log),
	}
}
