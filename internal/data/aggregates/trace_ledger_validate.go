package aggregates

import (
	"github.com/google/uuid"

	domainagg "github.com/yungbote/mes-backend/internal/domain/aggregates"
	"github.com/yungbote/mes-backend/internal/domain/production"
	"github.com/yungbote/mes-backend/internal/pkg/dbctx"
)

// Resolution loads everything an executor needs. Missing rows come back as
// production variants so the caller sees the same rejection kinds the pure
// executors use.

func (a *traceLedgerAggregate) resolveCreate(dbc dbctx.Context, in domainagg.CreateTraceRecordInput) (production.CreateTraceArg, error) {
	wo, err := a.deps.WorkOrders.GetByID(dbc, in.WorkOrderID)
	if err != nil {
		return production.CreateTraceArg{}, err
	}
	if wo == nil {
		return production.CreateTraceArg{}, &production.WorkOrderNotFoundError{WorkOrderID: in.WorkOrderID}
	}
	exec, err := a.deps.Executions.GetByWorkOrderCode(dbc, wo.Code)
	if err != nil {
		return production.CreateTraceArg{}, err
	}
	if exec == nil {
		return production.CreateTraceArg{}, &production.WorkOrderNotExecutingError{WorkOrderCode: wo.Code}
	}
	counter, err := a.deps.Allocator.TryGet(dbc, wo.ProductCode)
	if err != nil {
		return production.CreateTraceArg{}, err
	}
	return production.CreateTraceArg{
		WorkOrder:       wo,
		Execution:       exec,
		ProductLineCode: in.ProductLineCode,
		Counter:         counter,
		TraceInfoID:     in.TraceInfoID,
	}, nil
}

func (a *traceLedgerAggregate) resolveAddBomItem(dbc dbctx.Context, in domainagg.AddBomItemInput, itemCode string) (production.AddBomItemArg, error) {
	rec, err := a.lockRecord(dbc, in.TraceInfoID)
	if err != nil {
		return production.AddBomItemArg{}, err
	}
	item, err := a.deps.Recipes.GetItemByCode(dbc, rec.BomRecipeID, itemCode)
	if err != nil {
		return production.AddBomItemArg{}, err
	}
	if item == nil {
		return production.AddBomItemArg{}, &production.BomItemNotFoundError{ItemCode: itemCode}
	}
	consumption := in.Consumption
	if consumption == 0 {
		consumption = item.Quota
	}
	return production.AddBomItemArg{
		Record:      rec,
		RecipeItem:  item,
		Sku:         in.Sku,
		Consumption: consumption,
		ItemID:      in.ItemID,
	}, nil
}

func (a *traceLedgerAggregate) lockRecord(dbc dbctx.Context, id uuid.UUID) (*production.TraceInfo, error) {
	rec, err := a.deps.TraceRecords.LockByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &production.TraceInfoNotFoundError{ID: id}
	}
	return rec, nil
}

func (a *traceLedgerAggregate) lockRecordByPin(dbc dbctx.Context, pin string) (*production.TraceInfo, error) {
	rec, err := a.deps.TraceRecords.LockByPin(dbc, pin)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &production.TraceInfoNotFoundError{Pin: pin}
	}
	return rec, nil
}
