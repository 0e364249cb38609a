package aggregates

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	repos "github.com/yungbote/mes-backend/internal/data/repos"
	domainagg "github.com/yungbote/mes-backend/internal/domain/aggregates"
	"github.com/yungbote/mes-backend/internal/domain/production"
	"github.com/yungbote/mes-backend/internal/pkg/dbctx"
)

const maxPinLength = 128

type TraceLedgerAggregateDeps struct {
	Base BaseDeps

	WorkOrders   repos.WorkOrderRepo
	Executions   repos.WorkOrderExecutionRepo
	Recipes      repos.BomRecipeRepo
	Counters     repos.SequenceCounterRepo
	TraceRecords repos.TraceRecordRepo

	// Allocator defaults to a counter-row allocator over Counters.
	Allocator SequenceAllocator
}

type traceLedgerAggregate struct {
	deps TraceLedgerAggregateDeps
}

func NewTraceLedgerAggregate(deps TraceLedgerAggregateDeps) domainagg.TraceLedgerAggregate {
	deps.Base = deps.Base.withDefaults()
	if deps.Allocator == nil && deps.Counters != nil {
		deps.Allocator = NewSequenceAllocator(deps.Counters)
	}
	return &traceLedgerAggregate{deps: deps}
}

func (a *traceLedgerAggregate) Contract() domainagg.Contract {
	return domainagg.TraceLedgerAggregateContract
}

func (a *traceLedgerAggregate) CreateTraceRecord(ctx context.Context, in domainagg.CreateTraceRecordInput) (domainagg.TraceRecordResult, error) {
	const op = "Production.TraceLedger.Create"
	var out domainagg.TraceRecordResult

	if in.WorkOrderID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing work_order_id", nil)
	}
	if a.deps.WorkOrders == nil || a.deps.Executions == nil || a.deps.Allocator == nil || a.deps.TraceRecords == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "trace ledger repos not configured", nil)
	}
	now := a.at(in.CreatedAt)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		arg, err := a.resolveCreate(dbc, in)
		if err != nil {
			return err
		}
		res, cerr := production.ExecuteCreate(arg, now)
		if cerr != nil {
			return ledgerError(op, cerr)
		}
		if err := a.persist(dbc, res.Events); err != nil {
			return err
		}
		if err := a.deps.Allocator.Advance(dbc, arg.Counter); err != nil {
			return err
		}
		out = domainagg.TraceRecordResult{Record: production.Apply(res.Events, res.Record), Events: res.Events}
		return nil
	})
	return out, err
}

func (a *traceLedgerAggregate) BindPin(ctx context.Context, in domainagg.BindPinInput) (domainagg.TraceRecordResult, error) {
	const op = "Production.TraceLedger.BindPin"
	pin := strings.TrimSpace(in.Pin)
	if in.TraceInfoID == uuid.Nil {
		return domainagg.TraceRecordResult{}, domainagg.NewError(domainagg.CodeValidation, op, "missing trace_info_id", nil)
	}
	if pin == "" {
		return domainagg.TraceRecordResult{}, domainagg.NewError(domainagg.CodeValidation, op, "missing pin", nil)
	}
	if len(pin) > maxPinLength {
		return domainagg.TraceRecordResult{}, domainagg.NewError(domainagg.CodeValidation, op, "pin too long", nil)
	}
	now := a.at(in.At)
	return a.mutate(ctx, op, func(dbc dbctx.Context) (production.Result, error) {
		rec, err := a.lockRecord(dbc, in.TraceInfoID)
		if err != nil {
			return production.Result{}, err
		}
		res, berr := production.ExecuteBindPin(production.BindPinArg{Record: rec, Pin: pin}, now)
		if berr != nil {
			return production.Result{}, berr
		}
		return res, nil
	})
}

func (a *traceLedgerAggregate) AddBomItem(ctx context.Context, in domainagg.AddBomItemInput) (domainagg.TraceRecordResult, error) {
	const op = "Production.TraceLedger.AddBomItem"
	itemCode := strings.TrimSpace(in.ItemCode)
	if in.TraceInfoID == uuid.Nil {
		return domainagg.TraceRecordResult{}, domainagg.NewError(domainagg.CodeValidation, op, "missing trace_info_id", nil)
	}
	if itemCode == "" {
		return domainagg.TraceRecordResult{}, domainagg.NewError(domainagg.CodeValidation, op, "missing item_code", nil)
	}
	if in.Consumption < 0 || math.IsNaN(in.Consumption) || math.IsInf(in.Consumption, 0) {
		return domainagg.TraceRecordResult{}, domainagg.NewError(domainagg.CodeValidation, op, "consumption must be a finite non-negative number", nil)
	}
	if a.deps.Recipes == nil {
		return domainagg.TraceRecordResult{}, domainagg.NewError(domainagg.CodeInternal, op, "bom recipe repo not configured", nil)
	}
	now := a.at(in.At)
	return a.mutate(ctx, op, func(dbc dbctx.Context) (production.Result, error) {
		arg, err := a.resolveAddBomItem(dbc, in, itemCode)
		if err != nil {
			return production.Result{}, err
		}
		res, berr := production.ExecuteAddBomItem(arg, now)
		if berr != nil {
			return production.Result{}, berr
		}
		return res, nil
	})
}

func (a *traceLedgerAggregate) RemoveBomItem(ctx context.Context, in domainagg.RemoveBomItemInput) (domainagg.TraceRecordResult, error) {
	const op = "Production.TraceLedger.RemoveBomItem"
	if in.TraceInfoID == uuid.Nil || in.ItemID == uuid.Nil {
		return domainagg.TraceRecordResult{}, domainagg.NewError(domainagg.CodeValidation, op, "missing trace_info_id or item_id", nil)
	}
	now := a.at(in.At)
	return a.mutate(ctx, op, func(dbc dbctx.Context) (production.Result, error) {
		rec, err := a.lockRecord(dbc, in.TraceInfoID)
		if err != nil {
			return production.Result{}, err
		}
		res, berr := production.ExecuteRemoveBomItem(production.RemoveBomItemArg{Record: rec, ItemID: in.ItemID}, now)
		if berr != nil {
			return production.Result{}, berr
		}
		return res, nil
	})
}

func (a *traceLedgerAggregate) AddProcItem(ctx context.Context, in domainagg.AddProcItemInput) (domainagg.TraceRecordResult, error) {
	const op = "Production.TraceLedger.AddProcItem"
	pin := strings.TrimSpace(in.Pin)
	station := strings.TrimSpace(in.Station)
	key := strings.TrimSpace(in.Key)
	if pin == "" {
		return domainagg.TraceRecordResult{}, domainagg.NewError(domainagg.CodeValidation, op, "missing pin", nil)
	}
	if station == "" || key == "" {
		return domainagg.TraceRecordResult{}, domainagg.NewError(domainagg.CodeValidation, op, "missing station or key", nil)
	}
	value := normalizeProcValue(in.Value)
	if !json.Valid(value) {
		return domainagg.TraceRecordResult{}, domainagg.NewError(domainagg.CodeValidation, op, "value must be valid JSON", nil)
	}
	now := a.at(in.At)
	return a.mutate(ctx, op, func(dbc dbctx.Context) (production.Result, error) {
		rec, err := a.lockRecordByPin(dbc, pin)
		if err != nil {
			return production.Result{}, err
		}
		res, perr := production.ExecuteAddProcItem(production.AddProcItemArg{
			Record:         rec,
			Station:        station,
			Key:            key,
			Value:          datatypes.JSON(value),
			DeleteExisting: in.DeleteExisting,
			ItemID:         in.ItemID,
		}, now)
		if perr != nil {
			return production.Result{}, perr
		}
		return res, nil
	})
}

func (a *traceLedgerAggregate) RemoveProcItem(ctx context.Context, in domainagg.RemoveProcItemInput) (domainagg.TraceRecordResult, error) {
	const op = "Production.TraceLedger.RemoveProcItem"
	if in.TraceInfoID == uuid.Nil || in.ItemID == uuid.Nil {
		return domainagg.TraceRecordResult{}, domainagg.NewError(domainagg.CodeValidation, op, "missing trace_info_id or item_id", nil)
	}
	now := a.at(in.At)
	return a.mutate(ctx, op, func(dbc dbctx.Context) (production.Result, error) {
		rec, err := a.lockRecord(dbc, in.TraceInfoID)
		if err != nil {
			return production.Result{}, err
		}
		res, perr := production.ExecuteRemoveProcItem(production.RemoveProcItemArg{Record: rec, ItemID: in.ItemID}, now)
		if perr != nil {
			return production.Result{}, perr
		}
		return res, nil
	})
}

func (a *traceLedgerAggregate) ForceNg(ctx context.Context, in domainagg.ForceNgInput) (domainagg.TraceRecordResult, error) {
	const op = "Production.TraceLedger.ForceNg"
	if in.TraceInfoID == uuid.Nil {
		return domainagg.TraceRecordResult{}, domainagg.NewError(domainagg.CodeValidation, op, "missing trace_info_id", nil)
	}
	now := a.at(in.At)
	reason := strings.TrimSpace(in.NgReason)
	return a.mutate(ctx, op, func(dbc dbctx.Context) (production.Result, error) {
		rec, err := a.lockRecord(dbc, in.TraceInfoID)
		if err != nil {
			return production.Result{}, err
		}
		res, ferr := production.ExecuteForceNg(production.ForceNgArg{Record: rec, IsNg: in.IsNg, NgReason: reason}, now)
		if ferr != nil {
			return production.Result{}, ferr
		}
		return res, nil
	})
}

func (a *traceLedgerAggregate) ForceDestroyed(ctx context.Context, in domainagg.ForceDestroyedInput) (domainagg.TraceRecordResult, error) {
	const op = "Production.TraceLedger.ForceDestroyed"
	if in.TraceInfoID == uuid.Nil {
		return domainagg.TraceRecordResult{}, domainagg.NewError(domainagg.CodeValidation, op, "missing trace_info_id", nil)
	}
	now := a.at(in.At)
	return a.mutate(ctx, op, func(dbc dbctx.Context) (production.Result, error) {
		rec, err := a.lockRecord(dbc, in.TraceInfoID)
		if err != nil {
			return production.Result{}, err
		}
		res, ferr := production.ExecuteForceDestroyed(production.ForceDestroyedArg{Record: rec, Destroyed: in.Destroyed}, now)
		if ferr != nil {
			return production.Result{}, ferr
		}
		return res, nil
	})
}

// mutate runs one per-record command: fn resolves and executes, then the
// resulting events are persisted in the same transaction.
func (a *traceLedgerAggregate) mutate(ctx context.Context, op string, fn func(dbc dbctx.Context) (production.Result, error)) (domainagg.TraceRecordResult, error) {
	var out domainagg.TraceRecordResult
	if a.deps.TraceRecords == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "trace record repo not configured", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		res, err := fn(dbc)
		if err != nil {
			return err
		}
		if err := a.persist(dbc, res.Events); err != nil {
			return err
		}
		out = domainagg.TraceRecordResult{Record: production.Apply(res.Events, res.Record), Events: res.Events}
		return nil
	})
	return out, err
}

func (a *traceLedgerAggregate) at(t time.Time) time.Time {
	if t.IsZero() {
		return a.deps.Base.Now().UTC()
	}
	return t.UTC()
}

func normalizeProcValue(raw json.RawMessage) []byte {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return []byte("null")
	}
	return []byte(trimmed)
}
