package production

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// quantityScale matches the decimal(18,6) columns quantities are stored in.
const quantityScale = 1e6

// atScale rounds v to the stored precision so quota checks compare exactly
// what the database holds.
func atScale(v float64) float64 {
	return math.Round(v*quantityScale) / quantityScale
}

// Executors are pure: they never touch storage, never mutate their input and
// return a fresh record together with the events that describe the change.
// A rejected command returns the zero Result.

// ExecuteCreate builds a new, unbound trace record. The sequence is read from
// the counter; advancing it is the caller's job once this returns cleanly.
func ExecuteCreate(arg CreateTraceArg, now time.Time) (Result, CreateError) {
	wo, exec, counter := arg.WorkOrder, arg.Execution, arg.Counter
	if wo == nil {
		return Result{}, &MiscError{Message: "work order is required"}
	}
	if exec == nil {
		return Result{}, &WorkOrderNotExecutingError{WorkOrderCode: wo.Code}
	}
	if counter == nil {
		return Result{}, &MiscError{Message: "sequence counter missing for product " + wo.ProductCode}
	}
	if exec.HasFinished {
		return Result{}, &WorkOrderFinishedError{WorkOrderCode: wo.Code}
	}
	if !wo.IsApproved() {
		return Result{}, &WorkOrderNotReadyError{Status: wo.DocStatus}
	}
	if p := wo.Policy(); !p.Infinite && exec.Accumulation+p.PerTraceInfo > p.Amount {
		return Result{}, &WorkOrderQuotaExceedsError{
			Quota:        p.Amount,
			Accumulated:  exec.Accumulation,
			PerTraceInfo: p.PerTraceInfo,
		}
	}

	productLine := arg.ProductLineCode
	if productLine == "" {
		productLine = wo.ProductLineCode
	}
	rec := &TraceInfo{
		ID:              orNew(arg.TraceInfoID),
		Sequence:        counter.Current,
		ProductCode:     wo.ProductCode,
		ProductLineCode: productLine,
		WorkOrderID:     wo.ID,
		BomRecipeID:     wo.BomRecipeID,
		BomItems:        []TraceBomItem{},
		ProcItems:       []TraceProcItem{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return Result{
		Record: rec,
		Events: []Event{TraceInfoCreated{Record: rec.Clone(), At: now}},
	}, nil
}

// ExecuteBindPin sets the PIN exactly once.
func ExecuteBindPin(arg BindPinArg, now time.Time) (Result, BindPinError) {
	if arg.Record == nil {
		return Result{}, &TraceInfoNotFoundError{}
	}
	if arg.Record.IsBound() {
		return Result{}, &AlreadyBoundError{ID: arg.Record.ID}
	}
	rec := arg.Record.Clone()
	rec.Pin = arg.Pin
	rec.UpdatedAt = now
	return Result{
		Record: rec,
		Events: []Event{PinBound{TraceInfoID: rec.ID, Pin: rec.Pin, At: now}},
	}, nil
}

// ExecuteAddBomItem appends a consumption row while keeping the live sum for
// the recipe item at or below its quota.
func ExecuteAddBomItem(arg AddBomItemArg, now time.Time) (Result, BomError) {
	if arg.Record == nil {
		return Result{}, &TraceInfoNotFoundError{}
	}
	if arg.RecipeItem == nil {
		return Result{}, &BomItemNotFoundError{}
	}
	ri := arg.RecipeItem
	accumulated := arg.Record.LiveConsumption(ri.ItemCode)
	if atScale(accumulated+arg.Consumption) > atScale(ri.Quota) {
		return Result{}, &BomItemExceedsQuotaError{
			Quota:       ri.Quota,
			Accumulated: accumulated,
			Requested:   arg.Consumption,
		}
	}

	rec := arg.Record.Clone()
	item := TraceBomItem{
		ID:           orNew(arg.ItemID),
		TraceInfoID:  rec.ID,
		ItemCode:     ri.ItemCode,
		MaterialCode: ri.MaterialCode,
		MaterialName: ri.MaterialName,
		MeasureUnit:  ri.MeasureUnit,
		Quota:        ri.Quota,
		Sku:          arg.Sku,
		Consumption:  arg.Consumption,
		CreatedAt:    now,
	}
	rec.BomItems = append(rec.BomItems, item)
	rec.UpdatedAt = now
	return Result{
		Record: rec,
		Events: []Event{BomItemAdded{Item: item.clone(), At: now}},
	}, nil
}

// ExecuteRemoveBomItem tombstones an owned consumption row.
func ExecuteRemoveBomItem(arg RemoveBomItemArg, now time.Time) (Result, BomError) {
	if arg.Record == nil {
		return Result{}, &TraceInfoNotFoundError{}
	}
	rec := arg.Record.Clone()
	item, ok := rec.BomItem(arg.ItemID)
	if !ok {
		return Result{}, &BomItemNotFoundError{ItemID: arg.ItemID}
	}
	if item.IsDeleted {
		return Result{}, &AlreadyDeletedError{ID: item.ID}
	}
	at := now
	item.IsDeleted = true
	item.DeletedAt = &at
	rec.UpdatedAt = now
	return Result{
		Record: rec,
		Events: []Event{BomItemRemoved{TraceInfoID: rec.ID, ItemID: item.ID, At: now}},
	}, nil
}

// ExecuteAddProcItem appends a process fact. With DeleteExisting, live rows
// for the same (station, key) are tombstoned first so exactly one stays live.
func ExecuteAddProcItem(arg AddProcItemArg, now time.Time) (Result, ProcError) {
	if arg.Record == nil {
		return Result{}, &TraceInfoNotFoundError{}
	}
	if live := arg.Record.LiveProcItems(arg.Station, arg.Key); len(live) > 0 && !arg.DeleteExisting {
		return Result{}, &AlreadyExistsError{Station: arg.Station, Key: arg.Key}
	}

	rec := arg.Record.Clone()
	var events []Event
	if live := rec.LiveProcItems(arg.Station, arg.Key); len(live) > 0 {
		ids := make([]uuid.UUID, 0, len(live))
		for _, it := range live {
			at := now
			it.IsDeleted = true
			it.DeletedAt = &at
			ids = append(ids, it.ID)
		}
		events = append(events, ProcItemsReplaced{
			TraceInfoID: rec.ID,
			Station:     arg.Station,
			Key:         arg.Key,
			ItemIDs:     ids,
			At:          now,
		})
	}

	item := TraceProcItem{
		ID:          orNew(arg.ItemID),
		TraceInfoID: rec.ID,
		Station:     arg.Station,
		Key:         arg.Key,
		Value:       arg.Value,
		CreatedAt:   now,
	}
	item = item.clone()
	rec.ProcItems = append(rec.ProcItems, item)
	rec.UpdatedAt = now
	events = append(events, ProcItemAdded{Item: item.clone(), At: now})
	return Result{Record: rec, Events: events}, nil
}

// ExecuteRemoveProcItem tombstones an owned process row.
func ExecuteRemoveProcItem(arg RemoveProcItemArg, now time.Time) (Result, ProcError) {
	if arg.Record == nil {
		return Result{}, &TraceInfoNotFoundError{}
	}
	rec := arg.Record.Clone()
	item, ok := rec.ProcItem(arg.ItemID)
	if !ok {
		return Result{}, &ProcItemNotFoundError{ItemID: arg.ItemID}
	}
	if item.IsDeleted {
		return Result{}, &AlreadyDeletedError{ID: item.ID}
	}
	at := now
	item.IsDeleted = true
	item.DeletedAt = &at
	rec.UpdatedAt = now
	return Result{
		Record: rec,
		Events: []Event{ProcItemRemoved{TraceInfoID: rec.ID, ItemID: item.ID, At: now}},
	}, nil
}

// ExecuteForceNg overrides the inspection verdict unconditionally.
func ExecuteForceNg(arg ForceNgArg, now time.Time) (Result, ForceError) {
	if arg.Record == nil {
		return Result{}, &TraceInfoNotFoundError{}
	}
	rec := arg.Record.Clone()
	rec.IsNg = arg.IsNg
	rec.NgReason = arg.NgReason
	rec.UpdatedAt = now
	return Result{
		Record: rec,
		Events: []Event{NgForced{TraceInfoID: rec.ID, IsNg: rec.IsNg, NgReason: rec.NgReason, At: now}},
	}, nil
}

// ExecuteForceDestroyed toggles the destroyed flag. DestroyedAt is stamped on
// destroy and left untouched on restore.
func ExecuteForceDestroyed(arg ForceDestroyedArg, now time.Time) (Result, ForceError) {
	if arg.Record == nil {
		return Result{}, &TraceInfoNotFoundError{}
	}
	rec := arg.Record.Clone()
	rec.Destroyed = arg.Destroyed
	if arg.Destroyed {
		at := now
		rec.DestroyedAt = &at
	}
	rec.UpdatedAt = now
	ev := DestroyedForced{TraceInfoID: rec.ID, Destroyed: rec.Destroyed, At: now}
	if rec.DestroyedAt != nil {
		at := *rec.DestroyedAt
		ev.DestroyedAt = &at
	}
	return Result{Record: rec, Events: []Event{ev}}, nil
}

func orNew(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}
