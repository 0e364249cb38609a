package aggregates

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/mes-backend/internal/domain/production"
	"github.com/yungbote/mes-backend/internal/pkg/dbctx"
)

// persist turns executor events into row writes. Every conditional write is
// re-checked against rows affected so a lost race surfaces as the same
// rejection the executor would have produced.
func (a *traceLedgerAggregate) persist(dbc dbctx.Context, events []production.Event) error {
	records := a.deps.TraceRecords
	touched := map[uuid.UUID]time.Time{}
	for _, ev := range events {
		switch e := ev.(type) {
		case production.TraceInfoCreated:
			if err := records.Append(dbc, e.Record.Clone()); err != nil {
				return err
			}

		case production.PinBound:
			ok, err := records.BindPin(dbc, e.TraceInfoID, e.Pin, e.At)
			if err != nil {
				return err
			}
			if !ok {
				return &production.AlreadyBoundError{ID: e.TraceInfoID}
			}

		case production.BomItemAdded:
			item := e.Item
			if err := records.CreateBomItems(dbc, []*production.TraceBomItem{&item}); err != nil {
				return err
			}
			touched[e.AggregateID()] = e.At

		case production.BomItemRemoved:
			ok, err := records.SoftDeleteBomItem(dbc, e.TraceInfoID, e.ItemID, e.At)
			if err != nil {
				return err
			}
			if !ok {
				return &production.AlreadyDeletedError{ID: e.ItemID}
			}
			touched[e.AggregateID()] = e.At

		case production.ProcItemsReplaced:
			n, err := records.SoftDeleteProcItems(dbc, e.TraceInfoID, e.ItemIDs, e.At)
			if err != nil {
				return err
			}
			if err := RequireRowsAffected(n, int64(len(e.ItemIDs)), fmt.Sprintf("replace process items %s/%s", e.Station, e.Key)); err != nil {
				return err
			}
			touched[e.AggregateID()] = e.At

		case production.ProcItemAdded:
			item := e.Item
			if err := records.CreateProcItems(dbc, []*production.TraceProcItem{&item}); err != nil {
				return err
			}
			touched[e.AggregateID()] = e.At

		case production.ProcItemRemoved:
			n, err := records.SoftDeleteProcItems(dbc, e.TraceInfoID, []uuid.UUID{e.ItemID}, e.At)
			if err != nil {
				return err
			}
			if n == 0 {
				return &production.AlreadyDeletedError{ID: e.ItemID}
			}
			touched[e.AggregateID()] = e.At

		case production.NgForced:
			if err := records.UpdateFields(dbc, e.TraceInfoID, map[string]interface{}{
				"is_ng":      e.IsNg,
				"ng_reason":  e.NgReason,
				"updated_at": e.At,
			}); err != nil {
				return err
			}

		case production.DestroyedForced:
			updates := map[string]interface{}{
				"destroyed":  e.Destroyed,
				"updated_at": e.At,
			}
			if e.Destroyed && e.DestroyedAt != nil {
				updates["destroyed_at"] = *e.DestroyedAt
			}
			if err := records.UpdateFields(dbc, e.TraceInfoID, updates); err != nil {
				return err
			}

		default:
			return InvariantError(fmt.Sprintf("unhandled ledger event %T", ev))
		}
	}
	for id, at := range touched {
		if err := records.UpdateFields(dbc, id, map[string]interface{}{"updated_at": at}); err != nil {
			return err
		}
	}
	return nil
}
