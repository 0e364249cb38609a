package aggregates

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/mes-backend/internal/domain/production"
)

var TraceLedgerAggregateContract = Contract{
	Name:             "Production.TraceLedgerAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Locks:            []LockScope{LockScopeAggregateRoot, LockScopeCounterRow},
	Notes:            "Owns sequence allocation + trace record insert atomicity, and per-record BOM/process/disposition mutations.",
}

// TraceLedgerAggregate owns trace record invariants.
//
// Write method failures return *aggregates.Error. Ledger rejections keep the
// concrete production variant as Cause (reachable via errors.As) and expose
// its kind through Error.Kind. Codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeInvariantViolation,
// CodePreconditionFailed, CodeRetryable, CodeInternal.
type TraceLedgerAggregate interface {
	Aggregate

	// CreateTraceRecord allocates the next sequence for the work order's
	// product code and inserts the record in one transaction.
	CreateTraceRecord(ctx context.Context, in CreateTraceRecordInput) (TraceRecordResult, error)

	// BindPin binds the product identification code exactly once.
	BindPin(ctx context.Context, in BindPinInput) (TraceRecordResult, error)

	// AddBomItem appends a consumption row under the recipe item's quota.
	AddBomItem(ctx context.Context, in AddBomItemInput) (TraceRecordResult, error)

	// RemoveBomItem soft-deletes an owned consumption row.
	RemoveBomItem(ctx context.Context, in RemoveBomItemInput) (TraceRecordResult, error)

	// AddProcItem appends (or, with DeleteExisting, replaces) a process fact.
	AddProcItem(ctx context.Context, in AddProcItemInput) (TraceRecordResult, error)

	// RemoveProcItem soft-deletes an owned process row.
	RemoveProcItem(ctx context.Context, in RemoveProcItemInput) (TraceRecordResult, error)

	// ForceNg overrides the inspection verdict.
	ForceNg(ctx context.Context, in ForceNgInput) (TraceRecordResult, error)

	// ForceDestroyed overrides the destroyed flag.
	ForceDestroyed(ctx context.Context, in ForceDestroyedInput) (TraceRecordResult, error)
}

type CreateTraceRecordInput struct {
	WorkOrderID uuid.UUID
	// Overrides the work order's product line when set.
	ProductLineCode string
	TraceInfoID     uuid.UUID
	CreatedAt       time.Time
}

type BindPinInput struct {
	TraceInfoID uuid.UUID
	Pin         string
	At          time.Time
}

type AddBomItemInput struct {
	TraceInfoID uuid.UUID
	ItemCode    string
	Sku         string
	// Zero means "use the recipe quota".
	Consumption float64
	ItemID      uuid.UUID
	At          time.Time
}

type RemoveBomItemInput struct {
	TraceInfoID uuid.UUID
	ItemID      uuid.UUID
	At          time.Time
}

type AddProcItemInput struct {
	Pin            string
	Station        string
	Key            string
	Value          json.RawMessage
	DeleteExisting bool
	ItemID         uuid.UUID
	At             time.Time
}

type RemoveProcItemInput struct {
	TraceInfoID uuid.UUID
	ItemID      uuid.UUID
	At          time.Time
}

type ForceNgInput struct {
	TraceInfoID uuid.UUID
	IsNg        bool
	NgReason    string
	At          time.Time
}

type ForceDestroyedInput struct {
	TraceInfoID uuid.UUID
	Destroyed   bool
	At          time.Time
}

// TraceRecordResult is the committed record plus the events that produced it.
type TraceRecordResult struct {
	Record *production.TraceInfo
	Events []production.Event
}
