package production

import (
	"fmt"

	"github.com/google/uuid"
)

// Variant kinds. Stable strings surfaced to API callers.
const (
	KindWorkOrderNotFound     = "work_order_not_found"
	KindWorkOrderNotExecuting = "work_order_not_executing"
	KindWorkOrderFinished     = "work_order_finished"
	KindWorkOrderNotReady     = "work_order_not_ready"
	KindWorkOrderQuotaExceeds = "work_order_quota_exceeds"
	KindMisc                  = "misc_error"
	KindTraceInfoNotFound     = "trace_info_not_found"
	KindAlreadyBound          = "already_bound"
	KindBomItemNotFound       = "bom_item_not_found"
	KindBomItemExceedsQuota   = "bom_item_exceeds_quota"
	KindAlreadyDeleted        = "already_deleted"
	KindAlreadyExists         = "already_exists"
	KindProcItemNotFound      = "proc_item_not_found"
)

// Variant is implemented by every ledger rejection.
type Variant interface {
	error
	Kind() string
}

// CreateError is the closed set of trace-record creation failures.
type CreateError interface {
	Variant
	createError()
}

// BindPinError is the closed set of PIN binding failures.
type BindPinError interface {
	Variant
	bindPinError()
}

// BomError is the closed set of BOM add/remove failures.
type BomError interface {
	Variant
	bomError()
}

// ProcError is the closed set of process item add/remove failures.
type ProcError interface {
	Variant
	procError()
}

// ForceError is the closed set of forced override failures.
type ForceError interface {
	Variant
	forceError()
}

type WorkOrderNotFoundError struct {
	WorkOrderID uuid.UUID
}

func (e *WorkOrderNotFoundError) Error() string {
	return fmt.Sprintf("work order not found: %s", e.WorkOrderID)
}
func (e *WorkOrderNotFoundError) Kind() string { return KindWorkOrderNotFound }
func (*WorkOrderNotFoundError) createError()   {}

type WorkOrderNotExecutingError struct {
	WorkOrderCode string
}

func (e *WorkOrderNotExecutingError) Error() string {
	return fmt.Sprintf("work order %q has no execution", e.WorkOrderCode)
}
func (e *WorkOrderNotExecutingError) Kind() string { return KindWorkOrderNotExecuting }
func (*WorkOrderNotExecutingError) createError()   {}

type WorkOrderFinishedError struct {
	WorkOrderCode string
}

func (e *WorkOrderFinishedError) Error() string {
	return fmt.Sprintf("work order %q has finished", e.WorkOrderCode)
}
func (e *WorkOrderFinishedError) Kind() string { return KindWorkOrderFinished }
func (*WorkOrderFinishedError) createError()   {}

type WorkOrderNotReadyError struct {
	Status string
}

func (e *WorkOrderNotReadyError) Error() string {
	return fmt.Sprintf("work order not ready (status=%s)", e.Status)
}
func (e *WorkOrderNotReadyError) Kind() string { return KindWorkOrderNotReady }
func (*WorkOrderNotReadyError) createError()   {}

type WorkOrderQuotaExceedsError struct {
	Quota        int64
	Accumulated  int64
	PerTraceInfo int64
}

func (e *WorkOrderQuotaExceedsError) Error() string {
	return fmt.Sprintf("work order quota exceeded (quota=%d accumulated=%d per_trace_info=%d)", e.Quota, e.Accumulated, e.PerTraceInfo)
}
func (e *WorkOrderQuotaExceedsError) Kind() string { return KindWorkOrderQuotaExceeds }
func (*WorkOrderQuotaExceedsError) createError()   {}

// MiscError covers configuration faults such as a missing sequence counter.
type MiscError struct {
	Message string
}

func (e *MiscError) Error() string { return e.Message }
func (e *MiscError) Kind() string  { return KindMisc }
func (*MiscError) createError()    {}

// TraceInfoNotFoundError carries whichever key the lookup used.
type TraceInfoNotFoundError struct {
	ID  uuid.UUID
	Pin string
}

func (e *TraceInfoNotFoundError) Error() string {
	if e.Pin != "" {
		return fmt.Sprintf("trace info not found: pin=%s", e.Pin)
	}
	return fmt.Sprintf("trace info not found: %s", e.ID)
}
func (e *TraceInfoNotFoundError) Kind() string { return KindTraceInfoNotFound }
func (*TraceInfoNotFoundError) bindPinError()  {}
func (*TraceInfoNotFoundError) bomError()      {}
func (*TraceInfoNotFoundError) procError()     {}
func (*TraceInfoNotFoundError) forceError()    {}

type AlreadyBoundError struct {
	ID uuid.UUID
}

func (e *AlreadyBoundError) Error() string {
	return fmt.Sprintf("trace info %s already has a pin bound", e.ID)
}
func (e *AlreadyBoundError) Kind() string { return KindAlreadyBound }
func (*AlreadyBoundError) bindPinError()  {}

// BomItemNotFoundError is raised for an unknown recipe item code on add, or an
// unknown owned item id on remove.
type BomItemNotFoundError struct {
	ItemCode string
	ItemID   uuid.UUID
}

func (e *BomItemNotFoundError) Error() string {
	if e.ItemCode != "" {
		return fmt.Sprintf("bom item not found: code=%s", e.ItemCode)
	}
	return fmt.Sprintf("bom item not found: %s", e.ItemID)
}
func (e *BomItemNotFoundError) Kind() string { return KindBomItemNotFound }
func (*BomItemNotFoundError) bomError()      {}

type BomItemExceedsQuotaError struct {
	Quota       float64
	Accumulated float64
	Requested   float64
}

func (e *BomItemExceedsQuotaError) Error() string {
	return fmt.Sprintf("bom item exceeds quota (quota=%g accumulated=%g requested=%g)", e.Quota, e.Accumulated, e.Requested)
}
func (e *BomItemExceedsQuotaError) Kind() string { return KindBomItemExceedsQuota }
func (*BomItemExceedsQuotaError) bomError()      {}

type AlreadyDeletedError struct {
	ID uuid.UUID
}

func (e *AlreadyDeletedError) Error() string {
	return fmt.Sprintf("item %s already deleted", e.ID)
}
func (e *AlreadyDeletedError) Kind() string { return KindAlreadyDeleted }
func (*AlreadyDeletedError) bomError()      {}
func (*AlreadyDeletedError) procError()     {}

type AlreadyExistsError struct {
	Station string
	Key     string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("process item already exists (station=%s key=%s)", e.Station, e.Key)
}
func (e *AlreadyExistsError) Kind() string { return KindAlreadyExists }
func (*AlreadyExistsError) procError()     {}

type ProcItemNotFoundError struct {
	ItemID uuid.UUID
}

func (e *ProcItemNotFoundError) Error() string {
	return fmt.Sprintf("process item not found: %s", e.ItemID)
}
func (e *ProcItemNotFoundError) Kind() string { return KindProcItemNotFound }
func (*ProcItemNotFoundError) procError()     {}
