package production

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTraceInfoCreated  = "trace_info.created"
	EventPinBound          = "trace_info.pin_bound"
	EventBomItemAdded      = "trace_info.bom_item_added"
	EventBomItemRemoved    = "trace_info.bom_item_removed"
	EventProcItemAdded     = "trace_info.proc_item_added"
	EventProcItemsReplaced = "trace_info.proc_items_replaced"
	EventProcItemRemoved   = "trace_info.proc_item_removed"
	EventNgForced          = "trace_info.ng_forced"
	EventDestroyedForced   = "trace_info.destroyed_forced"
)

// Event is a fact produced by an executor. Persistence and publication are
// both driven from the event list.
type Event interface {
	EventType() string
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

type TraceInfoCreated struct {
	Record *TraceInfo `json:"record"`
	At     time.Time  `json:"at"`
}

func (e TraceInfoCreated) EventType() string      { return EventTraceInfoCreated }
func (e TraceInfoCreated) AggregateID() uuid.UUID { return e.Record.ID }
func (e TraceInfoCreated) OccurredAt() time.Time  { return e.At }

type PinBound struct {
	TraceInfoID uuid.UUID `json:"trace_info_id"`
	Pin         string    `json:"pin"`
	At          time.Time `json:"at"`
}

func (e PinBound) EventType() string      { return EventPinBound }
func (e PinBound) AggregateID() uuid.UUID { return e.TraceInfoID }
func (e PinBound) OccurredAt() time.Time  { return e.At }

type BomItemAdded struct {
	Item TraceBomItem `json:"item"`
	At   time.Time    `json:"at"`
}

func (e BomItemAdded) EventType() string      { return EventBomItemAdded }
func (e BomItemAdded) AggregateID() uuid.UUID { return e.Item.TraceInfoID }
func (e BomItemAdded) OccurredAt() time.Time  { return e.At }

type BomItemRemoved struct {
	TraceInfoID uuid.UUID `json:"trace_info_id"`
	ItemID      uuid.UUID `json:"item_id"`
	At          time.Time `json:"at"`
}

func (e BomItemRemoved) EventType() string      { return EventBomItemRemoved }
func (e BomItemRemoved) AggregateID() uuid.UUID { return e.TraceInfoID }
func (e BomItemRemoved) OccurredAt() time.Time  { return e.At }

// ProcItemsReplaced tombstones live items for a (station, key) pair ahead of
// the ProcItemAdded that replaces them.
type ProcItemsReplaced struct {
	TraceInfoID uuid.UUID   `json:"trace_info_id"`
	Station     string      `json:"station"`
	Key         string      `json:"key"`
	ItemIDs     []uuid.UUID `json:"item_ids"`
	At          time.Time   `json:"at"`
}

func (e ProcItemsReplaced) EventType() string      { return EventProcItemsReplaced }
func (e ProcItemsReplaced) AggregateID() uuid.UUID { return e.TraceInfoID }
func (e ProcItemsReplaced) OccurredAt() time.Time  { return e.At }

type ProcItemAdded struct {
	Item TraceProcItem `json:"item"`
	At   time.Time     `json:"at"`
}

func (e ProcItemAdded) EventType() string      { return EventProcItemAdded }
func (e ProcItemAdded) AggregateID() uuid.UUID { return e.Item.TraceInfoID }
func (e ProcItemAdded) OccurredAt() time.Time  { return e.At }

type ProcItemRemoved struct {
	TraceInfoID uuid.UUID `json:"trace_info_id"`
	ItemID      uuid.UUID `json:"item_id"`
	At          time.Time `json:"at"`
}

func (e ProcItemRemoved) EventType() string      { return EventProcItemRemoved }
func (e ProcItemRemoved) AggregateID() uuid.UUID { return e.TraceInfoID }
func (e ProcItemRemoved) OccurredAt() time.Time  { return e.At }

type NgForced struct {
	TraceInfoID uuid.UUID `json:"trace_info_id"`
	IsNg        bool      `json:"is_ng"`
	NgReason    string    `json:"ng_reason"`
	At          time.Time `json:"at"`
}

func (e NgForced) EventType() string      { return EventNgForced }
func (e NgForced) AggregateID() uuid.UUID { return e.TraceInfoID }
func (e NgForced) OccurredAt() time.Time  { return e.At }

type DestroyedForced struct {
	TraceInfoID uuid.UUID  `json:"trace_info_id"`
	Destroyed   bool       `json:"destroyed"`
	DestroyedAt *time.Time `json:"destroyed_at,omitempty"`
	At          time.Time  `json:"at"`
}

func (e DestroyedForced) EventType() string      { return EventDestroyedForced }
func (e DestroyedForced) AggregateID() uuid.UUID { return e.TraceInfoID }
func (e DestroyedForced) OccurredAt() time.Time  { return e.At }

// Apply replays events onto record. State is currently rebuilt from the row
// store, so replay is a pass-through; the hook exists for event-sourced
// reconstruction.
func Apply(events []Event, record *TraceInfo) *TraceInfo {
	_ = events
	return record
}
