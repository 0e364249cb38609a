package production

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TraceInfo is the ledger aggregate root: one row per produced unit.
// Sequence is taken from the product code's counter at creation and never reassigned.
type TraceInfo struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Sequence        int64     `gorm:"column:sequence;not null;index:idx_trace_info_product_seq,unique,priority:2" json:"sequence"`
	ProductCode     string    `gorm:"column:product_code;not null;index:idx_trace_info_product_seq,unique,priority:1" json:"product_code"`
	ProductLineCode string    `gorm:"column:product_line_code;not null;index" json:"product_line_code"`
	WorkOrderID     uuid.UUID `gorm:"type:uuid;column:work_order_id;not null;index" json:"work_order_id"`
	BomRecipeID     uuid.UUID `gorm:"type:uuid;column:bom_recipe_id;not null" json:"bom_recipe_id"`

	// Empty until bound; immutable afterwards.
	Pin string `gorm:"column:pin;not null;default:'';index" json:"pin"`

	IsNg     bool   `gorm:"column:is_ng;not null;default:false" json:"is_ng"`
	NgReason string `gorm:"column:ng_reason;not null;default:''" json:"ng_reason"`

	Destroyed   bool       `gorm:"column:destroyed;not null;default:false" json:"destroyed"`
	DestroyedAt *time.Time `gorm:"column:destroyed_at" json:"destroyed_at,omitempty"`

	BomItems  []TraceBomItem  `gorm:"foreignKey:TraceInfoID" json:"bom_items"`
	ProcItems []TraceProcItem `gorm:"foreignKey:TraceInfoID" json:"proc_items"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (TraceInfo) TableName() string { return "trace_info" }

// IsBound reports whether a PIN has been bound.
func (t *TraceInfo) IsBound() bool { return t != nil && t.Pin != "" }

// Clone returns a deep copy; executors mutate clones only.
func (t *TraceInfo) Clone() *TraceInfo {
	if t == nil {
		return nil
	}
	out := *t
	if t.DestroyedAt != nil {
		at := *t.DestroyedAt
		out.DestroyedAt = &at
	}
	if t.BomItems != nil {
		out.BomItems = make([]TraceBomItem, len(t.BomItems))
		for i := range t.BomItems {
			out.BomItems[i] = t.BomItems[i].clone()
		}
	}
	if t.ProcItems != nil {
		out.ProcItems = make([]TraceProcItem, len(t.ProcItems))
		for i := range t.ProcItems {
			out.ProcItems[i] = t.ProcItems[i].clone()
		}
	}
	return &out
}

// BomItem returns the owned BOM item with the given id.
func (t *TraceInfo) BomItem(id uuid.UUID) (*TraceBomItem, bool) {
	if t == nil || id == uuid.Nil {
		return nil, false
	}
	for i := range t.BomItems {
		if t.BomItems[i].ID == id {
			return &t.BomItems[i], true
		}
	}
	return nil, false
}

// ProcItem returns the owned process item with the given id.
func (t *TraceInfo) ProcItem(id uuid.UUID) (*TraceProcItem, bool) {
	if t == nil || id == uuid.Nil {
		return nil, false
	}
	for i := range t.ProcItems {
		if t.ProcItems[i].ID == id {
			return &t.ProcItems[i], true
		}
	}
	return nil, false
}

// LiveConsumption sums consumption of non-deleted BOM items with itemCode.
func (t *TraceInfo) LiveConsumption(itemCode string) float64 {
	if t == nil {
		return 0
	}
	var sum float64
	for i := range t.BomItems {
		it := &t.BomItems[i]
		if it.IsDeleted || it.ItemCode != itemCode {
			continue
		}
		sum += it.Consumption
	}
	return sum
}

// LiveProcItems returns the non-deleted process items for (station, key).
func (t *TraceInfo) LiveProcItems(station, key string) []*TraceProcItem {
	if t == nil {
		return nil
	}
	var out []*TraceProcItem
	for i := range t.ProcItems {
		it := &t.ProcItems[i]
		if it.IsDeleted || it.Station != station || it.Key != key {
			continue
		}
		out = append(out, it)
	}
	return out
}

// TraceBomItem records one material consumption against a trace record.
// Rows are soft-deleted only, so consumption history stays auditable.
type TraceBomItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TraceInfoID uuid.UUID `gorm:"type:uuid;column:trace_info_id;not null;index:idx_trace_bom_item_code,priority:1" json:"trace_info_id"`
	ItemCode    string    `gorm:"column:item_code;not null;index:idx_trace_bom_item_code,priority:2" json:"item_code"`

	MaterialCode string  `gorm:"column:material_code;not null" json:"material_code"`
	MaterialName string  `gorm:"column:material_name" json:"material_name"`
	MeasureUnit  string  `gorm:"column:measure_unit" json:"measure_unit"`
	Quota        float64 `gorm:"column:quota;type:decimal(18,6);not null" json:"quota"`
	Sku          string  `gorm:"column:sku" json:"sku"`
	Consumption  float64 `gorm:"column:consumption;type:decimal(18,6);not null" json:"consumption"`

	IsDeleted bool       `gorm:"column:is_deleted;not null;default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `gorm:"column:deleted_at" json:"deleted_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (TraceBomItem) TableName() string { return "trace_bom_item" }

func (b TraceBomItem) clone() TraceBomItem {
	out := b
	if b.DeletedAt != nil {
		at := *b.DeletedAt
		out.DeletedAt = &at
	}
	return out
}

// TraceProcItem records one process-step fact keyed by (station, key).
// At most one non-deleted row exists per pair; overwrites tombstone older rows.
type TraceProcItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TraceInfoID uuid.UUID `gorm:"type:uuid;column:trace_info_id;not null;index:idx_trace_proc_item_key,priority:1" json:"trace_info_id"`
	Station     string    `gorm:"column:station;not null;index:idx_trace_proc_item_key,priority:2" json:"station"`
	Key         string    `gorm:"column:proc_key;not null;index:idx_trace_proc_item_key,priority:3" json:"key"`

	Value datatypes.JSON `gorm:"column:value" json:"value"`

	IsDeleted bool       `gorm:"column:is_deleted;not null;default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `gorm:"column:deleted_at" json:"deleted_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (TraceProcItem) TableName() string { return "trace_proc_item" }

func (p TraceProcItem) clone() TraceProcItem {
	out := p
	if p.Value != nil {
		out.Value = datatypes.JSON(bytes.Clone(p.Value))
	}
	if p.DeletedAt != nil {
		at := *p.DeletedAt
		out.DeletedAt = &at
	}
	return out
}
