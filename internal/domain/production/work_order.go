package production

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document statuses of a work order. Only approved orders may produce units.
const (
	DocStatusDraft     = "draft"
	DocStatusApproved  = "approved"
	DocStatusClosed    = "closed"
	DocStatusCancelled = "cancelled"
)

const (
	AmountKindInfinite = "infinite"
	AmountKindQuota    = "quota"
)

// WorkOrder is a production order owned by planning. Read-only for the ledger.
type WorkOrder struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Code            string    `gorm:"column:code;not null;uniqueIndex" json:"code"`
	ProductCode     string    `gorm:"column:product_code;not null;index" json:"product_code"`
	ProductLineCode string    `gorm:"column:product_line_code;not null;index" json:"product_line_code"`
	BomRecipeID     uuid.UUID `gorm:"type:uuid;column:bom_recipe_id;not null;index" json:"bom_recipe_id"`

	// draft|approved|closed|cancelled
	DocStatus string `gorm:"column:doc_status;not null;index" json:"doc_status"`

	// infinite|quota
	AmountKind   string `gorm:"column:amount_kind;not null" json:"amount_kind"`
	Amount       int64  `gorm:"column:amount;not null;default:0" json:"amount"`
	PerTraceInfo int64  `gorm:"column:per_trace_info;not null;default:1" json:"per_trace_info"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (WorkOrder) TableName() string { return "work_order" }

// AmountPolicy is either Infinite or Quota(Amount, PerTraceInfo).
type AmountPolicy struct {
	Infinite     bool
	Amount       int64
	PerTraceInfo int64
}

func Infinite() AmountPolicy { return AmountPolicy{Infinite: true} }

func Quota(amount, perTraceInfo int64) AmountPolicy {
	return AmountPolicy{Amount: amount, PerTraceInfo: perTraceInfo}
}

// Policy decodes the stored amount columns. Unknown kinds are treated as
// infinite so legacy rows without a ceiling keep producing.
func (w *WorkOrder) Policy() AmountPolicy {
	if w == nil {
		return Infinite()
	}
	switch strings.ToLower(strings.TrimSpace(w.AmountKind)) {
	case AmountKindQuota:
		per := w.PerTraceInfo
		if per <= 0 {
			per = 1
		}
		return Quota(w.Amount, per)
	default:
		return Infinite()
	}
}

// IsApproved reports whether the document status allows production.
func (w *WorkOrder) IsApproved() bool {
	return w != nil && strings.EqualFold(strings.TrimSpace(w.DocStatus), DocStatusApproved)
}

// WorkOrderExecution is the live execution context of a work order.
// The ledger only reads Accumulation and HasFinished.
type WorkOrderExecution struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	WorkOrderID   uuid.UUID `gorm:"type:uuid;column:work_order_id;not null;index" json:"work_order_id"`
	WorkOrderCode string    `gorm:"column:work_order_code;not null;uniqueIndex" json:"work_order_code"`

	Accumulation int64 `gorm:"column:accumulation;not null;default:0" json:"accumulation"`
	HasFinished  bool  `gorm:"column:has_finished;not null;default:false" json:"has_finished"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (WorkOrderExecution) TableName() string { return "work_order_execution" }

// BomRecipe is the bill-of-materials header a work order consumes against.
type BomRecipe struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Code        string          `gorm:"column:code;not null;uniqueIndex" json:"code"`
	ProductCode string          `gorm:"column:product_code;not null;index" json:"product_code"`
	Items       []BomRecipeItem `gorm:"foreignKey:RecipeID" json:"items,omitempty"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updated_at"`
}

func (BomRecipe) TableName() string { return "bom_recipe" }

// BomRecipeItem is one line of a recipe. Quota is the maximum cumulative
// consumption allowed per produced unit.
type BomRecipeItem struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RecipeID uuid.UUID `gorm:"type:uuid;column:recipe_id;not null;index:idx_bom_recipe_item_code,unique,priority:1" json:"recipe_id"`
	ItemCode string    `gorm:"column:item_code;not null;index:idx_bom_recipe_item_code,unique,priority:2" json:"item_code"`

	MaterialCode string  `gorm:"column:material_code;not null" json:"material_code"`
	MaterialName string  `gorm:"column:material_name" json:"material_name"`
	MeasureUnit  string  `gorm:"column:measure_unit" json:"measure_unit"`
	Quota        float64 `gorm:"column:quota;type:decimal(18,6);not null" json:"quota"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (BomRecipeItem) TableName() string { return "bom_recipe_item" }

// SequenceCounter ("ctrl vsn") holds the next sequence value per product code.
// Current only ever increases.
type SequenceCounter struct {
	ProductCode string    `gorm:"column:product_code;primaryKey" json:"product_code"`
	Current     int64     `gorm:"column:current_value;not null" json:"current"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (SequenceCounter) TableName() string { return "ctrl_vsn" }
