package production

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Command arguments are fully resolved: every referenced entity has been
// looked up and locked by the caller before an executor sees them.

type CreateTraceArg struct {
	WorkOrder       *WorkOrder
	Execution       *WorkOrderExecution
	ProductLineCode string
	Counter         *SequenceCounter
	// Optional; generated when nil.
	TraceInfoID uuid.UUID
}

type BindPinArg struct {
	Record *TraceInfo
	Pin    string
}

type AddBomItemArg struct {
	Record      *TraceInfo
	RecipeItem  *BomRecipeItem
	Sku         string
	Consumption float64
	ItemID      uuid.UUID
}

type RemoveBomItemArg struct {
	Record *TraceInfo
	ItemID uuid.UUID
}

type AddProcItemArg struct {
	Record         *TraceInfo
	Station        string
	Key            string
	Value          datatypes.JSON
	DeleteExisting bool
	ItemID         uuid.UUID
}

type RemoveProcItemArg struct {
	Record *TraceInfo
	ItemID uuid.UUID
}

type ForceNgArg struct {
	Record   *TraceInfo
	IsNg     bool
	NgReason string
}

type ForceDestroyedArg struct {
	Record    *TraceInfo
	Destroyed bool
}

// Result is the outcome of a successful command: the new aggregate state and
// the facts that produced it.
type Result struct {
	Record *TraceInfo
	Events []Event
}
