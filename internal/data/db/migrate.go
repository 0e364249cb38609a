package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/mes-backend/internal/domain/production"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// =========================
		// Master data (read-only for the ledger)
		// =========================
		&production.WorkOrder{},
		&production.WorkOrderExecution{},
		&production.BomRecipe{},
		&production.BomRecipeItem{},

		// =========================
		// Ledger
		// =========================
		&production.SequenceCounter{},
		&production.TraceInfo{},
		&production.TraceBomItem{},
		&production.TraceProcItem{},
	); err != nil {
		return err
	}
	return EnsureLedgerIndexes(db)
}

// EnsureLedgerIndexes adds partial indexes gorm tags cannot express. Both
// postgres and sqlite accept the syntax.
func EnsureLedgerIndexes(db *gorm.DB) error {
	// A bound PIN identifies exactly one unit.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_trace_info_pin_bound
		ON trace_info(pin)
		WHERE pin <> '';
	`).Error; err != nil {
		return fmt.Errorf("create idx_trace_info_pin_bound: %w", err)
	}
	// At most one live process value per (record, station, key).
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_trace_proc_item_live
		ON trace_proc_item(trace_info_id, station, proc_key)
		WHERE is_deleted = false;
	`).Error; err != nil {
		return fmt.Errorf("create idx_trace_proc_item_live: %w", err)
	}
	// Sweep scans unbound records by age.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_trace_info_unbound_created
		ON trace_info(created_at)
		WHERE pin = '';
	`).Error; err != nil {
		return fmt.Errorf("create idx_trace_info_unbound_created: %w", err)
	}
	return nil
}
