package production

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/mes-backend/internal/domain/production"
	"github.com/yungbote/mes-backend/internal/pkg/dbctx"
	"github.com/yungbote/mes-backend/internal/pkg/logger"
)

type WorkOrderRepo interface {
	Upsert(dbc dbctx.Context, rows []*production.WorkOrder) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*production.WorkOrder, error)
	GetByCode(dbc dbctx.Context, code string) (*production.WorkOrder, error)
}

type workOrderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorkOrderRepo(db *gorm.DB, baseLog *logger.Logger) WorkOrderRepo {
	return &workOrderRepo{db: db, log: baseLog.With("repo", "WorkOrderRepo")}
}

// Upsert keys on code; master data is owned upstream and re-seeded wholesale.
func (r *workOrderRepo) Upsert(dbc dbctx.Context, rows []*production.WorkOrder) error {
	if len(rows) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"product_code", "product_line_code", "bom_recipe_id", "doc_status",
				"amount_kind", "amount", "per_trace_info", "updated_at",
			}),
		}).
		Create(&rows).Error
}

func (r *workOrderRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*production.WorkOrder, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row production.WorkOrder
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *workOrderRepo) GetByCode(dbc dbctx.Context, code string) (*production.WorkOrder, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var row production.WorkOrder
	if err := dbc.DB(r.db).Where("code = ?", code).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}
