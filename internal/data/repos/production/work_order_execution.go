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

type WorkOrderExecutionRepo interface {
	Upsert(dbc dbctx.Context, rows []*production.WorkOrderExecution) error
	GetByWorkOrderCode(dbc dbctx.Context, code string) (*production.WorkOrderExecution, error)
}

type workOrderExecutionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorkOrderExecutionRepo(db *gorm.DB, baseLog *logger.Logger) WorkOrderExecutionRepo {
	return &workOrderExecutionRepo{db: db, log: baseLog.With("repo", "WorkOrderExecutionRepo")}
}

func (r *workOrderExecutionRepo) Upsert(dbc dbctx.Context, rows []*production.WorkOrderExecution) error {
	if len(rows) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "work_order_code"}},
			DoUpdates: clause.AssignmentColumns([]string{"work_order_id", "accumulation", "has_finished", "updated_at"}),
		}).
		Create(&rows).Error
}

func (r *workOrderExecutionRepo) GetByWorkOrderCode(dbc dbctx.Context, code string) (*production.WorkOrderExecution, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var row production.WorkOrderExecution
	if err := dbc.DB(r.db).Where("work_order_code = ?", code).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}
