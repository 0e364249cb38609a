package production

import (
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/mes-backend/internal/domain/production"
	"github.com/yungbote/mes-backend/internal/pkg/dbctx"
	"github.com/yungbote/mes-backend/internal/pkg/logger"
)

type SequenceCounterRepo interface {
	// Provision inserts counters that do not exist yet; existing rows keep
	// their current value so a re-seed never rewinds a sequence.
	Provision(dbc dbctx.Context, rows []*production.SequenceCounter) error
	Get(dbc dbctx.Context, productCode string) (*production.SequenceCounter, error)
	LockByProductCode(dbc dbctx.Context, productCode string) (*production.SequenceCounter, error)
	// CompareAndAdvance moves current from prev to prev+1. It reports false
	// when another writer advanced the row first.
	CompareAndAdvance(dbc dbctx.Context, productCode string, prev int64) (bool, error)
}

type sequenceCounterRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSequenceCounterRepo(db *gorm.DB, baseLog *logger.Logger) SequenceCounterRepo {
	return &sequenceCounterRepo{db: db, log: baseLog.With("repo", "SequenceCounterRepo")}
}

func (r *sequenceCounterRepo) Provision(dbc dbctx.Context, rows []*production.SequenceCounter) error {
	if len(rows) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "product_code"}}, DoNothing: true}).
		Create(&rows).Error
}

func (r *sequenceCounterRepo) Get(dbc dbctx.Context, productCode string) (*production.SequenceCounter, error) {
	return r.find(dbc.DB(r.db), productCode)
}

// LockByProductCode takes a row lock on postgres. The sqlite dialect drops
// the locking clause; there the writer lock comes from BEGIN IMMEDIATE.
func (r *sequenceCounterRepo) LockByProductCode(dbc dbctx.Context, productCode string) (*production.SequenceCounter, error) {
	return r.find(dbc.DB(r.db).Clauses(clause.Locking{Strength: "UPDATE"}), productCode)
}

func (r *sequenceCounterRepo) find(q *gorm.DB, productCode string) (*production.SequenceCounter, error) {
	productCode = strings.TrimSpace(productCode)
	if productCode == "" {
		return nil, nil
	}
	var row production.SequenceCounter
	if err := q.Where("product_code = ?", productCode).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ProductCode == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *sequenceCounterRepo) CompareAndAdvance(dbc dbctx.Context, productCode string, prev int64) (bool, error) {
	res := dbc.DB(r.db).
		Model(&production.SequenceCounter{}).
		Where("product_code = ? AND current_value = ?", productCode, prev).
		Updates(map[string]interface{}{
			"current_value": prev + 1,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
