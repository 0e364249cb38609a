package production

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/mes-backend/internal/domain/production"
	"github.com/yungbote/mes-backend/internal/pkg/dbctx"
	"github.com/yungbote/mes-backend/internal/pkg/logger"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// TraceFilter narrows Paginate. Zero-valued fields do not filter.
type TraceFilter struct {
	ProductCode     string
	ProductLineCode string
	WorkOrderID     uuid.UUID
	Pin             string
	IsNg            *bool
	Destroyed       *bool
	CreatedFrom     *time.Time
	CreatedTo       *time.Time

	Page     int
	PageSize int
}

// Normalize clamps paging to sane bounds.
func (f TraceFilter) Normalize() TraceFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	f.ProductCode = strings.TrimSpace(f.ProductCode)
	f.ProductLineCode = strings.TrimSpace(f.ProductLineCode)
	f.Pin = strings.TrimSpace(f.Pin)
	return f
}

type TracePage struct {
	Items    []*production.TraceInfo
	Total    int64
	Page     int
	PageSize int
}

type TraceRecordRepo interface {
	// Append inserts the header and any children it already carries.
	Append(dbc dbctx.Context, rec *production.TraceInfo) error

	FindByID(dbc dbctx.Context, id uuid.UUID) (*production.TraceInfo, error)
	FindByPin(dbc dbctx.Context, pin string) (*production.TraceInfo, error)
	FindBySequence(dbc dbctx.Context, productCode string, sequence int64) (*production.TraceInfo, error)

	// LockByID/LockByPin take a row lock on the header (postgres) and load
	// children after the lock is held.
	LockByID(dbc dbctx.Context, id uuid.UUID) (*production.TraceInfo, error)
	LockByPin(dbc dbctx.Context, pin string) (*production.TraceInfo, error)

	// Paginate returns headers only, newest first.
	Paginate(dbc dbctx.Context, filter TraceFilter) (TracePage, error)
	FindStaleUnbound(dbc dbctx.Context, expiryMinutes int, limit int) ([]*production.TraceInfo, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// BindPin sets pin only while the row is still unbound.
	BindPin(dbc dbctx.Context, id uuid.UUID, pin string, at time.Time) (bool, error)

	CreateBomItems(dbc dbctx.Context, items []*production.TraceBomItem) error
	SoftDeleteBomItem(dbc dbctx.Context, traceInfoID, itemID uuid.UUID, at time.Time) (bool, error)
	CreateProcItems(dbc dbctx.Context, items []*production.TraceProcItem) error
	SoftDeleteProcItems(dbc dbctx.Context, traceInfoID uuid.UUID, itemIDs []uuid.UUID, at time.Time) (int64, error)

	// PurgeByIDs hard-deletes records that are still unbound, with their
	// children. Bound records are never removed. Candidates are row-locked
	// with SKIP LOCKED, so a record held by a concurrent writer is left for
	// the next sweep.
	PurgeByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error)
}

// skipLocked is dropped by the sqlite dialect, where write transactions
// are already serialized.
var skipLocked = clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}

type traceRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTraceRecordRepo(db *gorm.DB, baseLog *logger.Logger) TraceRecordRepo {
	return &traceRecordRepo{db: db, log: baseLog.With("repo", "TraceRecordRepo")}
}

func (r *traceRecordRepo) Append(dbc dbctx.Context, rec *production.TraceInfo) error {
	if rec == nil {
		return nil
	}
	t := dbc.DB(r.db)
	if err := t.Omit(clause.Associations).Create(rec).Error; err != nil {
		return err
	}
	if len(rec.BomItems) > 0 {
		if err := t.Create(&rec.BomItems).Error; err != nil {
			return err
		}
	}
	if len(rec.ProcItems) > 0 {
		if err := t.Create(&rec.ProcItems).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *traceRecordRepo) FindByID(dbc dbctx.Context, id uuid.UUID) (*production.TraceInfo, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.findOne(dbc, dbc.DB(r.db).Where("id = ?", id))
}

func (r *traceRecordRepo) FindByPin(dbc dbctx.Context, pin string) (*production.TraceInfo, error) {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return nil, nil
	}
	return r.findOne(dbc, dbc.DB(r.db).Where("pin = ?", pin))
}

func (r *traceRecordRepo) FindBySequence(dbc dbctx.Context, productCode string, sequence int64) (*production.TraceInfo, error) {
	productCode = strings.TrimSpace(productCode)
	if productCode == "" {
		return nil, nil
	}
	return r.findOne(dbc, dbc.DB(r.db).Where("product_code = ? AND sequence = ?", productCode, sequence))
}

func (r *traceRecordRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*production.TraceInfo, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	q := dbc.DB(r.db).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id)
	return r.findOne(dbc, q)
}

func (r *traceRecordRepo) LockByPin(dbc dbctx.Context, pin string) (*production.TraceInfo, error) {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return nil, nil
	}
	q := dbc.DB(r.db).Clauses(clause.Locking{Strength: "UPDATE"}).Where("pin = ?", pin)
	return r.findOne(dbc, q)
}

func (r *traceRecordRepo) findOne(dbc dbctx.Context, q *gorm.DB) (*production.TraceInfo, error) {
	var row production.TraceInfo
	if err := q.Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	if err := r.loadChildren(dbc, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// loadChildren includes soft-deleted rows; guards need the full history.
func (r *traceRecordRepo) loadChildren(dbc dbctx.Context, rec *production.TraceInfo) error {
	t := dbc.DB(r.db)
	bom := []production.TraceBomItem{}
	if err := t.Where("trace_info_id = ?", rec.ID).Order("created_at ASC, id ASC").Find(&bom).Error; err != nil {
		return err
	}
	proc := []production.TraceProcItem{}
	if err := t.Where("trace_info_id = ?", rec.ID).Order("created_at ASC, id ASC").Find(&proc).Error; err != nil {
		return err
	}
	rec.BomItems = bom
	rec.ProcItems = proc
	return nil
}

func (r *traceRecordRepo) Paginate(dbc dbctx.Context, filter TraceFilter) (TracePage, error) {
	f := filter.Normalize()
	q := dbc.DB(r.db).Model(&production.TraceInfo{})
	if f.ProductCode != "" {
		q = q.Where("product_code = ?", f.ProductCode)
	}
	if f.ProductLineCode != "" {
		q = q.Where("product_line_code = ?", f.ProductLineCode)
	}
	if f.WorkOrderID != uuid.Nil {
		q = q.Where("work_order_id = ?", f.WorkOrderID)
	}
	if f.Pin != "" {
		q = q.Where("pin = ?", f.Pin)
	}
	if f.IsNg != nil {
		q = q.Where("is_ng = ?", *f.IsNg)
	}
	if f.Destroyed != nil {
		q = q.Where("destroyed = ?", *f.Destroyed)
	}
	if f.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		q = q.Where("created_at < ?", *f.CreatedTo)
	}

	out := TracePage{Page: f.Page, PageSize: f.PageSize, Items: []*production.TraceInfo{}}
	q = q.Session(&gorm.Session{})
	if err := q.Count(&out.Total).Error; err != nil {
		return TracePage{}, err
	}
	if out.Total == 0 {
		return out, nil
	}
	err := q.Order("created_at DESC, sequence DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&out.Items).Error
	if err != nil {
		return TracePage{}, err
	}
	return out, nil
}

func (r *traceRecordRepo) FindStaleUnbound(dbc dbctx.Context, expiryMinutes int, limit int) ([]*production.TraceInfo, error) {
	var out []*production.TraceInfo
	if expiryMinutes <= 0 {
		return out, nil
	}
	cutoff := time.Now().UTC().Add(-time.Duration(expiryMinutes) * time.Minute)
	q := dbc.DB(r.db).
		Clauses(skipLocked).
		Where("pin = ? AND created_at < ?", "", cutoff).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *traceRecordRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).
		Model(&production.TraceInfo{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *traceRecordRepo) BindPin(dbc dbctx.Context, id uuid.UUID, pin string, at time.Time) (bool, error) {
	if id == uuid.Nil || pin == "" {
		return false, nil
	}
	res := dbc.DB(r.db).
		Model(&production.TraceInfo{}).
		Where("id = ? AND pin = ?", id, "").
		Updates(map[string]interface{}{"pin": pin, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *traceRecordRepo) CreateBomItems(dbc dbctx.Context, items []*production.TraceBomItem) error {
	if len(items) == 0 {
		return nil
	}
	return dbc.DB(r.db).Create(&items).Error
}

func (r *traceRecordRepo) SoftDeleteBomItem(dbc dbctx.Context, traceInfoID, itemID uuid.UUID, at time.Time) (bool, error) {
	if traceInfoID == uuid.Nil || itemID == uuid.Nil {
		return false, nil
	}
	res := dbc.DB(r.db).
		Model(&production.TraceBomItem{}).
		Where("id = ? AND trace_info_id = ? AND is_deleted = ?", itemID, traceInfoID, false).
		Updates(map[string]interface{}{"is_deleted": true, "deleted_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *traceRecordRepo) CreateProcItems(dbc dbctx.Context, items []*production.TraceProcItem) error {
	if len(items) == 0 {
		return nil
	}
	return dbc.DB(r.db).Create(&items).Error
}

func (r *traceRecordRepo) SoftDeleteProcItems(dbc dbctx.Context, traceInfoID uuid.UUID, itemIDs []uuid.UUID, at time.Time) (int64, error) {
	if traceInfoID == uuid.Nil || len(itemIDs) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).
		Model(&production.TraceProcItem{}).
		Where("id IN ? AND trace_info_id = ? AND is_deleted = ?", itemIDs, traceInfoID, false).
		Updates(map[string]interface{}{"is_deleted": true, "deleted_at": at})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *traceRecordRepo) PurgeByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	t := dbc.DB(r.db)
	// Children are only deleted for headers locked here while unbound.
	var unbound []uuid.UUID
	if err := t.Model(&production.TraceInfo{}).
		Clauses(skipLocked).
		Where("id IN ? AND pin = ?", ids, "").
		Pluck("id", &unbound).Error; err != nil {
		return 0, err
	}
	if len(unbound) == 0 {
		return 0, nil
	}
	if err := t.Where("trace_info_id IN ?", unbound).Delete(&production.TraceBomItem{}).Error; err != nil {
		return 0, err
	}
	if err := t.Where("trace_info_id IN ?", unbound).Delete(&production.TraceProcItem{}).Error; err != nil {
		return 0, err
	}
	res := t.Where("id IN ? AND pin = ?", unbound, "").Delete(&production.TraceInfo{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
