package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/mes-backend/internal/data/repos"
	domainagg "github.com/yungbote/mes-backend/internal/domain/aggregates"
	"github.com/yungbote/mes-backend/internal/domain/production"
	"github.com/yungbote/mes-backend/internal/observability"
	"github.com/yungbote/mes-backend/internal/pkg/ctxutil"
	"github.com/yungbote/mes-backend/internal/pkg/dbctx"
	"github.com/yungbote/mes-backend/internal/pkg/logger"
)

type TraceServiceConfig struct {
	// CreateMaxAttempts bounds retries of contended creations. <= 0 means 5.
	CreateMaxAttempts int
	CreateBaseBackoff time.Duration
	CreateMaxBackoff  time.Duration
}

func (c TraceServiceConfig) withDefaults() TraceServiceConfig {
	if c.CreateMaxAttempts <= 0 {
		c.CreateMaxAttempts = 5
	}
	if c.CreateBaseBackoff <= 0 {
		c.CreateBaseBackoff = 20 * time.Millisecond
	}
	if c.CreateMaxBackoff <= 0 {
		c.CreateMaxBackoff = 500 * time.Millisecond
	}
	return c
}

type TraceService interface {
	Create(ctx context.Context, in domainagg.CreateTraceRecordInput) (*production.TraceInfo, error)
	BindPin(ctx context.Context, in domainagg.BindPinInput) (*production.TraceInfo, error)
	AddBomItem(ctx context.Context, in domainagg.AddBomItemInput) (*production.TraceInfo, error)
	RemoveBomItem(ctx context.Context, in domainagg.RemoveBomItemInput) (*production.TraceInfo, error)
	AddProcItem(ctx context.Context, in domainagg.AddProcItemInput) (*production.TraceInfo, error)
	RemoveProcItem(ctx context.Context, in domainagg.RemoveProcItemInput) (*production.TraceInfo, error)
	ForceNg(ctx context.Context, in domainagg.ForceNgInput) (*production.TraceInfo, error)
	ForceDestroyed(ctx context.Context, in domainagg.ForceDestroyedInput) (*production.TraceInfo, error)

	Get(ctx context.Context, id uuid.UUID) (*production.TraceInfo, error)
	GetByPin(ctx context.Context, pin string) (*production.TraceInfo, error)
	GetBySequence(ctx context.Context, productCode string, sequence int64) (*production.TraceInfo, error)
	List(ctx context.Context, filter repos.TraceFilter) (repos.TracePage, error)

	// PurgeStaleUnbound removes up to batch records still unbound after
	// expiryMinutes. Bound records are never touched.
	PurgeStaleUnbound(ctx context.Context, expiryMinutes, batch int) (int64, error)
}

type traceService struct {
	db        *gorm.DB
	log       *logger.Logger
	ledger    domainagg.TraceLedgerAggregate
	records   repos.TraceRecordRepo
	publisher EventPublisher
	metrics   *observability.Metrics
	cfg       TraceServiceConfig
}

func NewTraceService(
	db *gorm.DB,
	baseLog *logger.Logger,
	ledger domainagg.TraceLedgerAggregate,
	records repos.TraceRecordRepo,
	publisher EventPublisher,
	metrics *observability.Metrics,
	cfg TraceServiceConfig,
) TraceService {
	if publisher == nil {
		publisher = NoopEventPublisher{}
	}
	return &traceService{
		db:        db,
		log:       baseLog.With("service", "TraceService"),
		ledger:    ledger,
		records:   records,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg.withDefaults(),
	}
}

func (s *traceService) Create(ctx context.Context, in domainagg.CreateTraceRecordInput) (*production.TraceInfo, error) {
	// One id across attempts so a retried creation is the same unit.
	if in.TraceInfoID == uuid.Nil {
		in.TraceInfoID = uuid.New()
	}

	attempts := 0
	op := func() (domainagg.TraceRecordResult, error) {
		attempts++
		res, err := s.ledger.CreateTraceRecord(ctx, in)
		if err == nil {
			return res, nil
		}
		if isContention(err) {
			s.log.Debug("trace creation contended, retrying", append(ctxutil.LogFields(ctx), "attempt", attempts, "error", err)...)
			return res, err
		}
		return res, backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.CreateBaseBackoff
	bo.MaxInterval = s.cfg.CreateMaxBackoff
	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(s.cfg.CreateMaxAttempts)),
	)
	s.metrics.ObserveCreateAttempts(attempts)
	if err != nil {
		return nil, err
	}

	s.metrics.IncTraceCreated(res.Record.ProductCode)
	s.log.Info("trace record created", append(ctxutil.LogFields(ctx),
		"trace_info_id", res.Record.ID,
		"product_code", res.Record.ProductCode,
		"sequence", res.Record.Sequence,
		"attempts", attempts,
	)...)
	s.publisher.Publish(ctx, res.Events)
	return res.Record, nil
}

func (s *traceService) BindPin(ctx context.Context, in domainagg.BindPinInput) (*production.TraceInfo, error) {
	return s.commit(ctx, func() (domainagg.TraceRecordResult, error) { return s.ledger.BindPin(ctx, in) })
}

func (s *traceService) AddBomItem(ctx context.Context, in domainagg.AddBomItemInput) (*production.TraceInfo, error) {
	return s.commit(ctx, func() (domainagg.TraceRecordResult, error) { return s.ledger.AddBomItem(ctx, in) })
}

func (s *traceService) RemoveBomItem(ctx context.Context, in domainagg.RemoveBomItemInput) (*production.TraceInfo, error) {
	return s.commit(ctx, func() (domainagg.TraceRecordResult, error) { return s.ledger.RemoveBomItem(ctx, in) })
}

func (s *traceService) AddProcItem(ctx context.Context, in domainagg.AddProcItemInput) (*production.TraceInfo, error) {
	return s.commit(ctx, func() (domainagg.TraceRecordResult, error) { return s.ledger.AddProcItem(ctx, in) })
}

func (s *traceService) RemoveProcItem(ctx context.Context, in domainagg.RemoveProcItemInput) (*production.TraceInfo, error) {
	return s.commit(ctx, func() (domainagg.TraceRecordResult, error) { return s.ledger.RemoveProcItem(ctx, in) })
}

func (s *traceService) ForceNg(ctx context.Context, in domainagg.ForceNgInput) (*production.TraceInfo, error) {
	rec, err := s.commit(ctx, func() (domainagg.TraceRecordResult, error) { return s.ledger.ForceNg(ctx, in) })
	if err != nil {
		return nil, err
	}
	s.metrics.IncForcedOverride("ng")
	s.log.Warn("forced ng override", append(ctxutil.LogFields(ctx),
		"trace_info_id", rec.ID,
		"pin", rec.Pin,
		"is_ng", rec.IsNg,
		"ng_reason", rec.NgReason,
	)...)
	return rec, nil
}

func (s *traceService) ForceDestroyed(ctx context.Context, in domainagg.ForceDestroyedInput) (*production.TraceInfo, error) {
	rec, err := s.commit(ctx, func() (domainagg.TraceRecordResult, error) { return s.ledger.ForceDestroyed(ctx, in) })
	if err != nil {
		return nil, err
	}
	s.metrics.IncForcedOverride("destroyed")
	s.log.Warn("forced destroyed override", append(ctxutil.LogFields(ctx),
		"trace_info_id", rec.ID,
		"pin", rec.Pin,
		"destroyed", rec.Destroyed,
		"destroyed_at", rec.DestroyedAt,
	)...)
	return rec, nil
}

func (s *traceService) commit(ctx context.Context, fn func() (domainagg.TraceRecordResult, error)) (*production.TraceInfo, error) {
	res, err := fn()
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, res.Events)
	return res.Record, nil
}

func (s *traceService) Get(ctx context.Context, id uuid.UUID) (*production.TraceInfo, error) {
	const op = "Production.TraceService.Get"
	rec, err := s.records.FindByID(dbctx.Context{Ctx: ctx}, id)
	return found(op, rec, err, &production.TraceInfoNotFoundError{ID: id})
}

func (s *traceService) GetByPin(ctx context.Context, pin string) (*production.TraceInfo, error) {
	const op = "Production.TraceService.GetByPin"
	pin = strings.TrimSpace(pin)
	rec, err := s.records.FindByPin(dbctx.Context{Ctx: ctx}, pin)
	return found(op, rec, err, &production.TraceInfoNotFoundError{Pin: pin})
}

func (s *traceService) GetBySequence(ctx context.Context, productCode string, sequence int64) (*production.TraceInfo, error) {
	const op = "Production.TraceService.GetBySequence"
	rec, err := s.records.FindBySequence(dbctx.Context{Ctx: ctx}, productCode, sequence)
	if err == nil && rec == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op,
			fmt.Sprintf("no trace record %s/%d", productCode, sequence), &production.TraceInfoNotFoundError{})
	}
	return found(op, rec, err, nil)
}

func (s *traceService) List(ctx context.Context, filter repos.TraceFilter) (repos.TracePage, error) {
	page, err := s.records.Paginate(dbctx.Context{Ctx: ctx}, filter)
	if err != nil {
		return repos.TracePage{}, domainagg.Wrap(domainagg.CodeInternal, "Production.TraceService.List", err)
	}
	return page, nil
}

func (s *traceService) PurgeStaleUnbound(ctx context.Context, expiryMinutes, batch int) (int64, error) {
	if expiryMinutes <= 0 {
		return 0, fmt.Errorf("expiry minutes must be positive")
	}
	var purged int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		stale, err := s.records.FindStaleUnbound(dbc, expiryMinutes, batch)
		if err != nil {
			return err
		}
		if len(stale) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(stale))
		for _, rec := range stale {
			ids = append(ids, rec.ID)
		}
		purged, err = s.records.PurgeByIDs(dbc, ids)
		return err
	})
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.metrics.AddSweepPurged(purged)
		s.log.Info("purged stale unbound trace records", append(ctxutil.LogFields(ctx),
			"count", purged,
			"expiry_minutes", expiryMinutes,
		)...)
	}
	return purged, nil
}

func found(op string, rec *production.TraceInfo, err error, missing *production.TraceInfoNotFoundError) (*production.TraceInfo, error) {
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if rec == nil {
		return nil, domainagg.Wrap(domainagg.CodeNotFound, op, missing)
	}
	return rec, nil
}

// isContention reports infrastructure contention on creation. Ledger
// rejections carry a kind and are never retried.
func isContention(err error) bool {
	if domainagg.KindOf(err) != "" {
		return false
	}
	return domainagg.IsCode(err, domainagg.CodeRetryable) || domainagg.IsCode(err, domainagg.CodeConflict)
}
