package aggregates_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/mes-backend/internal/data/aggregates"
	aggtest "github.com/yungbote/mes-backend/internal/data/aggregates/testutil"
	repos "github.com/yungbote/mes-backend/internal/data/repos"
	repotest "github.com/yungbote/mes-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/mes-backend/internal/domain/aggregates"
	"github.com/yungbote/mes-backend/internal/domain/production"
	"github.com/yungbote/mes-backend/internal/pkg/dbctx"
)

type ledgerFixture struct {
	agg   domainagg.TraceLedgerAggregate
	repos repos.Repos
	hooks *aggtest.HooksRecorder
	db    *gorm.DB
}

func newLedgerFixture(t *testing.T, db *gorm.DB, runner aggregates.TxRunner) ledgerFixture {
	t.Helper()
	log := repotest.Logger(t)
	r := repos.New(db, log)
	hooks := &aggtest.HooksRecorder{}
	if runner == nil {
		runner = aggregates.NewGormTxRunner(db)
	}
	agg := aggregates.NewTraceLedgerAggregate(aggregates.TraceLedgerAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:     db,
			Log:    log,
			Runner: runner,
			Hooks:  hooks,
		},
		WorkOrders:   r.WorkOrders,
		Executions:   r.Executions,
		Recipes:      r.Recipes,
		Counters:     r.Counters,
		TraceRecords: r.TraceRecords,
	})
	return ledgerFixture{agg: agg, repos: r, hooks: hooks, db: db}
}

func (f ledgerFixture) counter(t *testing.T, ctx context.Context, productCode string) int64 {
	t.Helper()
	c, err := f.repos.Counters.Get(dbctx.Context{Ctx: ctx}, productCode)
	if err != nil || c == nil {
		t.Fatalf("counter %s: err=%v row=%v", productCode, err, c)
	}
	return c.Current
}

func (f ledgerFixture) create(t *testing.T, ctx context.Context, l *repotest.Ledger) *production.TraceInfo {
	t.Helper()
	res, err := f.agg.CreateTraceRecord(ctx, domainagg.CreateTraceRecordInput{WorkOrderID: l.WorkOrder.ID})
	if err != nil {
		t.Fatalf("CreateTraceRecord: %v", err)
	}
	return res.Record
}

func requireKind(t *testing.T, err error, code domainagg.ErrorCode, kind string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error", kind)
	}
	if !domainagg.IsCode(err, code) {
		t.Fatalf("code: want=%s got=%s (%v)", code, domainagg.CodeOf(err), err)
	}
	if got := domainagg.KindOf(err); got != kind {
		t.Fatalf("kind: want=%s got=%s (%v)", kind, got, err)
	}
}

func TestTraceLedgerCreateAllocatesSequences(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	ctx := context.Background()
	f := newLedgerFixture(t, tx, nil)
	l := repotest.SeedLedger(t, ctx, tx)

	first := f.create(t, ctx, l)
	second := f.create(t, ctx, l)
	if first.Sequence != 1 || second.Sequence != 2 {
		t.Fatalf("sequences: want=1,2 got=%d,%d", first.Sequence, second.Sequence)
	}
	if first.Pin != "" || first.ProductCode != l.ProductCode || first.BomRecipeID != l.Recipe.ID {
		t.Fatalf("unexpected record: %+v", first)
	}
	if got := f.counter(t, ctx, l.ProductCode); got != 3 {
		t.Fatalf("counter: want=3 got=%d", got)
	}
	stored, err := f.repos.TraceRecords.FindBySequence(dbctx.Context{Ctx: ctx}, l.ProductCode, 2)
	if err != nil || stored == nil || stored.ID != second.ID {
		t.Fatalf("FindBySequence: err=%v got=%v", err, stored)
	}

	res, err := f.agg.CreateTraceRecord(ctx, domainagg.CreateTraceRecordInput{
		WorkOrderID:     l.WorkOrder.ID,
		ProductLineCode: "L9",
	})
	if err != nil {
		t.Fatalf("CreateTraceRecord override line: %v", err)
	}
	if res.Record.ProductLineCode != "L9" {
		t.Fatalf("product line: want=L9 got=%s", res.Record.ProductLineCode)
	}
	if len(res.Events) != 1 || res.Events[0].EventType() != production.EventTraceInfoCreated {
		t.Fatalf("events: %+v", res.Events)
	}
}

func TestTraceLedgerCreateRejections(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	ctx := context.Background()
	f := newLedgerFixture(t, tx, nil)

	t.Run("work order not found", func(t *testing.T) {
		_, err := f.agg.CreateTraceRecord(ctx, domainagg.CreateTraceRecordInput{WorkOrderID: uuid.New()})
		requireKind(t, err, domainagg.CodeNotFound, production.KindWorkOrderNotFound)
	})

	t.Run("not executing", func(t *testing.T) {
		product := repotest.Unique("P")
		recipe := repotest.SeedRecipe(t, ctx, tx, product, nil)
		wo := repotest.SeedWorkOrder(t, ctx, tx, product, recipe.ID, production.Infinite())
		repotest.SeedCounter(t, ctx, tx, product, 1)
		_, err := f.agg.CreateTraceRecord(ctx, domainagg.CreateTraceRecordInput{WorkOrderID: wo.ID})
		requireKind(t, err, domainagg.CodePreconditionFailed, production.KindWorkOrderNotExecuting)
	})

	t.Run("finished", func(t *testing.T) {
		product := repotest.Unique("P")
		recipe := repotest.SeedRecipe(t, ctx, tx, product, nil)
		wo := repotest.SeedWorkOrder(t, ctx, tx, product, recipe.ID, production.Infinite())
		repotest.SeedExecution(t, ctx, tx, wo, 0, true)
		repotest.SeedCounter(t, ctx, tx, product, 1)
		_, err := f.agg.CreateTraceRecord(ctx, domainagg.CreateTraceRecordInput{WorkOrderID: wo.ID})
		requireKind(t, err, domainagg.CodePreconditionFailed, production.KindWorkOrderFinished)
	})

	t.Run("quota exceeded leaves counter untouched", func(t *testing.T) {
		product := repotest.Unique("P")
		recipe := repotest.SeedRecipe(t, ctx, tx, product, nil)
		wo := repotest.SeedWorkOrder(t, ctx, tx, product, recipe.ID, production.Quota(10, 1))
		repotest.SeedExecution(t, ctx, tx, wo, 10, false)
		repotest.SeedCounter(t, ctx, tx, product, 7)
		_, err := f.agg.CreateTraceRecord(ctx, domainagg.CreateTraceRecordInput{WorkOrderID: wo.ID})
		requireKind(t, err, domainagg.CodeInvariantViolation, production.KindWorkOrderQuotaExceeds)
		if got := f.counter(t, ctx, product); got != 7 {
			t.Fatalf("counter: want=7 got=%d", got)
		}
	})

	t.Run("counter missing", func(t *testing.T) {
		product := repotest.Unique("P")
		recipe := repotest.SeedRecipe(t, ctx, tx, product, nil)
		wo := repotest.SeedWorkOrder(t, ctx, tx, product, recipe.ID, production.Infinite())
		repotest.SeedExecution(t, ctx, tx, wo, 0, false)
		_, err := f.agg.CreateTraceRecord(ctx, domainagg.CreateTraceRecordInput{WorkOrderID: wo.ID})
		requireKind(t, err, domainagg.CodeInternal, production.KindMisc)
	})

	t.Run("missing work order id", func(t *testing.T) {
		_, err := f.agg.CreateTraceRecord(ctx, domainagg.CreateTraceRecordInput{})
		if !domainagg.IsCode(err, domainagg.CodeValidation) {
			t.Fatalf("expected validation, got=%v", err)
		}
	})

	if len(f.hooks.RejectionKinds()) != 5 {
		t.Fatalf("rejections: want=5 got=%v", f.hooks.RejectionKinds())
	}
}

func TestTraceLedgerCreateRollsBackOnCommitFailure(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	ctx := context.Background()
	commitErr := errors.New("commit failed")
	runner := &aggtest.InjectedTxRunner{DB: tx, FailCommit: commitErr}
	f := newLedgerFixture(t, tx, runner)
	l := repotest.SeedLedger(t, ctx, tx)

	if _, err := f.agg.CreateTraceRecord(ctx, domainagg.CreateTraceRecordInput{WorkOrderID: l.WorkOrder.ID}); err == nil {
		t.Fatalf("expected commit failure")
	}
	if runner.RollbackCalls != 1 || runner.CommitCalls != 0 {
		t.Fatalf("runner counters: commit=%d rollback=%d", runner.CommitCalls, runner.RollbackCalls)
	}
	if got := f.counter(t, ctx, l.ProductCode); got != 1 {
		t.Fatalf("counter after rollback: want=1 got=%d", got)
	}
	rec, err := f.repos.TraceRecords.FindBySequence(dbctx.Context{Ctx: ctx}, l.ProductCode, 1)
	if err != nil || rec != nil {
		t.Fatalf("record after rollback: err=%v got=%v", err, rec)
	}
}

func TestTraceLedgerBindPin(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	ctx := context.Background()
	f := newLedgerFixture(t, tx, nil)
	l := repotest.SeedLedger(t, ctx, tx)
	a := f.create(t, ctx, l)
	b := f.create(t, ctx, l)

	pin := repotest.Unique("PIN")
	res, err := f.agg.BindPin(ctx, domainagg.BindPinInput{TraceInfoID: a.ID, Pin: pin})
	if err != nil {
		t.Fatalf("BindPin: %v", err)
	}
	if res.Record.Pin != pin {
		t.Fatalf("pin: want=%s got=%s", pin, res.Record.Pin)
	}

	_, err = f.agg.BindPin(ctx, domainagg.BindPinInput{TraceInfoID: a.ID, Pin: "OTHER"})
	requireKind(t, err, domainagg.CodeConflict, production.KindAlreadyBound)

	_, err = f.agg.BindPin(ctx, domainagg.BindPinInput{TraceInfoID: uuid.New(), Pin: "X"})
	requireKind(t, err, domainagg.CodeNotFound, production.KindTraceInfoNotFound)

	// The same PIN on a second record trips the unique index, not a ledger rule.
	_, err = f.agg.BindPin(ctx, domainagg.BindPinInput{TraceInfoID: b.ID, Pin: pin})
	if !domainagg.IsCode(err, domainagg.CodeConflict) || domainagg.KindOf(err) != "" {
		t.Fatalf("duplicate pin: want conflict without kind, got code=%s kind=%s", domainagg.CodeOf(err), domainagg.KindOf(err))
	}

	stored, err := f.repos.TraceRecords.FindByPin(dbctx.Context{Ctx: ctx}, pin)
	if err != nil || stored == nil || stored.ID != a.ID {
		t.Fatalf("FindByPin: err=%v got=%v", err, stored)
	}

	if _, err := f.agg.BindPin(ctx, domainagg.BindPinInput{TraceInfoID: b.ID, Pin: "  "}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("blank pin: want validation got=%v", err)
	}
}

func TestTraceLedgerBomQuota(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	ctx := context.Background()
	f := newLedgerFixture(t, tx, nil)
	l := repotest.SeedLedger(t, ctx, tx)
	rec := f.create(t, ctx, l)

	first, err := f.agg.AddBomItem(ctx, domainagg.AddBomItemInput{TraceInfoID: rec.ID, ItemCode: "M1", Sku: "LOT-1", Consumption: 3})
	if err != nil {
		t.Fatalf("AddBomItem 3: %v", err)
	}
	if _, err := f.agg.AddBomItem(ctx, domainagg.AddBomItemInput{TraceInfoID: rec.ID, ItemCode: "M1", Consumption: 2}); err != nil {
		t.Fatalf("AddBomItem 2: %v", err)
	}
	_, err = f.agg.AddBomItem(ctx, domainagg.AddBomItemInput{TraceInfoID: rec.ID, ItemCode: "M1", Consumption: 0.1})
	requireKind(t, err, domainagg.CodeInvariantViolation, production.KindBomItemExceedsQuota)

	_, err = f.agg.AddBomItem(ctx, domainagg.AddBomItemInput{TraceInfoID: rec.ID, ItemCode: "NOPE", Consumption: 1})
	requireKind(t, err, domainagg.CodeNotFound, production.KindBomItemNotFound)

	firstItem := first.Record.BomItems[0]
	if _, err := f.agg.RemoveBomItem(ctx, domainagg.RemoveBomItemInput{TraceInfoID: rec.ID, ItemID: firstItem.ID}); err != nil {
		t.Fatalf("RemoveBomItem: %v", err)
	}
	_, err = f.agg.RemoveBomItem(ctx, domainagg.RemoveBomItemInput{TraceInfoID: rec.ID, ItemID: firstItem.ID})
	requireKind(t, err, domainagg.CodeConflict, production.KindAlreadyDeleted)

	_, err = f.agg.RemoveBomItem(ctx, domainagg.RemoveBomItemInput{TraceInfoID: rec.ID, ItemID: uuid.New()})
	requireKind(t, err, domainagg.CodeNotFound, production.KindBomItemNotFound)

	// Freed quota can be consumed again.
	res, err := f.agg.AddBomItem(ctx, domainagg.AddBomItemInput{TraceInfoID: rec.ID, ItemCode: "M1", Consumption: 3})
	if err != nil {
		t.Fatalf("AddBomItem after remove: %v", err)
	}
	if got := res.Record.LiveConsumption("M1"); got != 5 {
		t.Fatalf("live consumption: want=5 got=%v", got)
	}

	stored, err := f.repos.TraceRecords.FindByID(dbctx.Context{Ctx: ctx}, rec.ID)
	if err != nil || stored == nil {
		t.Fatalf("FindByID: err=%v", err)
	}
	if len(stored.BomItems) != 3 {
		t.Fatalf("bom rows: want=3 got=%d", len(stored.BomItems))
	}
	removed, ok := stored.BomItem(firstItem.ID)
	if !ok || !removed.IsDeleted || removed.DeletedAt == nil {
		t.Fatalf("removed row: %+v", removed)
	}
}

func TestTraceLedgerBomDefaultsToRecipeQuota(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	ctx := context.Background()
	f := newLedgerFixture(t, tx, nil)
	l := repotest.SeedLedger(t, ctx, tx)
	rec := f.create(t, ctx, l)

	res, err := f.agg.AddBomItem(ctx, domainagg.AddBomItemInput{TraceInfoID: rec.ID, ItemCode: "M1"})
	if err != nil {
		t.Fatalf("AddBomItem: %v", err)
	}
	if got := res.Record.BomItems[0].Consumption; got != 5 {
		t.Fatalf("consumption: want=5 got=%v", got)
	}
	if _, err := f.agg.AddBomItem(ctx, domainagg.AddBomItemInput{TraceInfoID: rec.ID, ItemCode: "M1", Consumption: -1}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("negative consumption: want validation got=%v", err)
	}
}

func TestTraceLedgerProcItems(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	ctx := context.Background()
	f := newLedgerFixture(t, tx, nil)
	l := repotest.SeedLedger(t, ctx, tx)
	rec := f.create(t, ctx, l)
	pin := repotest.Unique("PIN")
	if _, err := f.agg.BindPin(ctx, domainagg.BindPinInput{TraceInfoID: rec.ID, Pin: pin}); err != nil {
		t.Fatalf("BindPin: %v", err)
	}

	add := func(value string, replace bool) (domainagg.TraceRecordResult, error) {
		return f.agg.AddProcItem(ctx, domainagg.AddProcItemInput{
			Pin:            pin,
			Station:        "S1",
			Key:            "torque",
			Value:          json.RawMessage(value),
			DeleteExisting: replace,
		})
	}

	first, err := add(`{"nm":12.5}`, false)
	if err != nil {
		t.Fatalf("AddProcItem: %v", err)
	}
	_, err = add(`{"nm":13}`, false)
	requireKind(t, err, domainagg.CodeConflict, production.KindAlreadyExists)

	replaced, err := add(`{"nm":13}`, true)
	if err != nil {
		t.Fatalf("AddProcItem replace: %v", err)
	}
	if len(replaced.Events) != 2 || replaced.Events[0].EventType() != production.EventProcItemsReplaced {
		t.Fatalf("replace events: %+v", replaced.Events)
	}
	live := replaced.Record.LiveProcItems("S1", "torque")
	if len(live) != 1 || live[0].ID == first.Record.ProcItems[0].ID {
		t.Fatalf("live items after replace: %+v", live)
	}

	stored, err := f.repos.TraceRecords.FindByPin(dbctx.Context{Ctx: ctx}, pin)
	if err != nil || stored == nil {
		t.Fatalf("FindByPin: err=%v", err)
	}
	if len(stored.ProcItems) != 2 || len(stored.LiveProcItems("S1", "torque")) != 1 {
		t.Fatalf("stored proc rows: %+v", stored.ProcItems)
	}

	liveID := live[0].ID
	if _, err := f.agg.RemoveProcItem(ctx, domainagg.RemoveProcItemInput{TraceInfoID: rec.ID, ItemID: liveID}); err != nil {
		t.Fatalf("RemoveProcItem: %v", err)
	}
	_, err = f.agg.RemoveProcItem(ctx, domainagg.RemoveProcItemInput{TraceInfoID: rec.ID, ItemID: liveID})
	requireKind(t, err, domainagg.CodeConflict, production.KindAlreadyDeleted)
	_, err = f.agg.RemoveProcItem(ctx, domainagg.RemoveProcItemInput{TraceInfoID: rec.ID, ItemID: uuid.New()})
	requireKind(t, err, domainagg.CodeNotFound, production.KindProcItemNotFound)

	_, err = f.agg.AddProcItem(ctx, domainagg.AddProcItemInput{Pin: "UNKNOWN-" + pin, Station: "S1", Key: "k"})
	requireKind(t, err, domainagg.CodeNotFound, production.KindTraceInfoNotFound)

	if _, err := add(`{not json`, false); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("invalid json: want validation got=%v", err)
	}
}

func TestTraceLedgerForcedOverrides(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	ctx := context.Background()
	f := newLedgerFixture(t, tx, nil)
	l := repotest.SeedLedger(t, ctx, tx)
	rec := f.create(t, ctx, l)

	if _, err := f.agg.ForceNg(ctx, domainagg.ForceNgInput{TraceInfoID: rec.ID, IsNg: true, NgReason: "scratch"}); err != nil {
		t.Fatalf("ForceNg: %v", err)
	}
	destroyedAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	if _, err := f.agg.ForceDestroyed(ctx, domainagg.ForceDestroyedInput{TraceInfoID: rec.ID, Destroyed: true, At: destroyedAt}); err != nil {
		t.Fatalf("ForceDestroyed: %v", err)
	}
	res, err := f.agg.ForceDestroyed(ctx, domainagg.ForceDestroyedInput{TraceInfoID: rec.ID, Destroyed: false})
	if err != nil {
		t.Fatalf("ForceDestroyed restore: %v", err)
	}
	if res.Record.Destroyed {
		t.Fatalf("destroyed should be false after restore")
	}

	stored, err := f.repos.TraceRecords.FindByID(dbctx.Context{Ctx: ctx}, rec.ID)
	if err != nil || stored == nil {
		t.Fatalf("FindByID: err=%v", err)
	}
	if !stored.IsNg || stored.NgReason != "scratch" {
		t.Fatalf("ng: want=true/scratch got=%v/%s", stored.IsNg, stored.NgReason)
	}
	if stored.Destroyed || stored.DestroyedAt == nil || !stored.DestroyedAt.Equal(destroyedAt) {
		t.Fatalf("destroyed: got=%v at=%v", stored.Destroyed, stored.DestroyedAt)
	}

	_, err = f.agg.ForceNg(ctx, domainagg.ForceNgInput{TraceInfoID: uuid.New(), IsNg: true})
	requireKind(t, err, domainagg.CodeNotFound, production.KindTraceInfoNotFound)
}

func TestTraceLedgerConcurrentCreatesGetDistinctSequences(t *testing.T) {
	if testing.Short() {
		t.Skip("concurrency test")
	}
	db := repotest.DB(t)
	ctx := context.Background()
	l := repotest.SeedLedger(t, ctx, db)
	f := newLedgerFixture(t, db, nil)

	const workers = 12
	seqs := make([]int64, workers)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			for attempt := 0; ; attempt++ {
				res, err := f.agg.CreateTraceRecord(gctx, domainagg.CreateTraceRecordInput{WorkOrderID: l.WorkOrder.ID})
				if err == nil {
					seqs[i] = res.Record.Sequence
					return nil
				}
				transient := domainagg.IsCode(err, domainagg.CodeRetryable) || domainagg.IsCode(err, domainagg.CodeConflict)
				if !transient || attempt >= 50 {
					return err
				}
				time.Sleep(time.Duration(attempt+1) * 5 * time.Millisecond)
			}
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent create: %v", err)
	}

	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for i, s := range seqs {
		if s != int64(i+1) {
			t.Fatalf("sequences not dense and unique: %v", seqs)
		}
	}
	if got := f.counter(t, ctx, l.ProductCode); got != workers+1 {
		t.Fatalf("counter: want=%d got=%d", workers+1, got)
	}
}
