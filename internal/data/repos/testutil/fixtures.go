package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/mes-backend/internal/domain/production"
)

// Ledger is a minimal, self-consistent set of master data for one product.
type Ledger struct {
	ProductCode string
	WorkOrder   *production.WorkOrder
	Execution   *production.WorkOrderExecution
	Recipe      *production.BomRecipe
	Counter     *production.SequenceCounter
}

// Unique returns prefix plus a random suffix, so fixtures never collide on a
// shared postgres database.
func Unique(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}

func SeedRecipe(tb testing.TB, ctx context.Context, tx *gorm.DB, productCode string, quotas map[string]float64) *production.BomRecipe {
	tb.Helper()
	now := time.Now().UTC()
	rec := &production.BomRecipe{
		ID:          uuid.New(),
		Code:        Unique("R"),
		ProductCode: productCode,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Omit("Items").Create(rec).Error; err != nil {
		tb.Fatalf("seed recipe: %v", err)
	}
	for code, q := range quotas {
		it := production.BomRecipeItem{
			ID:           uuid.New(),
			RecipeID:     rec.ID,
			ItemCode:     code,
			MaterialCode: "MAT-" + code,
			MaterialName: "material " + code,
			MeasureUnit:  "pcs",
			Quota:        q,
			CreatedAt:    now,
		}
		if err := tx.WithContext(ctx).Create(&it).Error; err != nil {
			tb.Fatalf("seed recipe item: %v", err)
		}
		rec.Items = append(rec.Items, it)
	}
	return rec
}

func SeedWorkOrder(tb testing.TB, ctx context.Context, tx *gorm.DB, productCode string, recipeID uuid.UUID, policy production.AmountPolicy) *production.WorkOrder {
	tb.Helper()
	now := time.Now().UTC()
	wo := &production.WorkOrder{
		ID:              uuid.New(),
		Code:            Unique("WO"),
		ProductCode:     productCode,
		ProductLineCode: "L1",
		BomRecipeID:     recipeID,
		DocStatus:       production.DocStatusApproved,
		AmountKind:      production.AmountKindInfinite,
		PerTraceInfo:    1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !policy.Infinite {
		wo.AmountKind = production.AmountKindQuota
		wo.Amount = policy.Amount
		wo.PerTraceInfo = policy.PerTraceInfo
	}
	if err := tx.WithContext(ctx).Create(wo).Error; err != nil {
		tb.Fatalf("seed work order: %v", err)
	}
	return wo
}

func SeedExecution(tb testing.TB, ctx context.Context, tx *gorm.DB, wo *production.WorkOrder, accumulation int64, finished bool) *production.WorkOrderExecution {
	tb.Helper()
	now := time.Now().UTC()
	ex := &production.WorkOrderExecution{
		ID:            uuid.New(),
		WorkOrderID:   wo.ID,
		WorkOrderCode: wo.Code,
		Accumulation:  accumulation,
		HasFinished:   finished,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.WithContext(ctx).Create(ex).Error; err != nil {
		tb.Fatalf("seed execution: %v", err)
	}
	return ex
}

func SeedCounter(tb testing.TB, ctx context.Context, tx *gorm.DB, productCode string, current int64) *production.SequenceCounter {
	tb.Helper()
	c := &production.SequenceCounter{ProductCode: productCode, Current: current, UpdatedAt: time.Now().UTC()}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed counter: %v", err)
	}
	return c
}

// SeedLedger provisions a fresh product with an approved, infinite work order,
// a running execution, a counter starting at 1 and a recipe with item M1
// (quota 5).
func SeedLedger(tb testing.TB, ctx context.Context, tx *gorm.DB) *Ledger {
	tb.Helper()
	product := Unique("P")
	recipe := SeedRecipe(tb, ctx, tx, product, map[string]float64{"M1": 5.0})
	wo := SeedWorkOrder(tb, ctx, tx, product, recipe.ID, production.Infinite())
	return &Ledger{
		ProductCode: product,
		WorkOrder:   wo,
		Execution:   SeedExecution(tb, ctx, tx, wo, 0, false),
		Recipe:      recipe,
		Counter:     SeedCounter(tb, ctx, tx, product, 1),
	}
}

func SeedTraceInfo(tb testing.TB, ctx context.Context, tx *gorm.DB, l *Ledger, seq int64, pin string, createdAt time.Time) *production.TraceInfo {
	tb.Helper()
	rec := &production.TraceInfo{
		ID:              uuid.New(),
		Sequence:        seq,
		ProductCode:     l.ProductCode,
		ProductLineCode: l.WorkOrder.ProductLineCode,
		WorkOrderID:     l.WorkOrder.ID,
		BomRecipeID:     l.Recipe.ID,
		Pin:             pin,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	if err := tx.WithContext(ctx).Omit("BomItems", "ProcItems").Create(rec).Error; err != nil {
		tb.Fatalf("seed trace info: %v", err)
	}
	return rec
}

func PtrBool(v bool) *bool { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
