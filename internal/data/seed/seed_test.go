package seed

import (
	"context"
	"strings"
	"testing"

	repos "github.com/yungbote/mes-backend/internal/data/repos"
	repotest "github.com/yungbote/mes-backend/internal/data/repos/testutil"
	"github.com/yungbote/mes-backend/internal/domain/production"
	"github.com/yungbote/mes-backend/internal/pkg/dbctx"
)

func TestLoadDefault(t *testing.T) {
	f, err := Load("")
	if err != nil {
		t.Fatalf("Load default: %v", err)
	}
	if len(f.Recipes) != 1 || len(f.WorkOrders) != 2 || len(f.Counters) != 1 {
		t.Fatalf("default seed shape: recipes=%d work_orders=%d counters=%d", len(f.Recipes), len(f.WorkOrders), len(f.Counters))
	}
	if f.Recipes[0].Items[0].Quota != 5 {
		t.Fatalf("M1 quota: want=5 got=%v", f.Recipes[0].Items[0].Quota)
	}
}

func TestParseRejectsInvalidFiles(t *testing.T) {
	cases := map[string]string{
		"unknown recipe": `
work_orders:
  - code: WO-X
    product_code: P
    recipe: NOPE
`,
		"duplicate item": `
recipes:
  - code: R
    product_code: P
    items:
      - item_code: M1
      - item_code: M1
`,
		"bad amount kind": `
recipes:
  - code: R
    product_code: P
work_orders:
  - code: WO
    product_code: P
    recipe: R
    amount: {kind: weekly}
`,
		"counter below one": `
counters:
  - product_code: P
    current: 0
`,
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if _, err := Parse([]byte("recipes: [")); err == nil || !strings.Contains(err.Error(), "parse seed file") {
		t.Fatalf("malformed yaml: got=%v", err)
	}
}

func TestApplyIsIdempotentAndKeepsCounters(t *testing.T) {
	db := repotest.SQLiteDB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	r := repos.New(db, repotest.Logger(t))

	f, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sum, err := Apply(dbc, r, f, repotest.Logger(t))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if sum.Recipes != 1 || sum.WorkOrders != 2 || sum.Executions != 2 || sum.Counters != 1 {
		t.Fatalf("summary: %+v", sum)
	}

	if ok, err := r.Counters.CompareAndAdvance(dbc, "P-100", 1); err != nil || !ok {
		t.Fatalf("advance: ok=%v err=%v", ok, err)
	}
	if _, err := Apply(dbc, r, f, nil); err != nil {
		t.Fatalf("Apply again: %v", err)
	}

	c, err := r.Counters.Get(dbc, "P-100")
	if err != nil || c == nil || c.Current != 2 {
		t.Fatalf("counter after reseed: err=%v row=%+v", err, c)
	}
	wo, err := r.WorkOrders.GetByCode(dbc, "WO-1")
	if err != nil || wo == nil {
		t.Fatalf("GetByCode: err=%v", err)
	}
	if wo.ID != WorkOrderID("WO-1") || wo.BomRecipeID != RecipeID("R-100") {
		t.Fatalf("ids not derived from codes: %+v", wo)
	}
	if p := wo.Policy(); p.Infinite || p.Amount != 10 || p.PerTraceInfo != 1 {
		t.Fatalf("policy: %+v", p)
	}
	item, err := r.Recipes.GetItemByCode(dbc, RecipeID("R-100"), "M1")
	if err != nil || item == nil || item.Quota != 5 {
		t.Fatalf("recipe item: err=%v item=%+v", err, item)
	}
	exec, err := r.Executions.GetByWorkOrderCode(dbc, "WO-2")
	if err != nil || exec == nil || exec.HasFinished {
		t.Fatalf("execution: err=%v row=%+v", err, exec)
	}
	if wo2, _ := r.WorkOrders.GetByCode(dbc, "WO-2"); wo2 == nil || wo2.DocStatus != production.DocStatusApproved {
		t.Fatalf("WO-2 doc status: %+v", wo2)
	}
}
