// Package seed loads ledger master data from YAML for local runs and tests.
// IDs are derived from codes, so re-applying a file updates rows in place.
package seed

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	repos "github.com/yungbote/mes-backend/internal/data/repos"
	"github.com/yungbote/mes-backend/internal/domain/production"
	"github.com/yungbote/mes-backend/internal/pkg/dbctx"
	"github.com/yungbote/mes-backend/internal/pkg/logger"
)

//go:embed default_seed.yaml
var defaultSeed []byte

// namespace for code-derived IDs.
var namespace = uuid.MustParse("6f0c3f9e-1c55-4c8e-9a5e-2f1d8a0b7c41")

type File struct {
	Recipes    []Recipe    `yaml:"recipes"`
	WorkOrders []WorkOrder `yaml:"work_orders"`
	Counters   []Counter   `yaml:"counters"`
}

type Recipe struct {
	Code        string       `yaml:"code"`
	ProductCode string       `yaml:"product_code"`
	Items       []RecipeItem `yaml:"items"`
}

type RecipeItem struct {
	ItemCode     string  `yaml:"item_code"`
	MaterialCode string  `yaml:"material_code"`
	MaterialName string  `yaml:"material_name"`
	MeasureUnit  string  `yaml:"measure_unit"`
	Quota        float64 `yaml:"quota"`
}

type WorkOrder struct {
	Code            string     `yaml:"code"`
	ProductCode     string     `yaml:"product_code"`
	ProductLineCode string     `yaml:"product_line_code"`
	Recipe          string     `yaml:"recipe"`
	DocStatus       string     `yaml:"doc_status"`
	Amount          Amount     `yaml:"amount"`
	Execution       *Execution `yaml:"execution,omitempty"`
}

type Amount struct {
	Kind         string `yaml:"kind"`
	Amount       int64  `yaml:"amount"`
	PerTraceInfo int64  `yaml:"per_trace_info"`
}

type Execution struct {
	Accumulation int64 `yaml:"accumulation"`
	Finished     bool  `yaml:"finished"`
}

type Counter struct {
	ProductCode string `yaml:"product_code"`
	Current     int64  `yaml:"current"`
}

// Summary reports how many rows of each kind were applied.
type Summary struct {
	Recipes    int
	WorkOrders int
	Executions int
	Counters   int
}

// Load reads path, or the embedded default file when path is empty.
func Load(path string) (*File, error) {
	data := defaultSeed
	if p := strings.TrimSpace(path); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
		data = b
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) Validate() error {
	recipes := map[string]bool{}
	for i, r := range f.Recipes {
		if strings.TrimSpace(r.Code) == "" || strings.TrimSpace(r.ProductCode) == "" {
			return fmt.Errorf("recipes[%d]: code and product_code are required", i)
		}
		if recipes[r.Code] {
			return fmt.Errorf("recipes[%d]: duplicate code %q", i, r.Code)
		}
		recipes[r.Code] = true
		items := map[string]bool{}
		for j, it := range r.Items {
			if strings.TrimSpace(it.ItemCode) == "" {
				return fmt.Errorf("recipes[%d].items[%d]: item_code is required", i, j)
			}
			if items[it.ItemCode] {
				return fmt.Errorf("recipes[%d].items[%d]: duplicate item_code %q", i, j, it.ItemCode)
			}
			items[it.ItemCode] = true
			if it.Quota < 0 {
				return fmt.Errorf("recipes[%d].items[%d]: quota must be >= 0", i, j)
			}
		}
	}
	for i, wo := range f.WorkOrders {
		if strings.TrimSpace(wo.Code) == "" || strings.TrimSpace(wo.ProductCode) == "" {
			return fmt.Errorf("work_orders[%d]: code and product_code are required", i)
		}
		if !recipes[wo.Recipe] {
			return fmt.Errorf("work_orders[%d]: unknown recipe %q", i, wo.Recipe)
		}
		switch strings.ToLower(strings.TrimSpace(wo.Amount.Kind)) {
		case "", production.AmountKindInfinite:
		case production.AmountKindQuota:
			if wo.Amount.Amount < 0 || wo.Amount.PerTraceInfo < 0 {
				return fmt.Errorf("work_orders[%d]: amount and per_trace_info must be >= 0", i)
			}
		default:
			return fmt.Errorf("work_orders[%d]: unknown amount kind %q", i, wo.Amount.Kind)
		}
	}
	for i, c := range f.Counters {
		if strings.TrimSpace(c.ProductCode) == "" {
			return fmt.Errorf("counters[%d]: product_code is required", i)
		}
		if c.Current < 1 {
			return fmt.Errorf("counters[%d]: current must be >= 1", i)
		}
	}
	return nil
}

// Apply upserts the file through the repos. Counters are only provisioned;
// an existing counter is never moved backwards.
func Apply(dbc dbctx.Context, r repos.Repos, f *File, log *logger.Logger) (Summary, error) {
	var sum Summary
	if f == nil {
		return sum, nil
	}
	if log == nil {
		log = logger.NewNop()
	}
	now := time.Now().UTC()

	recipeIDs := map[string]uuid.UUID{}
	for _, rc := range f.Recipes {
		recipe := &production.BomRecipe{
			ID:          RecipeID(rc.Code),
			Code:        rc.Code,
			ProductCode: rc.ProductCode,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		for _, it := range rc.Items {
			recipe.Items = append(recipe.Items, production.BomRecipeItem{
				ID:           uuid.NewSHA1(namespace, []byte("recipe_item:"+rc.Code+"/"+it.ItemCode)),
				RecipeID:     recipe.ID,
				ItemCode:     it.ItemCode,
				MaterialCode: it.MaterialCode,
				MaterialName: it.MaterialName,
				MeasureUnit:  it.MeasureUnit,
				Quota:        it.Quota,
				CreatedAt:    now,
			})
		}
		if err := r.Recipes.Upsert(dbc, recipe); err != nil {
			return sum, fmt.Errorf("upsert recipe %s: %w", rc.Code, err)
		}
		recipeIDs[rc.Code] = recipe.ID
		sum.Recipes++
	}

	orders := make([]*production.WorkOrder, 0, len(f.WorkOrders))
	execs := make([]*production.WorkOrderExecution, 0, len(f.WorkOrders))
	for _, wo := range f.WorkOrders {
		row := &production.WorkOrder{
			ID:              WorkOrderID(wo.Code),
			Code:            wo.Code,
			ProductCode:     wo.ProductCode,
			ProductLineCode: wo.ProductLineCode,
			BomRecipeID:     recipeIDs[wo.Recipe],
			DocStatus:       firstNonEmpty(wo.DocStatus, production.DocStatusDraft),
			AmountKind:      firstNonEmpty(strings.ToLower(wo.Amount.Kind), production.AmountKindInfinite),
			Amount:          wo.Amount.Amount,
			PerTraceInfo:    wo.Amount.PerTraceInfo,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if row.PerTraceInfo <= 0 {
			row.PerTraceInfo = 1
		}
		orders = append(orders, row)
		if wo.Execution != nil {
			execs = append(execs, &production.WorkOrderExecution{
				ID:            uuid.NewSHA1(namespace, []byte("execution:"+wo.Code)),
				WorkOrderID:   row.ID,
				WorkOrderCode: row.Code,
				Accumulation:  wo.Execution.Accumulation,
				HasFinished:   wo.Execution.Finished,
				CreatedAt:     now,
				UpdatedAt:     now,
			})
		}
	}
	if err := r.WorkOrders.Upsert(dbc, orders); err != nil {
		return sum, fmt.Errorf("upsert work orders: %w", err)
	}
	sum.WorkOrders = len(orders)
	if err := r.Executions.Upsert(dbc, execs); err != nil {
		return sum, fmt.Errorf("upsert executions: %w", err)
	}
	sum.Executions = len(execs)

	counters := make([]*production.SequenceCounter, 0, len(f.Counters))
	for _, c := range f.Counters {
		counters = append(counters, &production.SequenceCounter{ProductCode: c.ProductCode, Current: c.Current, UpdatedAt: now})
	}
	if err := r.Counters.Provision(dbc, counters); err != nil {
		return sum, fmt.Errorf("provision counters: %w", err)
	}
	sum.Counters = len(counters)

	log.Info("seed applied",
		"recipes", sum.Recipes,
		"work_orders", sum.WorkOrders,
		"executions", sum.Executions,
		"counters", sum.Counters,
	)
	return sum, nil
}

func RecipeID(code string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte("recipe:"+code))
}

func WorkOrderID(code string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte("work_order:"+code))
}

func firstNonEmpty(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}
