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

type BomRecipeRepo interface {
	// Upsert writes the header keyed on code and items keyed on
	// (recipe_id, item_code). Items missing from recipe are left alone.
	Upsert(dbc dbctx.Context, recipe *production.BomRecipe) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*production.BomRecipe, error)
	GetItemByCode(dbc dbctx.Context, recipeID uuid.UUID, itemCode string) (*production.BomRecipeItem, error)
}

type bomRecipeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBomRecipeRepo(db *gorm.DB, baseLog *logger.Logger) BomRecipeRepo {
	return &bomRecipeRepo{db: db, log: baseLog.With("repo", "BomRecipeRepo")}
}

func (r *bomRecipeRepo) Upsert(dbc dbctx.Context, recipe *production.BomRecipe) error {
	if recipe == nil {
		return nil
	}
	t := dbc.DB(r.db)
	header := *recipe
	header.Items = nil
	if err := t.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"product_code", "updated_at"}),
	}).Create(&header).Error; err != nil {
		return err
	}
	if len(recipe.Items) == 0 {
		return nil
	}
	items := make([]*production.BomRecipeItem, 0, len(recipe.Items))
	for i := range recipe.Items {
		it := recipe.Items[i]
		it.RecipeID = recipe.ID
		items = append(items, &it)
	}
	return t.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recipe_id"}, {Name: "item_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"material_code", "material_name", "measure_unit", "quota"}),
	}).Create(&items).Error
}

func (r *bomRecipeRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*production.BomRecipe, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row production.BomRecipe
	err := dbc.DB(r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("item_code ASC") }).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *bomRecipeRepo) GetItemByCode(dbc dbctx.Context, recipeID uuid.UUID, itemCode string) (*production.BomRecipeItem, error) {
	itemCode = strings.TrimSpace(itemCode)
	if recipeID == uuid.Nil || itemCode == "" {
		return nil, nil
	}
	var row production.BomRecipeItem
	err := dbc.DB(r.db).
		Where("recipe_id = ? AND item_code = ?", recipeID, itemCode).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}
