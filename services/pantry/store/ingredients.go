package store

import (
	"context"

	"gorm.io/gorm"

	"larder/services/pantry/app"
	"larder/services/pantry/domain"
)

type ingredientRepo struct {
	db *gorm.DB
}

func (r *ingredientRepo) Find(ctx context.Context, user domain.UserID, id domain.IngredientID) (*domain.Ingredient, error) {
	var row ingredientRow
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", user.Value(), id.Value()).
		Take(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return row.toDomain()
}

func (r *ingredientRepo) List(ctx context.Context, user domain.UserID, filter app.IngredientFilter) ([]*domain.Ingredient, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", user.Value())
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", filter.CategoryID.Value())
	}

	var rows []ingredientRow
	if err := q.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}

	out := make([]*domain.Ingredient, 0, len(rows))
	for _, row := range rows {
		ing, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, ing)
	}
	return out, nil
}

func (r *ingredientRepo) Create(ctx context.Context, ingredient *domain.Ingredient) error {
	row := newIngredientRow(ingredient)
	return translate(r.db.WithContext(ctx).Create(&row).Error)
}

func (r *ingredientRepo) Save(ctx context.Context, ingredient *domain.Ingredient) error {
	row := newIngredientRow(ingredient)
	res := r.db.WithContext(ctx).
		Model(&ingredientRow{}).
		Where("user_id = ? AND id = ?", row.UserID, row.ID).
		Select("name", "category_id", "unit_id", "quantity", "threshold", "expires_on", "memo", "photo_key", "updated_at").
		Updates(&row)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return app.ErrRecordNotFound
	}
	return nil
}

func (r *ingredientRepo) Delete(ctx context.Context, user domain.UserID, id domain.IngredientID) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", user.Value(), id.Value()).
		Delete(&ingredientRow{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return app.ErrRecordNotFound
	}
	return nil
}
