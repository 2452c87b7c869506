package store

import (
	"context"

	"gorm.io/gorm"

	"larder/services/pantry/app"
	"larder/services/pantry/domain"
)

type referenceRepo struct {
	db *gorm.DB
}

func referenceOrder(sortBy app.SortBy) string {
	if sortBy == app.SortByName {
		return "name ASC, id ASC"
	}
	return "display_order ASC, id ASC"
}

func (r *referenceRepo) Categories(ctx context.Context, sortBy app.SortBy) ([]domain.Category, error) {
	var rows []categoryRow
	if err := r.db.WithContext(ctx).Order(referenceOrder(sortBy)).Find(&rows).Error; err != nil {
		return nil, translate(err)
	}

	out := make([]domain.Category, 0, len(rows))
	for _, row := range rows {
		c, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *referenceRepo) Units(ctx context.Context, sortBy app.SortBy) ([]domain.Unit, error) {
	var rows []unitRow
	if err := r.db.WithContext(ctx).Order(referenceOrder(sortBy)).Find(&rows).Error; err != nil {
		return nil, translate(err)
	}

	out := make([]domain.Unit, 0, len(rows))
	for _, row := range rows {
		u, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (r *referenceRepo) FindCategory(ctx context.Context, id domain.CategoryID) (domain.Category, error) {
	var row categoryRow
	if err := r.db.WithContext(ctx).Where("id = ?", id.Value()).Take(&row).Error; err != nil {
		return domain.Category{}, translate(err)
	}
	return row.toDomain()
}

func (r *referenceRepo) FindUnit(ctx context.Context, id domain.UnitID) (domain.Unit, error) {
	var row unitRow
	if err := r.db.WithContext(ctx).Where("id = ?", id.Value()).Take(&row).Error; err != nil {
		return domain.Unit{}, translate(err)
	}
	return row.toDomain()
}
