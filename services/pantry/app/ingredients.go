package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"larder/pkg/apperr"
	"larder/services/pantry/domain"
)

// IngredientFields are the user editable attributes of an ingredient.
type IngredientFields struct {
	Name       string  `json:"name"`
	CategoryID string  `json:"categoryId"`
	UnitID     string  `json:"unitId"`
	Quantity   float64 `json:"quantity"`
	Threshold  float64 `json:"threshold"`
	ExpiresOn  string  `json:"expiresOn"`
	Memo       string  `json:"memo"`
}

// RegisterIngredientCommand adds an ingredient to the caller's pantry.
type RegisterIngredientCommand struct {
	UserID string
	IngredientFields
}

// UpdateIngredientCommand replaces the editable attributes of an ingredient.
type UpdateIngredientCommand struct {
	UserID       string
	IngredientID string
	IngredientFields
}

// SetStockCommand records a new on-hand quantity.
type SetStockCommand struct {
	UserID       string
	IngredientID string
	Quantity     float64
}

// IngredientCommand addresses one ingredient on behalf of its owner.
type IngredientCommand struct {
	UserID       string
	IngredientID string
}

// ListIngredientsQuery lists the caller's ingredients, optionally within one category.
type ListIngredientsQuery struct {
	UserID     string
	CategoryID string
}

type validatedFields struct {
	name       domain.IngredientName
	categoryID domain.CategoryID
	unitID     domain.UnitID
	quantity   domain.Quantity
	threshold  domain.Quantity
	expiresOn  *time.Time
	memo       domain.Memo
}

func (f IngredientFields) validate() (validatedFields, error) {
	var (
		out validatedFields
		err error
	)
	if out.name, err = domain.NewIngredientName(f.Name); err != nil {
		return validatedFields{}, err
	}
	if out.categoryID, err = domain.ParseCategoryID(f.CategoryID); err != nil {
		return validatedFields{}, err
	}
	if out.unitID, err = domain.ParseUnitID(f.UnitID); err != nil {
		return validatedFields{}, err
	}
	if out.quantity, err = domain.NewQuantity("quantity", f.Quantity); err != nil {
		return validatedFields{}, err
	}
	if out.threshold, err = domain.NewQuantity("threshold", f.Threshold); err != nil {
		return validatedFields{}, err
	}
	if out.expiresOn, err = domain.ParseExpiryDate(f.ExpiresOn); err != nil {
		return validatedFields{}, err
	}
	if out.memo, err = domain.NewMemo(f.Memo); err != nil {
		return validatedFields{}, err
	}
	return out, nil
}

func (v validatedFields) applyTo(ing *domain.Ingredient) {
	ing.Name = v.name
	ing.CategoryID = v.categoryID
	ing.UnitID = v.unitID
	ing.Quantity = v.quantity
	ing.Threshold = v.threshold
	ing.ExpiresOn = v.expiresOn
	ing.Memo = v.memo
}

func errIngredientNotFound() error {
	return apperr.NotFound(apperr.CodeIngredientNotFound, "ingredient not found")
}

func errIngredientNameTaken() error {
	return apperr.Conflict(apperr.CodeIngredientNameTaken, "an ingredient with this name already exists")
}

func ensureReferences(ctx context.Context, tx Store, category domain.CategoryID, unit domain.UnitID) error {
	if _, err := tx.Reference().FindCategory(ctx, category); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return apperr.NotFound(apperr.CodeCategoryNotFound, fmt.Sprintf("category %q not found", category.Value()))
		}
		return apperr.Internal("find category", err)
	}
	if _, err := tx.Reference().FindUnit(ctx, unit); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return apperr.NotFound(apperr.CodeUnitNotFound, fmt.Sprintf("unit %q not found", unit.Value()))
		}
		return apperr.Internal("find unit", err)
	}
	return nil
}

func findIngredient(ctx context.Context, tx Store, user domain.UserID, id domain.IngredientID) (*domain.Ingredient, error) {
	ing, err := tx.Ingredients().Find(ctx, user, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, errIngredientNotFound()
		}
		return nil, apperr.Internal("find ingredient", err)
	}
	return ing, nil
}

func parseOwnedIngredient(userID, ingredientID string) (domain.UserID, domain.IngredientID, error) {
	user, err := domain.NewUserID(userID)
	if err != nil {
		return domain.UserID{}, domain.IngredientID{}, err
	}
	id, err := domain.ParseIngredientID(ingredientID)
	if err != nil {
		return domain.UserID{}, domain.IngredientID{}, err
	}
	return user, id, nil
}

// RegisterIngredient validates and stores a new ingredient.
func (s *Service) RegisterIngredient(ctx context.Context, cmd RegisterIngredientCommand) (IngredientSummary, error) {
	user, err := domain.NewUserID(cmd.UserID)
	if err != nil {
		return IngredientSummary{}, err
	}
	fields, err := cmd.validate()
	if err != nil {
		return IngredientSummary{}, err
	}

	now := s.now()
	ing := &domain.Ingredient{ID: domain.NewIngredientID(), UserID: user, CreatedAt: now, UpdatedAt: now}
	fields.applyTo(ing)

	err = s.store.InTx(ctx, func(tx Store) error {
		if err := ensureReferences(ctx, tx, ing.CategoryID, ing.UnitID); err != nil {
			return err
		}
		if err := tx.Ingredients().Create(ctx, ing); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return errIngredientNameTaken()
			}
			return apperr.Internal("create ingredient", err)
		}
		return nil
	})
	if err != nil {
		return IngredientSummary{}, err
	}
	return toIngredientSummary(ing, now), nil
}

// UpdateIngredient replaces the editable attributes of an existing ingredient.
func (s *Service) UpdateIngredient(ctx context.Context, cmd UpdateIngredientCommand) (IngredientSummary, error) {
	user, id, err := parseOwnedIngredient(cmd.UserID, cmd.IngredientID)
	if err != nil {
		return IngredientSummary{}, err
	}
	fields, err := cmd.validate()
	if err != nil {
		return IngredientSummary{}, err
	}

	now := s.now()
	var ing *domain.Ingredient
	err = s.store.InTx(ctx, func(tx Store) error {
		ing, err = findIngredient(ctx, tx, user, id)
		if err != nil {
			return err
		}
		if err := ensureReferences(ctx, tx, fields.categoryID, fields.unitID); err != nil {
			return err
		}
		fields.applyTo(ing)
		ing.UpdatedAt = now
		if err := tx.Ingredients().Save(ctx, ing); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return errIngredientNameTaken()
			}
			return apperr.Internal("save ingredient", err)
		}
		return nil
	})
	if err != nil {
		return IngredientSummary{}, err
	}
	return toIngredientSummary(ing, now), nil
}

// SetIngredientStock records the quantity currently on hand.
func (s *Service) SetIngredientStock(ctx context.Context, cmd SetStockCommand) (IngredientSummary, error) {
	user, id, err := parseOwnedIngredient(cmd.UserID, cmd.IngredientID)
	if err != nil {
		return IngredientSummary{}, err
	}
	quantity, err := domain.NewQuantity("quantity", cmd.Quantity)
	if err != nil {
		return IngredientSummary{}, err
	}

	now := s.now()
	var ing *domain.Ingredient
	err = s.store.InTx(ctx, func(tx Store) error {
		ing, err = findIngredient(ctx, tx, user, id)
		if err != nil {
			return err
		}
		ing.Quantity = quantity
		ing.UpdatedAt = now
		if err := tx.Ingredients().Save(ctx, ing); err != nil {
			return apperr.Internal("save ingredient", err)
		}
		return nil
	})
	if err != nil {
		return IngredientSummary{}, err
	}
	return toIngredientSummary(ing, now), nil
}

// DeleteIngredient soft deletes an ingredient. Its past check records are kept.
func (s *Service) DeleteIngredient(ctx context.Context, cmd IngredientCommand) error {
	user, id, err := parseOwnedIngredient(cmd.UserID, cmd.IngredientID)
	if err != nil {
		return err
	}

	if err := s.store.Ingredients().Delete(ctx, user, id); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return errIngredientNotFound()
		}
		return apperr.Internal("delete ingredient", err)
	}
	return nil
}

// GetIngredient returns one of the caller's ingredients.
func (s *Service) GetIngredient(ctx context.Context, cmd IngredientCommand) (IngredientSummary, error) {
	user, id, err := parseOwnedIngredient(cmd.UserID, cmd.IngredientID)
	if err != nil {
		return IngredientSummary{}, err
	}
	ing, err := findIngredient(ctx, s.store, user, id)
	if err != nil {
		return IngredientSummary{}, err
	}
	return toIngredientSummary(ing, s.now()), nil
}

// ListIngredients returns the caller's ingredients ordered by name.
func (s *Service) ListIngredients(ctx context.Context, q ListIngredientsQuery) ([]IngredientSummary, error) {
	user, err := domain.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}
	var filter IngredientFilter
	if strings.TrimSpace(q.CategoryID) != "" {
		category, err := domain.ParseCategoryID(q.CategoryID)
		if err != nil {
			return nil, err
		}
		filter.CategoryID = &category
	}

	ingredients, err := s.store.Ingredients().List(ctx, user, filter)
	if err != nil {
		return nil, apperr.Internal("list ingredients", err)
	}
	sort.SliceStable(ingredients, func(i, j int) bool {
		return ingredients[i].Name.Value() < ingredients[j].Name.Value()
	})

	now := s.now()
	out := make([]IngredientSummary, 0, len(ingredients))
	for _, ing := range ingredients {
		out = append(out, toIngredientSummary(ing, now))
	}
	return out, nil
}
