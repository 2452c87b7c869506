package app

import (
	"context"
	"time"

	"larder/pkg/apperr"
	"larder/services/pantry/domain"
)

// ShoppingListItem is one line of the printable shopping list.
type ShoppingListItem struct {
	IngredientID string  `json:"ingredientId"`
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	UnitSymbol   string  `json:"unitSymbol"`
	Reason       string  `json:"reason"`
}

// ShoppingList is the input of the shopping list template.
type ShoppingList struct {
	GeneratedAt time.Time          `json:"generatedAt"`
	Items       []ShoppingListItem `json:"items"`
}

// GetShoppingList turns the quick-access ingredients into list lines with unit symbols resolved.
func (s *Service) GetShoppingList(ctx context.Context, q GetQuickAccessIngredientsQuery) (ShoppingList, error) {
	ingredients, err := s.GetQuickAccessIngredients(ctx, q)
	if err != nil {
		return ShoppingList{}, err
	}

	units, err := s.store.Reference().Units(ctx, SortByDisplayOrder)
	if err != nil {
		return ShoppingList{}, apperr.Internal("list units", err)
	}
	symbols := make(map[string]string, len(units))
	for _, u := range units {
		symbols[u.ID.Value()] = u.Symbol.Value()
	}

	list := ShoppingList{GeneratedAt: s.now(), Items: make([]ShoppingListItem, 0, len(ingredients))}
	for _, ing := range ingredients {
		reason := ing.StockStatus
		if reason == string(domain.StockInStock) {
			reason = ing.ExpiryStatus
		}
		list.Items = append(list.Items, ShoppingListItem{
			IngredientID: ing.ID,
			Name:         ing.Name,
			Quantity:     ing.Quantity,
			UnitSymbol:   symbols[ing.UnitID],
			Reason:       reason,
		})
	}
	return list, nil
}
