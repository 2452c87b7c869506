package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"larder/pkg/apperr"
	"larder/services/pantry/domain"
)

const (
	MinLimit                = 1
	MaxLimit                = 100
	DefaultRecentLimit      = 10
	DefaultQuickAccessLimit = 20
)

// SortBy selects the ordering of reference data.
type SortBy string

const (
	SortByDisplayOrder SortBy = "displayOrder"
	SortByName         SortBy = "name"
)

// ParseSortBy validates raw; an empty value selects SortByDisplayOrder.
func ParseSortBy(raw string) (SortBy, error) {
	switch v := SortBy(strings.TrimSpace(raw)); v {
	case "":
		return SortByDisplayOrder, nil
	case SortByDisplayOrder, SortByName:
		return v, nil
	default:
		return "", apperr.Validation("sortBy", apperr.RuleInvalidValue, fmt.Sprintf("sortBy must be %q or %q", SortByDisplayOrder, SortByName))
	}
}

// UnmarshalJSON applies the same validation and default as ParseSortBy.
func (s *SortBy) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSortBy(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s SortBy) orDefault() SortBy {
	if s == "" {
		return SortByDisplayOrder
	}
	return s
}

// GetCategoriesQuery lists categories.
type GetCategoriesQuery struct {
	SortBy SortBy `json:"sortBy"`
}

func NewGetCategoriesQuery(sortBy string) (GetCategoriesQuery, error) {
	s, err := ParseSortBy(sortBy)
	if err != nil {
		return GetCategoriesQuery{}, err
	}
	return GetCategoriesQuery{SortBy: s}, nil
}

// GetUnitsQuery lists units.
type GetUnitsQuery struct {
	SortBy SortBy `json:"sortBy"`
}

func NewGetUnitsQuery(sortBy string) (GetUnitsQuery, error) {
	s, err := ParseSortBy(sortBy)
	if err != nil {
		return GetUnitsQuery{}, err
	}
	return GetUnitsQuery{SortBy: s}, nil
}

// GetActiveSessionQuery looks up the caller's ACTIVE session.
type GetActiveSessionQuery struct {
	UserID string `json:"userId"`
}

// GetRecentSessionsQuery lists the caller's most recent sessions.
type GetRecentSessionsQuery struct {
	UserID string `json:"userId"`
	Limit  int    `json:"limit"`
}

func NewGetRecentSessionsQuery(userID string, limit int) (GetRecentSessionsQuery, error) {
	q := GetRecentSessionsQuery{UserID: userID, Limit: limit}
	if _, err := q.validate(); err != nil {
		return GetRecentSessionsQuery{}, err
	}
	return q, nil
}

func (q GetRecentSessionsQuery) validate() (domain.UserID, error) {
	return validateUserAndLimit(q.UserID, q.Limit)
}

// GetQuickAccessIngredientsQuery lists ingredients that need attention.
type GetQuickAccessIngredientsQuery struct {
	UserID string `json:"userId"`
	Limit  int    `json:"limit"`
}

func NewGetQuickAccessIngredientsQuery(userID string, limit int) (GetQuickAccessIngredientsQuery, error) {
	q := GetQuickAccessIngredientsQuery{UserID: userID, Limit: limit}
	if _, err := q.validate(); err != nil {
		return GetQuickAccessIngredientsQuery{}, err
	}
	return q, nil
}

func (q GetQuickAccessIngredientsQuery) validate() (domain.UserID, error) {
	return validateUserAndLimit(q.UserID, q.Limit)
}

func validateUserAndLimit(userID string, limit int) (domain.UserID, error) {
	if limit < MinLimit || limit > MaxLimit {
		return domain.UserID{}, apperr.Validation("limit", apperr.RuleOutOfRange, fmt.Sprintf("limit must be between %d and %d", MinLimit, MaxLimit))
	}
	return domain.NewUserID(userID)
}

// GetActiveSession returns the caller's ACTIVE session, or nil when there is none.
func (s *Service) GetActiveSession(ctx context.Context, q GetActiveSessionQuery) (*SessionSummary, error) {
	user, err := domain.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}

	session, err := s.store.Sessions().FindActiveByUser(ctx, user)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Internal("find active session", err)
	}
	checks, err := s.store.Sessions().CountChecks(ctx, session.ID)
	if err != nil {
		return nil, apperr.Internal("count checks", err)
	}
	summary := toSessionSummary(session, checks)
	return &summary, nil
}

// GetRecentSessions returns up to Limit sessions, newest first.
func (s *Service) GetRecentSessions(ctx context.Context, q GetRecentSessionsQuery) ([]SessionSummary, error) {
	user, err := q.validate()
	if err != nil {
		return nil, err
	}

	sessions, err := s.store.Sessions().FindRecent(ctx, user, q.Limit)
	if err != nil {
		return nil, apperr.Internal("find recent sessions", err)
	}
	out := make([]SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		checks, err := s.store.Sessions().CountChecks(ctx, session.ID)
		if err != nil {
			return nil, apperr.Internal("count checks", err)
		}
		out = append(out, toSessionSummary(session, checks))
	}
	return out, nil
}

// GetQuickAccessIngredients returns the ingredients most in need of restocking,
// most urgent first and then by name.
func (s *Service) GetQuickAccessIngredients(ctx context.Context, q GetQuickAccessIngredientsQuery) ([]IngredientSummary, error) {
	user, err := q.validate()
	if err != nil {
		return nil, err
	}

	all, err := s.store.Ingredients().List(ctx, user, IngredientFilter{})
	if err != nil {
		return nil, apperr.Internal("list ingredients", err)
	}

	now := s.now()
	candidates := make([]*domain.Ingredient, 0, len(all))
	for _, ing := range all {
		if ing.NeedsAttention(now) {
			candidates = append(candidates, ing)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		ui, uj := candidates[i].Urgency(now), candidates[j].Urgency(now)
		if ui != uj {
			return ui > uj
		}
		return candidates[i].Name.Value() < candidates[j].Name.Value()
	})
	if len(candidates) > q.Limit {
		candidates = candidates[:q.Limit]
	}

	out := make([]IngredientSummary, 0, len(candidates))
	for _, ing := range candidates {
		out = append(out, toIngredientSummary(ing, now))
	}
	return out, nil
}

// GetCategories lists categories in the requested order.
func (s *Service) GetCategories(ctx context.Context, q GetCategoriesQuery) ([]CategorySummary, error) {
	categories, err := s.store.Reference().Categories(ctx, q.SortBy.orDefault())
	if err != nil {
		return nil, apperr.Internal("list categories", err)
	}
	out := make([]CategorySummary, 0, len(categories))
	for _, c := range categories {
		out = append(out, CategorySummary{ID: c.ID.Value(), Name: c.Name.Value(), DisplayOrder: c.DisplayOrder.Value()})
	}
	return out, nil
}

// GetUnits lists units in the requested order.
func (s *Service) GetUnits(ctx context.Context, q GetUnitsQuery) ([]UnitSummary, error) {
	units, err := s.store.Reference().Units(ctx, q.SortBy.orDefault())
	if err != nil {
		return nil, apperr.Internal("list units", err)
	}
	out := make([]UnitSummary, 0, len(units))
	for _, u := range units {
		out = append(out, UnitSummary{ID: u.ID.Value(), Name: u.Name.Value(), Symbol: u.Symbol.Value(), DisplayOrder: u.DisplayOrder.Value()})
	}
	return out, nil
}
