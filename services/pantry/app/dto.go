package app

import (
	"time"

	"larder/services/pantry/domain"
)

// SessionSummary is the response shape of a shopping session.
type SessionSummary struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	AbandonedAt *time.Time `json:"abandonedAt,omitempty"`
	DeviceType  string     `json:"deviceType,omitempty"`
	Location    string     `json:"location,omitempty"`
	CheckCount  int        `json:"checkCount"`
}

func toSessionSummary(s *domain.ShoppingSession, checks int) SessionSummary {
	return SessionSummary{
		ID:          s.ID.Value(),
		UserID:      s.UserID.Value(),
		Status:      s.Status.String(),
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
		AbandonedAt: s.AbandonedAt,
		DeviceType:  s.DeviceType.String(),
		Location:    s.Location.Value(),
		CheckCount:  checks,
	}
}

// CheckRecordSummary is the snapshot returned when an ingredient is checked.
type CheckRecordSummary struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	IngredientID string    `json:"ingredientId"`
	UserID       string    `json:"userId"`
	StockStatus  string    `json:"stockStatus"`
	ExpiryStatus string    `json:"expiryStatus"`
	CheckedAt    time.Time `json:"checkedAt"`
}

func toCheckRecordSummary(r *domain.CheckRecord) CheckRecordSummary {
	return CheckRecordSummary{
		ID:           r.ID.Value(),
		SessionID:    r.SessionID.Value(),
		IngredientID: r.IngredientID.Value(),
		UserID:       r.UserID.Value(),
		StockStatus:  string(r.StockStatus),
		ExpiryStatus: string(r.ExpiryStatus),
		CheckedAt:    r.CheckedAt,
	}
}

// IngredientSummary is the response shape of an ingredient.
type IngredientSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CategoryID   string    `json:"categoryId"`
	UnitID       string    `json:"unitId"`
	Quantity     float64   `json:"quantity"`
	Threshold    float64   `json:"threshold"`
	ExpiresOn    string    `json:"expiresOn,omitempty"`
	Memo         string    `json:"memo,omitempty"`
	HasPhoto     bool      `json:"hasPhoto"`
	StockStatus  string    `json:"stockStatus"`
	ExpiryStatus string    `json:"expiryStatus"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toIngredientSummary(i *domain.Ingredient, now time.Time) IngredientSummary {
	out := IngredientSummary{
		ID:           i.ID.Value(),
		Name:         i.Name.Value(),
		CategoryID:   i.CategoryID.Value(),
		UnitID:       i.UnitID.Value(),
		Quantity:     i.Quantity.Value(),
		Threshold:    i.Threshold.Value(),
		Memo:         i.Memo.Value(),
		HasPhoto:     i.PhotoKey != "",
		StockStatus:  string(i.StockStatus()),
		ExpiryStatus: string(i.ExpiryStatus(now)),
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
	}
	if i.ExpiresOn != nil {
		out.ExpiresOn = i.ExpiresOn.Format(time.DateOnly)
	}
	return out
}

// CategorySummary is the response shape of a category.
type CategorySummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DisplayOrder int    `json:"displayOrder"`
}

// UnitSummary is the response shape of a unit.
type UnitSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	DisplayOrder int    `json:"displayOrder"`
}

// PhotoURL is a presigned URL with its expiry.
type PhotoURL struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}
