package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"larder/services/pantry/domain"
)

type sessionRow struct {
	ID          string `gorm:"primaryKey"`
	UserID      string
	Status      string
	StartedAt   time.Time
	CompletedAt *time.Time
	AbandonedAt *time.Time
	DeviceType  string
	Location    string
}

func (sessionRow) TableName() string { return "shopping_sessions" }

func newSessionRow(s *domain.ShoppingSession) sessionRow {
	return sessionRow{
		ID:          s.ID.Value(),
		UserID:      s.UserID.Value(),
		Status:      s.Status.String(),
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
		AbandonedAt: s.AbandonedAt,
		DeviceType:  s.DeviceType.String(),
		Location:    s.Location.Value(),
	}
}

func (r sessionRow) toDomain() (*domain.ShoppingSession, error) {
	id, err := domain.ParseSessionID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", r.ID, err)
	}
	user, err := domain.NewUserID(r.UserID)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", r.ID, err)
	}
	status, err := domain.ParseSessionStatus(r.Status)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", r.ID, err)
	}
	device, err := domain.ParseDeviceType(r.DeviceType)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", r.ID, err)
	}
	location, err := domain.NewLocation(r.Location)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", r.ID, err)
	}

	return &domain.ShoppingSession{
		ID:          id,
		UserID:      user,
		Status:      status,
		StartedAt:   r.StartedAt.UTC(),
		CompletedAt: utcPtr(r.CompletedAt),
		AbandonedAt: utcPtr(r.AbandonedAt),
		DeviceType:  device,
		Location:    location,
	}, nil
}

type checkRow struct {
	ID           string `gorm:"primaryKey"`
	SessionID    string
	IngredientID string
	UserID       string
	StockStatus  string
	ExpiryStatus string
	CheckedAt    time.Time
}

func (checkRow) TableName() string { return "ingredient_check_records" }

func newCheckRow(c *domain.CheckRecord) checkRow {
	return checkRow{
		ID:           c.ID.Value(),
		SessionID:    c.SessionID.Value(),
		IngredientID: c.IngredientID.Value(),
		UserID:       c.UserID.Value(),
		StockStatus:  string(c.StockStatus),
		ExpiryStatus: string(c.ExpiryStatus),
		CheckedAt:    c.CheckedAt,
	}
}

func (r checkRow) toDomain() (*domain.CheckRecord, error) {
	id, err := domain.ParseCheckRecordID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("check record %q: %w", r.ID, err)
	}
	session, err := domain.ParseSessionID(r.SessionID)
	if err != nil {
		return nil, fmt.Errorf("check record %q: %w", r.ID, err)
	}
	ingredient, err := domain.ParseIngredientID(r.IngredientID)
	if err != nil {
		return nil, fmt.Errorf("check record %q: %w", r.ID, err)
	}
	user, err := domain.NewUserID(r.UserID)
	if err != nil {
		return nil, fmt.Errorf("check record %q: %w", r.ID, err)
	}
	stock, err := domain.ParseStockStatus(r.StockStatus)
	if err != nil {
		return nil, fmt.Errorf("check record %q: %w", r.ID, err)
	}
	expiry, err := domain.ParseExpiryStatus(r.ExpiryStatus)
	if err != nil {
		return nil, fmt.Errorf("check record %q: %w", r.ID, err)
	}

	return &domain.CheckRecord{
		ID:           id,
		SessionID:    session,
		IngredientID: ingredient,
		UserID:       user,
		StockStatus:  stock,
		ExpiryStatus: expiry,
		CheckedAt:    r.CheckedAt.UTC(),
	}, nil
}

type ingredientRow struct {
	ID         string `gorm:"primaryKey"`
	UserID     string
	Name       string
	CategoryID string
	UnitID     string
	Quantity   float64
	Threshold  float64
	ExpiresOn  *time.Time
	Memo       string
	PhotoKey   string
	CreatedAt  time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime:false"`
	DeletedAt  gorm.DeletedAt
}

func (ingredientRow) TableName() string { return "ingredients" }

func newIngredientRow(i *domain.Ingredient) ingredientRow {
	row := ingredientRow{
		ID:         i.ID.Value(),
		UserID:     i.UserID.Value(),
		Name:       i.Name.Value(),
		CategoryID: i.CategoryID.Value(),
		UnitID:     i.UnitID.Value(),
		Quantity:   i.Quantity.Value(),
		Threshold:  i.Threshold.Value(),
		Memo:       i.Memo.Value(),
		PhotoKey:   i.PhotoKey,
		CreatedAt:  i.CreatedAt,
		UpdatedAt:  i.UpdatedAt,
	}
	if i.ExpiresOn != nil {
		day := domain.TruncateDay(*i.ExpiresOn)
		row.ExpiresOn = &day
	}
	return row
}

func (r ingredientRow) toDomain() (*domain.Ingredient, error) {
	id, err := domain.ParseIngredientID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("ingredient %q: %w", r.ID, err)
	}
	user, err := domain.NewUserID(r.UserID)
	if err != nil {
		return nil, fmt.Errorf("ingredient %q: %w", r.ID, err)
	}
	name, err := domain.NewIngredientName(r.Name)
	if err != nil {
		return nil, fmt.Errorf("ingredient %q: %w", r.ID, err)
	}
	category, err := domain.ParseCategoryID(r.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("ingredient %q: %w", r.ID, err)
	}
	unit, err := domain.ParseUnitID(r.UnitID)
	if err != nil {
		return nil, fmt.Errorf("ingredient %q: %w", r.ID, err)
	}
	quantity, err := domain.NewQuantity("quantity", r.Quantity)
	if err != nil {
		return nil, fmt.Errorf("ingredient %q: %w", r.ID, err)
	}
	threshold, err := domain.NewQuantity("threshold", r.Threshold)
	if err != nil {
		return nil, fmt.Errorf("ingredient %q: %w", r.ID, err)
	}
	memo, err := domain.NewMemo(r.Memo)
	if err != nil {
		return nil, fmt.Errorf("ingredient %q: %w", r.ID, err)
	}

	ing := &domain.Ingredient{
		ID:         id,
		UserID:     user,
		Name:       name,
		CategoryID: category,
		UnitID:     unit,
		Quantity:   quantity,
		Threshold:  threshold,
		Memo:       memo,
		PhotoKey:   r.PhotoKey,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if r.ExpiresOn != nil {
		day := domain.TruncateDay(*r.ExpiresOn)
		ing.ExpiresOn = &day
	}
	return ing, nil
}

type categoryRow struct {
	ID           string `gorm:"primaryKey" yaml:"id"`
	Name         string `yaml:"name"`
	DisplayOrder int    `yaml:"display_order"`
}

func (categoryRow) TableName() string { return "categories" }

func (r categoryRow) toDomain() (domain.Category, error) {
	return domain.NewCategory(r.ID, r.Name, r.DisplayOrder)
}

type unitRow struct {
	ID           string `gorm:"primaryKey" yaml:"id"`
	Name         string `yaml:"name"`
	Symbol       string `yaml:"symbol"`
	DisplayOrder int    `yaml:"display_order"`
}

func (unitRow) TableName() string { return "units" }

func (r unitRow) toDomain() (domain.Unit, error) {
	return domain.NewUnit(r.ID, r.Name, r.Symbol, r.DisplayOrder)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
