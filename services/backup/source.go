package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"larder/services/pantry/domain"
)

// IngredientRecord is the archived form of an ingredient.
type IngredientRecord struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Name       string     `json:"name"`
	CategoryID string     `json:"categoryId"`
	UnitID     string     `json:"unitId"`
	Quantity   float64    `json:"quantity"`
	Threshold  float64    `json:"threshold"`
	ExpiresOn  *time.Time `json:"expiresOn,omitempty"`
	Memo       string     `json:"memo,omitempty"`
	PhotoKey   string     `json:"photoKey,omitempty"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"autoCreateTime:false"`
	UpdatedAt  time.Time  `json:"updatedAt" gorm:"autoUpdateTime:false"`
}

func (IngredientRecord) TableName() string { return "ingredients" }

func (r IngredientRecord) validate() error {
	if _, err := domain.ParseIngredientID(r.ID); err != nil {
		return err
	}
	if _, err := domain.NewIngredientName(r.Name); err != nil {
		return err
	}
	if _, err := domain.ParseCategoryID(r.CategoryID); err != nil {
		return err
	}
	if _, err := domain.ParseUnitID(r.UnitID); err != nil {
		return err
	}
	if _, err := domain.NewQuantity("quantity", r.Quantity); err != nil {
		return err
	}
	if _, err := domain.NewQuantity("threshold", r.Threshold); err != nil {
		return err
	}
	_, err := domain.NewMemo(r.Memo)
	return err
}

// SessionRecord is the archived form of a shopping session.
type SessionRecord struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	AbandonedAt *time.Time `json:"abandonedAt,omitempty"`
	DeviceType  string     `json:"deviceType,omitempty"`
	Location    string     `json:"location,omitempty"`
}

func (SessionRecord) TableName() string { return "shopping_sessions" }

// CheckRecord is the archived form of an ingredient check.
type CheckRecord struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	IngredientID string    `json:"ingredientId"`
	UserID       string    `json:"userId"`
	StockStatus  string    `json:"stockStatus"`
	ExpiryStatus string    `json:"expiryStatus"`
	CheckedAt    time.Time `json:"checkedAt"`
}

func (CheckRecord) TableName() string { return "ingredient_check_records" }

// Snapshot is everything a backup holds for one user.
type Snapshot struct {
	Ingredients []IngredientRecord
	Sessions    []SessionRecord
	Checks      []CheckRecord
}

// Source reads and restores the pantry data of one user.
type Source interface {
	Export(ctx context.Context, userID string) (Snapshot, error)
	RestoreIngredients(ctx context.Context, userID string, records []IngredientRecord) (int, error)
}

// GormSource is a Source over the pantry tables.
type GormSource struct {
	db *gorm.DB
}

// NewGormSource wraps db.
func NewGormSource(db *gorm.DB) (*GormSource, error) {
	if db == nil {
		return nil, errors.New("gorm db is required")
	}
	return &GormSource{db: db}, nil
}

func (s *GormSource) Export(ctx context.Context, userID string) (Snapshot, error) {
	var snap Snapshot
	db := s.db.WithContext(ctx)

	if err := db.Where("user_id = ? AND deleted_at IS NULL", userID).Order("id").Find(&snap.Ingredients).Error; err != nil {
		return Snapshot{}, fmt.Errorf("export ingredients: %w", err)
	}
	if err := db.Where("user_id = ?", userID).Order("started_at, id").Find(&snap.Sessions).Error; err != nil {
		return Snapshot{}, fmt.Errorf("export sessions: %w", err)
	}
	if err := db.Where("user_id = ?", userID).Order("checked_at, id").Find(&snap.Checks).Error; err != nil {
		return Snapshot{}, fmt.Errorf("export checks: %w", err)
	}
	return snap, nil
}

var restoredColumns = []string{
	"name", "category_id", "unit_id", "quantity", "threshold",
	"expires_on", "memo", "photo_key", "updated_at", "deleted_at",
}

// ErrNameInUse reports a restored ingredient whose name now belongs to another live ingredient.
var ErrNameInUse = errors.New("ingredient name is used by another live ingredient")

// RestoreIngredients overwrites or recreates records by id in one transaction. Soft deleted rows
// come back to life. A name collision with a different live ingredient aborts the restore with
// ErrNameInUse and nothing is written.
func (s *GormSource) RestoreIngredients(ctx context.Context, userID string, records []IngredientRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	for i := range records {
		if records[i].UserID != userID {
			return 0, fmt.Errorf("ingredient %q belongs to %q, not %q", records[i].ID, records[i].UserID, userID)
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range records {
			rec := records[i]
			var clashes int64
			if err := tx.Model(&IngredientRecord{}).
				Where("user_id = ? AND name = ? AND id <> ? AND deleted_at IS NULL", userID, rec.Name, rec.ID).
				Count(&clashes).Error; err != nil {
				return fmt.Errorf("ingredient %q: %w", rec.ID, err)
			}
			if clashes > 0 {
				return fmt.Errorf("ingredient %q named %q: %w", rec.ID, rec.Name, ErrNameInUse)
			}

			res := tx.Model(&IngredientRecord{}).
				Where("id = ? AND user_id = ?", rec.ID, userID).
				Select(restoredColumns).
				Updates(map[string]any{
					"name":        rec.Name,
					"category_id": rec.CategoryID,
					"unit_id":     rec.UnitID,
					"quantity":    rec.Quantity,
					"threshold":   rec.Threshold,
					"expires_on":  rec.ExpiresOn,
					"memo":        rec.Memo,
					"photo_key":   rec.PhotoKey,
					"updated_at":  rec.UpdatedAt,
					"deleted_at":  nil,
				})
			if res.Error != nil {
				return fmt.Errorf("ingredient %q: %w", rec.ID, res.Error)
			}
			if res.RowsAffected > 0 {
				continue
			}
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("ingredient %q: %w", rec.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("restore ingredients: %w", err)
	}
	return len(records), nil
}
