package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type Category struct {
	ID           string `gorm:"type:varchar(64);primaryKey"`
	Name         string `gorm:"type:varchar(20);not null"`
	DisplayOrder int    `gorm:"not null;default:0"`
}

type Unit struct {
	ID           string `gorm:"type:varchar(64);primaryKey"`
	Name         string `gorm:"type:varchar(20);not null"`
	Symbol       string `gorm:"type:varchar(10);not null"`
	DisplayOrder int    `gorm:"not null;default:0"`
}

type Ingredient struct {
	ID         string  `gorm:"type:varchar(64);primaryKey"`
	UserID     string  `gorm:"type:varchar(128);not null;index"`
	Name       string  `gorm:"type:varchar(50);not null"`
	CategoryID string  `gorm:"type:varchar(64);not null;index"`
	UnitID     string  `gorm:"type:varchar(64);not null"`
	Quantity   float64 `gorm:"not null;default:0"`
	Threshold  float64 `gorm:"not null;default:0"`
	ExpiresOn  *time.Time
	Memo       string `gorm:"type:varchar(200)"`
	PhotoKey   string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
	Category   Category       `gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Unit       Unit           `gorm:"foreignKey:UnitID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

type ShoppingSession struct {
	ID          string `gorm:"type:varchar(64);primaryKey"`
	UserID      string `gorm:"type:varchar(128);not null;index"`
	Status      string `gorm:"type:varchar(16);not null"`
	StartedAt   time.Time
	CompletedAt *time.Time
	AbandonedAt *time.Time
	DeviceType  string `gorm:"type:varchar(16)"`
	Location    string `gorm:"type:varchar(50)"`
}

type IngredientCheckRecord struct {
	ID           string `gorm:"type:varchar(64);primaryKey"`
	SessionID    string `gorm:"type:varchar(64);not null;index"`
	IngredientID string `gorm:"type:varchar(64);not null"`
	UserID       string `gorm:"type:varchar(128);not null"`
	StockStatus  string `gorm:"type:varchar(16);not null"`
	ExpiryStatus string `gorm:"type:varchar(16);not null"`
	CheckedAt    time.Time
	Session      ShoppingSession `gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type AuditEvent struct {
	ID      int64             `gorm:"primaryKey;autoIncrement"`
	Actor   string            `gorm:"type:varchar(128);not null"`
	Action  string            `gorm:"type:varchar(64);not null"`
	Obj     string            `gorm:"type:varchar(64)"`
	Details datatypes.JSONMap `gorm:"type:jsonb"`
	At      time.Time
}

// The partial indexes are what makes "one ACTIVE session per user" and per-user ingredient
// names hold under concurrent requests.
const (
	activeSessionIndex = `CREATE UNIQUE INDEX IF NOT EXISTS shopping_sessions_one_active_per_user
ON shopping_sessions (user_id) WHERE status = 'ACTIVE'`
	ingredientNameIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ingredients_user_name_live
ON ingredients (user_id, name) WHERE deleted_at IS NULL`
)

// CreateSchema creates every table and index of the initial schema on gormDB.
func CreateSchema(ctx context.Context, gormDB *gorm.DB) error {
	db := gormDB.WithContext(ctx)
	if err := db.AutoMigrate(
		&Category{},
		&Unit{},
		&Ingredient{},
		&ShoppingSession{},
		&IngredientCheckRecord{},
		&AuditEvent{},
	); err != nil {
		return err
	}

	for _, stmt := range []string{activeSessionIndex, ingredientNameIndex} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func openTx(tx *sql.Tx) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}
	return CreateSchema(ctx, gormDB)
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&AuditEvent{},
		&IngredientCheckRecord{},
		&ShoppingSession{},
		&Ingredient{},
		&Unit{},
		&Category{},
	)
}
