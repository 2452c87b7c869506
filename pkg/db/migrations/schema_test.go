package migrations

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "schema.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gormDB
}

func TestCreateSchemaEnforcesOneActiveSessionPerUser(t *testing.T) {
	ctx := context.Background()
	gormDB := openSQLite(t)
	require.NoError(t, CreateSchema(ctx, gormDB))

	now := time.Now().UTC()
	require.NoError(t, gormDB.Create(&ShoppingSession{ID: "ss_1", UserID: "u1", Status: "ACTIVE", StartedAt: now}).Error)
	require.Error(t, gormDB.Create(&ShoppingSession{ID: "ss_2", UserID: "u1", Status: "ACTIVE", StartedAt: now}).Error)

	// Finished sessions and other users are not constrained.
	require.NoError(t, gormDB.Create(&ShoppingSession{ID: "ss_3", UserID: "u1", Status: "COMPLETED", StartedAt: now}).Error)
	require.NoError(t, gormDB.Create(&ShoppingSession{ID: "ss_4", UserID: "u2", Status: "ACTIVE", StartedAt: now}).Error)
}

func TestCreateSchemaIngredientNamesUniqueAmongLiveRows(t *testing.T) {
	ctx := context.Background()
	gormDB := openSQLite(t)
	require.NoError(t, CreateSchema(ctx, gormDB))

	require.NoError(t, gormDB.Create(&Category{ID: "meat", Name: "肉類"}).Error)
	require.NoError(t, gormDB.Create(&Unit{ID: "g", Name: "グラム", Symbol: "g"}).Error)

	first := Ingredient{ID: "ing_1", UserID: "u1", Name: "鶏むね肉", CategoryID: "meat", UnitID: "g"}
	require.NoError(t, gormDB.Omit("Category", "Unit").Create(&first).Error)
	require.Error(t, gormDB.Omit("Category", "Unit").Create(&Ingredient{ID: "ing_2", UserID: "u1", Name: "鶏むね肉", CategoryID: "meat", UnitID: "g"}).Error)

	require.NoError(t, gormDB.Delete(&first).Error)
	require.NoError(t, gormDB.Omit("Category", "Unit").Create(&Ingredient{ID: "ing_3", UserID: "u1", Name: "鶏むね肉", CategoryID: "meat", UnitID: "g"}).Error)
}
