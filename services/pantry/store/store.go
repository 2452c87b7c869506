// Package store implements the pantry repositories on top of GORM.
package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"larder/services/pantry/app"
)

// Store is the GORM backed app.Store.
type Store struct {
	db *gorm.DB
}

var _ app.Store = (*Store)(nil)

// New wraps db. The schema is expected to be migrated already.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("gorm db is required")
	}
	return &Store{db: db}, nil
}

func (s *Store) Sessions() app.SessionRepository       { return &sessionRepo{db: s.db} }
func (s *Store) Ingredients() app.IngredientRepository { return &ingredientRepo{db: s.db} }
func (s *Store) Reference() app.ReferenceRepository    { return &referenceRepo{db: s.db} }

// InTx runs fn inside a database transaction. GORM rolls back when fn returns an error or panics.
func (s *Store) InTx(ctx context.Context, fn func(app.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return app.ErrRecordNotFound
	case isDuplicate(err):
		return errors.Join(app.ErrDuplicate, err)
	default:
		return err
	}
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
