package app

import (
	"context"
	"errors"
	"time"

	"larder/services/pantry/domain"
)

// Repository sentinels. Store implementations wrap these so the use cases can branch
// without knowing the storage engine.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicate      = errors.New("duplicate record")
	ErrStaleStatus    = errors.New("status changed concurrently")
)

// SessionRepository persists shopping sessions and their check records.
type SessionRepository interface {
	// FindActiveByUser returns ErrRecordNotFound when the user has no ACTIVE session.
	FindActiveByUser(ctx context.Context, user domain.UserID) (*domain.ShoppingSession, error)
	// Create returns ErrDuplicate when another ACTIVE session exists for the user.
	Create(ctx context.Context, session *domain.ShoppingSession) error
	// UpdateStatus moves an ACTIVE session to status, stamping at. It returns ErrStaleStatus
	// when the stored row is no longer ACTIVE.
	UpdateStatus(ctx context.Context, id domain.SessionID, status domain.SessionStatus, at time.Time) (*domain.ShoppingSession, error)
	AppendCheck(ctx context.Context, record *domain.CheckRecord) error
	// FindByID loads a session; lock requests a row lock for the surrounding transaction.
	FindByID(ctx context.Context, id domain.SessionID, lock bool) (*domain.ShoppingSession, error)
	FindRecent(ctx context.Context, user domain.UserID, limit int) ([]*domain.ShoppingSession, error)
	ListChecks(ctx context.Context, id domain.SessionID) ([]*domain.CheckRecord, error)
	CountChecks(ctx context.Context, id domain.SessionID) (int, error)
}

// IngredientFilter narrows ListIngredients.
type IngredientFilter struct {
	CategoryID *domain.CategoryID
}

// IngredientRepository persists a user's ingredients.
type IngredientRepository interface {
	Find(ctx context.Context, user domain.UserID, id domain.IngredientID) (*domain.Ingredient, error)
	List(ctx context.Context, user domain.UserID, filter IngredientFilter) ([]*domain.Ingredient, error)
	// Create returns ErrDuplicate when the user already has an ingredient with that name.
	Create(ctx context.Context, ingredient *domain.Ingredient) error
	// Save overwrites an existing ingredient and returns ErrDuplicate on a name clash.
	Save(ctx context.Context, ingredient *domain.Ingredient) error
	Delete(ctx context.Context, user domain.UserID, id domain.IngredientID) error
}

// ReferenceRepository reads categories and units.
type ReferenceRepository interface {
	Categories(ctx context.Context, sortBy SortBy) ([]domain.Category, error)
	Units(ctx context.Context, sortBy SortBy) ([]domain.Unit, error)
	FindCategory(ctx context.Context, id domain.CategoryID) (domain.Category, error)
	FindUnit(ctx context.Context, id domain.UnitID) (domain.Unit, error)
}

// Store bundles the repositories and the transaction boundary.
type Store interface {
	Sessions() SessionRepository
	Ingredients() IngredientRepository
	Reference() ReferenceRepository
	// InTx runs fn inside one transaction; fn receives a Store bound to it.
	// The transaction is rolled back when fn returns an error.
	InTx(ctx context.Context, fn func(Store) error) error
}

// Publisher emits lifecycle events after a use case commits.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// PhotoStorage issues presigned URLs for ingredient photos.
type PhotoStorage interface {
	PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}
