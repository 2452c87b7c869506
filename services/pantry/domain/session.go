package domain

import (
	"time"

	"larder/pkg/apperr"
)

// ShoppingSession is a bounded window during which a user reviews ingredient stock.
type ShoppingSession struct {
	ID          SessionID
	UserID      UserID
	Status      SessionStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	AbandonedAt *time.Time
	DeviceType  DeviceType
	Location    Location
}

// StartShoppingSession creates a new ACTIVE session for user.
func StartShoppingSession(user UserID, device DeviceType, location Location, now time.Time) *ShoppingSession {
	return &ShoppingSession{
		ID:         NewSessionID(),
		UserID:     user,
		Status:     SessionActive,
		StartedAt:  now.UTC(),
		DeviceType: device,
		Location:   location,
	}
}

// BelongsTo reports whether the session is owned by user.
func (s *ShoppingSession) BelongsTo(user UserID) bool {
	return s.UserID.Equals(user)
}

// EnsureCheckable returns a business-rule error unless user may record checks in s.
func (s *ShoppingSession) EnsureCheckable(user UserID) error {
	if !s.BelongsTo(user) {
		return apperr.Conflict(apperr.CodeSessionNotOwned, "shopping session belongs to another user")
	}
	if s.Status != SessionActive {
		return apperr.Conflict(apperr.CodeSessionNotActive, "shopping session is not active")
	}
	return nil
}

// Complete moves s to COMPLETED.
func (s *ShoppingSession) Complete(now time.Time) error {
	if err := s.transition(SessionCompleted); err != nil {
		return err
	}
	at := now.UTC()
	s.CompletedAt = &at
	return nil
}

// Abandon moves s to ABANDONED.
func (s *ShoppingSession) Abandon(now time.Time) error {
	if err := s.transition(SessionAbandoned); err != nil {
		return err
	}
	at := now.UTC()
	s.AbandonedAt = &at
	return nil
}

// FinishedAt returns the terminal timestamp, if any.
func (s *ShoppingSession) FinishedAt() *time.Time {
	if s.CompletedAt != nil {
		return s.CompletedAt
	}
	return s.AbandonedAt
}

func (s *ShoppingSession) transition(target SessionStatus) error {
	if s.Status.CanTransitionTo(target) {
		s.Status = target
		return nil
	}
	return TransitionError(s.Status)
}

// TransitionError describes why a session in status from cannot move on.
func TransitionError(from SessionStatus) error {
	switch from {
	case SessionCompleted:
		return apperr.Conflict(apperr.CodeSessionAlreadyCompleted, "shopping session already completed")
	case SessionAbandoned:
		return apperr.Conflict(apperr.CodeSessionAlreadyAbandoned, "shopping session already abandoned")
	default:
		return apperr.Conflict(apperr.CodeInvalidTransition, "invalid shopping session status transition")
	}
}

// CheckRecord is an immutable snapshot of an ingredient taken while shopping.
type CheckRecord struct {
	ID           CheckRecordID
	SessionID    SessionID
	IngredientID IngredientID
	UserID       UserID
	StockStatus  StockStatus
	ExpiryStatus ExpiryStatus
	CheckedAt    time.Time
}

// NewCheckRecord snapshots ingredient's statuses at now.
func NewCheckRecord(session *ShoppingSession, ingredient *Ingredient, now time.Time) *CheckRecord {
	return &CheckRecord{
		ID:           NewCheckRecordID(),
		SessionID:    session.ID,
		IngredientID: ingredient.ID,
		UserID:       session.UserID,
		StockStatus:  ingredient.StockStatus(),
		ExpiryStatus: ingredient.ExpiryStatus(now),
		CheckedAt:    now.UTC(),
	}
}
