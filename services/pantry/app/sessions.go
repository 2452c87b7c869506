package app

import (
	"context"
	"errors"
	"fmt"

	"larder/pkg/apperr"
	"larder/services/pantry/domain"
)

// StartSessionCommand starts a shopping session for the caller.
type StartSessionCommand struct {
	UserID     string
	DeviceType string
	Location   string
}

// CheckIngredientCommand records that an ingredient was looked at during a session.
type CheckIngredientCommand struct {
	SessionID    string
	IngredientID string
	UserID       string
}

// SessionCommand addresses one session on behalf of its owner.
type SessionCommand struct {
	SessionID string
	UserID    string
}

func errActiveSessionExists() error {
	return apperr.Conflict(apperr.CodeActiveSessionExists, "active session already exists")
}

func errSessionNotFound() error {
	return apperr.NotFound(apperr.CodeSessionNotFound, "shopping session not found")
}

// StartSession creates a new ACTIVE session; a user may own at most one.
func (s *Service) StartSession(ctx context.Context, cmd StartSessionCommand) (SessionSummary, error) {
	user, err := domain.NewUserID(cmd.UserID)
	if err != nil {
		return SessionSummary{}, err
	}
	device, err := domain.ParseDeviceType(cmd.DeviceType)
	if err != nil {
		return SessionSummary{}, err
	}
	location, err := domain.NewLocation(cmd.Location)
	if err != nil {
		return SessionSummary{}, err
	}

	session := domain.StartShoppingSession(user, device, location, s.now())

	err = s.store.InTx(ctx, func(tx Store) error {
		_, err := tx.Sessions().FindActiveByUser(ctx, user)
		switch {
		case err == nil:
			return errActiveSessionExists()
		case !errors.Is(err, ErrRecordNotFound):
			return apperr.Internal("find active session", err)
		}

		if err := tx.Sessions().Create(ctx, session); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return errActiveSessionExists()
			}
			return apperr.Internal("create session", err)
		}
		return nil
	})
	if err != nil {
		return SessionSummary{}, err
	}

	s.publish(ctx, SubjectSessionStarted, Event{
		Type:      "session.started",
		SessionID: session.ID.Value(),
		UserID:    user.Value(),
		Status:    session.Status.String(),
		At:        session.StartedAt,
	})

	return toSessionSummary(session, 0), nil
}

// CheckIngredient appends a stock/expiry snapshot of an ingredient to an ACTIVE session.
func (s *Service) CheckIngredient(ctx context.Context, cmd CheckIngredientCommand) (CheckRecordSummary, error) {
	sessionID, err := domain.ParseSessionID(cmd.SessionID)
	if err != nil {
		return CheckRecordSummary{}, err
	}
	ingredientID, err := domain.ParseIngredientID(cmd.IngredientID)
	if err != nil {
		return CheckRecordSummary{}, err
	}
	user, err := domain.NewUserID(cmd.UserID)
	if err != nil {
		return CheckRecordSummary{}, err
	}

	var record *domain.CheckRecord
	err = s.store.InTx(ctx, func(tx Store) error {
		session, err := tx.Sessions().FindByID(ctx, sessionID, true)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return errSessionNotFound()
			}
			return apperr.Internal("find session", err)
		}
		if err := session.EnsureCheckable(user); err != nil {
			return err
		}

		ingredient, err := tx.Ingredients().Find(ctx, user, ingredientID)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return apperr.NotFound(apperr.CodeIngredientNotFound, "ingredient not found")
			}
			return apperr.Internal("find ingredient", err)
		}

		record = domain.NewCheckRecord(session, ingredient, s.now())
		if err := tx.Sessions().AppendCheck(ctx, record); err != nil {
			return apperr.Internal("append check record", err)
		}
		return nil
	})
	if err != nil {
		return CheckRecordSummary{}, err
	}

	s.publish(ctx, SubjectIngredientChecked, Event{
		Type:         "ingredient.checked",
		SessionID:    record.SessionID.Value(),
		UserID:       record.UserID.Value(),
		IngredientID: record.IngredientID.Value(),
		StockStatus:  string(record.StockStatus),
		ExpiryStatus: string(record.ExpiryStatus),
		At:           record.CheckedAt,
	})

	return toCheckRecordSummary(record), nil
}

// CompleteSession finishes an ACTIVE session as COMPLETED.
func (s *Service) CompleteSession(ctx context.Context, cmd SessionCommand) (SessionSummary, error) {
	return s.finishSession(ctx, cmd, domain.SessionCompleted)
}

// AbandonSession finishes an ACTIVE session as ABANDONED.
func (s *Service) AbandonSession(ctx context.Context, cmd SessionCommand) (SessionSummary, error) {
	return s.finishSession(ctx, cmd, domain.SessionAbandoned)
}

func (s *Service) finishSession(ctx context.Context, cmd SessionCommand, target domain.SessionStatus) (SessionSummary, error) {
	sessionID, err := domain.ParseSessionID(cmd.SessionID)
	if err != nil {
		return SessionSummary{}, err
	}
	user, err := domain.NewUserID(cmd.UserID)
	if err != nil {
		return SessionSummary{}, err
	}

	var (
		updated *domain.ShoppingSession
		checks  int
	)
	err = s.store.InTx(ctx, func(tx Store) error {
		session, err := tx.Sessions().FindByID(ctx, sessionID, true)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return errSessionNotFound()
			}
			return apperr.Internal("find session", err)
		}
		if !session.BelongsTo(user) {
			return errSessionNotFound()
		}

		now := s.now()
		switch target {
		case domain.SessionCompleted:
			err = session.Complete(now)
		case domain.SessionAbandoned:
			err = session.Abandon(now)
		default:
			err = domain.TransitionError(session.Status)
		}
		if err != nil {
			return err
		}

		updated, err = tx.Sessions().UpdateStatus(ctx, sessionID, target, now)
		if err != nil {
			if errors.Is(err, ErrStaleStatus) {
				current, findErr := tx.Sessions().FindByID(ctx, sessionID, false)
				if findErr != nil {
					return apperr.Internal("reload session", findErr)
				}
				return domain.TransitionError(current.Status)
			}
			return apperr.Internal(fmt.Sprintf("update session status to %s", target), err)
		}

		checks, err = tx.Sessions().CountChecks(ctx, sessionID)
		if err != nil {
			return apperr.Internal("count checks", err)
		}
		return nil
	})
	if err != nil {
		return SessionSummary{}, err
	}

	subject, kind := SubjectSessionCompleted, "session.completed"
	if target == domain.SessionAbandoned {
		subject, kind = SubjectSessionAbandoned, "session.abandoned"
	}
	s.publish(ctx, subject, Event{
		Type:      kind,
		SessionID: updated.ID.Value(),
		UserID:    updated.UserID.Value(),
		Status:    updated.Status.String(),
		At:        *updated.FinishedAt(),
	})

	return toSessionSummary(updated, checks), nil
}

// ListSessionChecks returns the check history of a session owned by the caller.
func (s *Service) ListSessionChecks(ctx context.Context, cmd SessionCommand) ([]CheckRecordSummary, error) {
	sessionID, err := domain.ParseSessionID(cmd.SessionID)
	if err != nil {
		return nil, err
	}
	user, err := domain.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}

	session, err := s.store.Sessions().FindByID(ctx, sessionID, false)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, errSessionNotFound()
		}
		return nil, apperr.Internal("find session", err)
	}
	if !session.BelongsTo(user) {
		return nil, errSessionNotFound()
	}

	records, err := s.store.Sessions().ListChecks(ctx, sessionID)
	if err != nil {
		return nil, apperr.Internal("list checks", err)
	}
	out := make([]CheckRecordSummary, 0, len(records))
	for _, r := range records {
		out = append(out, toCheckRecordSummary(r))
	}
	return out, nil
}
