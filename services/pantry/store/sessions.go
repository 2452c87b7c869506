package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"larder/services/pantry/app"
	"larder/services/pantry/domain"
)

type sessionRepo struct {
	db *gorm.DB
}

func (r *sessionRepo) FindActiveByUser(ctx context.Context, user domain.UserID) (*domain.ShoppingSession, error) {
	var row sessionRow
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", user.Value(), domain.SessionActive.String()).
		Take(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return row.toDomain()
}

func (r *sessionRepo) Create(ctx context.Context, session *domain.ShoppingSession) error {
	row := newSessionRow(session)
	return translate(r.db.WithContext(ctx).Create(&row).Error)
}

func (r *sessionRepo) UpdateStatus(ctx context.Context, id domain.SessionID, status domain.SessionStatus, at time.Time) (*domain.ShoppingSession, error) {
	updates := map[string]any{"status": status.String()}
	switch status {
	case domain.SessionCompleted:
		updates["completed_at"] = at.UTC()
	case domain.SessionAbandoned:
		updates["abandoned_at"] = at.UTC()
	default:
		return nil, fmt.Errorf("unsupported target status %s", status)
	}

	res := r.db.WithContext(ctx).
		Model(&sessionRow{}).
		Where("id = ? AND status = ?", id.Value(), domain.SessionActive.String()).
		Updates(updates)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id, false); err != nil {
			return nil, err
		}
		return nil, app.ErrStaleStatus
	}
	return r.FindByID(ctx, id, false)
}

func (r *sessionRepo) AppendCheck(ctx context.Context, record *domain.CheckRecord) error {
	row := newCheckRow(record)
	return translate(r.db.WithContext(ctx).Create(&row).Error)
}

func (r *sessionRepo) FindByID(ctx context.Context, id domain.SessionID, lock bool) (*domain.ShoppingSession, error) {
	q := r.db.WithContext(ctx)
	// SQLite serialises writers on its own and has no row locks.
	if lock && q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row sessionRow
	if err := q.Where("id = ?", id.Value()).Take(&row).Error; err != nil {
		return nil, translate(err)
	}
	return row.toDomain()
}

func (r *sessionRepo) FindRecent(ctx context.Context, user domain.UserID, limit int) ([]*domain.ShoppingSession, error) {
	var rows []sessionRow
	err := r.db.WithContext(ctx).
		Where("user_id = ?", user.Value()).
		Order("started_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}

	out := make([]*domain.ShoppingSession, 0, len(rows))
	for _, row := range rows {
		s, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *sessionRepo) ListChecks(ctx context.Context, id domain.SessionID) ([]*domain.CheckRecord, error) {
	var rows []checkRow
	err := r.db.WithContext(ctx).
		Where("session_id = ?", id.Value()).
		Order("checked_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}

	out := make([]*domain.CheckRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *sessionRepo) CountChecks(ctx context.Context, id domain.SessionID) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&checkRow{}).Where("session_id = ?", id.Value()).Count(&n).Error
	if err != nil {
		return 0, translate(err)
	}
	return int(n), nil
}
