package auditor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"larder/pkg/db"
)

// PGStore writes audit entries with pgx.
type PGStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

// NewPGStore wraps pool.
func NewPGStore(pool *pgxpool.Pool) (*PGStore, error) {
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Previous(ctx context.Context, actor, action, obj string) (map[string]any, error) {
	var raw []byte
	err := db.Get(ctx, s.pool, &raw, `
SELECT details
FROM audit_events
WHERE actor = $1 AND action = $2 AND obj = $3
ORDER BY at DESC, id DESC
LIMIT 1
`, actor, action, obj)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoPrevious
		}
		return nil, err
	}
	if len(raw) == 0 {
		return map[string]any{}, nil
	}

	var details map[string]any
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, fmt.Errorf("decode audit details: %w", err)
	}
	return details, nil
}

func (s *PGStore) Insert(ctx context.Context, e Entry) error {
	detailsBytes, err := json.Marshal(e.Details)
	if err != nil {
		return err
	}

	_, err = db.Exec(ctx, s.pool, `
INSERT INTO audit_events (actor, action, obj, details, at)
VALUES ($1, $2, $3, $4::jsonb, $5)
`, e.Actor, e.Action, e.Obj, detailsBytes, e.At)
	return err
}

// Trail returns the entries of one session, oldest first. Ingredient checks are matched through
// their session_id detail.
func (s *PGStore) Trail(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []Entry
	err := db.Select(ctx, s.pool, &entries, `
SELECT id, actor, action, obj, details, at
FROM audit_events
WHERE obj = $1 OR details->>'session_id' = $1
ORDER BY at ASC, id ASC
LIMIT $2
`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
