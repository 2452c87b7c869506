// Package auditor records shopping lifecycle events published by the API into the audit_events table.
package auditor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"larder/services/pantry/app"
)

const (
	subscribeSubject = app.SubjectPrefix + ">"
	defaultDurable   = "larder-auditor"
	checkedType      = "ingredient.checked"
)

// ErrNoPrevious is returned by Store.Previous when nothing was recorded yet.
var ErrNoPrevious = errors.New("no previous audit entry")

// Entry is one row of the audit trail.
type Entry struct {
	ID      int64          `db:"id" json:"id"`
	Actor   string         `db:"actor" json:"actor"`
	Action  string         `db:"action" json:"action"`
	Obj     string         `db:"obj" json:"obj"`
	Details map[string]any `db:"details" json:"details"`
	At      time.Time      `db:"at" json:"at"`
}

// Store persists audit entries.
type Store interface {
	// Previous returns the details of the latest entry for actor, action and obj.
	Previous(ctx context.Context, actor, action, obj string) (map[string]any, error)
	Insert(ctx context.Context, e Entry) error
}

// Subscriber delivers bus messages to fn; *bus.Bus satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, subj, durable string, fn func(ctx context.Context, data []byte) error) (io.Closer, error)
}

// Auditor consumes lifecycle events and writes one audit entry per event.
type Auditor struct {
	store   Store
	bus     Subscriber
	durable string
	log     zerolog.Logger

	subMu sync.Mutex
	sub   io.Closer
}

// New constructs an Auditor for the provided dependencies.
func New(store Store, sub Subscriber, durable string, logger zerolog.Logger) (*Auditor, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	if sub == nil {
		return nil, errors.New("subscriber is required")
	}
	if durable == "" {
		durable = defaultDurable
	}
	return &Auditor{store: store, bus: sub, durable: durable, log: logger}, nil
}

// Start subscribes to every shopping subject and processes events until ctx is cancelled.
func (a *Auditor) Start(ctx context.Context) error {
	if a == nil {
		return errors.New("nil auditor")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	sub, err := a.bus.Subscribe(ctx, subscribeSubject, a.durable, a.handleEvent)
	if err != nil {
		return err
	}

	a.subMu.Lock()
	a.sub = sub
	a.subMu.Unlock()

	a.log.Info().Str("subject", subscribeSubject).Str("durable", a.durable).Msg("auditor subscribed")
	return nil
}

// Close stops the underlying subscription if it was created.
func (a *Auditor) Close() error {
	if a == nil {
		return nil
	}

	a.subMu.Lock()
	defer a.subMu.Unlock()

	if a.sub == nil {
		return nil
	}
	err := a.sub.Close()
	a.sub = nil
	return err
}

// handleEvent drops malformed payloads so they are not redelivered forever; store failures are
// returned so the message is redelivered.
func (a *Auditor) handleEvent(ctx context.Context, data []byte) error {
	var evt app.Event
	if err := json.Unmarshal(data, &evt); err != nil {
		a.log.Warn().Err(err).Msg("dropping undecodable event")
		return nil
	}
	if evt.Type == "" || evt.UserID == "" || evt.SessionID == "" {
		a.log.Warn().Str("type", evt.Type).Msg("dropping incomplete event")
		return nil
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	entry := Entry{
		Actor:   evt.UserID,
		Action:  evt.Type,
		Obj:     evt.SessionID,
		Details: map[string]any{"session_id": evt.SessionID},
		At:      evt.At,
	}
	if evt.Status != "" {
		entry.Details["status"] = evt.Status
	}

	if evt.Type == checkedType && evt.IngredientID != "" {
		entry.Obj = evt.IngredientID
		snapshot := map[string]any{
			"stock_status":  evt.StockStatus,
			"expiry_status": evt.ExpiryStatus,
		}
		for k, v := range snapshot {
			entry.Details[k] = v
		}

		previous, err := a.store.Previous(ctx, entry.Actor, entry.Action, entry.Obj)
		switch {
		case errors.Is(err, ErrNoPrevious):
			previous = map[string]any{}
		case err != nil:
			return err
		}
		if changes := computeDiff(pick(previous, snapshot), snapshot); len(changes) > 0 {
			entry.Details["changes"] = changes
		}
	}

	return a.store.Insert(ctx, entry)
}

// pick restricts src to the keys present in like.
func pick(src, like map[string]any) map[string]any {
	out := make(map[string]any, len(like))
	for k := range like {
		if v, ok := src[k]; ok {
			out[k] = v
		}
	}
	return out
}

func computeDiff(previous, current map[string]any) map[string]map[string]any {
	if previous == nil {
		previous = map[string]any{}
	}
	if current == nil {
		current = map[string]any{}
	}

	diff := make(map[string]map[string]any)

	for key, prevVal := range previous {
		curVal, ok := current[key]
		if !ok {
			diff[key] = map[string]any{"old": prevVal, "new": nil}
			continue
		}
		if !reflect.DeepEqual(prevVal, curVal) {
			diff[key] = map[string]any{"old": prevVal, "new": curVal}
		}
	}

	for key, curVal := range current {
		if _, seen := previous[key]; seen {
			continue
		}
		diff[key] = map[string]any{"old": nil, "new": curVal}
	}

	return diff
}
