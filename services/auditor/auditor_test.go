package auditor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"larder/services/pantry/app"
)

type memStore struct {
	entries   []Entry
	insertErr error
}

func (m *memStore) Previous(_ context.Context, actor, action, obj string) (map[string]any, error) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.Actor == actor && e.Action == action && e.Obj == obj {
			return e.Details, nil
		}
	}
	return nil, ErrNoPrevious
}

func (m *memStore) Insert(_ context.Context, e Entry) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return nil
}

type fakeSub struct {
	subject string
	durable string
	fn      func(context.Context, []byte) error
	closed  bool
}

func (f *fakeSub) Subscribe(_ context.Context, subj, durable string, fn func(context.Context, []byte) error) (io.Closer, error) {
	f.subject, f.durable, f.fn = subj, durable, fn
	return f, nil
}

func (f *fakeSub) Close() error {
	f.closed = true
	return nil
}

func deliver(t *testing.T, sub *fakeSub, evt app.Event) error {
	t.Helper()
	data, err := json.Marshal(evt)
	require.NoError(t, err)
	return sub.fn(context.Background(), data)
}

func startAuditor(t *testing.T, store Store) (*Auditor, *fakeSub) {
	t.Helper()
	sub := &fakeSub{}
	a, err := New(store, sub, "", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	return a, sub
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(nil, &fakeSub{}, "", zerolog.Nop())
	require.Error(t, err)
	_, err = New(&memStore{}, nil, "", zerolog.Nop())
	require.Error(t, err)
}

func TestStartSubscribesToShoppingSubjects(t *testing.T) {
	a, sub := startAuditor(t, &memStore{})

	assert.Equal(t, "larder.shopping.>", sub.subject)
	assert.Equal(t, "larder-auditor", sub.durable)

	require.NoError(t, a.Close())
	assert.True(t, sub.closed)
	require.NoError(t, a.Close())
}

func TestSessionEventsAreRecorded(t *testing.T) {
	store := &memStore{}
	_, sub := startAuditor(t, store)
	at := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, deliver(t, sub, app.Event{
		Type: "session.completed", SessionID: "ss_1", UserID: "u1", Status: "COMPLETED", At: at,
	}))

	require.Len(t, store.entries, 1)
	e := store.entries[0]
	assert.Equal(t, "u1", e.Actor)
	assert.Equal(t, "session.completed", e.Action)
	assert.Equal(t, "ss_1", e.Obj)
	assert.Equal(t, "COMPLETED", e.Details["status"])
	assert.True(t, e.At.Equal(at))
}

func TestCheckEventsCarryChanges(t *testing.T) {
	store := &memStore{}
	_, sub := startAuditor(t, store)

	check := app.Event{
		Type: "ingredient.checked", SessionID: "ss_1", UserID: "u1", IngredientID: "ing_1",
		StockStatus: "LOW_STOCK", ExpiryStatus: "FRESH", At: time.Now().UTC(),
	}
	require.NoError(t, deliver(t, sub, check))

	check.SessionID = "ss_2"
	check.StockStatus = "OUT_OF_STOCK"
	require.NoError(t, deliver(t, sub, check))

	require.Len(t, store.entries, 2)
	assert.Equal(t, "ing_1", store.entries[0].Obj)
	assert.Equal(t, "ss_2", store.entries[1].Details["session_id"])

	changes, ok := store.entries[1].Details["changes"].(map[string]map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"old": "LOW_STOCK", "new": "OUT_OF_STOCK"}, changes["stock_status"])
	assert.NotContains(t, changes, "expiry_status")
}

func TestMalformedEventsAreDropped(t *testing.T) {
	store := &memStore{}
	_, sub := startAuditor(t, store)

	require.NoError(t, sub.fn(context.Background(), []byte("{not json")))
	require.NoError(t, deliver(t, sub, app.Event{Type: "session.started"}))
	assert.Empty(t, store.entries)
}

func TestStoreFailureIsReturnedForRedelivery(t *testing.T) {
	store := &memStore{insertErr: errors.New("db down")}
	_, sub := startAuditor(t, store)

	err := deliver(t, sub, app.Event{Type: "session.started", SessionID: "ss_1", UserID: "u1"})
	require.Error(t, err)
}

func TestComputeDiff(t *testing.T) {
	tests := []struct {
		name     string
		previous map[string]any
		current  map[string]any
		want     map[string]map[string]any
	}{
		{
			name:    "first snapshot",
			current: map[string]any{"stock_status": "IN_STOCK"},
			want:    map[string]map[string]any{"stock_status": {"old": nil, "new": "IN_STOCK"}},
		},
		{
			name:     "unchanged",
			previous: map[string]any{"stock_status": "IN_STOCK"},
			current:  map[string]any{"stock_status": "IN_STOCK"},
			want:     map[string]map[string]any{},
		},
		{
			name:     "removed key",
			previous: map[string]any{"expiry_status": "FRESH"},
			current:  map[string]any{},
			want:     map[string]map[string]any{"expiry_status": {"old": "FRESH", "new": nil}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, computeDiff(tt.previous, tt.current))
		})
	}
}
