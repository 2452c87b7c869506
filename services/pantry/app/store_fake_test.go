package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"larder/services/pantry/domain"
)

// memStore is an in-memory Store. InTx restores a snapshot when fn fails so tests can
// assert that failed use cases leave no trace.
type memStore struct {
	sessions    map[string]domain.ShoppingSession
	checks      []domain.CheckRecord
	ingredients map[string]domain.Ingredient
	categories  []domain.Category
	units       []domain.Unit

	// raceOnCreate makes the next session Create fail as if a concurrent start won.
	raceOnCreate bool
	// staleOnUpdate makes the next UpdateStatus find the row already finished.
	staleOnUpdate domain.SessionStatus
}

func newMemStore() *memStore {
	return &memStore{
		sessions:    map[string]domain.ShoppingSession{},
		ingredients: map[string]domain.Ingredient{},
	}
}

func (m *memStore) Sessions() SessionRepository       { return memSessions{m} }
func (m *memStore) Ingredients() IngredientRepository { return memIngredients{m} }
func (m *memStore) Reference() ReferenceRepository    { return memReference{m} }

func (m *memStore) InTx(_ context.Context, fn func(Store) error) error {
	sessions := make(map[string]domain.ShoppingSession, len(m.sessions))
	for k, v := range m.sessions {
		sessions[k] = v
	}
	ingredients := make(map[string]domain.Ingredient, len(m.ingredients))
	for k, v := range m.ingredients {
		ingredients[k] = v
	}
	checks := append([]domain.CheckRecord(nil), m.checks...)

	if err := fn(m); err != nil {
		m.sessions, m.ingredients, m.checks = sessions, ingredients, checks
		return err
	}
	return nil
}

type memSessions struct{ m *memStore }

func (r memSessions) FindActiveByUser(_ context.Context, user domain.UserID) (*domain.ShoppingSession, error) {
	for _, s := range r.m.sessions {
		if s.UserID.Equals(user) && s.Status == domain.SessionActive {
			c := s
			return &c, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (r memSessions) Create(_ context.Context, session *domain.ShoppingSession) error {
	if r.m.raceOnCreate {
		r.m.raceOnCreate = false
		return ErrDuplicate
	}
	r.m.sessions[session.ID.Value()] = *session
	return nil
}

func (r memSessions) UpdateStatus(_ context.Context, id domain.SessionID, status domain.SessionStatus, at time.Time) (*domain.ShoppingSession, error) {
	s, ok := r.m.sessions[id.Value()]
	if !ok {
		return nil, ErrRecordNotFound
	}
	if r.m.staleOnUpdate != "" {
		s.Status = r.m.staleOnUpdate
		r.m.sessions[id.Value()] = s
		r.m.staleOnUpdate = ""
	}
	if s.Status != domain.SessionActive {
		return nil, ErrStaleStatus
	}
	s.Status = status
	stamp := at
	if status == domain.SessionCompleted {
		s.CompletedAt = &stamp
	} else {
		s.AbandonedAt = &stamp
	}
	r.m.sessions[id.Value()] = s
	c := s
	return &c, nil
}

func (r memSessions) AppendCheck(_ context.Context, record *domain.CheckRecord) error {
	r.m.checks = append(r.m.checks, *record)
	return nil
}

func (r memSessions) FindByID(_ context.Context, id domain.SessionID, _ bool) (*domain.ShoppingSession, error) {
	s, ok := r.m.sessions[id.Value()]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &s, nil
}

func (r memSessions) FindRecent(_ context.Context, user domain.UserID, limit int) ([]*domain.ShoppingSession, error) {
	var out []*domain.ShoppingSession
	for _, s := range r.m.sessions {
		if s.UserID.Equals(user) {
			c := s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memSessions) ListChecks(_ context.Context, id domain.SessionID) ([]*domain.CheckRecord, error) {
	var out []*domain.CheckRecord
	for _, c := range r.m.checks {
		if c.SessionID.Equals(id) {
			rec := c
			out = append(out, &rec)
		}
	}
	return out, nil
}

func (r memSessions) CountChecks(ctx context.Context, id domain.SessionID) (int, error) {
	checks, err := r.ListChecks(ctx, id)
	return len(checks), err
}

type memIngredients struct{ m *memStore }

func (r memIngredients) Find(_ context.Context, user domain.UserID, id domain.IngredientID) (*domain.Ingredient, error) {
	ing, ok := r.m.ingredients[id.Value()]
	if !ok || !ing.UserID.Equals(user) {
		return nil, ErrRecordNotFound
	}
	return &ing, nil
}

func (r memIngredients) List(_ context.Context, user domain.UserID, filter IngredientFilter) ([]*domain.Ingredient, error) {
	var out []*domain.Ingredient
	for _, ing := range r.m.ingredients {
		if !ing.UserID.Equals(user) {
			continue
		}
		if filter.CategoryID != nil && !ing.CategoryID.Equals(*filter.CategoryID) {
			continue
		}
		c := ing
		out = append(out, &c)
	}
	return out, nil
}

func (r memIngredients) nameTaken(ing *domain.Ingredient) bool {
	for _, other := range r.m.ingredients {
		if other.UserID.Equals(ing.UserID) && other.Name.Equals(ing.Name) && !other.ID.Equals(ing.ID) {
			return true
		}
	}
	return false
}

func (r memIngredients) Create(_ context.Context, ing *domain.Ingredient) error {
	if r.nameTaken(ing) {
		return ErrDuplicate
	}
	r.m.ingredients[ing.ID.Value()] = *ing
	return nil
}

func (r memIngredients) Save(_ context.Context, ing *domain.Ingredient) error {
	if _, ok := r.m.ingredients[ing.ID.Value()]; !ok {
		return ErrRecordNotFound
	}
	if r.nameTaken(ing) {
		return ErrDuplicate
	}
	r.m.ingredients[ing.ID.Value()] = *ing
	return nil
}

func (r memIngredients) Delete(_ context.Context, user domain.UserID, id domain.IngredientID) error {
	ing, ok := r.m.ingredients[id.Value()]
	if !ok || !ing.UserID.Equals(user) {
		return ErrRecordNotFound
	}
	delete(r.m.ingredients, id.Value())
	return nil
}

type memReference struct{ m *memStore }

func (r memReference) Categories(_ context.Context, sortBy SortBy) ([]domain.Category, error) {
	out := append([]domain.Category(nil), r.m.categories...)
	sort.SliceStable(out, func(i, j int) bool {
		if sortBy == SortByName {
			return out[i].Name.Value() < out[j].Name.Value()
		}
		return out[i].DisplayOrder.Value() < out[j].DisplayOrder.Value()
	})
	return out, nil
}

func (r memReference) Units(_ context.Context, sortBy SortBy) ([]domain.Unit, error) {
	out := append([]domain.Unit(nil), r.m.units...)
	sort.SliceStable(out, func(i, j int) bool {
		if sortBy == SortByName {
			return out[i].Name.Value() < out[j].Name.Value()
		}
		return out[i].DisplayOrder.Value() < out[j].DisplayOrder.Value()
	})
	return out, nil
}

func (r memReference) FindCategory(_ context.Context, id domain.CategoryID) (domain.Category, error) {
	for _, c := range r.m.categories {
		if c.ID.Equals(id) {
			return c, nil
		}
	}
	return domain.Category{}, ErrRecordNotFound
}

func (r memReference) FindUnit(_ context.Context, id domain.UnitID) (domain.Unit, error) {
	for _, u := range r.m.units {
		if u.ID.Equals(id) {
			return u, nil
		}
	}
	return domain.Unit{}, ErrRecordNotFound
}

type publishedEvent struct {
	subject string
	event   Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{subject: subject, event: v.(Event)})
	return nil
}

func (p *recordingPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.subject)
	}
	return out
}

type fakePhotos struct{}

func (fakePhotos) PresignPut(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://photos.example/put/" + key, nil
}

func (fakePhotos) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://photos.example/get/" + key, nil
}
