package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"larder/pkg/db/migrations"
	"larder/pkg/render"
	"larder/services/pantry/app"
	"larder/services/pantry/store"
)

var (
	testKey = []byte("test-signing-key")
	testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
)

type testServer struct {
	handler http.Handler
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	ctx := context.Background()

	dsn := filepath.Join(t.TempDir(), "api.db") + "?_foreign_keys=on"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, migrations.CreateSchema(ctx, gdb))
	ref, err := store.DefaultReference()
	require.NoError(t, err)
	require.NoError(t, store.Seed(ctx, gdb, ref))

	st, err := store.New(gdb)
	require.NoError(t, err)
	svc, err := app.NewService(st, app.Config{
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return testNow },
	})
	require.NoError(t, err)

	renderer, err := render.New()
	require.NoError(t, err)
	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	opts = append([]Option{WithReadinessCheck("database", st.Ping)}, opts...)
	a, err := New(svc, renderer, metrics, Config{JWTSigningKey: testKey}, opts...)
	require.NoError(t, err)
	return &testServer{handler: a.Routes()}
}

func (s *testServer) do(t *testing.T, user, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		token, err := IssueToken(testKey, "", user, time.Hour, time.Now())
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestNewValidatesDependencies(t *testing.T) {
	renderer, err := render.New()
	require.NoError(t, err)

	_, err = New(nil, renderer, &Metrics{}, Config{JWTSigningKey: testKey})
	require.Error(t, err)
}

func TestHealthAndReadiness(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, "", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, "", http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	failing := newTestServer(t, WithReadinessCheck("nats", func(context.Context) error {
		return assert.AnError
	}))
	rec = failing.do(t, "", http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "nats")
}

func TestCORSCredentials(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))

	tests := []struct {
		name        string
		origins     []string
		credentials bool
	}{
		{name: "default wildcard", credentials: false},
		{name: "explicit wildcard", origins: []string{"https://app.example", "*"}, credentials: false},
		{name: "explicit origins", origins: []string{"https://app.example"}, credentials: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := corsOptions(tt.origins)
			assert.Equal(t, tt.credentials, opts.AllowCredentials)
			assert.NotEmpty(t, opts.AllowedOrigins)
		})
	}
}

func TestAuthentication(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
		{name: "wrong key", header: "Bearer " + mustToken(t, []byte("other"), "u1", time.Hour)},
		{name: "expired", header: "Bearer " + mustToken(t, testKey, "u1", -time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/categories", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			srv.handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			body := decodeBody[errorResponse](t, rec)
			assert.Equal(t, "UNAUTHENTICATED", body.Code)
			assert.Equal(t, "/v1/categories", body.Path)
		})
	}
}

func mustToken(t *testing.T, key []byte, user string, ttl time.Duration) string {
	t.Helper()
	token, err := IssueToken(key, "", user, ttl, time.Now())
	require.NoError(t, err)
	return token
}

func TestShoppingSessionFlow(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, "u1", http.MethodPost, "/v1/ingredients", app.IngredientFields{
		Name: "牛乳", CategoryID: "dairy", UnitID: "bottle", Quantity: 0, Threshold: 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	milk := decodeBody[app.IngredientSummary](t, rec)

	rec = srv.do(t, "u1", http.MethodGet, "/v1/shopping-sessions/active", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, "u1", http.MethodPost, "/v1/shopping-sessions", map[string]string{"deviceType": "MOBILE"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	session := decodeBody[app.SessionSummary](t, rec)
	assert.Equal(t, "ACTIVE", session.Status)

	rec = srv.do(t, "u1", http.MethodPost, "/v1/shopping-sessions", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ACTIVE_SESSION_EXISTS", decodeBody[errorResponse](t, rec).Code)

	checkPath := "/v1/shopping-sessions/" + session.ID + "/checks"
	rec = srv.do(t, "u1", http.MethodPost, checkPath, map[string]string{"ingredientId": milk.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	check := decodeBody[app.CheckRecordSummary](t, rec)
	assert.Equal(t, "OUT_OF_STOCK", check.StockStatus)

	rec = srv.do(t, "u2", http.MethodPost, checkPath, map[string]string{"ingredientId": milk.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SESSION_NOT_OWNED", decodeBody[errorResponse](t, rec).Code)

	rec = srv.do(t, "u1", http.MethodGet, checkPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	checks := decodeBody[struct {
		Checks []app.CheckRecordSummary `json:"checks"`
	}](t, rec)
	assert.Len(t, checks.Checks, 1)

	rec = srv.do(t, "u1", http.MethodPost, "/v1/shopping-sessions/"+session.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	completed := decodeBody[app.SessionSummary](t, rec)
	assert.Equal(t, "COMPLETED", completed.Status)
	assert.NotNil(t, completed.CompletedAt)

	rec = srv.do(t, "u1", http.MethodPost, "/v1/shopping-sessions/"+session.ID+"/abandon", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SESSION_ALREADY_COMPLETED", decodeBody[errorResponse](t, rec).Code)

	rec = srv.do(t, "u1", http.MethodPost, checkPath, map[string]string{"ingredientId": milk.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SESSION_NOT_ACTIVE", decodeBody[errorResponse](t, rec).Code)

	rec = srv.do(t, "u1", http.MethodGet, "/v1/shopping-sessions/recent?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), session.ID)
}

func TestStartSessionBodies(t *testing.T) {
	token, err := IssueToken(testKey, "", "u1", time.Hour, time.Now())
	require.NoError(t, err)

	tests := []struct {
		name          string
		body          string
		contentLength int64
		want          int
	}{
		{name: "no body", contentLength: 0, want: http.StatusCreated},
		{name: "empty body of unknown length", contentLength: -1, want: http.StatusCreated},
		{name: "json body of unknown length", body: `{"deviceType":"TABLET"}`, contentLength: -1, want: http.StatusCreated},
		{name: "malformed body", body: `{"deviceType":`, contentLength: -1, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			req := httptest.NewRequest(http.MethodPost, "/v1/shopping-sessions", strings.NewReader(tt.body))
			req.ContentLength = tt.contentLength
			req.Header.Set("Authorization", "Bearer "+token)

			rec := httptest.NewRecorder()
			srv.handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestUnknownSession(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, "u1", http.MethodPost, "/v1/shopping-sessions/ss_00000000000000000000000000000000/complete", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decodeBody[errorResponse](t, rec).Code)
}

func TestValidationErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		field  string
		rule   string
	}{
		{name: "limit zero", method: http.MethodGet, path: "/v1/ingredients/quick-access?limit=0", field: "limit", rule: "out_of_range"},
		{name: "limit too high", method: http.MethodGet, path: "/v1/ingredients/quick-access?limit=101", field: "limit", rule: "out_of_range"},
		{name: "limit not a number", method: http.MethodGet, path: "/v1/shopping-sessions/recent?limit=ten", field: "limit", rule: "invalid_format"},
		{name: "unknown sortBy", method: http.MethodGet, path: "/v1/units?sortBy=symbol", field: "sortBy", rule: "invalid_value"},
		{name: "name too long", method: http.MethodPost, path: "/v1/ingredients", body: app.IngredientFields{
			Name: strings.Repeat("あ", 51), CategoryID: "dairy", UnitID: "piece",
		}, field: "name", rule: "too_long"},
		{name: "unknown field", method: http.MethodPost, path: "/v1/shopping-sessions", body: map[string]string{"colour": "red"}, field: "body", rule: "invalid_format"},
		{name: "missing quantity", method: http.MethodPut, path: "/v1/ingredients/ing_x/stock", body: map[string]any{}, field: "quantity", rule: "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, "u1", tt.method, tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			body := decodeBody[errorResponse](t, rec)
			assert.Equal(t, "VALIDATION_ERROR", body.Code)
			assert.Equal(t, tt.field, body.Field)
			assert.Equal(t, tt.rule, body.Rule)
		})
	}
}

func TestLimitBoundsAccepted(t *testing.T) {
	srv := newTestServer(t)

	for _, limit := range []string{"1", "100"} {
		rec := srv.do(t, "u1", http.MethodGet, "/v1/ingredients/quick-access?limit="+limit, nil)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestReferenceData(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, "u1", http.MethodGet, "/v1/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	categories := decodeBody[struct {
		Categories []app.CategorySummary `json:"categories"`
	}](t, rec)
	require.NotEmpty(t, categories.Categories)
	assert.Equal(t, "vegetables", categories.Categories[0].ID)

	rec = srv.do(t, "u1", http.MethodGet, "/v1/units?sortBy=name", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestIngredientEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, "u1", http.MethodPost, "/v1/ingredients", app.IngredientFields{
		Name: "卵", CategoryID: "dairy", UnitID: "piece", Quantity: 6, Threshold: 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	egg := decodeBody[app.IngredientSummary](t, rec)
	path := "/v1/ingredients/" + egg.ID

	rec = srv.do(t, "u1", http.MethodPut, path+"/stock", map[string]float64{"quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "LOW_STOCK", decodeBody[app.IngredientSummary](t, rec).StockStatus)

	rec = srv.do(t, "u2", http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, "u1", http.MethodGet, "/v1/shopping-list", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "[ ] 卵 - 1 個 (LOW_STOCK)")

	rec = srv.do(t, "u1", http.MethodPost, path+"/photo", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "PHOTOS_DISABLED", decodeBody[errorResponse](t, rec).Code)

	rec = srv.do(t, "u1", http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, "u1", http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "INGREDIENT_NOT_FOUND", decodeBody[errorResponse](t, rec).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, "u1", http.MethodPost, "/v1/shopping-sessions", nil)

	rec := srv.do(t, "", http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "larder_shopping_sessions_started_total 1")
	assert.Contains(t, rec.Body.String(), "larder_http_request_duration_seconds")
}
