package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"larder/pkg/telemetry"
)

// Routes constructs the chi router containing all API endpoints.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(telemetry.Middleware(serviceName, a.log))
	r.Use(middleware.Recoverer)
	r.Use(a.metrics.Middleware)

	r.Use(cors.Handler(corsOptions(a.config.AllowedOrigins)))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(a.config.RateLimit, time.Minute))
		r.Use(middleware.Timeout(a.config.RequestTimeout))
		r.Use(a.authenticate)

		r.Route("/shopping-sessions", func(r chi.Router) {
			r.Post("/", a.handleStartSession)
			r.Get("/active", a.handleActiveSession)
			r.Get("/recent", a.handleRecentSessions)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Post("/checks", a.handleCheckIngredient)
				r.Get("/checks", a.handleListChecks)
				r.Post("/complete", a.handleCompleteSession)
				r.Post("/abandon", a.handleAbandonSession)
			})
		})

		r.Route("/ingredients", func(r chi.Router) {
			r.Get("/", a.handleListIngredients)
			r.Post("/", a.handleRegisterIngredient)
			r.Get("/quick-access", a.handleQuickAccess)
			r.Route("/{ingredientID}", func(r chi.Router) {
				r.Get("/", a.handleGetIngredient)
				r.Put("/", a.handleUpdateIngredient)
				r.Delete("/", a.handleDeleteIngredient)
				r.Put("/stock", a.handleSetStock)
				r.Post("/photo", a.handlePhotoUpload)
				r.Get("/photo", a.handlePhoto)
			})
		})

		r.Get("/shopping-list", a.handleShoppingList)
		r.Get("/categories", a.handleCategories)
		r.Get("/units", a.handleUnits)
	})

	return r
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	names := make([]string, 0, len(a.checks))
	for name := range a.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := map[string]string{}
	for _, name := range names {
		if err := a.checks[name](ctx); err != nil {
			a.log.Warn().Err(err).Str("check", name).Msg("readiness check failed")
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// corsOptions allows credentials only for an explicit origin list; a wildcard would let
// go-chi/cors reflect any Origin with credentials.
func corsOptions(origins []string) cors.Options {
	allowed := origins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	credentials := true
	for _, o := range allowed {
		if o == "*" {
			credentials = false
			break
		}
	}
	return cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: credentials,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}
