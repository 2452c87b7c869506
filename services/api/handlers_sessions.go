package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"larder/services/pantry/app"
)

type startSessionRequest struct {
	DeviceType string `json:"deviceType"`
	Location   string `json:"location"`
}

type checkIngredientRequest struct {
	IngredientID string `json:"ingredientId"`
}

func (a *API) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	// An empty body starts a session without device or location.
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil && !isEmptyBody(err) {
			a.respondError(w, r, err)
			return
		}
	}

	summary, err := a.svc.StartSession(r.Context(), app.StartSessionCommand{
		UserID:     userFrom(r.Context()),
		DeviceType: req.DeviceType,
		Location:   req.Location,
	})
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.metrics.sessionsStarted.Inc()
	respondJSON(w, http.StatusCreated, summary)
}

func (a *API) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	summary, err := a.svc.GetActiveSession(r.Context(), app.GetActiveSessionQuery{UserID: userFrom(r.Context())})
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	if summary == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (a *API) handleRecentSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", app.DefaultRecentLimit)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	q, err := app.NewGetRecentSessionsQuery(userFrom(r.Context()), limit)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	sessions, err := a.svc.GetRecentSessions(r.Context(), q)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (a *API) handleCheckIngredient(w http.ResponseWriter, r *http.Request) {
	var req checkIngredientRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}

	record, err := a.svc.CheckIngredient(r.Context(), app.CheckIngredientCommand{
		SessionID:    chi.URLParam(r, "sessionID"),
		IngredientID: req.IngredientID,
		UserID:       userFrom(r.Context()),
	})
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.metrics.checks.Inc()
	respondJSON(w, http.StatusCreated, record)
}

func (a *API) handleListChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := a.svc.ListSessionChecks(r.Context(), a.sessionCommand(r))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"checks": checks})
}

func (a *API) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	summary, err := a.svc.CompleteSession(r.Context(), a.sessionCommand(r))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.metrics.sessionsFinished.WithLabelValues(summary.Status).Inc()
	respondJSON(w, http.StatusOK, summary)
}

func (a *API) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	summary, err := a.svc.AbandonSession(r.Context(), a.sessionCommand(r))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.metrics.sessionsFinished.WithLabelValues(summary.Status).Inc()
	respondJSON(w, http.StatusOK, summary)
}

func (a *API) sessionCommand(r *http.Request) app.SessionCommand {
	return app.SessionCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		UserID:    userFrom(r.Context()),
	}
}
