package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"larder/services/pantry/app"
)

type setStockRequest struct {
	Quantity *float64 `json:"quantity"`
}

func (a *API) handleListIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := a.svc.ListIngredients(r.Context(), app.ListIngredientsQuery{
		UserID:     userFrom(r.Context()),
		CategoryID: r.URL.Query().Get("categoryId"),
	})
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ingredients": ingredients})
}

func (a *API) handleRegisterIngredient(w http.ResponseWriter, r *http.Request) {
	var fields app.IngredientFields
	if err := decodeJSON(r, &fields); err != nil {
		a.respondError(w, r, err)
		return
	}

	ing, err := a.svc.RegisterIngredient(r.Context(), app.RegisterIngredientCommand{
		UserID:           userFrom(r.Context()),
		IngredientFields: fields,
	})
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, ing)
}

func (a *API) handleQuickAccess(w http.ResponseWriter, r *http.Request) {
	q, err := a.quickAccessQuery(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	ingredients, err := a.svc.GetQuickAccessIngredients(r.Context(), q)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ingredients": ingredients})
}

func (a *API) handleGetIngredient(w http.ResponseWriter, r *http.Request) {
	ing, err := a.svc.GetIngredient(r.Context(), a.ingredientCommand(r))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ing)
}

func (a *API) handleUpdateIngredient(w http.ResponseWriter, r *http.Request) {
	var fields app.IngredientFields
	if err := decodeJSON(r, &fields); err != nil {
		a.respondError(w, r, err)
		return
	}

	ing, err := a.svc.UpdateIngredient(r.Context(), app.UpdateIngredientCommand{
		UserID:           userFrom(r.Context()),
		IngredientID:     chi.URLParam(r, "ingredientID"),
		IngredientFields: fields,
	})
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ing)
}

func (a *API) handleDeleteIngredient(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteIngredient(r.Context(), a.ingredientCommand(r)); err != nil {
		a.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSetStock(w http.ResponseWriter, r *http.Request) {
	var req setStockRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondError(w, r, err)
		return
	}
	if req.Quantity == nil {
		a.respondError(w, r, errQuantityRequired)
		return
	}

	cmd := a.ingredientCommand(r)
	ing, err := a.svc.SetIngredientStock(r.Context(), app.SetStockCommand{
		UserID:       cmd.UserID,
		IngredientID: cmd.IngredientID,
		Quantity:     *req.Quantity,
	})
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ing)
}

func (a *API) handlePhotoUpload(w http.ResponseWriter, r *http.Request) {
	url, err := a.svc.PresignIngredientPhotoUpload(r.Context(), a.ingredientCommand(r))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, url)
}

func (a *API) handlePhoto(w http.ResponseWriter, r *http.Request) {
	url, err := a.svc.PresignIngredientPhoto(r.Context(), a.ingredientCommand(r))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, url)
}

func (a *API) ingredientCommand(r *http.Request) app.IngredientCommand {
	return app.IngredientCommand{
		UserID:       userFrom(r.Context()),
		IngredientID: chi.URLParam(r, "ingredientID"),
	}
}

func (a *API) quickAccessQuery(r *http.Request) (app.GetQuickAccessIngredientsQuery, error) {
	limit, err := queryInt(r, "limit", app.DefaultQuickAccessLimit)
	if err != nil {
		return app.GetQuickAccessIngredientsQuery{}, err
	}
	return app.NewGetQuickAccessIngredientsQuery(userFrom(r.Context()), limit)
}
