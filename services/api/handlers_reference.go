package api

import (
	"net/http"

	"larder/pkg/apperr"
	"larder/services/pantry/app"
)

const shoppingListTemplate = "shopping_list.tmpl"

var errQuantityRequired = apperr.Validation("quantity", apperr.RuleRequired, "quantity is required")

func (a *API) handleCategories(w http.ResponseWriter, r *http.Request) {
	q, err := app.NewGetCategoriesQuery(r.URL.Query().Get("sortBy"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	categories, err := a.svc.GetCategories(r.Context(), q)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (a *API) handleUnits(w http.ResponseWriter, r *http.Request) {
	q, err := app.NewGetUnitsQuery(r.URL.Query().Get("sortBy"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	units, err := a.svc.GetUnits(r.Context(), q)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"units": units})
}

func (a *API) handleShoppingList(w http.ResponseWriter, r *http.Request) {
	q, err := a.quickAccessQuery(r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	list, err := a.svc.GetShoppingList(r.Context(), q)
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	body, err := a.renderer.Render(shoppingListTemplate, list)
	if err != nil {
		a.respondError(w, r, apperr.Internal("render shopping list", err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
