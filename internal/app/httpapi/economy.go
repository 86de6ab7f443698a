package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/services/crafting"
)

func (a *API) search(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	found, err := a.app.Crafting.SearchResources(r.Context(), caller)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"player": caller,
		"found":  found,
	})
}

func (a *API) recipes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.app.Crafting.Recipes())
}

func (a *API) recipe(w http.ResponseWriter, r *http.Request) {
	id, ok := recipeID(w, r)
	if !ok {
		return
	}
	rec, err := a.app.Crafting.Recipe(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// canCraft reports shortfalls for ?player=, defaulting to the caller.
func (a *API) canCraft(w http.ResponseWriter, r *http.Request) {
	id, ok := recipeID(w, r)
	if !ok {
		return
	}
	player, ok := callerOf(w, r)
	if !ok {
		return
	}
	if raw := r.URL.Query().Get("player"); raw != "" {
		p, err := address.Parse(raw)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		player = p
	}
	check, err := a.app.Crafting.CanCraft(r.Context(), player, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (a *API) craft(w http.ResponseWriter, r *http.Request) {
	id, ok := recipeID(w, r)
	if !ok {
		return
	}
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	crafted, err := a.app.Crafting.CraftItem(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, crafted)
}

func (a *API) playerResources(w http.ResponseWriter, r *http.Request) {
	player, ok := playerOf(w, r)
	if !ok {
		return
	}
	balances, err := a.app.Treasury.Resources(r.Context(), player)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make(map[string]uint64, len(balances))
	for rt, n := range balances {
		out[rt.String()] = n
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"player": player, "resources": out})
}

func (a *API) playerItems(w http.ResponseWriter, r *http.Request) {
	player, ok := playerOf(w, r)
	if !ok {
		return
	}
	items, err := a.app.Treasury.Items(r.Context(), player)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"player": player, "count": len(items), "items": items})
}

func (a *API) playerCurrency(w http.ResponseWriter, r *http.Request) {
	player, ok := playerOf(w, r)
	if !ok {
		return
	}
	balance, err := a.app.Treasury.Currency(r.Context(), player)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"player": player, "balance": balance})
}

func (a *API) item(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	it, err := a.app.Treasury.Item(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func recipeID(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	id, err := pathUint(r, "id")
	if err != nil || id > uint64(^uint32(0)) {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", crafting.ErrUnknownRecipe, mux.Vars(r)["id"]))
		return 0, false
	}
	return uint32(id), true
}

func playerOf(w http.ResponseWriter, r *http.Request) (address.Address, bool) {
	player, err := address.Parse(mux.Vars(r)["address"])
	if err != nil {
		writeServiceError(w, err)
		return "", false
	}
	return player, true
}
