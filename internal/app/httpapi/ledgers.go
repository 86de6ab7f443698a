package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	accessdomain "github.com/R3E-Network/kozak_economy/internal/app/domain/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/resource"
)

func ledgerOf(w http.ResponseWriter, r *http.Request) (accessdomain.Ledger, bool) {
	l, err := accessdomain.ParseLedger(mux.Vars(r)["ledger"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return "", false
	}
	return l, true
}

func (a *API) listAuthorized(w http.ResponseWriter, r *http.Request) {
	l, ok := ledgerOf(w, r)
	if !ok {
		return
	}
	grants, err := a.app.Registry.ListAuthorized(r.Context(), l)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	owner, _ := a.app.Registry.Owner(l)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ledger":     l,
		"owner":      owner,
		"authorized": grants,
	})
}

func (a *API) addAuthorized(w http.ResponseWriter, r *http.Request) {
	a.changeAuthorized(w, r, true)
}

func (a *API) removeAuthorized(w http.ResponseWriter, r *http.Request) {
	a.changeAuthorized(w, r, false)
}

func (a *API) changeAuthorized(w http.ResponseWriter, r *http.Request, add bool) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	l, ok := ledgerOf(w, r)
	if !ok {
		return
	}
	contract, err := address.Parse(mux.Vars(r)["address"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if add {
		err = a.app.Registry.AddAuthorizedContract(r.Context(), l, caller, contract)
	} else {
		err = a.app.Registry.RemoveAuthorizedContract(r.Context(), l, caller, contract)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	authorized, err := a.app.Registry.IsAuthorized(r.Context(), l, contract)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ledger":     l,
		"contract":   contract,
		"authorized": authorized,
	})
}

type mintRequest struct {
	To       address.Address `json:"to"`
	Resource *resource.Type  `json:"resource,omitempty"`
	Amount   uint64          `json:"amount"`
}

func (a *API) mintResources(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var req mintRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Resource == nil {
		writeServiceError(w, resource.ErrUnknown)
		return
	}
	if err := a.app.Treasury.MintResources(r.Context(), caller, req.To, *req.Resource, req.Amount); err != nil {
		writeServiceError(w, err)
		return
	}
	balances, err := a.app.Treasury.Resources(r.Context(), req.To)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"to": req.To, "resource": *req.Resource, "balance": balances[*req.Resource]})
}

func (a *API) mintCurrency(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var req mintRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.app.Treasury.MintCurrency(r.Context(), caller, req.To, req.Amount); err != nil {
		writeServiceError(w, err)
		return
	}
	balance, err := a.app.Treasury.Currency(r.Context(), req.To)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"to": req.To, "balance": balance})
}
