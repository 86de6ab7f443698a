package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	domain "github.com/R3E-Network/kozak_economy/internal/app/domain/market"
)

func (a *API) createListing(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	var payload struct {
		ItemID uint64 `json:"item_id"`
		Price  uint64 `json:"price"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	listing, err := a.app.Market.List(r.Context(), caller, payload.ItemID, payload.Price)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

func (a *API) listListings(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	listings, err := a.app.Market.Listings(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (a *API) getListing(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	listing, err := a.app.Market.Listing(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (a *API) cancelListing(w http.ResponseWriter, r *http.Request) {
	a.settle(w, r, a.app.Market.Cancel)
}

func (a *API) buyListing(w http.ResponseWriter, r *http.Request) {
	a.settle(w, r, a.app.Market.Buy)
}

type settleFunc func(ctx context.Context, caller address.Address, listingID uint64) (domain.Listing, error)

func (a *API) settle(w http.ResponseWriter, r *http.Request, fn settleFunc) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	listing, err := fn(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func parseFilter(r *http.Request) (domain.Filter, error) {
	q := r.URL.Query()
	var f domain.Filter
	if raw := q.Get("status"); raw != "" {
		st, err := domain.ParseStatus(raw)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	if raw := q.Get("seller"); raw != "" {
		seller, err := address.Parse(raw)
		if err != nil {
			return f, err
		}
		f.Seller = seller
	}
	if raw := q.Get("item_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return f, fmt.Errorf("invalid item_id %q", raw)
		}
		f.ItemID = id
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid limit %q", raw)
		}
		f.Limit = n
	}
	return f, nil
}
