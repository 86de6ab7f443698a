package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/R3E-Network/kozak_economy/internal/app/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/resource"
	"github.com/R3E-Network/kozak_economy/internal/app/ledger"
	"github.com/R3E-Network/kozak_economy/internal/app/services/crafting"
	"github.com/R3E-Network/kozak_economy/internal/app/services/market"
	"github.com/R3E-Network/kozak_economy/internal/app/services/registry"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
)

var statusTable = []struct {
	status int
	errs   []error
}{
	{http.StatusForbidden, []error{
		access.ErrNotAuthorized, access.ErrNotOwner,
		market.ErrNotOwner, market.ErrNotSeller, ledger.ErrNotTokenOwner,
	}},
	{http.StatusNotFound, []error{
		crafting.ErrUnknownRecipe, market.ErrListingNotFound,
		ledger.ErrItemNotFound, storage.ErrNotFound,
	}},
	{http.StatusBadRequest, []error{
		market.ErrInvalidPrice, market.ErrInvalidBuyer,
		registry.ErrInvalidAddress, address.ErrInvalid, access.ErrUnknownLedger,
		ledger.ErrInvalidRecipient, ledger.ErrInvalidAmount, resource.ErrUnknown,
	}},
	{http.StatusConflict, []error{market.ErrNotActive, market.ErrAlreadyListed}},
	{http.StatusUnprocessableEntity, []error{
		ledger.ErrInsufficientResources, ledger.ErrInsufficientFunds, ledger.ErrOverflow,
	}},
	{http.StatusTooManyRequests, []error{crafting.ErrSearchCooldown}},
	{http.StatusServiceUnavailable, []error{context.Canceled, context.DeadlineExceeded}},
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	for _, row := range statusTable {
		for _, target := range row.errs {
			if errors.Is(err, target) {
				return row.status
			}
		}
	}
	return http.StatusInternalServerError
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err)
}
