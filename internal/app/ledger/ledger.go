// Package ledger implements the three asset ledgers the economy runs on:
// fungible resources, unique items and currency. The ledgers operate inside
// a caller-provided storage transaction and delegate every privilege check
// to the shared access guard.
package ledger

import (
	"errors"
	"math"
	"time"

	"github.com/R3E-Network/kozak_economy/internal/app/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
)

var (
	// ErrNotAuthorized is the guard's rejection, re-exported for callers
	// that only import the ledgers.
	ErrNotAuthorized = access.ErrNotAuthorized

	ErrInsufficientResources = errors.New("insufficient resources")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrNotTokenOwner         = errors.New("sender does not own the item")
	ErrItemNotFound          = errors.New("item not found")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInvalidRecipient      = errors.New("invalid recipient")
	ErrOverflow              = errors.New("balance overflow")
)

// Set bundles the three ledgers behind one guard.
type Set struct {
	Resources *Resources
	Items     *Items
	Currency  *Currency
}

// New builds the ledgers. now defaults to time.Now in UTC.
func New(guard *access.Guard, now func() time.Time) *Set {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Set{
		Resources: &Resources{guard: guard},
		Items:     &Items{guard: guard, now: now},
		Currency:  &Currency{guard: guard},
	}
}

func checkRecipient(to address.Address) error {
	if to.IsZero() {
		return ErrInvalidRecipient
	}
	return nil
}

func add(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}
