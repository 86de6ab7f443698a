package storage

import (
	"context"
	"errors"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/item"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/market"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/resource"
)

var (
	// ErrNotFound is returned when a keyed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrReadOnly is returned for writes attempted inside View.
	ErrReadOnly = errors.New("read-only transaction")
)

// ResourceStore persists fungible resource balances.
type ResourceStore interface {
	ResourceBalance(ctx context.Context, owner address.Address, rt resource.Type) (uint64, error)
	SetResourceBalance(ctx context.Context, owner address.Address, rt resource.Type, amount uint64) error
	ResourceBalances(ctx context.Context, owner address.Address) (map[resource.Type]uint64, error)
	ResourceSupply(ctx context.Context) (map[resource.Type]uint64, error)
}

// ItemStore persists unique items and their owners.
type ItemStore interface {
	CreateItem(ctx context.Context, it item.Item) (item.Item, error)
	GetItem(ctx context.Context, id uint64) (item.Item, error)
	UpdateItemOwner(ctx context.Context, id uint64, owner address.Address) error
	ListItems(ctx context.Context, owner address.Address) ([]item.Item, error)
	CountItems(ctx context.Context, owner address.Address) (uint64, error)
	ItemSupply(ctx context.Context) (uint64, error)
}

// CurrencyStore persists currency balances.
type CurrencyStore interface {
	CurrencyBalance(ctx context.Context, owner address.Address) (uint64, error)
	SetCurrencyBalance(ctx context.Context, owner address.Address, amount uint64) error
	CurrencySupply(ctx context.Context) (uint64, error)
}

// ListingStore persists marketplace listings.
type ListingStore interface {
	CreateListing(ctx context.Context, l market.Listing) (market.Listing, error)
	UpdateListing(ctx context.Context, l market.Listing) (market.Listing, error)
	GetListing(ctx context.Context, id uint64) (market.Listing, error)
	// ActiveListingForItem returns ErrNotFound when the item is not listed.
	ActiveListingForItem(ctx context.Context, itemID uint64) (market.Listing, error)
	ListListings(ctx context.Context, filter market.Filter) ([]market.Listing, error)
}

// GrantStore persists the capability table.
type GrantStore interface {
	// Grants returns the empty set when the principal holds nothing.
	Grants(ctx context.Context, ledger access.Ledger, principal address.Address) (access.OpSet, error)
	// PutGrant replaces the row; an empty op set removes it.
	PutGrant(ctx context.Context, g access.Grant) error
	ListGrants(ctx context.Context, ledger access.Ledger) ([]access.Grant, error)
}

// Tx is the view of every store inside one transaction.
type Tx interface {
	ResourceStore
	ItemStore
	CurrencyStore
	ListingStore
	GrantStore
}

// TxFunc is the body of a transaction. Returning an error discards every
// write made through tx.
type TxFunc func(ctx context.Context, tx Tx) error

// Store runs transactions. Update bodies are serialized and all-or-nothing;
// View bodies see a consistent snapshot and may not write.
type Store interface {
	Update(ctx context.Context, fn TxFunc) error
	View(ctx context.Context, fn TxFunc) error
	Close() error
}
