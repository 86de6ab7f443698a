package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/R3E-Network/kozak_economy/internal/app/access"
	domain "github.com/R3E-Network/kozak_economy/internal/app/domain/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/item"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
)

// Items is the unique-token ledger mapping item id to owner.
type Items struct {
	guard *access.Guard
	now   func() time.Time
}

// Mint creates a new item of type typ owned by to and returns it with its
// freshly assigned id.
func (l *Items) Mint(ctx context.Context, tx storage.Tx, caller, to address.Address, typ item.Type) (item.Item, error) {
	if err := l.guard.Require(ctx, tx, caller, domain.LedgerItems, domain.OpMint); err != nil {
		return item.Item{}, err
	}
	if err := checkRecipient(to); err != nil {
		return item.Item{}, err
	}
	return tx.CreateItem(ctx, item.Item{Type: typ, Owner: to, CreatedAt: l.now()})
}

// Transfer moves item id from one holder to another. The holder may always
// move its own item; anyone else needs the transfer capability.
func (l *Items) Transfer(ctx context.Context, tx storage.Tx, caller, from, to address.Address, id uint64) error {
	if err := checkRecipient(to); err != nil {
		return err
	}
	owner, err := l.OwnerOf(ctx, tx, id)
	if err != nil {
		return err
	}
	if !owner.Equal(from) {
		return fmt.Errorf("%w: item %d belongs to %s", ErrNotTokenOwner, id, owner)
	}
	if !caller.Equal(from) {
		if err := l.guard.Require(ctx, tx, caller, domain.LedgerItems, domain.OpTransfer); err != nil {
			return err
		}
	}
	return tx.UpdateItemOwner(ctx, id, to)
}

// OwnerOf returns the current holder of item id.
func (l *Items) OwnerOf(ctx context.Context, tx storage.ItemStore, id uint64) (address.Address, error) {
	it, err := l.Get(ctx, tx, id)
	if err != nil {
		return "", err
	}
	return it.Owner, nil
}

// Get returns the item record.
func (l *Items) Get(ctx context.Context, tx storage.ItemStore, id uint64) (item.Item, error) {
	it, err := tx.GetItem(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return item.Item{}, fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	return it, err
}

// BalanceOf returns how many items owner holds.
func (l *Items) BalanceOf(ctx context.Context, tx storage.ItemStore, owner address.Address) (uint64, error) {
	return tx.CountItems(ctx, owner)
}

// Owned lists the items owner holds, ordered by id.
func (l *Items) Owned(ctx context.Context, tx storage.ItemStore, owner address.Address) ([]item.Item, error) {
	return tx.ListItems(ctx, owner)
}
