package ledger

import (
	"context"
	"fmt"

	"github.com/R3E-Network/kozak_economy/internal/app/access"
	domain "github.com/R3E-Network/kozak_economy/internal/app/domain/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/resource"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
)

// Resources is the fungible multi-token ledger keyed by (owner, type).
type Resources struct {
	guard *access.Guard
}

// Mint credits amount units of rt to the recipient. Caller must hold the
// mint capability on the resource ledger.
func (r *Resources) Mint(ctx context.Context, tx storage.Tx, caller, to address.Address, rt resource.Type, amount uint64) error {
	if err := r.guard.Require(ctx, tx, caller, domain.LedgerResources, domain.OpMint); err != nil {
		return err
	}
	if err := checkRecipient(to); err != nil {
		return err
	}
	if !rt.Valid() {
		return fmt.Errorf("%w: %d", resource.ErrUnknown, rt)
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	bal, err := tx.ResourceBalance(ctx, to, rt)
	if err != nil {
		return err
	}
	next, err := add(bal, amount)
	if err != nil {
		return err
	}
	return tx.SetResourceBalance(ctx, to, rt, next)
}

// Burn debits amount units of rt from the holder.
func (r *Resources) Burn(ctx context.Context, tx storage.Tx, caller, from address.Address, rt resource.Type, amount uint64) error {
	if err := r.guard.Require(ctx, tx, caller, domain.LedgerResources, domain.OpBurn); err != nil {
		return err
	}
	if !rt.Valid() {
		return fmt.Errorf("%w: %d", resource.ErrUnknown, rt)
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	bal, err := tx.ResourceBalance(ctx, from, rt)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("%w: %s has %d %s, needs %d", ErrInsufficientResources, from, bal, rt, amount)
	}
	return tx.SetResourceBalance(ctx, from, rt, bal-amount)
}

// BalanceOf returns the holder's balance of rt.
func (r *Resources) BalanceOf(ctx context.Context, tx storage.ResourceStore, owner address.Address, rt resource.Type) (uint64, error) {
	return tx.ResourceBalance(ctx, owner, rt)
}

// Balances returns every non-zero balance of owner.
func (r *Resources) Balances(ctx context.Context, tx storage.ResourceStore, owner address.Address) (map[resource.Type]uint64, error) {
	return tx.ResourceBalances(ctx, owner)
}
