package ledger

import (
	"context"
	"fmt"

	"github.com/R3E-Network/kozak_economy/internal/app/access"
	domain "github.com/R3E-Network/kozak_economy/internal/app/domain/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
)

// Currency is the fungible currency ledger.
type Currency struct {
	guard *access.Guard
}

// Mint credits amount to the recipient.
func (c *Currency) Mint(ctx context.Context, tx storage.Tx, caller, to address.Address, amount uint64) error {
	if err := c.guard.Require(ctx, tx, caller, domain.LedgerCurrency, domain.OpMint); err != nil {
		return err
	}
	if err := checkRecipient(to); err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	bal, err := tx.CurrencyBalance(ctx, to)
	if err != nil {
		return err
	}
	next, err := add(bal, amount)
	if err != nil {
		return err
	}
	return tx.SetCurrencyBalance(ctx, to, next)
}

// Transfer moves amount from one holder to another. Holders move their own
// funds; anyone else needs the transfer capability.
func (c *Currency) Transfer(ctx context.Context, tx storage.Tx, caller, from, to address.Address, amount uint64) error {
	if err := checkRecipient(to); err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if !caller.Equal(from) {
		if err := c.guard.Require(ctx, tx, caller, domain.LedgerCurrency, domain.OpTransfer); err != nil {
			return err
		}
	}
	bal, err := tx.CurrencyBalance(ctx, from)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, from, bal, amount)
	}
	if from.Equal(to) {
		return nil
	}
	recv, err := tx.CurrencyBalance(ctx, to)
	if err != nil {
		return err
	}
	next, err := add(recv, amount)
	if err != nil {
		return err
	}
	if err := tx.SetCurrencyBalance(ctx, from, bal-amount); err != nil {
		return err
	}
	return tx.SetCurrencyBalance(ctx, to, next)
}

// BalanceOf returns the holder's currency balance.
func (c *Currency) BalanceOf(ctx context.Context, tx storage.CurrencyStore, owner address.Address) (uint64, error) {
	return tx.CurrencyBalance(ctx, owner)
}
