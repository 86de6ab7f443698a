// Package access holds the capability guard shared by every ledger. Ledgers
// never check privileges themselves: each mint, burn or privileged transfer
// calls Guard.Require with the principal that asked for it.
package access

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/R3E-Network/kozak_economy/internal/app/domain/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
)

var (
	// ErrNotAuthorized is returned when the caller lacks the capability.
	ErrNotAuthorized = errors.New("caller is not authorized")
	// ErrNotOwner is returned when a registry change is attempted by anyone
	// other than the ledger owner.
	ErrNotOwner = errors.New("caller is not the ledger owner")
	// ErrUnknownLedger is returned for ledgers without a configured owner.
	ErrUnknownLedger = errors.New("unknown ledger")
)

// Guard checks capabilities against the grant table. The ledger owners are
// fixed at construction.
type Guard struct {
	owners map[domain.Ledger]address.Address
}

// UniformOwners assigns the same owner to every ledger.
func UniformOwners(owner address.Address) map[domain.Ledger]address.Address {
	out := make(map[domain.Ledger]address.Address, len(domain.Ledgers()))
	for _, l := range domain.Ledgers() {
		out[l] = owner
	}
	return out
}

// NewGuard validates that every ledger has a non-zero owner.
func NewGuard(owners map[domain.Ledger]address.Address) (*Guard, error) {
	g := &Guard{owners: make(map[domain.Ledger]address.Address, len(owners))}
	for _, l := range domain.Ledgers() {
		owner, ok := owners[l]
		if !ok || owner.IsZero() {
			return nil, fmt.Errorf("ledger %s: owner required", l)
		}
		g.owners[l] = owner
	}
	return g, nil
}

// Owner returns the configured owner of ledger.
func (g *Guard) Owner(ledger domain.Ledger) (address.Address, error) {
	owner, ok := g.owners[ledger]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLedger, ledger)
	}
	return owner, nil
}

// RequireOwner fails with ErrNotOwner unless caller owns ledger.
func (g *Guard) RequireOwner(ledger domain.Ledger, caller address.Address) error {
	owner, err := g.Owner(ledger)
	if err != nil {
		return err
	}
	if !owner.Equal(caller) {
		return fmt.Errorf("%w: %s on %s", ErrNotOwner, caller, ledger)
	}
	return nil
}

// Require fails with ErrNotAuthorized unless caller holds op on ledger.
// It is the single gate for every privileged ledger mutation.
func (g *Guard) Require(ctx context.Context, grants storage.GrantStore, caller address.Address, ledger domain.Ledger, op domain.Op) error {
	if _, err := g.Owner(ledger); err != nil {
		return err
	}
	if caller.IsZero() {
		return fmt.Errorf("%w: anonymous caller", ErrNotAuthorized)
	}
	ops, err := grants.Grants(ctx, ledger, caller)
	if err != nil {
		return fmt.Errorf("load grants: %w", err)
	}
	if !ops.Has(op) {
		return fmt.Errorf("%w: %s may not %s on %s", ErrNotAuthorized, caller, op, ledger)
	}
	return nil
}

// Allowed reports whether caller holds op on ledger.
func (g *Guard) Allowed(ctx context.Context, grants storage.GrantStore, caller address.Address, ledger domain.Ledger, op domain.Op) (bool, error) {
	err := g.Require(ctx, grants, caller, ledger, op)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotAuthorized):
		return false, nil
	default:
		return false, err
	}
}
