package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/R3E-Network/kozak_economy/internal/app/access"
	domain "github.com/R3E-Network/kozak_economy/internal/app/domain/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/events"
	"github.com/R3E-Network/kozak_economy/internal/app/storage/memory"
	"github.com/R3E-Network/kozak_economy/pkg/logger"
)

var (
	owner    = address.Derive("owner")
	contract = address.Derive("crafting")
)

func newService(t *testing.T) (*Service, *events.Recorder) {
	t.Helper()
	guard, err := access.NewGuard(access.UniformOwners(owner))
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	rec := &events.Recorder{}
	return New(memory.New(), guard, rec, logger.NewNop()), rec
}

func TestAddIsOwnerOnlyAndIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t)

	err := svc.AddAuthorizedContract(ctx, domain.LedgerResources, address.Derive("mallory"), contract)
	if !errors.Is(err, access.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if ok, _ := svc.IsAuthorized(ctx, domain.LedgerResources, contract); ok {
		t.Fatalf("rejected add must not authorize")
	}

	for i := 0; i < 2; i++ {
		if err := svc.AddAuthorizedContract(ctx, domain.LedgerResources, owner, contract); err != nil {
			t.Fatalf("add #%d: %v", i, err)
		}
	}
	ok, err := svc.IsAuthorized(ctx, domain.LedgerResources, contract)
	if err != nil || !ok {
		t.Fatalf("expected authorized, ok=%v err=%v", ok, err)
	}
	if ok, _ := svc.IsAuthorized(ctx, domain.LedgerItems, contract); ok {
		t.Fatalf("authorization leaked to another ledger")
	}
	grants, err := svc.ListAuthorized(ctx, domain.LedgerResources)
	if err != nil || len(grants) != 1 {
		t.Fatalf("expected one grant, got %v (err=%v)", grants, err)
	}
	if got := rec.Kinds(); len(got) != 1 || got[0] != events.KindGrantAdded {
		t.Fatalf("expected a single grant.added event, got %v", got)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	if err := svc.RemoveAuthorizedContract(ctx, domain.LedgerItems, owner, contract); err != nil {
		t.Fatalf("removing a non-member should be a no-op: %v", err)
	}
	if err := svc.AddAuthorizedContract(ctx, domain.LedgerItems, owner, contract); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.RemoveAuthorizedContract(ctx, domain.LedgerItems, contract, contract); !errors.Is(err, access.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := svc.RemoveAuthorizedContract(ctx, domain.LedgerItems, owner, contract); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if ok, _ := svc.IsAuthorized(ctx, domain.LedgerItems, contract); ok {
		t.Fatalf("contract still authorized after removal")
	}
}

func TestInvalidInputs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	if err := svc.AddAuthorizedContract(ctx, domain.LedgerItems, owner, address.Zero); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	if _, err := svc.IsAuthorized(ctx, domain.Ledger("gems"), contract); !errors.Is(err, access.ErrUnknownLedger) {
		t.Fatalf("expected ErrUnknownLedger, got %v", err)
	}
}

func TestDeploy(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	market := address.Derive("market")
	bindings := []Binding{
		{Ledger: domain.LedgerResources, Principal: contract},
		{Ledger: domain.LedgerItems, Principal: contract},
		{Ledger: domain.LedgerCurrency, Principal: market},
	}
	for i := 0; i < 2; i++ {
		if err := svc.Deploy(ctx, owner, bindings...); err != nil {
			t.Fatalf("deploy #%d: %v", i, err)
		}
	}
	for _, b := range bindings {
		if ok, _ := svc.IsAuthorized(ctx, b.Ledger, b.Principal); !ok {
			t.Fatalf("%s not authorized on %s", b.Principal, b.Ledger)
		}
	}
	if err := svc.Deploy(ctx, market, bindings...); !errors.Is(err, access.ErrNotOwner) {
		t.Fatalf("non-owner deploy should fail, got %v", err)
	}
}
