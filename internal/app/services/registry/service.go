// Package registry manages which orchestrator contracts may mint and burn on
// each ledger. Only the ledger owner can change the table.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/R3E-Network/kozak_economy/internal/app/access"
	domain "github.com/R3E-Network/kozak_economy/internal/app/domain/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/events"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
	"github.com/R3E-Network/kozak_economy/pkg/logger"
)

// ErrInvalidAddress is returned when registering the zero address.
var ErrInvalidAddress = errors.New("invalid contract address")

// Binding authorizes one principal on one ledger.
type Binding struct {
	Ledger    domain.Ledger
	Principal address.Address
}

// Service exposes the authorization registry.
type Service struct {
	store storage.Store
	guard *access.Guard
	pub   events.Publisher
	log   *logger.Logger
	now   func() time.Time
}

// New constructs the registry service.
func New(store storage.Store, guard *access.Guard, pub events.Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("registry")
	}
	return &Service{
		store: store,
		guard: guard,
		pub:   pub,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// AddAuthorizedContract grants mint and burn on ledger to contract. Only the
// ledger owner may call it; granting twice is a no-op.
func (s *Service) AddAuthorizedContract(ctx context.Context, ledger domain.Ledger, caller, contract address.Address) error {
	if err := s.guard.RequireOwner(ledger, caller); err != nil {
		return err
	}
	if contract.IsZero() {
		return ErrInvalidAddress
	}
	changed := false
	err := s.store.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		ops, err := tx.Grants(ctx, ledger, contract)
		if err != nil {
			return err
		}
		next := ops | domain.ContractOps
		changed = next != ops
		if !changed {
			return nil
		}
		return tx.PutGrant(ctx, domain.Grant{Ledger: ledger, Principal: contract, Ops: next, UpdatedAt: s.now()})
	})
	if err != nil {
		return fmt.Errorf("authorize %s on %s: %w", contract, ledger, err)
	}
	if changed {
		s.log.WithField("ledger", string(ledger)).WithField("contract", contract.String()).Info("contract authorized")
		events.Emit(ctx, s.pub, s.log, events.New(events.KindGrantAdded, caller, map[string]interface{}{
			"ledger":   string(ledger),
			"contract": contract.String(),
		}))
	}
	return nil
}

// RemoveAuthorizedContract revokes mint and burn. Removing a contract that
// was never authorized succeeds without changes.
func (s *Service) RemoveAuthorizedContract(ctx context.Context, ledger domain.Ledger, caller, contract address.Address) error {
	if err := s.guard.RequireOwner(ledger, caller); err != nil {
		return err
	}
	changed := false
	err := s.store.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		ops, err := tx.Grants(ctx, ledger, contract)
		if err != nil {
			return err
		}
		next := ops &^ domain.ContractOps
		changed = next != ops
		if !changed {
			return nil
		}
		return tx.PutGrant(ctx, domain.Grant{Ledger: ledger, Principal: contract, Ops: next, UpdatedAt: s.now()})
	})
	if err != nil {
		return fmt.Errorf("revoke %s on %s: %w", contract, ledger, err)
	}
	if changed {
		s.log.WithField("ledger", string(ledger)).WithField("contract", contract.String()).Info("contract revoked")
		events.Emit(ctx, s.pub, s.log, events.New(events.KindGrantRemoved, caller, map[string]interface{}{
			"ledger":   string(ledger),
			"contract": contract.String(),
		}))
	}
	return nil
}

// IsAuthorized reports whether contract holds mint and burn on ledger.
func (s *Service) IsAuthorized(ctx context.Context, ledger domain.Ledger, contract address.Address) (bool, error) {
	if _, err := s.guard.Owner(ledger); err != nil {
		return false, err
	}
	var ops domain.OpSet
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		ops, err = tx.Grants(ctx, ledger, contract)
		return err
	})
	if err != nil {
		return false, err
	}
	return ops&domain.ContractOps == domain.ContractOps, nil
}

// ListAuthorized returns every grant on ledger.
func (s *Service) ListAuthorized(ctx context.Context, ledger domain.Ledger) ([]domain.Grant, error) {
	if _, err := s.guard.Owner(ledger); err != nil {
		return nil, err
	}
	var out []domain.Grant
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = tx.ListGrants(ctx, ledger)
		return err
	})
	return out, err
}

// Owner returns the configured owner of ledger.
func (s *Service) Owner(ledger domain.Ledger) (address.Address, error) {
	return s.guard.Owner(ledger)
}

// Deploy applies the deployment wiring as owner. It is safe to run on every
// start.
func (s *Service) Deploy(ctx context.Context, owner address.Address, bindings ...Binding) error {
	for _, b := range bindings {
		if err := s.AddAuthorizedContract(ctx, b.Ledger, owner, b.Principal); err != nil {
			return err
		}
	}
	s.log.Infof("deployment wiring applied (%d bindings)", len(bindings))
	return nil
}
