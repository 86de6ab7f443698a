// Package treasury exposes operator mints and read access to player
// holdings across the three ledgers.
package treasury

import (
	"context"
	"time"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/item"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/market"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/resource"
	"github.com/R3E-Network/kozak_economy/internal/app/events"
	"github.com/R3E-Network/kozak_economy/internal/app/ledger"
	"github.com/R3E-Network/kozak_economy/internal/app/metrics"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
	"github.com/R3E-Network/kozak_economy/pkg/logger"
)

// Supply is a point-in-time view of circulating assets.
type Supply struct {
	Resources      map[resource.Type]uint64 `json:"resources"`
	Items          uint64                   `json:"items"`
	Currency       uint64                   `json:"currency"`
	ActiveListings int                      `json:"active_listings"`
}

// Service wraps the ledgers for operators and read-only queries.
type Service struct {
	store   storage.Store
	ledgers *ledger.Set
	pub     events.Publisher
	log     *logger.Logger
}

// New constructs the treasury service.
func New(store storage.Store, ledgers *ledger.Set, pub events.Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("treasury")
	}
	return &Service{store: store, ledgers: ledgers, pub: pub, log: log}
}

// MintResources mints as caller, who must be authorized on the resource
// ledger.
func (s *Service) MintResources(ctx context.Context, caller, to address.Address, rt resource.Type, amount uint64) error {
	start := time.Now()
	err := s.store.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		return s.ledgers.Resources.Mint(ctx, tx, caller, to, rt, amount)
	})
	metrics.RecordOperation("mint_resources", result(err), time.Since(start))
	if err != nil {
		return err
	}
	s.log.WithField("caller", caller.String()).
		WithField("to", to.String()).
		WithField("resource", rt.String()).
		Infof("minted %d resource units", amount)
	events.Emit(ctx, s.pub, s.log, events.New(events.KindResourcesMinted, caller, map[string]interface{}{
		"to":       to.String(),
		"resource": rt.String(),
		"amount":   amount,
	}))
	return nil
}

// MintCurrency mints as caller, who must be authorized on the currency
// ledger.
func (s *Service) MintCurrency(ctx context.Context, caller, to address.Address, amount uint64) error {
	start := time.Now()
	err := s.store.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		return s.ledgers.Currency.Mint(ctx, tx, caller, to, amount)
	})
	metrics.RecordOperation("mint_currency", result(err), time.Since(start))
	if err != nil {
		return err
	}
	s.log.WithField("caller", caller.String()).WithField("to", to.String()).Infof("minted %d currency", amount)
	events.Emit(ctx, s.pub, s.log, events.New(events.KindCurrencyMinted, caller, map[string]interface{}{
		"to":     to.String(),
		"amount": amount,
	}))
	return nil
}

// Resources returns every resource balance of player, including zeros.
func (s *Service) Resources(ctx context.Context, player address.Address) (map[resource.Type]uint64, error) {
	out := make(map[resource.Type]uint64, resource.Count)
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		held, err := s.ledgers.Resources.Balances(ctx, tx, player)
		if err != nil {
			return err
		}
		for _, rt := range resource.All() {
			out[rt] = held[rt]
		}
		return nil
	})
	return out, err
}

// Items returns the items player holds.
func (s *Service) Items(ctx context.Context, player address.Address) ([]item.Item, error) {
	var out []item.Item
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = s.ledgers.Items.Owned(ctx, tx, player)
		return err
	})
	return out, err
}

// Item returns one item.
func (s *Service) Item(ctx context.Context, id uint64) (item.Item, error) {
	var out item.Item
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = s.ledgers.Items.Get(ctx, tx, id)
		return err
	})
	return out, err
}

// Currency returns player's currency balance.
func (s *Service) Currency(ctx context.Context, player address.Address) (uint64, error) {
	var out uint64
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = s.ledgers.Currency.BalanceOf(ctx, tx, player)
		return err
	})
	return out, err
}

// Supply snapshots circulating totals in one consistent read.
func (s *Service) Supply(ctx context.Context) (Supply, error) {
	var out Supply
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		if out.Resources, err = tx.ResourceSupply(ctx); err != nil {
			return err
		}
		if out.Items, err = tx.ItemSupply(ctx); err != nil {
			return err
		}
		if out.Currency, err = tx.CurrencySupply(ctx); err != nil {
			return err
		}
		active, err := tx.ListListings(ctx, market.Filter{Status: market.StatusActive})
		if err != nil {
			return err
		}
		out.ActiveListings = len(active)
		return nil
	})
	return out, err
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
