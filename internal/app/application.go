package app

import (
	"context"
	"fmt"

	"github.com/R3E-Network/kozak_economy/internal/app/access"
	"github.com/R3E-Network/kozak_economy/internal/app/core/service"
	accessdomain "github.com/R3E-Network/kozak_economy/internal/app/domain/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/events"
	"github.com/R3E-Network/kozak_economy/internal/app/ledger"
	"github.com/R3E-Network/kozak_economy/internal/app/services/crafting"
	marketsvc "github.com/R3E-Network/kozak_economy/internal/app/services/market"
	"github.com/R3E-Network/kozak_economy/internal/app/services/random"
	"github.com/R3E-Network/kozak_economy/internal/app/services/registry"
	"github.com/R3E-Network/kozak_economy/internal/app/services/supply"
	"github.com/R3E-Network/kozak_economy/internal/app/services/treasury"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
	"github.com/R3E-Network/kozak_economy/internal/app/storage/memory"
	"github.com/R3E-Network/kozak_economy/internal/app/system"
	"github.com/R3E-Network/kozak_economy/pkg/logger"
)

// Options carries the wiring choices for New. Owners is required; every
// other field has a default.
type Options struct {
	Owners    map[accessdomain.Ledger]address.Address
	Drawer    random.Drawer
	Publisher events.Publisher
	Crafting  []crafting.Option
	Market    []marketsvc.Option
	// SupplySchedule is a cron spec; empty disables the refresher.
	SupplySchedule string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Store    storage.Store
	Guard    *access.Guard
	Ledgers  *ledger.Set
	Registry *registry.Service
	Crafting *crafting.Service
	Market   *marketsvc.Service
	Treasury *treasury.Service
	Supply   *supply.Refresher
}

// New builds a fully initialised application. A nil store defaults to the
// in-memory implementation.
func New(store storage.Store, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if store == nil {
		store = memory.New()
	}

	guard, err := access.NewGuard(opts.Owners)
	if err != nil {
		return nil, fmt.Errorf("configure access guard: %w", err)
	}
	ledgers := ledger.New(guard, nil)
	pub := opts.Publisher

	drawer := opts.Drawer
	if drawer == nil {
		drawer = random.New(log.Named("random"))
	}
	craftOpts := append([]crafting.Option{crafting.WithPublisher(pub)}, opts.Crafting...)
	craftService, err := crafting.New(store, ledgers, drawer, log.Named("crafting"), craftOpts...)
	if err != nil {
		return nil, err
	}
	marketOpts := append([]marketsvc.Option{marketsvc.WithPublisher(pub)}, opts.Market...)
	marketService, err := marketsvc.New(store, ledgers, log.Named("market"), marketOpts...)
	if err != nil {
		return nil, err
	}
	treasuryService := treasury.New(store, ledgers, pub, log.Named("treasury"))

	manager := system.NewManager(log.Named("system"))
	var refresher *supply.Refresher
	if opts.SupplySchedule != "" {
		refresher, err = supply.New(treasuryService, opts.SupplySchedule, log.Named("supply"))
		if err != nil {
			return nil, err
		}
		if err := manager.Register(refresher); err != nil {
			return nil, fmt.Errorf("register %s: %w", refresher.Name(), err)
		}
	}

	return &Application{
		manager:  manager,
		log:      log,
		Store:    store,
		Guard:    guard,
		Ledgers:  ledgers,
		Registry: registry.New(store, guard, pub, log.Named("registry")),
		Crafting: craftService,
		Market:   marketService,
		Treasury: treasuryService,
		Supply:   refresher,
	}, nil
}

// Bindings is the deployment wiring: the crafting engine on the resource
// and item ledgers, the marketplace on the currency ledger.
func (a *Application) Bindings() []registry.Binding {
	return []registry.Binding{
		{Ledger: accessdomain.LedgerResources, Principal: a.Crafting.Principal()},
		{Ledger: accessdomain.LedgerItems, Principal: a.Crafting.Principal()},
		{Ledger: accessdomain.LedgerCurrency, Principal: a.Market.Principal()},
	}
}

// Descriptors lists the components and what they act on.
func (a *Application) Descriptors() []service.Descriptor {
	ds := []service.Descriptor{
		{
			Name:         "crafting",
			Principal:    a.Crafting.Principal(),
			Ledgers:      []accessdomain.Ledger{accessdomain.LedgerResources, accessdomain.LedgerItems},
			Capabilities: []string{"search", "craft"},
		},
		{
			Name:         "market",
			Principal:    a.Market.Principal(),
			Ledgers:      []accessdomain.Ledger{accessdomain.LedgerCurrency},
			Capabilities: []string{"list", "cancel", "buy"},
		},
		{Name: "registry", Capabilities: []string{"authorize", "revoke"}},
		{Name: "treasury", Capabilities: []string{"mint", "balances", "supply"}},
	}
	if a.Supply != nil {
		ds = append(ds, service.Descriptor{Name: a.Supply.Name(), Capabilities: []string{"refresh"}})
	}
	if a.Market.FeeBps() > 0 {
		ds[1] = ds[1].WithCapabilities("fee")
	}
	return service.Sorted(ds)
}

// Deploy applies Bindings as owner. Idempotent.
func (a *Application) Deploy(ctx context.Context, owner address.Address) error {
	return a.Registry.Deploy(ctx, owner, a.Bindings()...)
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
