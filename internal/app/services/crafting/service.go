// Package crafting turns randomized searches into resources and resources
// into items. The engine holds no balances of its own: every search and
// craft runs as one storage transaction against the ledgers, minting and
// burning under the engine's own principal.
package crafting

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/R3E-Network/kozak_economy/internal/app/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	domainrand "github.com/R3E-Network/kozak_economy/internal/app/domain/random"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/resource"
	"github.com/R3E-Network/kozak_economy/internal/app/events"
	"github.com/R3E-Network/kozak_economy/internal/app/ledger"
	"github.com/R3E-Network/kozak_economy/internal/app/metrics"
	"github.com/R3E-Network/kozak_economy/internal/app/services/random"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
	"github.com/R3E-Network/kozak_economy/pkg/logger"
)

// SearchDraws is the number of one-unit grants a single search produces.
const SearchDraws = 3

// PrincipalLabel derives the engine's ledger address.
const PrincipalLabel = "kozak.crafting-engine"

var (
	ErrUnknownRecipe  = errors.New("unknown recipe")
	ErrSearchCooldown = errors.New("search cooldown active")
)

// Principal returns the address the engine mints and burns as.
func Principal() address.Address { return address.Derive(PrincipalLabel) }

// Service is the crafting engine.
type Service struct {
	store   storage.Store
	ledgers *ledger.Set
	drawer  random.Drawer
	catalog *Catalog
	weights domainrand.Weights
	self    address.Address
	pub     events.Publisher
	log     *logger.Logger

	cooldown time.Duration
	mu       sync.Mutex
	limiters map[address.Address]*rate.Limiter
}

// Option customises the engine.
type Option func(*Service) error

// WithCatalog replaces the built-in recipe book.
func WithCatalog(c *Catalog) Option {
	return func(s *Service) error {
		if c == nil {
			return errors.New("catalog is nil")
		}
		s.catalog = c
		return nil
	}
}

// WithWeights sets the search distribution. Types missing from the map are
// never drawn.
func WithWeights(w map[resource.Type]uint64) Option {
	return func(s *Service) error {
		if len(w) == 0 {
			return nil
		}
		table := make(domainrand.Weights, resource.Count)
		for rt, v := range w {
			if !rt.Valid() {
				return fmt.Errorf("weight for %w: %d", resource.ErrUnknown, rt)
			}
			table[rt] = v
		}
		if err := table.Validate(); err != nil {
			return err
		}
		s.weights = table
		return nil
	}
}

// WithSearchCooldown limits each player to one search per interval. Zero
// disables the limit.
func WithSearchCooldown(d time.Duration) Option {
	return func(s *Service) error {
		if d < 0 {
			return fmt.Errorf("negative search cooldown %s", d)
		}
		s.cooldown = d
		return nil
	}
}

// WithPublisher sets the post-commit event sink.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) error {
		s.pub = p
		return nil
	}
}

// WithPrincipal overrides the engine's ledger address.
func WithPrincipal(a address.Address) Option {
	return func(s *Service) error {
		if a.IsZero() {
			return errors.New("principal must be non-zero")
		}
		s.self = a
		return nil
	}
}

// New constructs the engine.
func New(store storage.Store, ledgers *ledger.Set, drawer random.Drawer, log *logger.Logger, opts ...Option) (*Service, error) {
	if store == nil || ledgers == nil {
		return nil, errors.New("crafting: store and ledgers are required")
	}
	if log == nil {
		log = logger.NewDefault("crafting")
	}
	if drawer == nil {
		drawer = random.New(log)
	}
	s := &Service{
		store:    store,
		ledgers:  ledgers,
		drawer:   drawer,
		catalog:  DefaultCatalog(),
		weights:  domainrand.Uniform(resource.Count),
		self:     Principal(),
		log:      log,
		limiters: make(map[address.Address]*rate.Limiter),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("crafting: %w", err)
		}
	}
	return s, nil
}

// Principal returns the address this engine acts as.
func (s *Service) Principal() address.Address { return s.self }

// Catalog returns the active recipe book.
func (s *Service) Catalog() *Catalog { return s.catalog }

// Weights returns a copy of the search distribution.
func (s *Service) Weights() domainrand.Weights {
	return append(domainrand.Weights(nil), s.weights...)
}

func (s *Service) limiter(player address.Address) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[player]
	if !ok {
		lim = rate.NewLimiter(rate.Every(s.cooldown), 1)
		s.limiters[player] = lim
	}
	return lim
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, access.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ledger.ErrInsufficientResources):
		return "insufficient_resources"
	case errors.Is(err, ErrUnknownRecipe):
		return "unknown_recipe"
	case errors.Is(err, ErrSearchCooldown):
		return "cooldown"
	default:
		return "error"
	}
}

func observe(op string, start time.Time, err error) {
	metrics.RecordOperation(op, outcome(err), time.Since(start))
}
