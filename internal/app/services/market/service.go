// Package market runs the item marketplace. Listed items are held in escrow
// by the marketplace principal until the listing is bought or cancelled, and
// each purchase settles currency and item in a single transaction.
package market

import (
	"errors"
	"fmt"
	"math/bits"
	"time"

	"github.com/R3E-Network/kozak_economy/internal/app/access"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/events"
	"github.com/R3E-Network/kozak_economy/internal/app/ledger"
	"github.com/R3E-Network/kozak_economy/internal/app/metrics"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
	"github.com/R3E-Network/kozak_economy/pkg/logger"
)

// PrincipalLabel derives the marketplace's ledger address, which is also the
// escrow holding listed items.
const PrincipalLabel = "kozak.marketplace"

// MaxFeeBps is 100%.
const MaxFeeBps = 10000

var (
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrNotOwner        = errors.New("seller does not own the item")
	ErrNotSeller       = errors.New("caller is not the seller")
	ErrNotActive       = errors.New("listing is not active")
	ErrAlreadyListed   = errors.New("item already listed")
	ErrListingNotFound = errors.New("listing not found")
	ErrInvalidBuyer    = errors.New("seller cannot buy own listing")
)

// Principal returns the default marketplace address.
func Principal() address.Address { return address.Derive(PrincipalLabel) }

// Service is the marketplace.
type Service struct {
	store        storage.Store
	ledgers      *ledger.Set
	self         address.Address
	feeBps       uint64
	feeRecipient address.Address
	reward       uint64
	pub          events.Publisher
	log          *logger.Logger
	now          func() time.Time
}

// Option customises the marketplace.
type Option func(*Service) error

// WithFee charges bps basis points of every sale to recipient.
func WithFee(bps uint64, recipient address.Address) Option {
	return func(s *Service) error {
		if bps > MaxFeeBps {
			return fmt.Errorf("fee %d bps exceeds %d", bps, MaxFeeBps)
		}
		if bps > 0 && recipient.IsZero() {
			return errors.New("fee recipient required when fee is set")
		}
		s.feeBps = bps
		s.feeRecipient = recipient
		return nil
	}
}

// WithSaleReward mints amount of currency to the seller on every sale.
func WithSaleReward(amount uint64) Option {
	return func(s *Service) error {
		s.reward = amount
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

// WithPrincipal overrides the marketplace address.
func WithPrincipal(a address.Address) Option {
	return func(s *Service) error {
		if a.IsZero() {
			return errors.New("principal must be non-zero")
		}
		s.self = a
		return nil
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now != nil {
			s.now = now
		}
		return nil
	}
}

// New constructs the marketplace.
func New(store storage.Store, ledgers *ledger.Set, log *logger.Logger, opts ...Option) (*Service, error) {
	if store == nil || ledgers == nil {
		return nil, errors.New("market: store and ledgers are required")
	}
	if log == nil {
		log = logger.NewDefault("market")
	}
	s := &Service{
		store:   store,
		ledgers: ledgers,
		self:    Principal(),
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("market: %w", err)
		}
	}
	return s, nil
}

// Principal returns the marketplace (escrow) address.
func (s *Service) Principal() address.Address { return s.self }

// FeeBps returns the configured fee rate.
func (s *Service) FeeBps() uint64 { return s.feeBps }

// Fee computes floor(price * bps / 10000) without overflow.
func Fee(price, bps uint64) uint64 {
	if bps == 0 {
		return 0
	}
	hi, lo := bits.Mul64(price, bps)
	q, _ := bits.Div64(hi, lo, MaxFeeBps)
	return q
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrNotActive):
		return "not_active"
	case errors.Is(err, ErrAlreadyListed):
		return "already_listed"
	case errors.Is(err, access.ErrNotAuthorized):
		return "not_authorized"
	default:
		return "error"
	}
}

func observe(op string, start time.Time, err error) {
	metrics.RecordOperation(op, outcome(err), time.Since(start))
}
