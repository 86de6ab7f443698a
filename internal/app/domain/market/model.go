package market

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
)

// Status is the lifecycle state of a listing. Active is the only
// non-terminal state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSold      Status = "sold"
	StatusCancelled Status = "cancelled"
)

// Event drives a listing out of the Active state.
type Event string

const (
	EventBuy    Event = "buy"
	EventCancel Event = "cancel"
)

// ErrIllegalTransition is returned when an event is applied to a listing
// that cannot accept it.
var ErrIllegalTransition = errors.New("illegal listing transition")

// ParseStatus converts user input into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, nil
	case StatusSold:
		return StatusSold, nil
	case StatusCancelled, "canceled":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("unknown listing status %q", s)
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s != StatusActive }

// Transition is the single dispatcher for listing state changes.
func Transition(from Status, ev Event) (Status, error) {
	if from != StatusActive {
		return from, fmt.Errorf("%w: %s on %s listing", ErrIllegalTransition, ev, from)
	}
	switch ev {
	case EventBuy:
		return StatusSold, nil
	case EventCancel:
		return StatusCancelled, nil
	}
	return from, fmt.Errorf("%w: unknown event %q", ErrIllegalTransition, ev)
}

// Listing is an escrowed offer to sell one item at a fixed price.
type Listing struct {
	ID        uint64          `json:"id"`
	ItemID    uint64          `json:"item_id"`
	Seller    address.Address `json:"seller"`
	Price     uint64          `json:"price"`
	Status    Status          `json:"status"`
	Buyer     address.Address `json:"buyer,omitempty"`
	Fee       uint64          `json:"fee,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Apply moves the listing through Transition and stamps the change time.
func (l *Listing) Apply(ev Event, at time.Time) error {
	next, err := Transition(l.Status, ev)
	if err != nil {
		return err
	}
	l.Status = next
	l.UpdatedAt = at
	return nil
}

// Filter narrows listing queries. Zero fields match everything.
type Filter struct {
	Status Status
	Seller address.Address
	ItemID uint64
	Limit  int
}

// Match reports whether l satisfies the filter (ignoring Limit).
func (f Filter) Match(l Listing) bool {
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.Seller != "" && !f.Seller.Equal(l.Seller) {
		return false
	}
	if f.ItemID != 0 && l.ItemID != f.ItemID {
		return false
	}
	return true
}
