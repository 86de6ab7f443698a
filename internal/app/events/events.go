// Package events carries domain events out of the service after a
// transaction commits. Publishing never affects the outcome of the operation
// that produced the event.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/pkg/logger"
)

// Kind names an event.
type Kind string

const (
	KindResourcesFound   Kind = "resources.found"
	KindResourcesMinted  Kind = "resources.minted"
	KindCurrencyMinted   Kind = "currency.minted"
	KindItemCrafted      Kind = "item.crafted"
	KindListingCreated   Kind = "listing.created"
	KindListingCancelled Kind = "listing.cancelled"
	KindListingSold      Kind = "listing.sold"
	KindGrantAdded       Kind = "grant.added"
	KindGrantRemoved     Kind = "grant.removed"
)

// Event is a committed state change.
type Event struct {
	ID    string                 `json:"id"`
	Kind  Kind                   `json:"kind"`
	Actor address.Address        `json:"actor"`
	Data  map[string]interface{} `json:"data,omitempty"`
	At    time.Time              `json:"at"`
}

// New stamps an event with a fresh id and the current time.
func New(kind Kind, actor address.Address, data map[string]interface{}) Event {
	return Event{
		ID:    uuid.NewString(),
		Kind:  kind,
		Actor: actor,
		Data:  data,
		At:    time.Now().UTC(),
	}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Emit publishes ev and logs delivery failures. Used by services after commit.
func Emit(ctx context.Context, pub Publisher, log *logger.Logger, ev Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, ev); err != nil && log != nil {
		log.WithError(err).
			WithField("event_kind", ev.Kind).
			WithField("event_id", ev.ID).
			Warn("publish event failed")
	}
}

// Multi fans an event out to every publisher.
type Multi []Publisher

// Publish delivers to all publishers and joins their errors.
func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes events to the structured log.
type LogPublisher struct {
	log *logger.Logger
}

// NewLogPublisher returns a publisher that logs at info level.
func NewLogPublisher(log *logger.Logger) *LogPublisher {
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	fields := map[string]interface{}{
		"event_id":   ev.ID,
		"event_kind": string(ev.Kind),
		"actor":      ev.Actor.String(),
	}
	for k, v := range ev.Data {
		fields["data_"+k] = v
	}
	p.log.WithFields(fields).Info("event")
	return nil
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the recorded kinds in publish order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}
