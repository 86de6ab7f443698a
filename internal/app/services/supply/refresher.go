// Package supply keeps the circulating-supply gauges current on a cron
// schedule.
package supply

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/kozak_economy/internal/app/metrics"
	"github.com/R3E-Network/kozak_economy/internal/app/services/treasury"
	"github.com/R3E-Network/kozak_economy/internal/app/system"
	"github.com/R3E-Network/kozak_economy/pkg/logger"
)

// DefaultSchedule refreshes every 30 seconds.
const DefaultSchedule = "@every 30s"

// Source yields a supply snapshot.
type Source interface {
	Supply(ctx context.Context) (treasury.Supply, error)
}

// Refresher publishes supply snapshots as Prometheus gauges.
type Refresher struct {
	source   Source
	schedule string
	timeout  time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	last    treasury.Supply
	lastErr error
}

var _ system.Service = (*Refresher)(nil)

// New validates the schedule and builds a stopped refresher.
func New(source Source, schedule string, log *logger.Logger) (*Refresher, error) {
	if log == nil {
		log = logger.NewDefault("supply")
	}
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("supply schedule %q: %w", schedule, err)
	}
	return &Refresher{source: source, schedule: schedule, timeout: 10 * time.Second, log: log}, nil
}

func (r *Refresher) Name() string { return "supply-refresher" }

// Start refreshes once synchronously and then on the schedule.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cron != nil {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() { r.Refresh(runCtx) }); err != nil {
		cancel()
		r.mu.Unlock()
		return fmt.Errorf("schedule supply refresh: %w", err)
	}
	r.cron, r.cancel = c, cancel
	r.mu.Unlock()

	r.Refresh(ctx)
	c.Start()
	r.log.Infof("supply refresher started (%s)", r.schedule)
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	c, cancel := r.cron, r.cancel
	r.cron, r.cancel = nil, nil
	r.mu.Unlock()
	if c == nil {
		return nil
	}
	cancel()
	done := c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	r.log.Info("supply refresher stopped")
	return nil
}

// Refresh takes one snapshot and updates the gauges.
func (r *Refresher) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	snap, err := r.source.Supply(ctx)
	r.mu.Lock()
	r.lastErr = err
	if err == nil {
		r.last = snap
	}
	r.mu.Unlock()
	if err != nil {
		r.log.WithError(err).Warn("supply refresh failed")
		return
	}

	for rt, amount := range snap.Resources {
		metrics.SetResourceSupply(rt.String(), amount)
	}
	metrics.SetItemSupply(snap.Items)
	metrics.SetCurrencySupply(snap.Currency)
	metrics.SetActiveListings(snap.ActiveListings)
}

// Last returns the most recent successful snapshot and the latest error.
func (r *Refresher) Last() (treasury.Supply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.lastErr
}
