package crafting

import (
	"context"
	"fmt"
	"time"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/resource"
	"github.com/R3E-Network/kozak_economy/internal/app/events"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
)

// SearchResources grants the player SearchDraws units, each of a resource
// type drawn independently from the weight table. The draws and mints share
// one transaction: if any mint fails, the player receives nothing.
func (s *Service) SearchResources(ctx context.Context, player address.Address) (found []resource.Type, err error) {
	start := time.Now()
	defer func() { observe("search", start, err) }()

	if s.cooldown > 0 {
		r := s.limiter(player).Reserve()
		if d := r.Delay(); d > 0 {
			r.Cancel()
			return nil, fmt.Errorf("%w: retry in %s", ErrSearchCooldown, d.Round(time.Millisecond))
		}
		defer func() {
			if err != nil {
				r.Cancel()
			}
		}()
	}

	err = s.store.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		found = found[:0]
		for i := 0; i < SearchDraws; i++ {
			idx, err := s.drawer.Draw(ctx, s.weights)
			if err != nil {
				return fmt.Errorf("draw %d: %w", i, err)
			}
			rt := resource.Type(idx)
			if err := s.ledgers.Resources.Mint(ctx, tx, s.self, player, rt, 1); err != nil {
				return err
			}
			found = append(found, rt)
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithField("player", player.String()).Debug("search failed")
		return nil, err
	}

	names := make([]string, len(found))
	for i, rt := range found {
		names[i] = rt.String()
	}
	s.log.WithField("player", player.String()).WithField("resources", names).Info("resources found")
	events.Emit(ctx, s.pub, s.log, events.New(events.KindResourcesFound, player, map[string]interface{}{
		"resources": names,
	}))
	return found, nil
}
