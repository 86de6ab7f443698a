package crafting

import (
	"context"
	"fmt"
	"time"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/item"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/recipe"
	"github.com/R3E-Network/kozak_economy/internal/app/events"
	"github.com/R3E-Network/kozak_economy/internal/app/ledger"
	"github.com/R3E-Network/kozak_economy/internal/app/storage"
)

// Shortfall is one unmet recipe requirement.
type Shortfall struct {
	recipe.Ingredient
	Have uint64 `json:"have"`
}

// Check is the dry-run result of CanCraft.
type Check struct {
	RecipeID  uint32      `json:"recipe_id"`
	Craftable bool        `json:"craftable"`
	Missing   []Shortfall `json:"missing,omitempty"`
}

// Recipes lists the catalog in id order.
func (s *Service) Recipes() []recipe.Recipe { return s.catalog.All() }

// Recipe returns one recipe or ErrUnknownRecipe.
func (s *Service) Recipe(id uint32) (recipe.Recipe, error) {
	r, ok := s.catalog.Get(id)
	if !ok {
		return recipe.Recipe{}, fmt.Errorf("%w: %d", ErrUnknownRecipe, id)
	}
	return r, nil
}

// CraftItem burns the recipe inputs from the player's balances and mints one
// output item to the player. Balances are checked in recipe input order and
// the first shortfall is reported; nothing is burned unless everything is.
func (s *Service) CraftItem(ctx context.Context, player address.Address, recipeID uint32) (crafted item.Item, err error) {
	start := time.Now()
	defer func() { observe("craft", start, err) }()

	r, err := s.Recipe(recipeID)
	if err != nil {
		return item.Item{}, err
	}

	err = s.store.Update(ctx, func(ctx context.Context, tx storage.Tx) error {
		for _, in := range r.Inputs {
			have, err := s.ledgers.Resources.BalanceOf(ctx, tx, player, in.Resource)
			if err != nil {
				return err
			}
			if have < in.Quantity {
				return fmt.Errorf("%w: %s needs %d %s, has %d", ledger.ErrInsufficientResources, r.Name, in.Quantity, in.Resource, have)
			}
		}
		for _, in := range r.Inputs {
			if err := s.ledgers.Resources.Burn(ctx, tx, s.self, player, in.Resource, in.Quantity); err != nil {
				return err
			}
		}
		var err error
		crafted, err = s.ledgers.Items.Mint(ctx, tx, s.self, player, r.Output)
		return err
	})
	if err != nil {
		s.log.WithError(err).
			WithField("player", player.String()).
			WithField("recipe_id", recipeID).
			Debug("craft failed")
		return item.Item{}, err
	}

	s.log.WithField("player", player.String()).
		WithField("recipe", r.Name).
		WithField("item_id", crafted.ID).
		Info("item crafted")
	events.Emit(ctx, s.pub, s.log, events.New(events.KindItemCrafted, player, map[string]interface{}{
		"item_id":   crafted.ID,
		"item_type": crafted.Type,
		"recipe_id": r.ID,
	}))
	return crafted, nil
}

// CanCraft reports whether the player could craft the recipe right now
// without changing any state.
func (s *Service) CanCraft(ctx context.Context, player address.Address, recipeID uint32) (Check, error) {
	r, err := s.Recipe(recipeID)
	if err != nil {
		return Check{}, err
	}
	check := Check{RecipeID: r.ID}
	err = s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		for _, in := range r.Inputs {
			have, err := s.ledgers.Resources.BalanceOf(ctx, tx, player, in.Resource)
			if err != nil {
				return err
			}
			if have < in.Quantity {
				check.Missing = append(check.Missing, Shortfall{Ingredient: in, Have: have})
			}
		}
		return nil
	})
	if err != nil {
		return Check{}, err
	}
	check.Craftable = len(check.Missing) == 0
	return check, nil
}
