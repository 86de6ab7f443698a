package crafting

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/resource"
	"github.com/R3E-Network/kozak_economy/internal/app/ledger"
)

// Crafting either consumes exactly the recipe inputs and yields one item, or
// leaves every balance as it was.
func TestCraftIsAllOrNothing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("craft is atomic", prop.ForAll(
		func(amounts []uint8, recipeID uint32) bool {
			f := newFixture(t, wired())
			start := make(map[resource.Type]uint64)
			for i, n := range amounts {
				if i >= resource.Count {
					break
				}
				if n > 0 {
					start[resource.Type(i)] = uint64(n)
				}
			}
			f.give(t, player, start)

			r, _ := f.svc.Recipe(recipeID)
			sufficient := true
			for _, in := range r.Inputs {
				if start[in.Resource] < in.Quantity {
					sufficient = false
				}
			}

			_, err := f.svc.CraftItem(context.Background(), player, recipeID)
			after := f.balances(t, player)
			items := f.itemCount(t, player)

			if !sufficient {
				if !errors.Is(err, ledger.ErrInsufficientResources) || items != 0 {
					return false
				}
				for _, rt := range resource.All() {
					if after[rt] != start[rt] {
						return false
					}
				}
				return true
			}

			if err != nil || items != 1 {
				return false
			}
			want := make(map[resource.Type]uint64, len(start))
			for rt, n := range start {
				want[rt] = n
			}
			for _, in := range r.Inputs {
				want[in.Resource] -= in.Quantity
			}
			for _, rt := range resource.All() {
				if after[rt] != want[rt] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(resource.Count, gen.UInt8Range(0, 4)),
		gen.UInt32Range(0, 4),
	))

	properties.TestingRun(t)
}

// Every successful search adds exactly three units regardless of weights.
func TestSearchAlwaysGrantsThree(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("search grants three units", prop.ForAll(
		func(weights []uint64, searches int) bool {
			table := make(map[resource.Type]uint64)
			for i, w := range weights {
				table[resource.Type(i)] = w
			}
			table[resource.Wood]++
			f := newFixture(t, wired(), WithWeights(table))
			for i := 0; i < searches; i++ {
				found, err := f.svc.SearchResources(context.Background(), player)
				if err != nil || len(found) != SearchDraws {
					return false
				}
				for _, rt := range found {
					if table[rt] == 0 {
						return false
					}
				}
			}
			return sum(f.balances(t, player)) == uint64(SearchDraws*searches)
		},
		gen.SliceOfN(resource.Count, gen.UInt64Range(0, 10)),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}
