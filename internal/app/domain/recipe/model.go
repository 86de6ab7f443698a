package recipe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/item"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/resource"
)

// ErrInvalid wraps every recipe validation failure.
var ErrInvalid = errors.New("invalid recipe")

// Ingredient is one resource requirement of a recipe.
type Ingredient struct {
	Resource resource.Type `json:"resource"`
	Quantity uint64        `json:"quantity"`
}

// Recipe maps an ordered set of resource quantities to one output item.
// Recipes are immutable once registered in a catalog.
type Recipe struct {
	ID     uint32       `json:"id"`
	Name   string       `json:"name"`
	Output item.Type    `json:"output_item_type"`
	Inputs []Ingredient `json:"inputs"`
}

// Validate checks the structural invariants: a name, at least one input,
// positive quantities and no repeated resource.
func (r Recipe) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w %d: name is required", ErrInvalid, r.ID)
	}
	if len(r.Inputs) == 0 {
		return fmt.Errorf("%w %d: at least one input is required", ErrInvalid, r.ID)
	}
	seen := make(map[resource.Type]bool, len(r.Inputs))
	for _, in := range r.Inputs {
		if !in.Resource.Valid() {
			return fmt.Errorf("%w %d: %v", ErrInvalid, r.ID, resource.ErrUnknown)
		}
		if in.Quantity == 0 {
			return fmt.Errorf("%w %d: quantity of %s must be positive", ErrInvalid, r.ID, in.Resource)
		}
		if seen[in.Resource] {
			return fmt.Errorf("%w %d: %s listed twice", ErrInvalid, r.ID, in.Resource)
		}
		seen[in.Resource] = true
	}
	return nil
}

// Clone returns a copy that does not share the inputs slice.
func (r Recipe) Clone() Recipe {
	r.Inputs = append([]Ingredient(nil), r.Inputs...)
	return r
}

// Defaults is the built-in recipe book. Recipe 0 is the Kozak Sword.
func Defaults() []Recipe {
	return []Recipe{
		{ID: 0, Name: "Kozak Sword", Output: 0, Inputs: []Ingredient{
			{Resource: resource.Iron, Quantity: 3},
			{Resource: resource.Wood, Quantity: 1},
			{Resource: resource.Leather, Quantity: 1},
		}},
		{ID: 1, Name: "Kozak Shield", Output: 1, Inputs: []Ingredient{
			{Resource: resource.Wood, Quantity: 2},
			{Resource: resource.Iron, Quantity: 1},
			{Resource: resource.Leather, Quantity: 1},
		}},
		{ID: 2, Name: "Bulava", Output: 2, Inputs: []Ingredient{
			{Resource: resource.Iron, Quantity: 2},
			{Resource: resource.Stone, Quantity: 2},
			{Resource: resource.Gold, Quantity: 1},
		}},
		{ID: 3, Name: "Kobza", Output: 3, Inputs: []Ingredient{
			{Resource: resource.Wood, Quantity: 3},
			{Resource: resource.Leather, Quantity: 1},
			{Resource: resource.Crystal, Quantity: 1},
		}},
		{ID: 4, Name: "Hetman Pernach", Output: 4, Inputs: []Ingredient{
			{Resource: resource.Gold, Quantity: 2},
			{Resource: resource.Crystal, Quantity: 2},
			{Resource: resource.Iron, Quantity: 1},
		}},
	}
}
