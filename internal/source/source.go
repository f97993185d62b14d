// Package source resolves the polymorphic food/recipe references carried by
// meal items and ledger entries.
package source

import (
	"fmt"

	"github.com/dukerupert/diabyte/internal/model"
	"github.com/dukerupert/diabyte/internal/store"
)

// Source is a resolved carbohydrate source. CarbsPer100 is nil when the
// density is unknown, which only happens for recipes.
type Source struct {
	Type        model.SourceType `json:"type"`
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	CarbsPer100 *float64         `json:"carbs_per_100"`
}

// Lookup resolves one kind of source. A nil Source with a nil error means the
// id does not exist or is not visible to userID.
type Lookup interface {
	LookupSource(userID, id int64) (*Source, error)
}

// Foods resolves catalog foods, which every user can see.
type Foods struct {
	Store *store.FoodStore
}

// LookupSource returns the food with id; userID is ignored.
func (f Foods) LookupSource(_ int64, id int64) (*Source, error) {
	food, err := f.Store.GetByID(id)
	if err != nil {
		return nil, err
	}
	if food == nil {
		return nil, nil
	}
	density := food.CarbsPer100
	return &Source{Type: model.SourceFood, ID: food.ID, Name: food.Name, CarbsPer100: &density}, nil
}

// Recipes resolves recipes owned by the requesting user.
type Recipes struct {
	Store *store.RecipeStore
}

// LookupSource returns the recipe with id only when userID owns it.
func (r Recipes) LookupSource(userID, id int64) (*Source, error) {
	recipe, err := r.Store.GetOwned(userID, id)
	if err != nil {
		return nil, err
	}
	if recipe == nil {
		return nil, nil
	}
	return &Source{Type: model.SourceRecipe, ID: recipe.ID, Name: recipe.Name, CarbsPer100: recipe.CarbsPer100}, nil
}

// Registry dispatches lookups by source type.
type Registry struct {
	lookups map[model.SourceType]Lookup
}

// NewRegistry registers the food and recipe lookups.
func NewRegistry(foods, recipes Lookup) *Registry {
	return &Registry{lookups: map[model.SourceType]Lookup{
		model.SourceFood:   foods,
		model.SourceRecipe: recipes,
	}}
}

// Resolve returns the source or a model.ErrNotFound / model.ErrInvalidInput
// wrapped error.
func (r *Registry) Resolve(userID int64, t model.SourceType, id int64) (*Source, error) {
	lookup, ok := r.lookups[t]
	if !ok {
		return nil, fmt.Errorf("%w: unknown source type %q", model.ErrInvalidInput, t)
	}
	src, err := lookup.LookupSource(userID, id)
	if err != nil {
		return nil, fmt.Errorf("resolve %s %d: %w", t, id, err)
	}
	if src == nil {
		return nil, fmt.Errorf("%w: %s %d", model.ErrNotFound, t, id)
	}
	return src, nil
}
