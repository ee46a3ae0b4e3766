package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/quartermaster/internal/catalog"
	"github.com/ShayCichocki/quartermaster/internal/dispatch"
	"github.com/ShayCichocki/quartermaster/pkg/models"
)

// CatalogEntries describes the built-in callables for the planner prompt and
// dispatch routing.
func CatalogEntries() []catalog.Callable {
	return []catalog.Callable{
		{
			Name:    "pantry.get-state",
			Summary: "Read the current pantry inventory.",
			Returns: []catalog.FieldSpec{
				{Name: "items", Type: "list", Description: "names of items currently in the pantry"},
			},
		},
		{
			Name:    "pantry.find-item",
			Summary: "Look up pantry items by name or description.",
			Params: []catalog.ParamSpec{
				{Name: "reference", Type: "string", Required: true, Description: "item name or description to search for"},
			},
			Returns: []catalog.FieldSpec{
				{Name: "matches", Type: "list", Description: "matching items"},
				{Name: "count", Type: "number", Description: "number of matches"},
			},
			ReferenceResolving: true,
		},
		{
			Name:    "pantry.consume-item",
			Summary: "Remove an item from the pantry (eaten, used up, or discarded).",
			Params: []catalog.ParamSpec{
				{Name: "reference", Type: "string", Required: true, Description: "name of the item to remove"},
			},
			Returns: []catalog.FieldSpec{
				{Name: "removed", Type: "list", Description: "names of the removed items"},
				{Name: "count", Type: "number", Description: "number of items removed"},
			},
			ReferenceResolving: true,
			Mutating:           true,
		},
		{
			Name:    "pantry.add-item",
			Summary: "Add a new item to the pantry.",
			Params: []catalog.ParamSpec{
				{Name: "name", Type: "string", Required: true, Description: "item name"},
				{Name: "quantity", Type: "number", Description: "amount, defaults to 1"},
				{Name: "unit", Type: "string", Description: "unit for the quantity"},
			},
			Returns: []catalog.FieldSpec{
				{Name: "id", Type: "string", Description: "ID of the new item"},
			},
			Mutating: true,
		},
		{
			Name:    "shopping.generate-list",
			Summary: "Generate a shopping list of staples missing from the given pantry items.",
			Params: []catalog.ParamSpec{
				{Name: "items", Type: "list", Required: true, Description: "current pantry item names, from pantry.get-state"},
			},
			Returns: []catalog.FieldSpec{
				{Name: "list", Type: "list", Description: "item names to buy"},
			},
		},
	}
}

// RegisterAll registers every built-in target on the router, backed by the
// given store.
func RegisterAll(router *dispatch.Router, store *Store) error {
	targets := map[string]dispatch.Target{
		"pantry.get-state":       &GetStateTarget{store: store},
		"pantry.find-item":       &FindItemTarget{store: store},
		"pantry.consume-item":    &ConsumeItemTarget{store: store},
		"pantry.add-item":        &AddItemTarget{store: store},
		"shopping.generate-list": &ShoppingListTarget{store: store},
	}
	for name, target := range targets {
		if err := router.Register(name, target); err != nil {
			return err
		}
	}
	return nil
}

// GetStateTarget implements pantry.get-state.
type GetStateTarget struct {
	store *Store
}

// Invoke returns the names of everything currently in the pantry.
func (t *GetStateTarget) Invoke(_ context.Context, _ map[string]any) (map[string]any, error) {
	items := t.store.Items()
	names := make([]any, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return map[string]any{"items": names}, nil
}

// FindItemTarget implements pantry.find-item. It resolves references but
// never mutates, so it is not gated on ambiguity.
type FindItemTarget struct {
	store *Store
}

// Invoke returns every item matching the reference.
func (t *FindItemTarget) Invoke(_ context.Context, params map[string]any) (map[string]any, error) {
	reference, err := stringParam(params, "reference")
	if err != nil {
		return nil, err
	}
	matches := t.store.FindMatches(reference)
	out := make([]any, 0, len(matches))
	for _, item := range matches {
		out = append(out, map[string]any{
			"id":       item.ID,
			"name":     item.Name,
			"quantity": item.Quantity,
			"unit":     item.Unit,
		})
	}
	return map[string]any{"matches": out, "count": len(matches)}, nil
}

// CountMatches implements dispatch.ReferenceResolver.
func (t *FindItemTarget) CountMatches(_ context.Context, reference string) (int, error) {
	return len(t.store.FindMatches(reference)), nil
}

// ListMatches implements dispatch.ReferenceResolver.
func (t *FindItemTarget) ListMatches(_ context.Context, reference string) ([]models.EntityHandle, error) {
	return handles(t.store.FindMatches(reference)), nil
}

// ConsumeItemTarget implements pantry.consume-item, the mutating
// reference-resolving callable that exercises the ambiguity gate.
type ConsumeItemTarget struct {
	store *Store
}

// Invoke removes the matched item(s). When a disambiguation strategy rides
// along in the parameters, it scopes which matches are removed.
func (t *ConsumeItemTarget) Invoke(_ context.Context, params map[string]any) (map[string]any, error) {
	reference, err := stringParam(params, "reference")
	if err != nil {
		return nil, err
	}

	matches := t.store.FindMatches(reference)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no pantry item matches %q", reference)
	}

	resolution, _ := params["resolution"].(string)
	scoped, err := scopeMatches(matches, resolution)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(scoped))
	for i, item := range scoped {
		ids[i] = item.ID
	}
	removed, err := t.store.Remove(ids...)
	if err != nil {
		return nil, err
	}

	names := make([]any, len(removed))
	for i, item := range removed {
		names[i] = item.Name
	}
	return map[string]any{"removed": names, "count": len(removed)}, nil
}

// CountMatches implements dispatch.ReferenceResolver.
func (t *ConsumeItemTarget) CountMatches(_ context.Context, reference string) (int, error) {
	return len(t.store.FindMatches(reference)), nil
}

// ListMatches implements dispatch.ReferenceResolver.
func (t *ConsumeItemTarget) ListMatches(_ context.Context, reference string) ([]models.EntityHandle, error) {
	return handles(t.store.FindMatches(reference)), nil
}

// AddItemTarget implements pantry.add-item.
type AddItemTarget struct {
	store *Store
}

// Invoke adds a new item to the pantry.
func (t *AddItemTarget) Invoke(_ context.Context, params map[string]any) (map[string]any, error) {
	name, err := stringParam(params, "name")
	if err != nil {
		return nil, err
	}

	item := Item{Name: name}
	if q, ok := params["quantity"].(float64); ok {
		item.Quantity = q
	}
	if unit, ok := params["unit"].(string); ok {
		item.Unit = unit
	}

	added, err := t.store.Add(item)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": added.ID}, nil
}

// ShoppingListTarget implements shopping.generate-list.
type ShoppingListTarget struct {
	store *Store
}

// Invoke returns the staples absent from the supplied item names.
func (t *ShoppingListTarget) Invoke(_ context.Context, params map[string]any) (map[string]any, error) {
	raw, ok := params["items"]
	if !ok {
		return nil, fmt.Errorf("missing required param %q", "items")
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("param %q must be a list, got %T", "items", raw)
	}

	have := make(map[string]bool, len(items))
	for _, v := range items {
		if name, ok := v.(string); ok {
			have[strings.ToLower(name)] = true
		}
	}

	var list []any
	for _, staple := range t.store.Staples() {
		if !have[strings.ToLower(staple)] {
			list = append(list, staple)
		}
	}
	if list == nil {
		list = []any{}
	}
	return map[string]any{"list": list}, nil
}

// scopeMatches narrows newest-first matches down to the set a strategy
// selects. More than one match with no strategy is rejected; the gate should
// have paused the plan before dispatch.
func scopeMatches(matches []Item, resolution string) ([]Item, error) {
	switch models.Strategy(resolution) {
	case models.StrategyNewest:
		return matches[:1], nil
	case models.StrategyOldest:
		return matches[len(matches)-1:], nil
	case models.StrategyAll:
		return matches, nil
	case "":
		if len(matches) > 1 {
			return nil, fmt.Errorf("%d items match and no disambiguation strategy was given", len(matches))
		}
		return matches, nil
	default:
		return nil, fmt.Errorf("unknown disambiguation strategy %q", resolution)
	}
}

func handles(items []Item) []models.EntityHandle {
	out := make([]models.EntityHandle, len(items))
	for i, item := range items {
		out[i] = item.Handle()
	}
	return out
}

func stringParam(params map[string]any, name string) (string, error) {
	raw, ok := params[name]
	if !ok {
		return "", fmt.Errorf("missing required param %q", name)
	}
	value, ok := raw.(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("param %q must be a non-empty string", name)
	}
	return value, nil
}
