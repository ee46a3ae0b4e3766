// Package catalog holds the registry of callables a plan can target.
// The catalog is built once at startup and read-only afterwards, so it may be
// shared across concurrent plans without locking.
package catalog

import (
	"fmt"
	"sort"
)

// ParamSpec describes one parameter of a callable.
type ParamSpec struct {
	// Name is the parameter name as it appears in task parameter maps.
	Name string `yaml:"name"`
	// Type is a coarse type hint (string, number, list, object).
	Type string `yaml:"type"`
	// Required indicates the planner must supply this parameter.
	Required bool `yaml:"required"`
	// Description is a short natural-language summary for the planner prompt.
	Description string `yaml:"description,omitempty"`
}

// FieldSpec describes one field of a callable's result.
type FieldSpec struct {
	// Name is the result field name.
	Name string `yaml:"name"`
	// Type is a coarse type hint.
	Type string `yaml:"type"`
	// Description is a short natural-language summary.
	Description string `yaml:"description,omitempty"`
}

// Callable describes one dispatchable capability.
type Callable struct {
	// Name is the unique dispatch name (e.g. "pantry.consume-item").
	Name string `yaml:"name"`
	// Summary is a one-line natural-language description for the planner.
	Summary string `yaml:"summary"`
	// Params describes the accepted parameters.
	Params []ParamSpec `yaml:"params,omitempty"`
	// Returns describes the result fields.
	Returns []FieldSpec `yaml:"returns,omitempty"`
	// ReferenceResolving is true if the callable identifies an entity by name
	// or description rather than an exact identifier, and therefore passes
	// through the ambiguity gate before dispatch.
	ReferenceResolving bool `yaml:"reference_resolving,omitempty"`
	// Mutating is true if the callable changes state. Only mutating callables
	// offer disambiguation strategies; informational ones never reach the
	// gate.
	Mutating bool `yaml:"mutating,omitempty"`
}

// Catalog is the static registry of callables.
type Catalog struct {
	byName map[string]*Callable
	order  []string
}

// New creates a catalog from the given callables.
// Duplicate names are an error.
func New(callables ...Callable) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]*Callable)}
	for i := range callables {
		call := callables[i]
		if call.Name == "" {
			return nil, fmt.Errorf("callable %d has no name", i)
		}
		if _, dup := c.byName[call.Name]; dup {
			return nil, fmt.Errorf("duplicate callable %s", call.Name)
		}
		c.byName[call.Name] = &call
		c.order = append(c.order, call.Name)
	}
	return c, nil
}

// Get returns the callable with the given name, or nil if unknown.
func (c *Catalog) Get(name string) *Callable {
	return c.byName[name]
}

// Has returns true if the catalog contains the given name.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// List returns all callables in registration order.
func (c *Catalog) List() []*Callable {
	out := make([]*Callable, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}

// Names returns all callable names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered callables.
func (c *Catalog) Len() int {
	return len(c.byName)
}
