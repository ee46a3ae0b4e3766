// Package dispatch routes a task's target callable name to the collaborator
// service implementing it. The routing table is built at startup and
// read-only afterwards, so it may be shared across concurrent plans without
// locking.
package dispatch

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/quartermaster/internal/catalog"
	"github.com/ShayCichocki/quartermaster/pkg/models"
)

// Target is the boundary to out-of-scope business logic: one implementation
// per catalog entry.
type Target interface {
	// Invoke executes the callable with fully resolved parameters.
	Invoke(ctx context.Context, params map[string]any) (map[string]any, error)
}

// ReferenceResolver is the read-only query capability a reference-resolving
// target additionally exposes. It is used only by the ambiguity detector.
type ReferenceResolver interface {
	// CountMatches returns how many entities match the reference.
	CountMatches(ctx context.Context, reference string) (int, error)
	// ListMatches returns opaque handles for the matched entities.
	ListMatches(ctx context.Context, reference string) ([]models.EntityHandle, error)
}

// Error reports a failed dispatch. It is non-fatal to the plan: the executor
// absorbs it into the task's (and its dependents') status.
type Error struct {
	// Target is the callable that failed.
	Target string
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.Target, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Router maps callable names to their targets.
type Router struct {
	catalog *catalog.Catalog
	targets map[string]Target
}

// NewRouter creates a router over the given catalog. Targets are registered
// at startup; the router must not be mutated once plans are executing.
func NewRouter(cat *catalog.Catalog) *Router {
	return &Router{
		catalog: cat,
		targets: make(map[string]Target),
	}
}

// Register binds a target to a catalog entry.
// Registering a name absent from the catalog is an error.
func (r *Router) Register(name string, target Target) error {
	if !r.catalog.Has(name) {
		return fmt.Errorf("register %s: not in catalog", name)
	}
	if _, dup := r.targets[name]; dup {
		return fmt.Errorf("register %s: already registered", name)
	}
	r.targets[name] = target
	return nil
}

// Catalog returns the catalog the router was built over.
func (r *Router) Catalog() *catalog.Catalog {
	return r.catalog
}

// Target returns the registered target for a name, or nil.
func (r *Router) Target(name string) Target {
	return r.targets[name]
}

// Invoke routes the call to the named target. Failures are wrapped in *Error
// so the executor can distinguish dispatch failures from invariant
// violations.
func (r *Router) Invoke(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	target, ok := r.targets[name]
	if !ok {
		return nil, &Error{Target: name, Err: fmt.Errorf("no registered target")}
	}

	result, err := target.Invoke(ctx, params)
	if err != nil {
		return nil, &Error{Target: name, Err: err}
	}
	return result, nil
}

// Resolver returns the reference-resolution capability of the named target,
// or false if the target does not expose one.
func (r *Router) Resolver(name string) (ReferenceResolver, bool) {
	target, ok := r.targets[name]
	if !ok {
		return nil, false
	}
	resolver, ok := target.(ReferenceResolver)
	return resolver, ok
}

// Verify checks that every catalog entry has a registered target, and that
// every reference-resolving entry's target exposes the resolver capability.
// Called once after startup wiring.
func (r *Router) Verify() error {
	for _, call := range r.catalog.List() {
		target, ok := r.targets[call.Name]
		if !ok {
			return fmt.Errorf("callable %s has no registered target", call.Name)
		}
		if call.ReferenceResolving {
			if _, ok := target.(ReferenceResolver); !ok {
				return fmt.Errorf("callable %s is reference-resolving but its target cannot resolve references", call.Name)
			}
		}
	}
	return nil
}
