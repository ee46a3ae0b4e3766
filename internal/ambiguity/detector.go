// Package ambiguity gates tasks whose target reference may resolve to more
// than one real-world entity. The detector only ever produces structured
// records; rendering them into prose belongs exclusively to the confirmation
// coordinator.
package ambiguity

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/quartermaster/internal/dispatch"
	"github.com/ShayCichocki/quartermaster/pkg/models"
)

// mutatingStrategies is the fixed vocabulary offered for ambiguous mutating
// operations, in presentation order.
var mutatingStrategies = []models.Strategy{
	models.StrategyNewest,
	models.StrategyOldest,
	models.StrategyAll,
	models.StrategyCancel,
}

// Detector inspects a task before dispatch and decides whether its target
// reference is ambiguous.
type Detector struct {
	router *dispatch.Router
}

// New creates a Detector over the given router.
func New(router *dispatch.Router) *Detector {
	return &Detector{router: router}
}

// Check returns an AmbiguityRecord if the task's reference matches more than
// one entity, nil otherwise.
//
// Only mutating reference-resolving callables are gated: informational ones
// have nothing to mutate ambiguously. Zero matches is not an ambiguity (the
// dispatched call itself may fail with not-found); exactly one match is not
// an ambiguity. A task already carrying a resolution strategy passes the
// gate untouched.
func (d *Detector) Check(ctx context.Context, task *models.Task) (*models.AmbiguityRecord, error) {
	call := d.router.Catalog().Get(task.Target)
	if call == nil {
		return nil, fmt.Errorf("task %s targets unknown callable %s", task.ID, task.Target)
	}
	if !call.ReferenceResolving || !call.Mutating {
		return nil, nil
	}
	if task.Resolution != "" {
		return nil, nil
	}

	resolver, ok := d.router.Resolver(task.Target)
	if !ok {
		return nil, fmt.Errorf("callable %s has no reference resolver", task.Target)
	}

	count, err := resolver.CountMatches(ctx, task.Reference)
	if err != nil {
		return nil, &dispatch.Error{Target: task.Target, Err: fmt.Errorf("count matches: %w", err)}
	}
	if count <= 1 {
		return nil, nil
	}

	candidates, err := resolver.ListMatches(ctx, task.Reference)
	if err != nil {
		return nil, &dispatch.Error{Target: task.Target, Err: fmt.Errorf("list matches: %w", err)}
	}

	return &models.AmbiguityRecord{
		TaskID:     task.ID,
		Reference:  task.Reference,
		Candidates: candidates,
		Strategies: mutatingStrategies,
	}, nil
}
