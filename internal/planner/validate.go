package planner

import (
	"errors"
	"fmt"

	"github.com/ShayCichocki/quartermaster/internal/catalog"
	"github.com/ShayCichocki/quartermaster/internal/graph"
	"github.com/ShayCichocki/quartermaster/pkg/models"
)

// compositionRule pins a domain-canonical task shape the model must produce:
// a task with the given target must depend on a task with the source target
// and bind the named parameter to that task's result field.
type compositionRule struct {
	target       string
	sourceTarget string
	param        string
	field        string
}

// compositionRules are the fixed decompositions the planner enforces on the
// model's output. Generating a shopping list always reads pantry state first
// and consumes its items.
var compositionRules = []compositionRule{
	{target: "shopping.generate-list", sourceTarget: "pantry.get-state", param: "items", field: "items"},
}

// validate checks the parsed task list against the catalog, the reference
// rules, the composition rules, and acyclicity. A nil return means the tasks
// form a well-formed plan.
func validate(cat *catalog.Catalog, tasks []*models.Task) error {
	byID := make(map[string]*models.Task, len(tasks))
	for _, task := range tasks {
		if _, dup := byID[task.ID]; dup {
			return malformed("duplicate task id "+task.ID, nil)
		}
		byID[task.ID] = task
	}

	for _, task := range tasks {
		call := cat.Get(task.Target)
		if call == nil {
			return malformed(fmt.Sprintf("task %s targets unknown callable %s", task.ID, task.Target), nil)
		}
		if task.FallbackTarget != "" && !cat.Has(task.FallbackTarget) {
			return malformed(fmt.Sprintf("task %s declares unknown fallback %s", task.ID, task.FallbackTarget), nil)
		}
		if call.ReferenceResolving && task.Reference == "" {
			return malformed(fmt.Sprintf("task %s targets reference-resolving %s without a reference", task.ID, task.Target), nil)
		}

		deps := make(map[string]bool, len(task.DependsOn))
		for _, depID := range task.DependsOn {
			if _, ok := byID[depID]; !ok {
				return malformed(fmt.Sprintf("task %s depends on unknown task %s", task.ID, depID), nil)
			}
			deps[depID] = true
		}

		for name, val := range task.Params {
			if val.IsRef() && !deps[val.Ref.TaskID] {
				return malformed(fmt.Sprintf("task %s param %s references task %s outside its dependencies", task.ID, name, val.Ref.TaskID), nil)
			}
		}

		for _, p := range call.Params {
			if !p.Required {
				continue
			}
			if _, ok := task.Params[p.Name]; !ok {
				// The reference slot may stand in for a required "reference" param.
				if call.ReferenceResolving && p.Name == "reference" && task.Reference != "" {
					continue
				}
				return malformed(fmt.Sprintf("task %s missing required param %s", task.ID, p.Name), nil)
			}
		}
	}

	if err := validateComposition(byID, tasks); err != nil {
		return err
	}

	g := graph.New()
	if err := g.Build(tasks); err != nil {
		if errors.Is(err, graph.ErrCycleDetected) {
			return cyclic("model output contains a dependency cycle", err)
		}
		return malformed("graph construction", err)
	}

	return nil
}

// validateComposition enforces the fixed task shapes in compositionRules.
func validateComposition(byID map[string]*models.Task, tasks []*models.Task) error {
	for _, task := range tasks {
		for _, rule := range compositionRules {
			if task.Target != rule.target {
				continue
			}

			val, ok := task.Params[rule.param]
			if !ok || !val.IsRef() {
				return malformed(fmt.Sprintf("task %s must bind param %s to a %s result", task.ID, rule.param, rule.sourceTarget), nil)
			}

			src := byID[val.Ref.TaskID]
			if src == nil || src.Target != rule.sourceTarget {
				return malformed(fmt.Sprintf("task %s param %s must reference a %s task", task.ID, rule.param, rule.sourceTarget), nil)
			}
			if val.Ref.Field != rule.field {
				return malformed(fmt.Sprintf("task %s param %s must reference field %s", task.ID, rule.param, rule.field), nil)
			}
		}
	}
	return nil
}
