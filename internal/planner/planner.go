// Package planner converts a user utterance plus the callable catalog into a
// validated task graph. The language model is treated as an unreliable
// external service: its output is schema-checked, reference-checked, and
// cycle-checked before it is allowed to become a plan.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/quartermaster/internal/catalog"
	"github.com/ShayCichocki/quartermaster/internal/llm"
	"github.com/ShayCichocki/quartermaster/pkg/models"
)

// Planner turns utterances into plans.
type Planner struct {
	client  llm.Completer
	catalog *catalog.Catalog
}

// New creates a Planner over the given model client and catalog.
func New(client llm.Completer, cat *catalog.Catalog) *Planner {
	return &Planner{client: client, catalog: cat}
}

// Plan issues one model call and validates the result into a Plan.
//
// A zero-task plan is success, not an error: purely conversational turns plan
// to nothing and complete immediately. Schema violations and cycles return a
// *PlanningError and no partial plan.
func (p *Planner) Plan(ctx context.Context, caller, utterance string) (*models.Plan, error) {
	if utterance == "" {
		return nil, fmt.Errorf("empty utterance")
	}
	if p.catalog == nil || p.catalog.Len() == 0 {
		return nil, fmt.Errorf("empty catalog")
	}

	response, err := p.client.Complete(ctx, systemPrompt, buildPrompt(p.catalog, utterance))
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}

	tasks, err := ParseResponse(response)
	if err != nil {
		return nil, err
	}

	if err := validate(p.catalog, tasks); err != nil {
		return nil, err
	}

	return &models.Plan{
		ID:        uuid.New().String(),
		Caller:    caller,
		Utterance: utterance,
		Tasks:     tasks,
		CreatedAt: time.Now(),
	}, nil
}
