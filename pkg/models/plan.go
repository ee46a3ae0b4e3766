package models

import "time"

// Plan is the full task graph derived from one user request. Its structure is
// immutable once built; only per-task status, resolved parameters, and results
// mutate during execution. Plans are never shared across requests.
type Plan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id"`
	// Caller identifies the user the plan belongs to.
	Caller string `json:"caller"`
	// Utterance is the user request the plan was derived from.
	Utterance string `json:"utterance"`
	// Tasks are the nodes of the graph, in planner order.
	Tasks []*Task `json:"tasks"`
	// CreatedAt is when the planner produced the plan.
	CreatedAt time.Time `json:"created_at"`
}

// Task returns the task with the given ID, or nil if not present.
func (p *Plan) Task(id string) *Task {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Empty returns true if the plan contains no tasks. An empty plan is a valid
// planner outcome for purely conversational utterances and completes
// immediately.
func (p *Plan) Empty() bool {
	return len(p.Tasks) == 0
}
