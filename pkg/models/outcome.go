package models

import "time"

// Disposition classifies how a plan ended. The caller always receives exactly
// one of these, never a raw internal error.
type Disposition string

const (
	// DispositionComplete means every task succeeded.
	DispositionComplete Disposition = "complete_success"
	// DispositionPartial means at least one task succeeded and at least one
	// failed.
	DispositionPartial Disposition = "partial_success"
	// DispositionFailed means no task succeeded.
	DispositionFailed Disposition = "failed"
	// DispositionCancelled means the user cancelled the plan, either
	// explicitly or through a confirmation "cancel" reply.
	DispositionCancelled Disposition = "cancelled"
	// DispositionTimedOut means a confirmation session expired with no reply.
	DispositionTimedOut Disposition = "timed_out"
)

// Outcome is the aggregated result of executing one plan.
type Outcome struct {
	// PlanID is the plan this outcome belongs to.
	PlanID string `json:"plan_id"`
	// Disposition classifies the overall result.
	Disposition Disposition `json:"disposition"`
	// Succeeded lists IDs of tasks that succeeded.
	Succeeded []string `json:"succeeded,omitempty"`
	// Failed lists IDs of tasks whose own dispatch failed.
	Failed []string `json:"failed,omitempty"`
	// Propagated lists IDs of tasks failed without dispatch because a
	// dependency failed.
	Propagated []string `json:"propagated,omitempty"`
	// Results maps succeeded task IDs to their results.
	Results map[string]map[string]any `json:"results,omitempty"`
	// FinishedAt is when the plan reached its disposition.
	FinishedAt time.Time `json:"finished_at"`
}

// Success returns true if the plan completed fully.
func (o Outcome) Success() bool {
	return o.Disposition == DispositionComplete
}
