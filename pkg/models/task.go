package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not been dispatched yet.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the task has been dispatched and is in flight.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusSucceeded indicates the task's dispatch completed successfully.
	TaskStatusSucceeded TaskStatus = "succeeded"
	// TaskStatusFailed indicates the task failed, either from its own dispatch
	// or by propagation from a failed dependency.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusAwaitingConfirmation indicates the task's target reference was
	// ambiguous and the plan is paused on a human reply.
	TaskStatusAwaitingConfirmation TaskStatus = "awaiting_confirmation"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusSucceeded,
		TaskStatusFailed, TaskStatusAwaitingConfirmation:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a per-task terminal state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed
}

// ParamValue is a tagged value for a task parameter: either a literal or a
// reference to a prior task's result. Exactly one variant is set; a value with
// both (or neither) fails plan validation.
type ParamValue struct {
	// Literal is the immediate value, when the parameter is not a reference.
	Literal any `json:"literal,omitempty"`
	// Ref references another task's result, when the parameter is injected.
	Ref *ResultRef `json:"ref,omitempty"`
}

// IsRef returns true if the value is a reference to another task's result.
func (p ParamValue) IsRef() bool {
	return p.Ref != nil
}

// Literal constructs a literal parameter value.
func Literal(v any) ParamValue {
	return ParamValue{Literal: v}
}

// RefTo constructs a reference parameter value pointing at a field of the
// given task's result. An empty field means the whole result.
func RefTo(taskID, field string) ParamValue {
	return ParamValue{Ref: &ResultRef{TaskID: taskID, Field: field}}
}

// ResultRef names a field of another task's result.
type ResultRef struct {
	// TaskID is the graph-local ID of the task whose result is referenced.
	TaskID string `json:"task"`
	// Field is the result field to extract. Empty means the entire result.
	Field string `json:"field,omitempty"`
}

// Task represents one node of a plan: a single callable invocation with its
// parameters and dependencies. Tasks are exclusively owned by their plan and
// mutated only by the executor (status, resolved parameters, result) and the
// confirmation coordinator (target rewrite after disambiguation).
type Task struct {
	// ID is the graph-local identifier, stable for the life of the plan.
	ID string `json:"id"`
	// Target is the catalog name of the callable this task invokes.
	Target string `json:"target"`
	// FallbackTarget is an optional alternate callable, retried once if the
	// primary dispatch fails.
	FallbackTarget string `json:"fallback_target,omitempty"`
	// Params maps parameter names to literal values or result references.
	Params map[string]ParamValue `json:"params,omitempty"`
	// DependsOn lists task IDs that must succeed before this task dispatches.
	DependsOn []string `json:"depends_on,omitempty"`
	// Reference is the entity name or description for reference-resolving
	// callables (e.g. "the apple"). Empty for exact-identifier callables.
	Reference string `json:"reference,omitempty"`
	// Resolution is the disambiguation strategy applied to Reference after a
	// confirmation session resolved. Empty until then.
	Resolution Strategy `json:"resolution,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Result holds the dispatched call's result once the task succeeded.
	Result map[string]any `json:"result,omitempty"`
	// Error holds the failure message if the task failed.
	Error string `json:"error,omitempty"`
	// Propagated is true if the task was failed without being dispatched
	// because a dependency failed.
	Propagated bool `json:"propagated,omitempty"`
	// StartedAt is when the task was dispatched, if it was.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached a terminal status, if it did.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
