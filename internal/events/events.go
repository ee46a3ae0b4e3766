// Package events is the one-way progress channel the executor and
// confirmation coordinator use to report per-task state transitions to an
// external observer. Delivery is at-least-once from this core's perspective;
// the consuming transport owns deduplication and relaying to the end user.
package events

import (
	"time"

	"github.com/ShayCichocki/quartermaster/pkg/models"
)

// Type represents the kind of progress event.
type Type string

const (
	// EventPlanStarted indicates plan execution began.
	EventPlanStarted Type = "plan_started"
	// EventPlanCompleted indicates the plan reached a disposition.
	EventPlanCompleted Type = "plan_completed"
	// EventTaskQueued indicates a task is ready and about to be gated.
	EventTaskQueued Type = "task_queued"
	// EventTaskStarted indicates a task was dispatched.
	EventTaskStarted Type = "task_started"
	// EventTaskSucceeded indicates a task's dispatch completed successfully.
	EventTaskSucceeded Type = "task_succeeded"
	// EventTaskFailed indicates a task failed.
	EventTaskFailed Type = "task_failed"
	// EventTaskBlocked indicates a task was failed by propagation without
	// being dispatched.
	EventTaskBlocked Type = "task_blocked"
	// EventConfirmationRequested indicates the plan paused on an ambiguous
	// reference and awaits a human reply.
	EventConfirmationRequested Type = "confirmation_requested"
	// EventConfirmationResolved indicates a confirmation session closed with
	// a strategy and the plan is resuming.
	EventConfirmationResolved Type = "confirmation_resolved"
	// EventPlanCancelled indicates the plan was abandoned by the user.
	EventPlanCancelled Type = "plan_cancelled"
	// EventPlanTimedOut indicates a confirmation session expired unanswered.
	EventPlanTimedOut Type = "plan_timed_out"
)

// Event is one progress report. PromptText is set only on
// confirmation_requested events and carries the coordinator-rendered
// disambiguation prompt.
type Event struct {
	// Type is the kind of event.
	Type Type
	// PlanID is the plan the event belongs to.
	PlanID string
	// TaskID is the related task, if any.
	TaskID string
	// Status is the task's status after the transition, if applicable.
	Status models.TaskStatus
	// Message provides additional context.
	Message string
	// PromptText is the rendered disambiguation prompt, for
	// confirmation_requested events only.
	PromptText string
	// SessionID identifies the confirmation session, for confirmation events.
	SessionID string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
