package models

// Strategy is a disambiguation strategy for a reference that matched more
// than one entity. The vocabulary is fixed; free-text replies are mapped onto
// it by the confirmation coordinator's keyword table.
type Strategy string

const (
	// StrategyNewest applies the operation to the most recently added match.
	StrategyNewest Strategy = "newest"
	// StrategyOldest applies the operation to the oldest match.
	StrategyOldest Strategy = "oldest"
	// StrategyAll applies the operation to every match.
	StrategyAll Strategy = "all"
	// StrategyCancel abandons the whole plan.
	StrategyCancel Strategy = "cancel"
)

// Valid returns true if the strategy is a known value.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyNewest, StrategyOldest, StrategyAll, StrategyCancel:
		return true
	default:
		return false
	}
}

// EntityHandle is an opaque handle to one candidate entity for an ambiguous
// reference. The core never interprets it beyond counting and display.
type EntityHandle struct {
	// ID is the collaborator's identifier for the entity.
	ID string `json:"id"`
	// Label is a short rendering hint for the entity.
	Label string `json:"label"`
}

// AmbiguityRecord describes a task reference that matched more than one
// entity. It is produced by the ambiguity detector immediately before
// dispatch and consumed by the confirmation coordinator; only the coordinator
// ever renders it into prose.
type AmbiguityRecord struct {
	// TaskID is the ID of the paused task.
	TaskID string `json:"task_id"`
	// Reference is the ambiguous entity reference from the task.
	Reference string `json:"reference"`
	// Candidates are the matched entities, opaque to the core.
	Candidates []EntityHandle `json:"candidates"`
	// Strategies is the fixed vocabulary applicable to this task's operation
	// kind, in presentation order.
	Strategies []Strategy `json:"strategies"`
}

// CandidateCount returns the number of matched entities.
func (r *AmbiguityRecord) CandidateCount() int {
	return len(r.Candidates)
}
