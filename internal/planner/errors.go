package planner

import "fmt"

// Reason classifies why planning failed.
type Reason string

const (
	// ReasonMalformed means the model output failed schema validation.
	ReasonMalformed Reason = "malformed"
	// ReasonCyclic means the model output contained a dependency cycle.
	ReasonCyclic Reason = "cyclic"
)

// PlanningError reports a request that could not be turned into a plan.
// It is never retried automatically; the caller surfaces it as "could not
// understand request". No partial plan accompanies it.
type PlanningError struct {
	// Reason classifies the failure.
	Reason Reason
	// Detail describes the specific violation.
	Detail string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *PlanningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("planning failed (%s): %s: %v", e.Reason, e.Detail, e.Err)
	}
	return fmt.Sprintf("planning failed (%s): %s", e.Reason, e.Detail)
}

// Unwrap returns the underlying error.
func (e *PlanningError) Unwrap() error {
	return e.Err
}

func malformed(detail string, err error) *PlanningError {
	return &PlanningError{Reason: ReasonMalformed, Detail: detail, Err: err}
}

func cyclic(detail string, err error) *PlanningError {
	return &PlanningError{Reason: ReasonCyclic, Detail: detail, Err: err}
}
