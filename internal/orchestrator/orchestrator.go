package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/quartermaster/internal/ambiguity"
	"github.com/ShayCichocki/quartermaster/internal/catalog"
	"github.com/ShayCichocki/quartermaster/internal/confirm"
	"github.com/ShayCichocki/quartermaster/internal/dispatch"
	"github.com/ShayCichocki/quartermaster/internal/events"
	"github.com/ShayCichocki/quartermaster/internal/executor"
	"github.com/ShayCichocki/quartermaster/internal/llm"
	"github.com/ShayCichocki/quartermaster/internal/planner"
	"github.com/ShayCichocki/quartermaster/internal/state"
	"github.com/ShayCichocki/quartermaster/pkg/models"
)

// Options configures an Orchestrator.
type Options struct {
	// Completer is the model call the planner uses.
	Completer llm.Completer
	// Catalog is the callable catalog.
	Catalog *catalog.Catalog
	// Router holds the registered dispatch targets.
	Router *dispatch.Router
	// History is the run-history store. Optional; nil disables persistence.
	History *state.DB
	// Confirm is the confirmation session policy.
	Confirm confirm.Config
	// EventBuffer is the progress channel's buffer size.
	EventBuffer int
	// Logger receives debug logging. Optional.
	Logger *DebugLogger
}

// planKey identifies one caller's run of one plan.
type planKey struct {
	caller string
	planID string
}

// Orchestrator owns the request lifecycle: plan, execute, pause on
// ambiguity, resume on reply, and record the outcome.
type Orchestrator struct {
	planner     *planner.Planner
	runner      *executor.Runner
	coordinator *confirm.Coordinator
	emitter     *events.Emitter
	history     *state.DB
	logger      *DebugLogger

	mu   sync.Mutex
	runs map[planKey]*executor.Run
}

// New assembles an Orchestrator from its collaborators.
func New(opts Options) (*Orchestrator, error) {
	if opts.Completer == nil {
		return nil, fmt.Errorf("a model completer is required")
	}
	if opts.Catalog == nil || opts.Catalog.Len() == 0 {
		return nil, fmt.Errorf("a non-empty catalog is required")
	}
	if opts.Router == nil {
		return nil, fmt.Errorf("a dispatch router is required")
	}
	if err := opts.Router.Verify(); err != nil {
		return nil, fmt.Errorf("dispatch routing table incomplete: %w", err)
	}

	if opts.Logger == nil {
		opts.Logger = NopLogger()
	}
	setPackageLogger(opts.Logger)

	bufferSize := opts.EventBuffer
	if bufferSize <= 0 {
		bufferSize = 100
	}
	emitter := events.NewEmitter(bufferSize)

	coordinator := confirm.New(emitter, opts.Confirm)
	coordinator.SetDebugLog(debugLog)

	detector := ambiguity.New(opts.Router)
	runner := executor.NewRunner(opts.Router, detector, coordinator, emitter)
	runner.SetDebugLog(debugLog)

	o := &Orchestrator{
		planner:     planner.New(opts.Completer, opts.Catalog),
		runner:      runner,
		coordinator: coordinator,
		emitter:     emitter,
		history:     opts.History,
		logger:      opts.Logger,
		runs:        make(map[planKey]*executor.Run),
	}

	if o.history != nil {
		coordinator.SetAudit(o.recordConfirmation)
	}

	return o, nil
}

// Events returns the progress channel for an external consumer.
func (o *Orchestrator) Events() <-chan events.Event {
	return o.emitter.Events()
}

// Coordinator exposes the confirmation coordinator for reply intake.
func (o *Orchestrator) Coordinator() *confirm.Coordinator {
	return o.coordinator
}

// HandleRequest plans and starts executing one utterance. The returned run's
// Done channel delivers the final outcome; planning failures are returned
// immediately as a *planner.PlanningError.
func (o *Orchestrator) HandleRequest(ctx context.Context, caller, utterance string) (*executor.Run, error) {
	plan, err := o.planner.Plan(ctx, caller, utterance)
	if err != nil {
		debugLog("[orchestrator] planning failed for %q: %v", utterance, err)
		return nil, err
	}
	debugLog("[orchestrator] plan %s: %d tasks for %q", plan.ID, len(plan.Tasks), utterance)

	run, err := o.runner.Start(ctx, caller, plan)
	if err != nil {
		return nil, err
	}

	key := planKey{caller: caller, planID: plan.ID}
	o.mu.Lock()
	o.runs[key] = run
	o.mu.Unlock()

	go o.awaitOutcome(key, run)
	return run, nil
}

// SubmitReply delivers a confirmation reply for a paused plan.
func (o *Orchestrator) SubmitReply(caller, planID, sessionID, reply string) error {
	return o.coordinator.Submit(caller, planID, sessionID, reply)
}

// CancelPlan cancels an in-flight plan. Returns false if no such run exists
// or the run already finished; the registry slot is released asynchronously,
// so a finished run may still be registered here.
func (o *Orchestrator) CancelPlan(caller, planID string) bool {
	o.mu.Lock()
	run, ok := o.runs[planKey{caller: caller, planID: planID}]
	o.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-run.Done():
		return false
	default:
	}
	run.Cancel()
	return true
}

// OpenSession returns a caller's open confirmation session for a plan, or nil.
func (o *Orchestrator) OpenSession(caller, planID string) *confirm.Session {
	return o.coordinator.OpenSession(caller, planID)
}

// Close shuts down the progress channel and the debug log.
func (o *Orchestrator) Close() error {
	o.emitter.Close()
	return o.logger.Close()
}

// awaitOutcome records the run's outcome and releases its registry slot.
func (o *Orchestrator) awaitOutcome(key planKey, run *executor.Run) {
	outcome := run.Outcome()

	o.mu.Lock()
	delete(o.runs, key)
	o.mu.Unlock()

	if o.history != nil {
		if err := o.history.SaveRun(run.Plan(), outcome); err != nil {
			debugLog("[orchestrator] failed to record run %s: %v", key.planID, err)
		}
	}
}

// recordConfirmation persists one closed confirmation session.
func (o *Orchestrator) recordConfirmation(session *confirm.Session, res confirm.Resolution) {
	record := &state.ConfirmationRun{
		SessionID:  session.ID,
		PlanID:     session.PlanID,
		TaskID:     session.Record.TaskID,
		Reference:  session.Record.Reference,
		Candidates: session.Record.CandidateCount(),
		Resolution: string(res.Strategy),
		TimedOut:   res.TimedOut,
		OpenedAt:   session.OpenedAt,
		ClosedAt:   time.Now(),
	}
	if err := o.history.SaveConfirmation(record); err != nil {
		debugLog("[orchestrator] failed to record confirmation %s: %v", session.ID, err)
	}
}

// Await waits for a run synchronously with a deadline. Useful for one-shot
// CLI invocations.
func Await(run *executor.Run, timeout time.Duration) (models.Outcome, error) {
	if timeout <= 0 {
		return run.Outcome(), nil
	}
	select {
	case <-run.Done():
		return run.Outcome(), nil
	case <-time.After(timeout):
		return models.Outcome{}, fmt.Errorf("plan %s did not finish within %s", run.Plan().ID, timeout)
	}
}
