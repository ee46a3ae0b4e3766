// Package executor runs resolved plans wave by wave. Tasks within a wave
// dispatch concurrently and join at a barrier before the next wave starts.
// A tripped ambiguity gate suspends the whole plan: the executor registers a
// continuation with the confirmation coordinator and returns its goroutine;
// the reply (or the timeout) re-enters the loop exactly where it stopped.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/quartermaster/internal/ambiguity"
	"github.com/ShayCichocki/quartermaster/internal/confirm"
	"github.com/ShayCichocki/quartermaster/internal/dispatch"
	"github.com/ShayCichocki/quartermaster/internal/events"
	"github.com/ShayCichocki/quartermaster/internal/graph"
	"github.com/ShayCichocki/quartermaster/pkg/models"
)

// Runner executes plans. It is safe for concurrent use; each Start call
// produces an independent Run with no shared mutable state between runs.
type Runner struct {
	router      *dispatch.Router
	detector    *ambiguity.Detector
	coordinator *confirm.Coordinator
	emitter     *events.Emitter
	debugLog    func(format string, args ...any)
}

// NewRunner creates a Runner over the given dispatch and confirmation
// collaborators.
func NewRunner(router *dispatch.Router, detector *ambiguity.Detector, coordinator *confirm.Coordinator, emitter *events.Emitter) *Runner {
	return &Runner{
		router:      router,
		detector:    detector,
		coordinator: coordinator,
		emitter:     emitter,
		debugLog:    func(string, ...any) {},
	}
}

// SetDebugLog sets the debug logging function.
func (r *Runner) SetDebugLog(fn func(format string, args ...any)) {
	if fn != nil {
		r.debugLog = fn
	}
}

// Run is one in-flight plan execution. Done closes exactly once for every
// disposition including cancellation; Outcome is valid after that.
type Run struct {
	runner *Runner
	caller string
	plan   *models.Plan
	graph  *graph.DependencyGraph
	waves  [][]string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	finished bool
	outcome  models.Outcome
}

// Start validates the plan's graph and begins executing it. A zero-task plan
// completes immediately as a success. A cycle in a plan that already passed
// planning is an invariant violation; Start aborts before any dispatch.
func (r *Runner) Start(ctx context.Context, caller string, plan *models.Plan) (*Run, error) {
	g := graph.New()
	if err := g.Build(plan.Tasks); err != nil {
		return nil, fmt.Errorf("plan %s failed graph construction: %w", plan.ID, err)
	}
	waves, err := g.Waves()
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", plan.ID, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		runner: r,
		caller: caller,
		plan:   plan,
		graph:  g,
		waves:  waves,
		ctx:    runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	r.emitter.Emit(events.Event{Type: events.EventPlanStarted, PlanID: plan.ID})
	r.debugLog("[executor] plan %s: %d tasks in %d waves", plan.ID, len(plan.Tasks), len(waves))

	if plan.Empty() {
		run.finish(models.DispositionComplete)
		return run, nil
	}

	go run.execute(0, 0)
	return run, nil
}

// Done returns a channel closed when the run reaches its disposition. Any
// number of waiters may select on it.
func (run *Run) Done() <-chan struct{} {
	return run.done
}

// Outcome returns the run's final result. It blocks until the run finishes.
func (run *Run) Outcome() models.Outcome {
	<-run.done
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.outcome
}

// Plan returns the plan this run executes.
func (run *Run) Plan() *models.Plan {
	return run.plan
}

// Cancel abandons the run. In-flight dispatches receive the context's abort
// signal; undispatched tasks never start. If the run is paused on a
// confirmation session, that session closes too.
//
// Cancel only signals. The outcome is assembled by whichever goroutine owns
// the run at that moment: the execute goroutine once the wave barrier joins
// its dispatched tasks, or the session continuation when the run is paused.
// Task fields are therefore never read while a dispatch goroutine still
// writes them.
func (run *Run) Cancel() {
	run.cancel()
	run.runner.coordinator.CancelPlan(run.caller, run.plan.ID)
}

// execute walks the waves starting at waves[wi][ti]. It returns either by
// finishing the run or by leaving a continuation with the coordinator.
func (run *Run) execute(wi, ti int) {
	r := run.runner

	for wi < len(run.waves) {
		wave := run.waves[wi]
		var wg sync.WaitGroup

		for ; ti < len(wave); ti++ {
			if run.ctx.Err() != nil {
				wg.Wait()
				r.emitter.Emit(events.Event{Type: events.EventPlanCancelled, PlanID: run.plan.ID})
				run.finish(models.DispositionCancelled)
				return
			}

			task := run.graph.Task(wave[ti])
			if task.Status == models.TaskStatusFailed {
				// Failed by propagation before it was ever gated.
				continue
			}

			r.emitter.Emit(events.Event{
				Type:   events.EventTaskQueued,
				PlanID: run.plan.ID,
				TaskID: task.ID,
				Status: task.Status,
			})

			rec, err := r.detector.Check(run.ctx, task)
			if err != nil {
				// The gate's read-only lookup failed; the task cannot be
				// dispatched safely. No fallback applies to gate failures.
				run.failTask(task, err)
				continue
			}
			if rec != nil {
				task.Status = models.TaskStatusAwaitingConfirmation
				// Join dispatched siblings before pausing so the barrier
				// invariant holds across the suspension.
				wg.Wait()
				run.suspend(wi, ti, task, rec)
				return
			}

			wg.Add(1)
			go func(task *models.Task) {
				defer wg.Done()
				run.runTask(task)
			}(task)
		}

		wg.Wait()
		wi, ti = wi+1, 0
	}

	if run.ctx.Err() != nil {
		r.emitter.Emit(events.Event{Type: events.EventPlanCancelled, PlanID: run.plan.ID})
		run.finish(models.DispositionCancelled)
		return
	}
	run.finish(run.disposition())
}

// suspend opens a confirmation session for the paused task and registers the
// continuation that re-enters execute at the same position. No goroutine is
// held while the human decides.
func (run *Run) suspend(wi, ti int, task *models.Task, rec *models.AmbiguityRecord) {
	r := run.runner
	r.debugLog("[executor] plan %s: task %s ambiguous (%d candidates), suspending",
		run.plan.ID, task.ID, rec.CandidateCount())

	if run.ctx.Err() != nil {
		r.emitter.Emit(events.Event{Type: events.EventPlanCancelled, PlanID: run.plan.ID})
		run.finish(models.DispositionCancelled)
		return
	}

	_, err := r.coordinator.Open(run.caller, run.plan.ID, task, rec, func(res confirm.Resolution) {
		switch {
		case res.Strategy != models.StrategyCancel:
			// The coordinator rewrote the task; dispatch resumes with it.
			go run.execute(wi, ti)
		case res.TimedOut:
			r.emitter.Emit(events.Event{Type: events.EventPlanTimedOut, PlanID: run.plan.ID})
			run.finish(models.DispositionTimedOut)
		default:
			r.emitter.Emit(events.Event{Type: events.EventPlanCancelled, PlanID: run.plan.ID})
			run.finish(models.DispositionCancelled)
		}
	})
	if err != nil {
		// A second open session for this plan should be impossible; record
		// the defect on the task and keep the rest of the plan moving.
		run.failTask(task, err)
		go run.execute(wi, ti+1)
		return
	}

	// A Cancel between the check above and Open would have found no session
	// to close; close it here so the continuation settles the run.
	if run.ctx.Err() != nil {
		r.coordinator.CancelPlan(run.caller, run.plan.ID)
	}
}

// runTask dispatches one task: injects parameters, invokes the target,
// retries once against the declared fallback, and records the terminal
// status. Failures propagate to transitive dependents.
func (run *Run) runTask(task *models.Task) {
	r := run.runner

	now := time.Now()
	task.Status = models.TaskStatusRunning
	task.StartedAt = &now
	r.emitter.Emit(events.Event{
		Type:   events.EventTaskStarted,
		PlanID: run.plan.ID,
		TaskID: task.ID,
		Status: task.Status,
	})

	params, err := run.injectParams(task)
	if err != nil {
		run.failTask(task, err)
		return
	}

	result, err := r.router.Invoke(run.ctx, task.Target, params)
	if err != nil && task.FallbackTarget != "" {
		r.debugLog("[executor] plan %s: task %s failed (%v), retrying via %s",
			run.plan.ID, task.ID, err, task.FallbackTarget)
		result, err = r.router.Invoke(run.ctx, task.FallbackTarget, params)
	}
	if err != nil {
		run.failTask(task, err)
		return
	}

	done := time.Now()
	task.Status = models.TaskStatusSucceeded
	task.Result = result
	task.CompletedAt = &done
	r.emitter.Emit(events.Event{
		Type:   events.EventTaskSucceeded,
		PlanID: run.plan.ID,
		TaskID: task.ID,
		Status: task.Status,
	})
}

// injectParams materializes the task's parameter map: literals pass through,
// result references are replaced with the named field of the dependency's
// result. The task's entity reference and any disambiguation strategy ride
// along so reference-resolving targets can scope their match.
func (run *Run) injectParams(task *models.Task) (map[string]any, error) {
	params := make(map[string]any, len(task.Params)+2)
	for name, value := range task.Params {
		if !value.IsRef() {
			params[name] = value.Literal
			continue
		}
		dep := run.graph.Task(value.Ref.TaskID)
		if dep == nil || dep.Status != models.TaskStatusSucceeded {
			return nil, fmt.Errorf("param %q references task %s which has not succeeded (invariant violation)",
				name, value.Ref.TaskID)
		}
		if value.Ref.Field == "" {
			params[name] = dep.Result
			continue
		}
		field, ok := dep.Result[value.Ref.Field]
		if !ok {
			return nil, fmt.Errorf("param %q: result of task %s has no field %q",
				name, dep.ID, value.Ref.Field)
		}
		params[name] = field
	}
	if task.Reference != "" {
		params["reference"] = task.Reference
	}
	if task.Resolution != "" {
		params["resolution"] = string(task.Resolution)
	}
	return params, nil
}

// failTask records a task's own failure and fails its transitive dependents
// without dispatching them. Sibling tasks already in flight are unaffected.
func (run *Run) failTask(task *models.Task, cause error) {
	r := run.runner
	now := time.Now()

	run.mu.Lock()
	task.Status = models.TaskStatusFailed
	task.Error = cause.Error()
	task.CompletedAt = &now

	var blocked []*models.Task
	for _, id := range run.graph.TransitiveDependents(task.ID) {
		dep := run.graph.Task(id)
		if dep.Status != models.TaskStatusPending {
			continue
		}
		dep.Status = models.TaskStatusFailed
		dep.Propagated = true
		dep.Error = fmt.Sprintf("dependency %s failed", task.ID)
		dep.CompletedAt = &now
		blocked = append(blocked, dep)
	}
	run.mu.Unlock()

	r.debugLog("[executor] plan %s: task %s failed: %v (%d dependents blocked)",
		run.plan.ID, task.ID, cause, len(blocked))

	r.emitter.Emit(events.Event{
		Type:    events.EventTaskFailed,
		PlanID:  run.plan.ID,
		TaskID:  task.ID,
		Status:  task.Status,
		Message: task.Error,
	})
	for _, dep := range blocked {
		r.emitter.Emit(events.Event{
			Type:    events.EventTaskBlocked,
			PlanID:  run.plan.ID,
			TaskID:  dep.ID,
			Status:  dep.Status,
			Message: dep.Error,
		})
	}
}

// disposition classifies a run that walked every wave to the end.
func (run *Run) disposition() models.Disposition {
	var succeeded, failed int
	for _, task := range run.plan.Tasks {
		switch task.Status {
		case models.TaskStatusSucceeded:
			succeeded++
		case models.TaskStatusFailed:
			failed++
		}
	}
	switch {
	case failed == 0:
		return models.DispositionComplete
	case succeeded > 0:
		return models.DispositionPartial
	default:
		return models.DispositionFailed
	}
}

// finish assembles and delivers the Outcome exactly once.
func (run *Run) finish(disposition models.Disposition) {
	run.mu.Lock()
	if run.finished {
		run.mu.Unlock()
		return
	}
	run.finished = true
	run.mu.Unlock()

	run.cancel()

	outcome := models.Outcome{
		PlanID:      run.plan.ID,
		Disposition: disposition,
		Results:     make(map[string]map[string]any),
		FinishedAt:  time.Now(),
	}
	for _, task := range run.plan.Tasks {
		switch {
		case task.Status == models.TaskStatusSucceeded:
			outcome.Succeeded = append(outcome.Succeeded, task.ID)
			outcome.Results[task.ID] = task.Result
		case task.Propagated:
			outcome.Propagated = append(outcome.Propagated, task.ID)
		case task.Status == models.TaskStatusFailed:
			outcome.Failed = append(outcome.Failed, task.ID)
		}
	}

	run.runner.emitter.Emit(events.Event{
		Type:    events.EventPlanCompleted,
		PlanID:  run.plan.ID,
		Message: string(disposition),
	})
	run.runner.debugLog("[executor] plan %s finished: %s (%d succeeded, %d failed, %d blocked)",
		run.plan.ID, disposition, len(outcome.Succeeded), len(outcome.Failed), len(outcome.Propagated))

	run.mu.Lock()
	run.outcome = outcome
	run.mu.Unlock()
	close(run.done)
}
