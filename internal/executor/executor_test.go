package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/quartermaster/internal/ambiguity"
	"github.com/ShayCichocki/quartermaster/internal/catalog"
	"github.com/ShayCichocki/quartermaster/internal/confirm"
	"github.com/ShayCichocki/quartermaster/internal/dispatch"
	"github.com/ShayCichocki/quartermaster/internal/events"
	"github.com/ShayCichocki/quartermaster/pkg/models"
)

// stubTarget is a scripted Target recording every invocation.
type stubTarget struct {
	mu     sync.Mutex
	calls  []map[string]any
	result map[string]any
	err    error
}

func (s *stubTarget) Invoke(_ context.Context, params map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, params)
	return s.result, s.err
}

func (s *stubTarget) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubTarget) call(i int) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[i]
}

// resolvingTarget additionally answers reference lookups.
type resolvingTarget struct {
	stubTarget
	matches []models.EntityHandle
}

func (s *resolvingTarget) CountMatches(context.Context, string) (int, error) {
	return len(s.matches), nil
}

func (s *resolvingTarget) ListMatches(context.Context, string) ([]models.EntityHandle, error) {
	return s.matches, nil
}

// harness wires a runner over stub targets for one test.
type harness struct {
	runner  *Runner
	coord   *confirm.Coordinator
	emitter *events.Emitter
	targets map[string]dispatch.Target
}

func newHarness(t *testing.T, confirmCfg confirm.Config, targets map[string]dispatch.Target) *harness {
	t.Helper()

	var callables []catalog.Callable
	for name, target := range targets {
		call := catalog.Callable{Name: name, Summary: name}
		if _, ok := target.(dispatch.ReferenceResolver); ok {
			call.ReferenceResolving = true
			call.Mutating = true
		}
		callables = append(callables, call)
	}
	cat, err := catalog.New(callables...)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	router := dispatch.NewRouter(cat)
	for name, target := range targets {
		if err := router.Register(name, target); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	emitter := events.NewEmitter(256)
	t.Cleanup(emitter.Close)
	coord := confirm.New(emitter, confirmCfg)

	return &harness{
		runner:  NewRunner(router, ambiguity.New(router), coord, emitter),
		coord:   coord,
		emitter: emitter,
		targets: targets,
	}
}

func awaitOutcome(t *testing.T, run *Run) models.Outcome {
	t.Helper()
	select {
	case <-run.Done():
		return run.Outcome()
	case <-time.After(2 * time.Second):
		t.Fatal("run never finished")
		return models.Outcome{}
	}
}

func awaitEvent(t *testing.T, emitter *events.Emitter, want events.Type) events.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-emitter.Events():
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("never saw event %s", want)
		}
	}
}

func TestEmptyPlanCompletesImmediately(t *testing.T) {
	h := newHarness(t, confirm.Config{}, map[string]dispatch.Target{
		"svc.alpha": &stubTarget{result: map[string]any{}},
	})

	plan := &models.Plan{ID: "p1", Caller: "alice"}
	run, err := h.runner.Start(context.Background(), "alice", plan)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	outcome := awaitOutcome(t, run)
	if outcome.Disposition != models.DispositionComplete {
		t.Errorf("disposition = %s, want complete_success", outcome.Disposition)
	}
	if h.targets["svc.alpha"].(*stubTarget).callCount() != 0 {
		t.Error("empty plan must dispatch nothing")
	}

	// Exactly a start/end pair, nothing in between.
	first := <-h.emitter.Events()
	second := <-h.emitter.Events()
	if first.Type != events.EventPlanStarted || second.Type != events.EventPlanCompleted {
		t.Errorf("events = %s, %s; want plan_started, plan_completed", first.Type, second.Type)
	}
	select {
	case ev := <-h.emitter.Events():
		t.Errorf("unexpected extra event %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestParameterInjectionAcrossWaves(t *testing.T) {
	state := &stubTarget{result: map[string]any{"items": []any{"milk", "egg"}}}
	generate := &stubTarget{result: map[string]any{"list": []any{"bread"}}}
	h := newHarness(t, confirm.Config{}, map[string]dispatch.Target{
		"pantry.get-state":       state,
		"shopping.generate-list": generate,
	})

	plan := &models.Plan{
		ID:     "p1",
		Caller: "alice",
		Tasks: []*models.Task{
			{ID: "t1", Target: "pantry.get-state", Status: models.TaskStatusPending},
			{
				ID:        "t2",
				Target:    "shopping.generate-list",
				Params:    map[string]models.ParamValue{"items": models.RefTo("t1", "items")},
				DependsOn: []string{"t1"},
				Status:    models.TaskStatusPending,
			},
		},
	}

	run, err := h.runner.Start(context.Background(), "alice", plan)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	outcome := awaitOutcome(t, run)

	if outcome.Disposition != models.DispositionComplete {
		t.Fatalf("disposition = %s, want complete_success", outcome.Disposition)
	}
	if generate.callCount() != 1 {
		t.Fatalf("generate dispatched %d times, want 1", generate.callCount())
	}
	items, ok := generate.call(0)["items"].([]any)
	if !ok || len(items) != 2 || items[0] != "milk" || items[1] != "egg" {
		t.Errorf("injected items = %v, want [milk egg]", generate.call(0)["items"])
	}
	if len(outcome.Results["t1"]) == 0 || len(outcome.Results["t2"]) == 0 {
		t.Errorf("outcome results incomplete: %v", outcome.Results)
	}
}

func TestFailurePropagatesToDependents(t *testing.T) {
	failing := &stubTarget{err: errors.New("service down")}
	fine := &stubTarget{result: map[string]any{"ok": true}}
	never := &stubTarget{result: map[string]any{}}
	h := newHarness(t, confirm.Config{}, map[string]dispatch.Target{
		"svc.alpha": failing,
		"svc.beta":  fine,
		"svc.gamma": never,
	})

	plan := &models.Plan{
		ID:     "p1",
		Caller: "alice",
		Tasks: []*models.Task{
			{ID: "t1", Target: "svc.alpha", Status: models.TaskStatusPending},
			{ID: "t2", Target: "svc.beta", Status: models.TaskStatusPending},
			{ID: "t3", Target: "svc.gamma", DependsOn: []string{"t1", "t2"}, Status: models.TaskStatusPending},
		},
	}

	run, err := h.runner.Start(context.Background(), "alice", plan)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	outcome := awaitOutcome(t, run)

	if outcome.Disposition != models.DispositionPartial {
		t.Errorf("disposition = %s, want partial_success", outcome.Disposition)
	}
	if never.callCount() != 0 {
		t.Error("t3 must never be dispatched when a dependency failed")
	}
	if len(outcome.Failed) != 1 || outcome.Failed[0] != "t1" {
		t.Errorf("failed = %v, want [t1]", outcome.Failed)
	}
	if len(outcome.Propagated) != 1 || outcome.Propagated[0] != "t3" {
		t.Errorf("propagated = %v, want [t3]", outcome.Propagated)
	}
	if len(outcome.Succeeded) != 1 || outcome.Succeeded[0] != "t2" {
		t.Errorf("succeeded = %v, want [t2]", outcome.Succeeded)
	}
	t3 := plan.Task("t3")
	if !t3.Propagated || t3.Status != models.TaskStatusFailed {
		t.Errorf("t3 = %s propagated=%v, want failed by propagation", t3.Status, t3.Propagated)
	}
}

func TestFallbackRetriedOnce(t *testing.T) {
	primary := &stubTarget{err: errors.New("primary down")}
	fallback := &stubTarget{result: map[string]any{"ok": true}}
	h := newHarness(t, confirm.Config{}, map[string]dispatch.Target{
		"svc.alpha":    primary,
		"svc.fallback": fallback,
	})

	plan := &models.Plan{
		ID:     "p1",
		Caller: "alice",
		Tasks: []*models.Task{
			{ID: "t1", Target: "svc.alpha", FallbackTarget: "svc.fallback", Status: models.TaskStatusPending},
		},
	}

	run, err := h.runner.Start(context.Background(), "alice", plan)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	outcome := awaitOutcome(t, run)

	if outcome.Disposition != models.DispositionComplete {
		t.Errorf("disposition = %s, want complete_success via fallback", outcome.Disposition)
	}
	if primary.callCount() != 1 || fallback.callCount() != 1 {
		t.Errorf("calls primary=%d fallback=%d, want 1 and 1", primary.callCount(), fallback.callCount())
	}
}

func TestSingleMatchSkipsConfirmation(t *testing.T) {
	consume := &resolvingTarget{
		stubTarget: stubTarget{result: map[string]any{"consumed": 1}},
		matches:    []models.EntityHandle{{ID: "e1", Label: "Apple"}},
	}
	h := newHarness(t, confirm.Config{}, map[string]dispatch.Target{
		"pantry.consume-item": consume,
	})

	plan := &models.Plan{
		ID:     "p1",
		Caller: "alice",
		Tasks: []*models.Task{
			{ID: "t1", Target: "pantry.consume-item", Reference: "apple", Status: models.TaskStatusPending},
		},
	}

	run, err := h.runner.Start(context.Background(), "alice", plan)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	outcome := awaitOutcome(t, run)

	if outcome.Disposition != models.DispositionComplete {
		t.Errorf("disposition = %s, want complete_success", outcome.Disposition)
	}
	if h.coord.OpenSession("alice", "p1") != nil {
		t.Error("single match must never open a confirmation session")
	}
	if consume.callCount() != 1 {
		t.Errorf("calls = %d, want 1", consume.callCount())
	}
	if got := consume.call(0)["reference"]; got != "apple" {
		t.Errorf("dispatched reference = %v, want apple", got)
	}
}

func TestAmbiguityPausesThenResumesOnNewest(t *testing.T) {
	consume := &resolvingTarget{
		stubTarget: stubTarget{result: map[string]any{"consumed": 1}},
		matches: []models.EntityHandle{
			{ID: "e1", Label: "Apple (Aug 10)"},
			{ID: "e2", Label: "Apple (Aug 20)"},
			{ID: "e3", Label: "Apple (Aug 30)"},
		},
	}
	h := newHarness(t, confirm.Config{}, map[string]dispatch.Target{
		"pantry.consume-item": consume,
	})

	plan := &models.Plan{
		ID:     "p1",
		Caller: "alice",
		Tasks: []*models.Task{
			{ID: "t1", Target: "pantry.consume-item", Reference: "apple", Status: models.TaskStatusPending},
		},
	}

	run, err := h.runner.Start(context.Background(), "alice", plan)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	prompt := awaitEvent(t, h.emitter, events.EventConfirmationRequested)
	if prompt.PromptText == "" {
		t.Error("confirmation event missing prompt text")
	}
	if consume.callCount() != 0 {
		t.Fatal("ambiguous task must not dispatch before confirmation")
	}

	session := h.coord.OpenSession("alice", "p1")
	if session == nil {
		t.Fatal("expected an open session")
	}
	if got := session.Record.CandidateCount(); got != 3 {
		t.Errorf("candidate count = %d, want 3", got)
	}
	if err := h.coord.Submit("alice", "p1", session.ID, "newest"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	outcome := awaitOutcome(t, run)
	if outcome.Disposition != models.DispositionComplete {
		t.Errorf("disposition = %s, want complete_success", outcome.Disposition)
	}
	if consume.callCount() != 1 {
		t.Fatalf("calls = %d, want exactly one scoped dispatch", consume.callCount())
	}
	if got := consume.call(0)["resolution"]; got != "newest" {
		t.Errorf("dispatched resolution = %v, want newest", got)
	}
}

func TestAmbiguityCancelAbandonsPlan(t *testing.T) {
	consume := &resolvingTarget{
		stubTarget: stubTarget{result: map[string]any{"consumed": 1}},
		matches: []models.EntityHandle{
			{ID: "e1", Label: "Apple"},
			{ID: "e2", Label: "Apple"},
			{ID: "e3", Label: "Apple"},
		},
	}
	downstream := &stubTarget{result: map[string]any{}}
	h := newHarness(t, confirm.Config{}, map[string]dispatch.Target{
		"pantry.consume-item": consume,
		"svc.alpha":           downstream,
	})

	plan := &models.Plan{
		ID:     "p1",
		Caller: "alice",
		Tasks: []*models.Task{
			{ID: "t1", Target: "pantry.consume-item", Reference: "apple", Status: models.TaskStatusPending},
			{ID: "t2", Target: "svc.alpha", DependsOn: []string{"t1"}, Status: models.TaskStatusPending},
		},
	}

	run, err := h.runner.Start(context.Background(), "alice", plan)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	awaitEvent(t, h.emitter, events.EventConfirmationRequested)

	session := h.coord.OpenSession("alice", "p1")
	if err := h.coord.Submit("alice", "p1", session.ID, "cancel"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	outcome := awaitOutcome(t, run)
	if outcome.Disposition != models.DispositionCancelled {
		t.Errorf("disposition = %s, want cancelled", outcome.Disposition)
	}
	if consume.callCount() != 0 || downstream.callCount() != 0 {
		t.Errorf("cancel must dispatch nothing, got %d and %d calls",
			consume.callCount(), downstream.callCount())
	}
}

func TestConfirmationTimeoutEndsPlan(t *testing.T) {
	consume := &resolvingTarget{
		stubTarget: stubTarget{result: map[string]any{}},
		matches: []models.EntityHandle{
			{ID: "e1", Label: "Milk"},
			{ID: "e2", Label: "Milk"},
		},
	}
	h := newHarness(t, confirm.Config{Timeout: 20 * time.Millisecond}, map[string]dispatch.Target{
		"pantry.consume-item": consume,
	})

	plan := &models.Plan{
		ID:     "p1",
		Caller: "alice",
		Tasks: []*models.Task{
			{ID: "t1", Target: "pantry.consume-item", Reference: "milk", Status: models.TaskStatusPending},
		},
	}

	run, err := h.runner.Start(context.Background(), "alice", plan)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	outcome := awaitOutcome(t, run)
	if outcome.Disposition != models.DispositionTimedOut {
		t.Errorf("disposition = %s, want timed_out", outcome.Disposition)
	}
	if consume.callCount() != 0 {
		t.Error("timed-out plan must dispatch nothing")
	}
}

func TestCancelRunStopsDispatch(t *testing.T) {
	slow := &stubTarget{result: map[string]any{}}
	h := newHarness(t, confirm.Config{}, map[string]dispatch.Target{
		"svc.alpha": slow,
	})

	plan := &models.Plan{
		ID:     "p1",
		Caller: "alice",
		Tasks: []*models.Task{
			{ID: "t1", Target: "svc.alpha", Status: models.TaskStatusPending},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run, err := h.runner.Start(ctx, "alice", plan)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	outcome := awaitOutcome(t, run)
	if outcome.Disposition != models.DispositionCancelled {
		t.Errorf("disposition = %s, want cancelled", outcome.Disposition)
	}
	if slow.callCount() != 0 {
		t.Error("cancelled run must not dispatch")
	}
}

// blockingTarget holds its Invoke until the run's context aborts, signalling
// once the first dispatch is in flight.
type blockingTarget struct {
	started chan struct{}
	once    sync.Once
}

func (b *blockingTarget) Invoke(ctx context.Context, _ map[string]any) (map[string]any, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

// Cancelling while dispatches are in flight must join them at the wave
// barrier before the outcome is assembled; the outcome then reflects fully
// settled task states.
func TestCancelMidFlightJoinsDispatches(t *testing.T) {
	blocking := &blockingTarget{started: make(chan struct{})}
	after := &stubTarget{result: map[string]any{}}
	h := newHarness(t, confirm.Config{}, map[string]dispatch.Target{
		"svc.alpha": blocking,
		"svc.beta":  after,
	})

	plan := &models.Plan{
		ID:     "p1",
		Caller: "alice",
		Tasks: []*models.Task{
			{ID: "t1", Target: "svc.alpha", Status: models.TaskStatusPending},
			{ID: "t2", Target: "svc.beta", DependsOn: []string{"t1"}, Status: models.TaskStatusPending},
		},
	}

	run, err := h.runner.Start(context.Background(), "alice", plan)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-blocking.started:
	case <-time.After(2 * time.Second):
		t.Fatal("t1 never dispatched")
	}
	run.Cancel()

	outcome := awaitOutcome(t, run)
	if outcome.Disposition != models.DispositionCancelled {
		t.Errorf("disposition = %s, want cancelled", outcome.Disposition)
	}
	if after.callCount() != 0 {
		t.Error("downstream task must not dispatch after cancel")
	}
	if len(outcome.Succeeded) != 0 {
		t.Errorf("succeeded = %v, want none", outcome.Succeeded)
	}
	// The in-flight task must have settled before the outcome was built.
	t1 := plan.Task("t1")
	if t1.Status != models.TaskStatusFailed || t1.CompletedAt == nil {
		t.Errorf("t1 = %s completedAt=%v, want failed with a completion time", t1.Status, t1.CompletedAt)
	}
}

// Running the same plan shape twice against deterministic stubs must yield
// identical final statuses regardless of sibling scheduling.
func TestDeterministicStatusesAcrossRuns(t *testing.T) {
	buildPlan := func() *models.Plan {
		return &models.Plan{
			ID:     "p1",
			Caller: "alice",
			Tasks: []*models.Task{
				{ID: "t1", Target: "svc.alpha", Status: models.TaskStatusPending},
				{ID: "t2", Target: "svc.beta", Status: models.TaskStatusPending},
				{ID: "t3", Target: "svc.gamma", DependsOn: []string{"t1", "t2"}, Status: models.TaskStatusPending},
				{ID: "t4", Target: "svc.gamma", DependsOn: []string{"t2"}, Status: models.TaskStatusPending},
			},
		}
	}

	statuses := func() map[string]models.TaskStatus {
		h := newHarness(t, confirm.Config{}, map[string]dispatch.Target{
			"svc.alpha": &stubTarget{err: errors.New("down")},
			"svc.beta":  &stubTarget{result: map[string]any{}},
			"svc.gamma": &stubTarget{result: map[string]any{}},
		})
		plan := buildPlan()
		run, err := h.runner.Start(context.Background(), "alice", plan)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		awaitOutcome(t, run)
		got := make(map[string]models.TaskStatus, len(plan.Tasks))
		for _, task := range plan.Tasks {
			got[task.ID] = task.Status
		}
		return got
	}

	first := statuses()
	second := statuses()
	for id, status := range first {
		if second[id] != status {
			t.Errorf("task %s: run1=%s run2=%s", id, status, second[id])
		}
	}
	want := map[string]models.TaskStatus{
		"t1": models.TaskStatusFailed,
		"t2": models.TaskStatusSucceeded,
		"t3": models.TaskStatusFailed,
		"t4": models.TaskStatusSucceeded,
	}
	for id, status := range want {
		if first[id] != status {
			t.Errorf("task %s = %s, want %s", id, first[id], status)
		}
	}
}
