// Package confirm owns the paused state of in-flight plans: it opens a
// confirmation session when the executor suspends on an ambiguous reference,
// maps free-text replies onto the fixed strategy vocabulary, rewrites the
// paused task, and hands control back through a registered continuation.
//
// Sessions live in an explicit map keyed by (caller, plan) owned by the
// coordinator; nothing here is global. A suspended plan holds no goroutine:
// resumption happens on whatever goroutine delivers the reply or the
// timeout.
package confirm

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/quartermaster/internal/events"
	"github.com/ShayCichocki/quartermaster/pkg/models"
)

// SessionState is the lifecycle state of a confirmation session.
type SessionState string

const (
	// SessionOpen means the session awaits a recognizable reply.
	SessionOpen SessionState = "open"
	// SessionResolved means a strategy other than cancel was chosen.
	SessionResolved SessionState = "resolved"
	// SessionCancelled means the user chose cancel.
	SessionCancelled SessionState = "cancelled"
	// SessionTimedOut means the bounded wait expired with no reply.
	SessionTimedOut SessionState = "timed_out"
)

// StaleSessionError reports a reply for an unknown or already-closed
// session. It is a no-op for plan state, not a crash.
type StaleSessionError struct {
	// SessionID is the session the reply named.
	SessionID string
}

// Error implements the error interface.
func (e *StaleSessionError) Error() string {
	return fmt.Sprintf("no open confirmation session %s", e.SessionID)
}

// Resolution is handed to the suspended plan's continuation when its session
// closes.
type Resolution struct {
	// Strategy is the chosen strategy. StrategyCancel means the plan is
	// abandoned.
	Strategy models.Strategy
	// TimedOut distinguishes a timeout from an explicit cancel; the plan
	// disposition differs only in its reported reason.
	TimedOut bool
}

// Session binds one paused plan to one ambiguity record and the caller's
// identity for as long as the system waits on a human reply.
type Session struct {
	// ID is the unique session identifier.
	ID string
	// Caller identifies the user the session belongs to.
	Caller string
	// PlanID is the paused plan.
	PlanID string
	// Record is the ambiguity being disambiguated.
	Record *models.AmbiguityRecord
	// State is the session's lifecycle state.
	State SessionState
	// OpenedAt is when the session opened.
	OpenedAt time.Time

	task   *models.Task
	resume func(Resolution)
	timer  *time.Timer
}

// Task returns the task the session paused on.
func (s *Session) Task() *models.Task {
	return s.task
}

// sessionKey enforces at most one open session per (caller, plan) pair.
type sessionKey struct {
	caller string
	planID string
}

// Config holds the coordinator's timeout policy. The session timeout and
// whether it auto-applies a strategy instead of cancelling are deliberately
// configurable.
type Config struct {
	// Timeout is the bounded wait before an unanswered session expires.
	// Zero means no timeout.
	Timeout time.Duration
	// TimeoutStrategy, if set, is auto-applied on expiry instead of
	// cancelling the plan.
	TimeoutStrategy models.Strategy
}

// Coordinator owns every confirmation session in the process.
type Coordinator struct {
	mu       sync.Mutex
	open     map[sessionKey]*Session
	byID     map[string]*Session
	emitter  *events.Emitter
	config   Config
	debugLog func(format string, args ...any)
	audit    func(session *Session, res Resolution)
}

// New creates a Coordinator emitting on the given progress channel.
func New(emitter *events.Emitter, config Config) *Coordinator {
	return &Coordinator{
		open:     make(map[sessionKey]*Session),
		byID:     make(map[string]*Session),
		emitter:  emitter,
		config:   config,
		debugLog: func(string, ...any) {},
	}
}

// SetDebugLog sets the debug logging function.
func (c *Coordinator) SetDebugLog(fn func(format string, args ...any)) {
	if fn != nil {
		c.debugLog = fn
	}
}

// SetAudit registers a hook invoked once per closed session, after the
// session leaves the registry. Used to persist a confirmation audit trail.
func (c *Coordinator) SetAudit(fn func(session *Session, res Resolution)) {
	c.audit = fn
}

// Open creates a session for the paused task and emits the rendered
// disambiguation prompt. The resume continuation is invoked exactly once,
// when the session closes, on the goroutine that closed it.
// Opening a second session for the same (caller, plan) pair is an error.
func (c *Coordinator) Open(caller string, planID string, task *models.Task, rec *models.AmbiguityRecord, resume func(Resolution)) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := sessionKey{caller: caller, planID: planID}
	if existing, ok := c.open[key]; ok {
		return nil, fmt.Errorf("plan %s already has open session %s", planID, existing.ID)
	}

	session := &Session{
		ID:       uuid.New().String(),
		Caller:   caller,
		PlanID:   planID,
		Record:   rec,
		State:    SessionOpen,
		OpenedAt: time.Now(),
		task:     task,
		resume:   resume,
	}
	c.open[key] = session
	c.byID[session.ID] = session

	if c.config.Timeout > 0 {
		id := session.ID
		session.timer = time.AfterFunc(c.config.Timeout, func() {
			c.expire(id)
		})
	}

	c.debugLog("[confirm] opened session %s for plan %s task %s (%d candidates)",
		session.ID, planID, task.ID, rec.CandidateCount())

	c.emitter.Emit(events.Event{
		Type:       events.EventConfirmationRequested,
		PlanID:     planID,
		TaskID:     task.ID,
		Status:     models.TaskStatusAwaitingConfirmation,
		SessionID:  session.ID,
		PromptText: RenderPrompt(rec),
	})

	return session, nil
}

// Submit delivers a free-text reply to an open session.
//
// An unrecognized or ambiguous reply keeps the session open and re-prompts;
// that is a retry, not an error. A reply for an unknown or closed session
// returns *StaleSessionError and mutates nothing.
func (c *Coordinator) Submit(caller, planID, sessionID, reply string) error {
	c.mu.Lock()

	session, ok := c.byID[sessionID]
	if !ok || session.State != SessionOpen || session.Caller != caller || session.PlanID != planID {
		c.mu.Unlock()
		return &StaleSessionError{SessionID: sessionID}
	}

	strategy, matched := MatchStrategy(reply, session.Record.Strategies)
	if !matched {
		c.debugLog("[confirm] session %s: unrecognized reply %q, re-prompting", sessionID, reply)
		prompt := "Sorry, I didn't catch that.\n" + RenderPrompt(session.Record)
		event := events.Event{
			Type:       events.EventConfirmationRequested,
			PlanID:     session.PlanID,
			TaskID:     session.task.ID,
			Status:     models.TaskStatusAwaitingConfirmation,
			SessionID:  session.ID,
			PromptText: prompt,
		}
		c.mu.Unlock()
		c.emitter.Emit(event)
		return nil
	}

	resume, resolution := c.closeLocked(session, strategy, false)
	c.mu.Unlock()

	resume(resolution)
	return nil
}

// expire times out an unanswered session. Disposition matches cancellation
// unless a timeout strategy is configured, but the reason code differs.
func (c *Coordinator) expire(sessionID string) {
	c.mu.Lock()
	session, ok := c.byID[sessionID]
	if !ok || session.State != SessionOpen {
		c.mu.Unlock()
		return
	}

	strategy := models.StrategyCancel
	if c.config.TimeoutStrategy != "" {
		strategy = c.config.TimeoutStrategy
	}

	c.debugLog("[confirm] session %s timed out, applying %s", sessionID, strategy)
	resume, resolution := c.closeLocked(session, strategy, true)
	c.mu.Unlock()

	resume(resolution)
}

// closeLocked transitions the session out of open, rewrites the paused task
// for non-cancel strategies, and removes the session from the registry.
// Caller holds c.mu. The returned continuation must be invoked after the
// lock is released.
func (c *Coordinator) closeLocked(session *Session, strategy models.Strategy, timedOut bool) (func(Resolution), Resolution) {
	switch {
	case timedOut:
		session.State = SessionTimedOut
	case strategy == models.StrategyCancel:
		session.State = SessionCancelled
	default:
		session.State = SessionResolved
	}

	if session.timer != nil {
		session.timer.Stop()
	}
	delete(c.open, sessionKey{caller: session.Caller, planID: session.PlanID})
	delete(c.byID, session.ID)

	if strategy != models.StrategyCancel {
		// Rewrite the paused task into its unambiguous form and requeue it.
		session.task.Resolution = strategy
		session.task.Status = models.TaskStatusPending
	}

	c.emitter.Emit(events.Event{
		Type:      events.EventConfirmationResolved,
		PlanID:    session.PlanID,
		TaskID:    session.task.ID,
		SessionID: session.ID,
		Message:   string(strategy),
	})

	resolution := Resolution{Strategy: strategy, TimedOut: timedOut}
	resume := session.resume
	if audit := c.audit; audit != nil {
		inner := resume
		resume = func(res Resolution) {
			audit(session, res)
			inner(res)
		}
	}
	return resume, resolution
}

// OpenSession returns the open session for a (caller, plan) pair, or nil.
func (c *Coordinator) OpenSession(caller, planID string) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open[sessionKey{caller: caller, planID: planID}]
}

// CancelPlan force-closes the open session for a plan, if any. Used when the
// caller cancels the whole plan out of band.
func (c *Coordinator) CancelPlan(caller, planID string) bool {
	c.mu.Lock()
	session, ok := c.open[sessionKey{caller: caller, planID: planID}]
	if !ok {
		c.mu.Unlock()
		return false
	}
	resume, resolution := c.closeLocked(session, models.StrategyCancel, false)
	c.mu.Unlock()

	resume(resolution)
	return true
}
