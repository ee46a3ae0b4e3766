// Package tui implements the interactive terminal session: a transcript of
// plan progress events, a confirmation prompt when a plan pauses, and a text
// input for requests and replies.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/quartermaster/internal/events"
	"github.com/ShayCichocki/quartermaster/internal/orchestrator"
)

// eventMsg wraps one progress event.
type eventMsg struct {
	event events.Event
}

// eventsClosedMsg signals the progress channel closed.
type eventsClosedMsg struct{}

// requestFailedMsg reports a request the planner rejected.
type requestFailedMsg struct {
	err error
}

// requestStartedMsg reports a successfully started plan.
type requestStartedMsg struct {
	planID string
}

// App is the bubbletea model for an interactive session.
type App struct {
	orch   *orchestrator.Orchestrator
	caller string

	input    *InputField
	lines    []string
	width    int
	height   int
	quitting bool

	// activePlanID is the plan whose events are streaming, if any.
	activePlanID string
	// prompt holds the pending confirmation prompt text, empty when none.
	prompt string
	// sessionID is the open confirmation session awaiting a reply.
	sessionID string

	headerStyle  lipgloss.Style
	promptStyle  lipgloss.Style
	successStyle lipgloss.Style
	failStyle    lipgloss.Style
	dimStyle     lipgloss.Style
}

// NewApp creates an App over the orchestrator for one caller.
func NewApp(orch *orchestrator.Orchestrator, caller string) *App {
	return &App{
		orch:   orch,
		caller: caller,
		input:  NewInputField(),
		width:  80,
		height: 24,

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1),

		promptStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Foreground(lipgloss.Color("214")).
			Padding(0, 1),

		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		failStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.input.Focus(), a.waitForEvent())
}

// waitForEvent produces the next progress event as a message.
func (a *App) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-a.orch.Events()
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: event}
	}
}

// submit routes a line of input: a reply while a session is open, a new
// request otherwise.
func (a *App) submit(text string) tea.Cmd {
	if a.sessionID != "" {
		caller, planID, sessionID := a.caller, a.activePlanID, a.sessionID
		return func() tea.Msg {
			if err := a.orch.SubmitReply(caller, planID, sessionID, text); err != nil {
				return requestFailedMsg{err: err}
			}
			return nil
		}
	}

	caller := a.caller
	return func() tea.Msg {
		run, err := a.orch.HandleRequest(context.Background(), caller, text)
		if err != nil {
			return requestFailedMsg{err: err}
		}
		return requestStartedMsg{planID: run.Plan().ID}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if a.activePlanID != "" {
				a.orch.CancelPlan(a.caller, a.activePlanID)
			}
			a.quitting = true
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.SetWidth(msg.Width)
		return a, nil

	case SubmittedMsg:
		a.appendLine(a.dimStyle.Render("you: " + msg.Text))
		return a, a.submit(msg.Text)

	case requestStartedMsg:
		a.activePlanID = msg.planID
		return a, nil

	case requestFailedMsg:
		a.appendLine(a.failStyle.Render("could not understand request: " + msg.err.Error()))
		return a, nil

	case eventMsg:
		a.applyEvent(msg.event)
		return a, a.waitForEvent()

	case eventsClosedMsg:
		a.quitting = true
		return a, tea.Quit
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// applyEvent folds one progress event into the transcript and prompt state.
func (a *App) applyEvent(event events.Event) {
	switch event.Type {
	case events.EventPlanStarted:
		a.appendLine(a.dimStyle.Render("planning done, working..."))

	case events.EventTaskStarted:
		a.appendLine(a.dimStyle.Render(fmt.Sprintf("  %s running", event.TaskID)))

	case events.EventTaskSucceeded:
		a.appendLine(a.successStyle.Render(fmt.Sprintf("  %s done", event.TaskID)))

	case events.EventTaskFailed:
		a.appendLine(a.failStyle.Render(fmt.Sprintf("  %s failed: %s", event.TaskID, event.Message)))

	case events.EventTaskBlocked:
		a.appendLine(a.failStyle.Render(fmt.Sprintf("  %s skipped (%s)", event.TaskID, event.Message)))

	case events.EventConfirmationRequested:
		a.prompt = event.PromptText
		a.sessionID = event.SessionID
		a.input.SetPlaceholder("newest / oldest / all / cancel")

	case events.EventConfirmationResolved:
		a.prompt = ""
		a.sessionID = ""
		a.input.SetPlaceholder("Tell me what changed or what you need...")
		a.appendLine(a.dimStyle.Render("okay, " + event.Message))

	case events.EventPlanCancelled:
		a.closePlan(a.failStyle.Render("request cancelled"))

	case events.EventPlanTimedOut:
		a.closePlan(a.failStyle.Render("request timed out waiting for a reply"))

	case events.EventPlanCompleted:
		a.closePlan(a.successStyle.Render("finished: " + event.Message))
	}
}

// closePlan clears per-plan state and appends the closing line.
func (a *App) closePlan(line string) {
	a.appendLine(line)
	a.activePlanID = ""
	a.prompt = ""
	a.sessionID = ""
	a.input.SetPlaceholder("Tell me what changed or what you need...")
}

// appendLine adds a transcript line, keeping the tail that fits on screen.
func (a *App) appendLine(line string) {
	a.lines = append(a.lines, line)
	max := a.height * 2
	if max < 50 {
		max = 50
	}
	if len(a.lines) > max {
		a.lines = a.lines[len(a.lines)-max:]
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(a.headerStyle.Render("quartermaster"))
	b.WriteString("\n\n")

	visible := a.lines
	budget := a.height - 8
	if budget > 0 && len(visible) > budget {
		visible = visible[len(visible)-budget:]
	}
	for _, line := range visible {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if a.prompt != "" {
		b.WriteString("\n")
		b.WriteString(a.promptStyle.Width(a.width - 2).Render(a.prompt))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(a.input.View())
	b.WriteString("\n")
	b.WriteString(a.dimStyle.Render("enter to send · esc to quit"))
	return b.String()
}

// Run starts the interactive session and blocks until it exits.
func Run(orch *orchestrator.Orchestrator, caller string) error {
	program := tea.NewProgram(NewApp(orch, caller), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
