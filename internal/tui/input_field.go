package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	inputPromptStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true)
	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// SubmittedMsg is sent when the user submits a line. While a confirmation
// prompt is showing, the line is a disambiguation reply; otherwise it is a
// new request.
type SubmittedMsg struct {
	Text string
}

// InputField is the text input component for requests and replies.
type InputField struct {
	input textinput.Model
	width int
}

// NewInputField creates a new InputField.
func NewInputField() *InputField {
	ti := textinput.New()
	ti.Placeholder = "Tell me what changed or what you need..."
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	return &InputField{
		input: ti,
		width: 80,
	}
}

// SetWidth sets the width of the input field.
func (f *InputField) SetWidth(width int) {
	f.width = width
	f.input.Width = width - 4 // Account for prompt and padding
}

// SetPlaceholder swaps the placeholder text.
func (f *InputField) SetPlaceholder(text string) {
	f.input.Placeholder = text
}

// Update handles messages for the input field. Enter submits the trimmed
// line; a blank line is swallowed.
func (f *InputField) Update(msg tea.Msg) (*InputField, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		text := strings.TrimSpace(f.input.Value())
		if text != "" {
			f.input.Reset()
			return f, func() tea.Msg {
				return SubmittedMsg{Text: text}
			}
		}
	}

	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return f, cmd
}

// View renders the input field.
func (f *InputField) View() string {
	prompt := inputPromptStyle.Render("> ")
	return inputBoxStyle.Width(f.width - 2).Render(prompt + f.input.View())
}

// Focus sets focus on the input field.
func (f *InputField) Focus() tea.Cmd {
	return f.input.Focus()
}
