package tui

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrPromptCanceled is returned when the user leaves the prompt without
// entering a code.
var ErrPromptCanceled = errors.New("tui: prompt canceled")

// CodeModel asks for the authorization code shown by Google.
type CodeModel struct {
	authURL  string
	input    textinput.Model
	canceled bool
	done     bool
}

// NewCodeModel creates the prompt model for authURL.
func NewCodeModel(authURL string) CodeModel {
	ti := textinput.New()
	ti.Placeholder = "Paste the authorization code..."
	ti.Prompt = "> "
	ti.CharLimit = 512
	ti.Width = 60
	ti.Focus()

	return CodeModel{authURL: authURL, input: ti}
}

// Init initializes the model
func (m CodeModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m CodeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// The URL is never wrapped so it stays copyable as one line.
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.canceled = true
			return m, tea.Quit
		case tea.KeyEnter:
			if m.Code() == "" {
				return m, nil
			}
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the prompt
func (m CodeModel) View() string {
	if m.done || m.canceled {
		return ""
	}

	var s strings.Builder

	s.WriteString(TitleStyle.Render("Authorization required"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render("Please visit the following URL to authorize the application:"))
	s.WriteString("\n")
	s.WriteString(URLStyle.Render(m.authURL))
	s.WriteString("\n\n")
	s.WriteString(SubtitleStyle.Render("Enter the authorization code:"))
	s.WriteString("\n")
	s.WriteString(m.input.View())
	s.WriteString("\n")
	s.WriteString(HelpStyle.Render("Enter to submit | Esc to cancel"))
	s.WriteString("\n")

	return s.String()
}

// Code returns the trimmed input.
func (m CodeModel) Code() string {
	return strings.TrimSpace(m.input.Value())
}

// Canceled reports whether the user aborted the prompt.
func (m CodeModel) Canceled() bool {
	return m.canceled
}

// Prompter collects the authorization code through an interactive prompt.
// It implements auth.Prompter for terminals.
type Prompter struct {
	In  io.Reader
	Out io.Writer
}

// PromptCode runs the prompt until the user submits a code or ctx ends.
func (p *Prompter) PromptCode(ctx context.Context, authURL string) (string, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if p.In != nil {
		opts = append(opts, tea.WithInput(p.In))
	}
	if p.Out != nil {
		opts = append(opts, tea.WithOutput(p.Out))
	}

	final, err := tea.NewProgram(NewCodeModel(authURL), opts...).Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		return "", err
	}

	m, ok := final.(CodeModel)
	if !ok || m.Canceled() || m.Code() == "" {
		return "", ErrPromptCanceled
	}

	return m.Code(), nil
}
