// Package editor provides the interactive single-line editor used to confirm
// or tweak a command before it is stored or executed.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	ErrCanceled    = errors.New("edit canceled")
	ErrNotTerminal = errors.New("interactive editing requires a terminal")
)

// Editor pre-fills a line with initial text and returns what the user accepts.
type Editor interface {
	Edit(ctx context.Context, prompt, initial string) (string, error)
}

// Terminal is an Editor backed by a bubbletea program on the given streams.
type Terminal struct {
	In  *os.File
	Out io.Writer
}

// NewTerminal creates a Terminal editor on the process's stdin and stderr.
// stderr keeps the prompt out of captured stdout.
func NewTerminal() *Terminal {
	return &Terminal{In: os.Stdin, Out: os.Stderr}
}

// Edit runs the line editor until the user accepts (Enter) or cancels (Esc, Ctrl+C).
func (t *Terminal) Edit(ctx context.Context, prompt, initial string) (string, error) {
	if t.In == nil || !term.IsTerminal(int(t.In.Fd())) {
		return "", ErrNotTerminal
	}

	m := newModel(prompt, initial)
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(t.In),
		tea.WithOutput(t.Out),
	)
	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("running editor: %w", err)
	}
	return final.(model).result()
}

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	hintStyle   = lipgloss.NewStyle().Faint(true)
)

// model is the bubbletea model wrapping a single textinput.
type model struct {
	input    textinput.Model
	accepted bool
	canceled bool
}

func newModel(prompt, initial string) model {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render(prompt) + " "
	ti.CharLimit = 0
	ti.SetValue(initial)
	ti.CursorEnd()
	ti.Focus()
	return model{input: ti}
}

// Init implements tea.Model
func (m model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.accepted = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.canceled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model
func (m model) View() string {
	if m.accepted || m.canceled {
		return ""
	}
	return m.input.View() + "\n" + hintStyle.Render("enter: accept • esc: cancel") + "\n"
}

func (m model) result() (string, error) {
	if !m.accepted {
		return "", ErrCanceled
	}
	return m.input.Value(), nil
}
