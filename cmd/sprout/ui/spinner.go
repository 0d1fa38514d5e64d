package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type doneMsg struct{ err error }

type spinnerModel struct {
	spinner spinner.Model
	label   string
	err     error
	wait    func() error
}

func (m spinnerModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg { return doneMsg{err: m.wait()} },
	)
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case doneMsg:
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m spinnerModel) View() string {
	return strings.TrimRight(m.spinner.View()+" "+SubtleStyle.Render(m.label), "\n") + "\n"
}

// Spin shows a spinner with label while fn runs, then returns fn's error.
// Intended for slow calls like LLM generation on an interactive terminal.
func Spin(label string, fn func() error) error {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	final, err := tea.NewProgram(spinnerModel{spinner: s, label: label, wait: fn}).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(spinnerModel); ok {
		return m.err
	}
	return nil
}
