package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"sprout/internal/compose"
)

// ErrAborted is returned when the user quits the picker without choosing.
var ErrAborted = fmt.Errorf("selection aborted")

// pickerModel lets the user choose one commit message suggestion.
type pickerModel struct {
	suggestions []compose.Suggestion
	cursor      int
	expanded    bool
	chosen      int
	aborted     bool
}

func newPicker(suggestions []compose.Suggestion) pickerModel {
	return pickerModel{suggestions: suggestions, chosen: -1}
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.suggestions)-1 {
				m.cursor++
			}
		case "tab":
			m.expanded = !m.expanded
		case "enter":
			m.chosen = m.cursor
			return m, tea.Quit
		case "q", "esc", "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Pick a commit message"))
	b.WriteString("\n\n")

	for i, s := range m.suggestions {
		cursor := "  "
		title := s.Title
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
			title = selectedStyle.Render(title)
		}
		fmt.Fprintf(&b, "%s%s\n", cursor, title)

		if m.expanded || i == m.cursor {
			if s.Rationale != "" {
				b.WriteString(bodyStyle.Render(SubtleStyle.Render(s.Rationale)))
				b.WriteString("\n")
			}
			if m.expanded && s.Body != "" {
				b.WriteString(bodyStyle.Render(s.Body))
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(SubtleStyle.Render("↑/↓ move · enter commit · tab details · q cancel"))
	b.WriteString("\n")
	return b.String()
}

// PickSuggestion runs the interactive picker and returns the chosen index.
// Returns ErrAborted when the user cancels.
func PickSuggestion(suggestions []compose.Suggestion) (int, error) {
	final, err := tea.NewProgram(newPicker(suggestions)).Run()
	if err != nil {
		return -1, err
	}
	m, ok := final.(pickerModel)
	if !ok || m.aborted || m.chosen < 0 {
		return -1, ErrAborted
	}
	return m.chosen, nil
}
