package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"sprout/internal/compose"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func suggestions() []compose.Suggestion {
	return []compose.Suggestion{
		{Title: "feat: first", Body: "body one", Rationale: "why one"},
		{Title: "fix: second"},
	}
}

func TestPicker_SelectsWithEnter(t *testing.T) {
	m := newPicker(suggestions())

	next, _ := m.Update(key("down"))
	next, _ = next.(pickerModel).Update(key("enter"))

	got := next.(pickerModel)
	if got.chosen != 1 || got.aborted {
		t.Errorf("expected chosen=1, got chosen=%d aborted=%v", got.chosen, got.aborted)
	}
}

func TestPicker_CursorStaysInBounds(t *testing.T) {
	m := newPicker(suggestions())

	next, _ := m.Update(key("up"))
	if next.(pickerModel).cursor != 0 {
		t.Error("cursor moved above the first entry")
	}

	next, _ = m.Update(key("down"))
	next, _ = next.(pickerModel).Update(key("down"))
	if next.(pickerModel).cursor != 1 {
		t.Error("cursor moved past the last entry")
	}
}

func TestPicker_AbortsWithEsc(t *testing.T) {
	m := newPicker(suggestions())
	next, _ := m.Update(key("esc"))
	if !next.(pickerModel).aborted {
		t.Error("esc should abort")
	}
}

func TestPicker_ViewShowsTitlesAndHelp(t *testing.T) {
	view := newPicker(suggestions()).View()
	for _, want := range []string{"feat: first", "fix: second", "enter commit"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestPicker_TabExpandsBodies(t *testing.T) {
	m := newPicker(suggestions())
	next, _ := m.Update(key("tab"))
	view := next.(pickerModel).View()
	if !strings.Contains(view, "body one") {
		t.Error("expanded view should include suggestion bodies")
	}
}
