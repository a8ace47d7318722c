package picker

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ConfirmModel asks a yes/no question
type ConfirmModel struct {
	title    string
	details  []string
	yes      bool
	answered bool
}

// NewConfirm creates a prompt. Each detail is shown on its own line.
func NewConfirm(title string, details ...string) ConfirmModel {
	return ConfirmModel{title: title, details: details}
}

// Confirmed reports whether the user answered yes
func (m ConfirmModel) Confirmed() bool {
	return m.answered && m.yes
}

// Init implements tea.Model
func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, keys.Yes), key.Matches(keyMsg, keys.Confirm):
		m.yes, m.answered = true, true
		return m, tea.Quit
	case key.Matches(keyMsg, keys.No), key.Matches(keyMsg, keys.Quit), key.Matches(keyMsg, keys.Escape):
		m.yes, m.answered = false, true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model
func (m ConfirmModel) View() string {
	if m.answered {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	detailStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	for _, d := range m.details {
		b.WriteString("  ")
		b.WriteString(detailStyle.Render(d))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("y/enter: install • n/q: cancel"))
	return b.String()
}

// Confirm shows the prompt and blocks for an answer
func Confirm(title string, details ...string) (bool, error) {
	final, err := tea.NewProgram(NewConfirm(title, details...)).Run()
	if err != nil {
		return false, err
	}
	return final.(ConfirmModel).Confirmed(), nil
}
