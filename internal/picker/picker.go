// Package picker holds the terminal prompts: a multi-select package list,
// the install confirmation and the download progress view.
package picker

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxVisibleItems = 12

// Item represents a selectable item
type Item struct {
	ID       string
	Label    string
	Hint     string
	Selected bool
}

// Model is the Bubble Tea model for the multi-select picker
type Model struct {
	title       string
	items       []Item
	cursor      int
	offset      int
	selected    map[string]bool
	searchInput textinput.Model
	searching   bool
	done        bool
	quitting    bool
}

// New creates a new picker model
func New(title string, items []Item) Model {
	selected := make(map[string]bool)
	for _, item := range items {
		if item.Selected {
			selected[item.ID] = true
		}
	}

	ti := textinput.New()
	ti.Placeholder = "Filter packages..."
	ti.CharLimit = 64
	ti.Width = 40

	return Model{
		title:       title,
		items:       items,
		selected:    selected,
		searchInput: ti,
	}
}

// Selected returns the IDs of selected items in list order
func (m Model) Selected() []string {
	var result []string
	for _, item := range m.items {
		if m.selected[item.ID] {
			result = append(result, item.ID)
		}
	}
	return result
}

// IsQuitting returns true if the user quit without confirming
func (m Model) IsQuitting() bool {
	return m.quitting
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) visible() []Item {
	query := strings.ToLower(m.searchInput.Value())
	if query == "" {
		return m.items
	}
	var out []Item
	for _, item := range m.items {
		if strings.Contains(strings.ToLower(item.Label), query) ||
			strings.Contains(strings.ToLower(item.ID), query) {
			out = append(out, item)
		}
	}
	return out
}

// adjustScroll keeps the cursor inside the viewport
func (m *Model) adjustScroll() {
	n := len(m.visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+maxVisibleItems {
		m.offset = m.cursor - maxVisibleItems + 1
	}
	if maxOffset := max(n-maxVisibleItems, 0); m.offset > maxOffset {
		m.offset = maxOffset
	}
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.searching {
		switch {
		case key.Matches(keyMsg, keys.Escape):
			m.searching = false
			m.searchInput.Blur()
			m.searchInput.SetValue("")
		case key.Matches(keyMsg, keys.Confirm):
			m.searching = false
			m.searchInput.Blur()
		default:
			var cmd tea.Cmd
			m.searchInput, cmd = m.searchInput.Update(keyMsg)
			m.cursor, m.offset = 0, 0
			return m, cmd
		}
		m.adjustScroll()
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(keyMsg, keys.Search):
		m.searching = true
		return m, m.searchInput.Focus()

	case key.Matches(keyMsg, keys.Up):
		m.cursor--

	case key.Matches(keyMsg, keys.Down):
		m.cursor++

	case key.Matches(keyMsg, keys.Toggle):
		if items := m.visible(); len(items) > 0 {
			id := items[m.cursor].ID
			m.selected[id] = !m.selected[id]
		}

	case key.Matches(keyMsg, keys.All):
		items := m.visible()
		allSelected := true
		for _, item := range items {
			if !m.selected[item.ID] {
				allSelected = false
				break
			}
		}
		for _, item := range items {
			m.selected[item.ID] = !allSelected
		}

	case key.Matches(keyMsg, keys.Confirm):
		m.done = true
		return m, tea.Quit
	}

	m.adjustScroll()
	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	if m.done || m.quitting {
		return ""
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cursorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	dimStyle := lipgloss.NewStyle().Faint(true)

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	if m.searching {
		b.WriteString("\n/ ")
		b.WriteString(m.searchInput.View())
		b.WriteString("\n")
	} else if m.searchInput.Value() != "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Filter: " + m.searchInput.Value()))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	items := m.visible()
	if len(items) == 0 {
		b.WriteString(dimStyle.Render("  (no packages)"))
		b.WriteString("\n")
	}

	if m.offset > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  ↑ %d more", m.offset)))
		b.WriteString("\n")
	}
	end := min(m.offset+maxVisibleItems, len(items))
	for i := m.offset; i < end; i++ {
		item := items[i]
		cursor := "  "
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
		}

		checked := "[ ]"
		if m.selected[item.ID] {
			checked = selectedStyle.Render("[x]")
		}

		b.WriteString(fmt.Sprintf("%s%s %s", cursor, checked, item.Label))
		if item.Hint != "" {
			b.WriteString(" ")
			b.WriteString(dimStyle.Render(item.Hint))
		}
		b.WriteString("\n")
	}
	if rest := len(items) - end; rest > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  ↓ %d more", rest)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("space: toggle • a: all/none • /: filter • enter: confirm • q: quit"))

	return b.String()
}

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	All     key.Binding
	Search  key.Binding
	Escape  key.Binding
	Confirm key.Binding
	Yes     key.Binding
	No      key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k")),
	Down:    key.NewBinding(key.WithKeys("down", "j")),
	Toggle:  key.NewBinding(key.WithKeys(" ")),
	All:     key.NewBinding(key.WithKeys("a")),
	Search:  key.NewBinding(key.WithKeys("/")),
	Escape:  key.NewBinding(key.WithKeys("esc")),
	Confirm: key.NewBinding(key.WithKeys("enter")),
	Yes:     key.NewBinding(key.WithKeys("y", "Y")),
	No:      key.NewBinding(key.WithKeys("n", "N")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

// Run runs the picker and returns the selected item IDs. A nil slice with
// a nil error means the user quit.
func Run(title string, items []Item) ([]string, error) {
	finalModel, err := tea.NewProgram(New(title, items)).Run()
	if err != nil {
		return nil, err
	}

	fm := finalModel.(Model)
	if fm.IsQuitting() {
		return nil, nil
	}
	selected := fm.Selected()
	if selected == nil {
		selected = []string{}
	}
	return selected, nil
}
