package picker

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/samhoang/modhub/internal/events"
)

// EventMsg delivers a pipeline event to the progress view
type EventMsg events.Event

// ProgressModel renders one install's progress until it finishes
type ProgressModel struct {
	id         string
	title      string
	bar        progress.Model
	percent    float64
	received   int64
	total      int64
	status     string
	final      *events.Event
	onCancel   func()
	cancelling bool
}

// NewProgress creates a progress view for install id. onCancel runs when
// the user presses q or ctrl+c.
func NewProgress(id, title string, onCancel func()) ProgressModel {
	return ProgressModel{
		id:       id,
		title:    title,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		status:   "downloading",
		onCancel: onCancel,
	}
}

// Final returns the terminal event, or nil if none arrived
func (m ProgressModel) Final() *events.Event {
	return m.final
}

// Init implements tea.Model
func (m ProgressModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-20, 10), 60)

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) && !m.cancelling {
			m.cancelling = true
			m.status = "cancelling"
			if m.onCancel != nil {
				m.onCancel()
			}
		}

	case EventMsg:
		e := events.Event(msg)
		if e.ID != m.id {
			return m, nil
		}
		switch e.Type {
		case events.Start:
			m.status = "downloading"
		case events.Progress:
			m.received, m.total = e.Received, e.Total
			if e.Total > 0 {
				m.percent = e.Percent / 100
			}
		case events.ExtractStart:
			m.percent = 1
			m.status = "extracting"
		case events.ExtractComplete:
			m.status = "installing"
		case events.Success, events.Error, events.Cancelled:
			m.final = &e
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model
func (m ProgressModel) View() string {
	if m.final != nil {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	dimStyle := lipgloss.NewStyle().Faint(true)

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n  ")
	b.WriteString(m.bar.ViewAs(m.percent))
	b.WriteString("\n  ")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s • %s", m.status, formatBytes(m.received, m.total))))
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("q: cancel"))
	return b.String()
}

func formatBytes(received, total int64) string {
	if total > 0 {
		return fmt.Sprintf("%s / %s", humanSize(received), humanSize(total))
	}
	return humanSize(received)
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// RunProgress shows the progress view, feeding it events from sub, and
// returns the terminal event for id.
func RunProgress(id, title string, sub <-chan events.Event, onCancel func()) (*events.Event, error) {
	p := tea.NewProgram(NewProgress(id, title, onCancel))

	go func() {
		for e := range sub {
			p.Send(EventMsg(e))
			if e.ID == id && e.Terminal() {
				return
			}
		}
	}()

	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	return final.(ProgressModel).Final(), nil
}
