package picker

import (
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/samhoang/modhub/internal/events"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	down  = tea.KeyMsg{Type: tea.KeyDown}
	enter = tea.KeyMsg{Type: tea.KeyEnter}
)

func send(m tea.Model, msgs ...tea.Msg) tea.Model {
	for _, msg := range msgs {
		m, _ = m.Update(msg)
	}
	return m
}

func TestPickerToggle(t *testing.T) {
	items := []Item{
		{ID: "alpha", Label: "alpha", Selected: true},
		{ID: "beta", Label: "beta"},
		{ID: "gamma", Label: "gamma"},
	}

	m := send(New("Enable packages", items), down, space, down, space, enter).(Model)

	got := m.Selected()
	want := []string{"alpha", "beta", "gamma"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Selected() = %v, want %v", got, want)
	}
	if m.IsQuitting() {
		t.Error("IsQuitting() = true after enter")
	}
}

func TestPickerToggleAll(t *testing.T) {
	items := []Item{{ID: "a", Label: "a"}, {ID: "b", Label: "b", Selected: true}}

	m := send(New("t", items), runes("a")).(Model)
	if got := m.Selected(); len(got) != 2 {
		t.Errorf("after select all: %v", got)
	}

	m = send(m, runes("a")).(Model)
	if got := m.Selected(); len(got) != 0 {
		t.Errorf("after select none: %v", got)
	}
}

func TestPickerQuit(t *testing.T) {
	m := send(New("t", []Item{{ID: "a", Label: "a"}}), runes("q")).(Model)
	if !m.IsQuitting() {
		t.Error("IsQuitting() = false after q")
	}
	if m.View() != "" {
		t.Error("View() should be empty once finished")
	}
}

func TestPickerFilter(t *testing.T) {
	items := []Item{
		{ID: "DarkMario", Label: "DarkMario"},
		{ID: "LinkHD", Label: "LinkHD"},
		{ID: "MarioCape", Label: "MarioCape"},
	}

	m := send(New("t", items), runes("/"), runes("l"), runes("i"), runes("n"), enter).(Model)
	if len(m.visible()) != 1 {
		t.Fatalf("visible() = %v, want only LinkHD", m.visible())
	}

	m = send(m, space).(Model)
	if got := m.Selected(); !reflect.DeepEqual(got, []string{"LinkHD"}) {
		t.Errorf("Selected() = %v, want [LinkHD]", got)
	}
	if !strings.Contains(m.View(), "Filter: lin") {
		t.Errorf("View() missing filter line:\n%s", m.View())
	}
}

func TestPickerScrolls(t *testing.T) {
	var items []Item
	for i := 0; i < maxVisibleItems+5; i++ {
		id := string(rune('a' + i))
		items = append(items, Item{ID: id, Label: id})
	}

	m := New("t", items)
	var model tea.Model = m
	for i := 0; i < maxVisibleItems+2; i++ {
		model = send(model, down)
	}
	m = model.(Model)
	if m.offset == 0 {
		t.Error("offset should move once the cursor leaves the viewport")
	}
	if !strings.Contains(m.View(), "more") {
		t.Error("View() should show scroll indicators")
	}
}

func TestConfirmModel(t *testing.T) {
	m := send(NewConfirm("Install?", "https://example.com/a.zip"), runes("y")).(ConfirmModel)
	if !m.Confirmed() {
		t.Error("y should confirm")
	}

	m = send(NewConfirm("Install?"), runes("n")).(ConfirmModel)
	if m.Confirmed() {
		t.Error("n should decline")
	}

	m = send(NewConfirm("Install?"), enter).(ConfirmModel)
	if !m.Confirmed() {
		t.Error("enter should confirm")
	}

	view := NewConfirm("Install?", "detail line").View()
	if !strings.Contains(view, "detail line") {
		t.Errorf("View() = %q", view)
	}
}

func TestProgressModel(t *testing.T) {
	cancelled := false
	m := NewProgress("id-1", "Installing", func() { cancelled = true })

	var model tea.Model = m
	model = send(model,
		EventMsg{Type: events.Progress, ID: "other", Received: 999, Total: 1000, Percent: 99.9},
		EventMsg{Type: events.Progress, ID: "id-1", Received: 512, Total: 1024, Percent: 50},
	)
	pm := model.(ProgressModel)
	if pm.percent != 0.5 {
		t.Errorf("percent = %v, want 0.5", pm.percent)
	}
	if !strings.Contains(pm.View(), "512 B / 1.0 KiB") {
		t.Errorf("View() = %q", pm.View())
	}

	model = send(model, runes("q"))
	if !cancelled {
		t.Error("q should call onCancel")
	}

	model, cmd := model.Update(EventMsg{Type: events.Cancelled, ID: "id-1"})
	pm = model.(ProgressModel)
	if pm.Final() == nil || pm.Final().Type != events.Cancelled {
		t.Errorf("Final() = %v", pm.Final())
	}
	if cmd == nil {
		t.Error("terminal event should quit")
	}
}

func TestHumanSize(t *testing.T) {
	tests := map[int64]string{
		0:           "0 B",
		1023:        "1023 B",
		1024:        "1.0 KiB",
		1536:        "1.5 KiB",
		5 * 1 << 20: "5.0 MiB",
	}
	for in, want := range tests {
		if got := humanSize(in); got != want {
			t.Errorf("humanSize(%d) = %q, want %q", in, got, want)
		}
	}
}
