package conflict

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// Format selects a report encoding
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Formats lists the accepted --format values
func Formats() []string {
	return []string{string(FormatText), string(FormatJSON), string(FormatYAML)}
}

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown format %q (want %s)", s, strings.Join(Formats(), ", "))
	}
}

// Write encodes conflicts to w
func Write(w io.Writer, format Format, conflicts []Conflict) error {
	if conflicts == nil {
		conflicts = []Conflict{}
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(conflicts)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(conflicts); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := io.WriteString(w, RenderText(conflicts))
		return err
	}
}

// RenderText renders a styled, human-readable report
func RenderText(conflicts []Conflict) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	pathStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	ownerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle := lipgloss.NewStyle().Faint(true)

	var b strings.Builder
	if len(conflicts) == 0 {
		b.WriteString(ownerStyle.Render("No conflicts found."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(titleStyle.Render(fmt.Sprintf("%d conflicting file(s)", len(conflicts))))
	b.WriteString("\n\n")
	for _, c := range conflicts {
		b.WriteString(pathStyle.Render(c.FilePath))
		b.WriteString("\n")
		for _, o := range c.Owners {
			b.WriteString("  ")
			b.WriteString(ownerStyle.Render(o.PackageName))
			b.WriteString(" ")
			b.WriteString(dimStyle.Render(o.PackagePath))
			b.WriteString("\n")
		}
	}
	return b.String()
}
