package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/samhoang/modhub/internal/hub"
)

var (
	listFormat   string
	listEnabled  bool
	listDisabled bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List installed mods",
	Long: `List installed mods, enabled and disabled.

Formats: text, json, yaml`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listFormat, "format", "o", "text", "Output format (text, json, yaml)")
	listCmd.Flags().BoolVar(&listEnabled, "enabled", false, "Only enabled mods")
	listCmd.Flags().BoolVar(&listDisabled, "disabled", false, "Only disabled mods")
	listCmd.MarkFlagsMutuallyExclusive("enabled", "disabled")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	if err := current.requireInit(); err != nil {
		return err
	}

	store := current.store()
	var (
		pkgs []hub.Package
		err  error
	)
	switch {
	case listEnabled:
		pkgs, err = store.Enabled()
	case listDisabled:
		pkgs, err = store.Disabled()
	default:
		pkgs, err = store.List()
	}
	if err != nil {
		return fmt.Errorf("failed to scan packages: %w", err)
	}
	if pkgs == nil {
		pkgs = []hub.Package{}
	}

	if listFormat != "text" {
		if listFormat == "toml" {
			return fmt.Errorf("unknown format %q", listFormat)
		}
		return writeStructured(os.Stdout, listFormat, pkgs)
	}

	if len(pkgs) == 0 {
		fmt.Println("No mods installed.")
		return nil
	}

	enabledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	disabledStyle := lipgloss.NewStyle().Faint(true)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, p := range pkgs {
		status := enabledStyle.Render("enabled")
		if !p.Enabled {
			status = disabledStyle.Render("disabled")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, status, p.Path)
	}
	return w.Flush()
}
