package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/samhoang/modhub/internal/metrics"
	"github.com/samhoang/modhub/internal/server"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"st"},
	Short:   "Show modhub status",
	Long: `Display a summary of the modhub setup.

Shows:
- Data directory and content root
- Enabled and disabled mod counts
- Conflicting file count
- Whether 'modhub serve' is running`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	paths := current.paths

	if !paths.IsInitialized() {
		fmt.Println("Status: NOT INITIALIZED")
		fmt.Println()
		fmt.Println("Run 'modhub init' to initialize modhub")
		return nil
	}

	fmt.Println("=== modhub status ===")
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Data directory:\t%s\n", paths.DataDir)
	fmt.Fprintf(w, "Content root:\t%s\n", paths.ContentRoot)
	fmt.Fprintf(w, "Disabled:\t%s\n", paths.DisabledDir)
	w.Flush()
	fmt.Println()

	fmt.Println("--- Mods ---")
	store := current.store()
	enabled, err := store.Enabled()
	if err != nil {
		fmt.Printf("Error scanning content root: %v\n", err)
	}
	disabled, err := store.Disabled()
	if err != nil {
		fmt.Printf("Error scanning disabled directory: %v\n", err)
	}
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  enabled:\t%d\n", len(enabled))
	fmt.Fprintf(w, "  disabled:\t%d\n", len(disabled))
	w.Flush()
	fmt.Println()

	fmt.Println("--- Conflicts ---")
	conflicts, err := current.detector(metrics.Noop{}).Detect(cmd.Context(), enabled, current.cfg.Whitelist)
	switch {
	case err != nil:
		fmt.Printf("  Error: %v\n", err)
	case len(conflicts) == 0:
		fmt.Println("  None")
	default:
		fmt.Printf("  %d conflicting file(s), run 'modhub conflicts' for details\n", len(conflicts))
	}
	fmt.Println()

	fmt.Println("--- Control API ---")
	if server.NewClient(current.cfg.Server.Addr).Ping(cmd.Context()) {
		fmt.Printf("  running at %s\n", current.cfg.Server.Addr)
	} else {
		fmt.Println("  not running")
	}

	return nil
}
