package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samhoang/modhub/internal/conflict"
	"github.com/samhoang/modhub/internal/metrics"
)

var (
	conflictsWhitelist []string
	conflictsFormat    string
)

var conflictsCmd = &cobra.Command{
	Use:     "conflicts",
	Aliases: []string{"check"},
	Short:   "Report files provided by more than one enabled mod",
	Long: `Scan every enabled mod and report relative file paths that two or more
of them provide. Paths containing a whitelist pattern are ignored: the
built-in list, the 'whitelist' entries of modhub.toml and --whitelist flags.

Examples:
  modhub conflicts
  modhub conflicts --whitelist sound/bank --format json`,
	Args: cobra.NoArgs,
	RunE: runConflicts,
}

func init() {
	conflictsCmd.Flags().StringArrayVarP(&conflictsWhitelist, "whitelist", "w", nil, "Extra substring to ignore (repeatable)")
	conflictsCmd.Flags().StringVarP(&conflictsFormat, "format", "o", "text", "Output format ("+strings.Join(conflict.Formats(), ", ")+")")
	conflictsCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return conflict.Formats(), cobra.ShellCompDirectiveNoFileComp
	})
	rootCmd.AddCommand(conflictsCmd)
}

func runConflicts(cmd *cobra.Command, args []string) error {
	if err := current.requireInit(); err != nil {
		return err
	}

	format, err := conflict.ParseFormat(conflictsFormat)
	if err != nil {
		return err
	}

	pkgs, err := current.store().Enabled()
	if err != nil {
		return fmt.Errorf("failed to scan packages: %w", err)
	}

	extra := append(append([]string{}, current.cfg.Whitelist...), conflictsWhitelist...)
	conflicts, err := current.detector(metrics.Noop{}).Detect(cmd.Context(), pkgs, extra)
	if err != nil {
		return err
	}

	return conflict.Write(os.Stdout, format, conflicts)
}
