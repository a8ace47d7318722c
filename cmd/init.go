package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/samhoang/modhub/internal/config"
)

var (
	initDryRun      bool
	initContentRoot string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the modhub directories and configuration",
	Long: `Prepare modhub for use.

This command:
1. Creates the data directory (~/.modhub, or $MODHUB_DIR)
2. Creates the content root and the sibling disabled directory
3. Writes a default modhub.toml if none exists

Use --content-root to point modhub at the game's mod folder.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initDryRun, "dry-run", false, "Show what would be created")
	initCmd.Flags().StringVar(&initContentRoot, "content-root", "", "Directory holding enabled mods")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := current.cfg
	paths := current.paths

	if initContentRoot != "" {
		abs, err := filepath.Abs(initContentRoot)
		if err != nil {
			return err
		}
		cfg.ContentRoot = abs
		paths = config.NewPaths(paths.DataDir, abs)
	}

	_, statErr := os.Stat(paths.ConfigPath())
	writeConfig := os.IsNotExist(statErr) || initContentRoot != ""

	fmt.Println("Init Plan:")
	fmt.Println()
	fmt.Printf("  data:     %s\n", paths.DataDir)
	fmt.Printf("  content:  %s\n", paths.ContentRoot)
	fmt.Printf("  disabled: %s\n", paths.DisabledDir)
	if writeConfig {
		fmt.Printf("  config:   %s\n", paths.ConfigPath())
	}
	fmt.Println()

	if initDryRun {
		fmt.Println("Dry run: nothing written.")
		return nil
	}

	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	if writeConfig {
		if err := cfg.Save(paths.DataDir); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}

	fmt.Println("modhub initialized.")
	return nil
}
