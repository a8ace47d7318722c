package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/samhoang/modhub/internal/config"
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate default modhub.toml configuration",
	Long: `Generate a default modhub.toml configuration file.

The config file controls:
  - Where enabled mods live (content_root)
  - Extra conflict whitelist patterns
  - The deep link scheme and duplicate window
  - The metadata API and extraction tools
  - The local control API addresses

Example modhub.toml:

  whitelist = ["sound/bank"]
  link_scheme = "modhub"
  dedupe_window = "3s"

  [api]
  base_url = "https://api.modhub.dev/v1"
  timeout = "15s"

  [extract]
  disable = ["system"]

  [server]
  addr = "127.0.0.1:47811"
  metrics_addr = "127.0.0.1:47812"`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := current.paths.ConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists: %s\n", configPath)
		fmt.Println("Edit it directly or delete to regenerate.")
		return nil
	}

	if err := config.DefaultConfig().Save(current.paths.DataDir); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Created: %s\n", configPath)
	return nil
}
