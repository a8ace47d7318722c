package cmd

import (
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration utilities",
	Long:  `Create and inspect modhub.toml.`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
