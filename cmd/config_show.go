package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configShowYAML bool

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration in effect: modhub.toml merged over the defaults.

Paths resolved from MODHUB_DIR and MODHUB_CONTENT_ROOT are not written
back into the output.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	configShowCmd.Flags().BoolVar(&configShowYAML, "yaml", false, "Print as YAML instead of TOML")
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	format := "toml"
	if configShowYAML {
		format = "yaml"
	}
	return writeStructured(os.Stdout, format, current.cfg)
}
