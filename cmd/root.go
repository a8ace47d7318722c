package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "modhub",
	Short: "Mod installer and conflict checker",
	Long: `modhub downloads mods from deep links or URLs, unpacks them, normalizes
their layout and places them into a managed content directory. It also
reports files that more than one installed mod provides.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(verbose)
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if current != nil {
			return current.closeLog()
		}
		return nil
	},
	Run: runRoot,
}

func runRoot(cmd *cobra.Command, args []string) {
	if !current.paths.IsInitialized() {
		fmt.Println("modhub - mod installer")
		fmt.Println()
		fmt.Println("Not initialized. Get started with:")
		fmt.Println()
		fmt.Println("  modhub init           Create the data and content directories")
		fmt.Println("  modhub install <url>  Download and install a mod")
		fmt.Println("  modhub --help         Show all commands")
		return
	}

	cmd.Help()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}
