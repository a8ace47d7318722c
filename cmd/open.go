package cmd

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open [name]",
	Short: "Reveal a mod folder in the file manager",
	Long: `Open the folder of an installed mod, or the content root when no name
is given, with the platform file manager.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completePackageNames(false),
	RunE:              runOpen,
}

func init() {
	rootCmd.AddCommand(openCmd)
}

func runOpen(cmd *cobra.Command, args []string) error {
	if err := current.requireInit(); err != nil {
		return err
	}

	target := current.paths.ContentRoot
	if len(args) == 1 {
		pkg, err := current.store().Get(args[0])
		if err != nil {
			return err
		}
		target = pkg.Path
	}

	name, openArgs := openerCommand(runtime.GOOS, target)
	c := exec.Command(name, openArgs...)
	if err := c.Start(); err != nil {
		return fmt.Errorf("failed to run %s: %w", name, err)
	}
	// the opener may outlive us; don't wait on it
	go c.Wait()

	fmt.Println(target)
	return nil
}

func openerCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "explorer", []string{path}
	default:
		return "xdg-open", []string{path}
	}
}
