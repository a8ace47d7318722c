package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var removeForce bool

var removeCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Delete an installed mod",
	Long: `Delete a mod from the content root or the disabled directory.

Examples:
  modhub remove MarioCape
  modhub rm MarioCape -f`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completePackageNames(false),
	RunE:              runRemove,
}

func init() {
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "Skip confirmation")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	if err := current.requireInit(); err != nil {
		return err
	}

	store := current.store()
	pkg, err := store.Get(args[0])
	if err != nil {
		return err
	}

	if !removeForce {
		fmt.Printf("Remove %s (%s)? [y/N] ", pkg.Name, pkg.Path)
		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := store.Remove(pkg.Name); err != nil {
		return err
	}

	fmt.Printf("Removed %s\n", pkg.Name)
	return nil
}
