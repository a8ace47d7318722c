package cmd

import (
	"github.com/spf13/cobra"

	"github.com/samhoang/modhub/internal/hub"
)

// completePackageNames returns a completion function listing installed
// mods. enabledOnly restricts it to the content root.
func completePackageNames(enabledOnly bool) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if current == nil || !current.paths.IsInitialized() {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		store := current.store()
		var (
			pkgs []hub.Package
			err  error
		)
		if enabledOnly {
			pkgs, err = store.Enabled()
		} else {
			pkgs, err = store.List()
		}
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		names := make([]string, 0, len(pkgs))
		for _, p := range pkgs {
			names = append(names, p.Name)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
}
