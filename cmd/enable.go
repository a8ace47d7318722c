package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samhoang/modhub/internal/hub"
	"github.com/samhoang/modhub/internal/picker"
)

var toggleInteractive bool

var enableCmd = &cobra.Command{
	Use:   "enable <name>...",
	Short: "Enable disabled mods",
	Long: `Move mods from the disabled directory back into the content root.

With -i, pick the full set of enabled mods interactively.`,
	ValidArgsFunction: completePackageNames(false),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggle(true, args)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <name>...",
	Short: "Disable mods without removing them",
	Long: `Move mods out of the content root into the disabled directory.

With -i, pick the full set of enabled mods interactively.`,
	ValidArgsFunction: completePackageNames(true),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggle(false, args)
	},
}

func init() {
	for _, c := range []*cobra.Command{enableCmd, disableCmd} {
		c.Flags().BoolVarP(&toggleInteractive, "interactive", "i", false, "Choose mods from a list")
		rootCmd.AddCommand(c)
	}
}

func runToggle(enable bool, names []string) error {
	if err := current.requireInit(); err != nil {
		return err
	}
	store := current.store()

	if toggleInteractive {
		return runTogglePicker(store)
	}
	if len(names) == 0 {
		return fmt.Errorf("no mod names given (use -i to pick from a list)")
	}

	var errList []error
	for _, name := range names {
		if err := applyToggle(store, name, enable); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

func runTogglePicker(store *hub.Store) error {
	pkgs, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to scan packages: %w", err)
	}
	if len(pkgs) == 0 {
		fmt.Println("No mods installed.")
		return nil
	}

	items := make([]picker.Item, 0, len(pkgs))
	for _, p := range pkgs {
		items = append(items, picker.Item{ID: p.Name, Label: p.Name, Selected: p.Enabled})
	}

	selected, err := picker.Run("Enabled mods", items)
	if err != nil {
		return err
	}
	if selected == nil {
		fmt.Println("Cancelled.")
		return nil
	}

	want := make(map[string]bool, len(selected))
	for _, name := range selected {
		want[name] = true
	}

	var errList []error
	changed := 0
	for _, p := range pkgs {
		if want[p.Name] == p.Enabled {
			continue
		}
		if err := applyToggle(store, p.Name, want[p.Name]); err != nil {
			errList = append(errList, err)
			continue
		}
		changed++
	}
	if changed == 0 && len(errList) == 0 {
		fmt.Println("No changes.")
	}
	return errors.Join(errList...)
}

func applyToggle(store *hub.Store, name string, enable bool) error {
	if enable {
		if _, err := store.Enable(name); err != nil {
			return fmt.Errorf("enable %s: %w", name, err)
		}
		fmt.Printf("Enabled %s\n", name)
		return nil
	}
	if _, err := store.Disable(name); err != nil {
		return fmt.Errorf("disable %s: %w", name, err)
	}
	fmt.Printf("Disabled %s\n", name)
	return nil
}
