package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/samhoang/modhub/internal/archive"
	"github.com/samhoang/modhub/internal/config"
	"github.com/samhoang/modhub/internal/server"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose and fix common issues",
	Long: `Check for common modhub issues and optionally fix them.

Checks:
- Is modhub initialized?
- Is a 7-Zip binary available for .7z and .rar archives?
- Are downloads or staging directories left over from interrupted installs?
- Are there broken symlinks in the content root?
- Is a 'modhub serve' instance answering?`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Remove leftover downloads and staging directories")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	paths := current.paths

	fmt.Println("=== modhub doctor ===")
	fmt.Println()

	issues := 0

	fmt.Print("Checking initialization... ")
	if !paths.IsInitialized() {
		fmt.Println("FAIL")
		fmt.Println("  → modhub is not initialized. Run 'modhub init' first.")
		return nil
	}
	fmt.Println("OK")

	fmt.Print("Checking 7-Zip... ")
	if current.cfg.StrategyDisabled(archive.StrategySevenZip) {
		fmt.Println("SKIP (disabled in config)")
	} else if bin, err := archive.FindSevenZip(current.cfg.Extract.SevenZipPath); err != nil {
		fmt.Println("WARN")
		fmt.Printf("  → %v\n", err)
		fmt.Println("  → .7z and .rar archives may fail to extract")
	} else {
		fmt.Printf("OK → %s\n", bin)
	}

	fmt.Print("Checking leftover install data... ")
	leftovers := findLeftovers(paths)
	if len(leftovers) > 0 {
		if doctorFix {
			removed := 0
			for _, dir := range leftovers {
				if err := os.RemoveAll(dir); err != nil {
					fmt.Printf("\n  → failed to remove %s: %v", dir, err)
					issues++
					continue
				}
				removed++
			}
			fmt.Printf("\nFIXED (removed %d)\n", removed)
		} else {
			fmt.Printf("WARN (%d)\n", len(leftovers))
			for _, dir := range leftovers[:min(5, len(leftovers))] {
				fmt.Printf("  → %s\n", dir)
			}
			if len(leftovers) > 5 {
				fmt.Printf("  → ... and %d more\n", len(leftovers)-5)
			}
			fmt.Println("  → Run 'modhub doctor --fix' to remove")
			issues++
		}
	} else {
		fmt.Println("OK")
	}

	fmt.Print("Checking for broken symlinks... ")
	brokenLinks := findBrokenSymlinks(paths.ContentRoot)
	if len(brokenLinks) > 0 {
		fmt.Printf("WARN (%d broken)\n", len(brokenLinks))
		for _, link := range brokenLinks[:min(5, len(brokenLinks))] {
			fmt.Printf("  → %s\n", link)
		}
		if len(brokenLinks) > 5 {
			fmt.Printf("  → ... and %d more\n", len(brokenLinks)-5)
		}
		issues += len(brokenLinks)
	} else {
		fmt.Println("OK")
	}

	fmt.Print("Checking control API... ")
	if server.NewClient(current.cfg.Server.Addr).Ping(cmd.Context()) {
		fmt.Printf("OK → %s\n", current.cfg.Server.Addr)
	} else {
		fmt.Println("not running (links are handled in-process)")
	}

	fmt.Println()
	if issues == 0 {
		fmt.Println("All checks passed!")
	} else {
		fmt.Printf("Found %d issue(s)\n", issues)
	}

	return nil
}

// findLeftovers lists per-install download and staging directories. No
// install runs outside a live process, so any that exist are stale.
func findLeftovers(paths *config.Paths) []string {
	var dirs []string
	for _, root := range []string{paths.DownloadsDir(), paths.StagingRoot()} {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			dirs = append(dirs, filepath.Join(root, entry.Name()))
		}
	}
	return dirs
}

func findBrokenSymlinks(dir string) []string {
	var broken []string
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		linfo, err := os.Lstat(path)
		if err != nil {
			return nil
		}
		if linfo.Mode()&os.ModeSymlink != 0 {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				broken = append(broken, path)
			}
		}
		return nil
	})
	return broken
}
