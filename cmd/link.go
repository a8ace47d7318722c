package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samhoang/modhub/internal/events"
	"github.com/samhoang/modhub/internal/metrics"
	"github.com/samhoang/modhub/internal/server"
)

var (
	linkYes   bool
	linkLocal bool
)

var linkCmd = &cobra.Command{
	Use:   "link <deep-link>",
	Short: "Handle a deep link",
	Long: `Handle a deep link such as modhub:https://files.example.com/mods/1234/cape.zip,1234.

This is the command the OS runs for registered modhub: links. When a
'modhub serve' instance is running the link is forwarded to it; otherwise
it is processed in this process.`,
	Args: cobra.ExactArgs(1),
	RunE: runLink,
}

func init() {
	linkCmd.Flags().BoolVarP(&linkYes, "yes", "y", false, "Confirm the install without prompting")
	linkCmd.Flags().BoolVar(&linkLocal, "local", false, "Never forward to a running server")
	rootCmd.AddCommand(linkCmd)
}

func runLink(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	raw := args[0]

	if !linkLocal {
		client := server.NewClient(current.cfg.Server.Addr)
		if client.Ping(ctx) {
			pending, err := client.SubmitLink(ctx, raw)
			if err != nil {
				return fmt.Errorf("failed to forward link: %w", err)
			}
			if pending == nil {
				fmt.Println("Duplicate link ignored.")
				return nil
			}
			fmt.Printf("Forwarded to modhub serve at %s (install %s)\n", current.cfg.Server.Addr, pending.ID)
			if linkYes {
				if err := client.Confirm(ctx, pending.ID); err != nil {
					return err
				}
				fmt.Println("Install confirmed.")
			}
			return nil
		}
		current.logger.Debug("no server answering, handling link here", "addr", current.cfg.Server.Addr)
	}

	if err := current.paths.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	quietLogs()
	bus := events.NewBus()
	defer bus.Close()
	svc := current.ingestService(bus, metrics.Noop{})

	pending, err := svc.HandleLink(ctx, raw)
	if err != nil {
		return err
	}
	return confirmAndRun(ctx, svc, bus, pending, linkYes)
}
