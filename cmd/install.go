package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	errs "github.com/samhoang/modhub/internal/errors"
	"github.com/samhoang/modhub/internal/events"
	"github.com/samhoang/modhub/internal/ingest"
	"github.com/samhoang/modhub/internal/metrics"
	"github.com/samhoang/modhub/internal/picker"
)

var installYes bool

var installCmd = &cobra.Command{
	Use:     "install <url|path>",
	Aliases: []string{"i"},
	Short:   "Download and install a mod",
	Long: `Install a mod from a URL, a deep link, a local archive or a local directory.

Remote installs ask for confirmation before downloading unless -y is given.
Local directories are moved into the content root; local archives are
extracted and left in place.

Examples:
  modhub install https://files.example.com/mods/1234/MarioCape.zip
  modhub install ~/Downloads/MarioCape.7z
  modhub install ./MarioCape -y`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVarP(&installYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	target := args[0]
	if err := current.paths.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	quietLogs()
	bus := events.NewBus()
	defer bus.Close()
	svc := current.ingestService(bus, metrics.Noop{})
	ctx := cmd.Context()

	if _, err := os.Stat(target); err == nil {
		res, err := svc.InstallLocal(ctx, target)
		return reportResult(res, err)
	}

	pending, err := svc.HandleLink(ctx, target)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidLinkFormat) {
			return fmt.Errorf("%s is neither a local path nor a download link: %w", target, err)
		}
		return err
	}
	return confirmAndRun(ctx, svc, bus, pending, installYes)
}

// confirmAndRun asks for confirmation (unless yes) and drives a pending
// install to its end, with a progress view when attached to a terminal.
func confirmAndRun(ctx context.Context, svc *ingest.Service, bus *events.Bus, pending *ingest.PendingInstall, yes bool) error {
	if pending == nil {
		fmt.Println("Duplicate link ignored.")
		return nil
	}

	tty := isTerminal()
	if !yes {
		if !tty {
			svc.Cancel(pending.ID)
			return fmt.Errorf("confirmation required: re-run with -y to install non-interactively")
		}
		ok, err := picker.Confirm("Install this mod?", pending.SourceURL)
		if err != nil {
			svc.Cancel(pending.ID)
			return err
		}
		if !ok {
			svc.Cancel(pending.ID)
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if !tty {
		stop := onInterrupt(func() { svc.Cancel(pending.ID) })
		defer stop()
		res, err := svc.Confirm(ctx, pending.ID)
		return reportResult(res, err)
	}

	sub, unsubscribe := bus.Subscribe(256)
	defer unsubscribe()

	type outcome struct {
		res *ingest.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := svc.Confirm(ctx, pending.ID)
		done <- outcome{res, err}
	}()

	if _, err := picker.RunProgress(pending.ID, "Installing "+pending.SourceURL, sub, func() { svc.Cancel(pending.ID) }); err != nil {
		svc.Cancel(pending.ID)
		<-done
		return err
	}
	out := <-done
	return reportResult(out.res, out.err)
}

func reportResult(res *ingest.Result, err error) error {
	if errors.Is(err, errs.ErrInstallCancelled) {
		fmt.Println("Install cancelled.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Installed %s\n", res.PackageName)
	fmt.Printf("  %s\n", res.PackagePath)
	return nil
}

// quietLogs keeps info logs off a terminal the prompts are drawing on
func quietLogs() {
	if !verbose && isTerminal() {
		current.logger.SetLevel(log.WarnLevel)
	}
}

func isTerminal() bool {
	for _, f := range []*os.File{os.Stdin, os.Stdout} {
		if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
			return false
		}
	}
	return true
}

// onInterrupt runs fn on the first SIGINT until stop is called
func onInterrupt(fn func()) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			fn()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
