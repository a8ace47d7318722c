package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/samhoang/modhub/internal/events"
	"github.com/samhoang/modhub/internal/logging"
	"github.com/samhoang/modhub/internal/metrics"
	"github.com/samhoang/modhub/internal/server"
)

var (
	serveAddr        string
	serveMetricsAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local control API",
	Long: `Run the local HTTP API that receives deep links, runs installs and
streams pipeline events over a websocket at /api/v1/events.

Prometheus metrics are served on a separate address at /metrics.
Set server.metrics_addr to "" in modhub.toml to turn them off.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "API listen address (default from modhub.toml)")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Metrics listen address (default from modhub.toml)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := current.paths.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	addr := current.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	metricsAddr := current.cfg.Server.MetricsAddr
	if serveMetricsAddr != "" {
		metricsAddr = serveMetricsAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus()
	defer bus.Close()

	m := metrics.NewProm("modhub", nil)
	logger := logging.Component(current.logger, "server")

	api := server.New(
		current.ingestService(bus, m),
		current.store(),
		current.detector(m),
		bus,
		server.WithLogger(logger),
		server.WithWhitelist(current.cfg.Whitelist),
	)
	defer api.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.ListenAndServe(gctx, addr)
	})
	if metricsAddr != "" {
		g.Go(func() error {
			return server.ServeMetrics(gctx, metricsAddr, metrics.Handler(), logger)
		})
	}

	return g.Wait()
}
