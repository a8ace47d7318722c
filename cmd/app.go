package cmd

import (
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/samhoang/modhub/internal/archive"
	"github.com/samhoang/modhub/internal/config"
	"github.com/samhoang/modhub/internal/conflict"
	"github.com/samhoang/modhub/internal/download"
	"github.com/samhoang/modhub/internal/events"
	"github.com/samhoang/modhub/internal/hub"
	"github.com/samhoang/modhub/internal/ingest"
	"github.com/samhoang/modhub/internal/logging"
	"github.com/samhoang/modhub/internal/manifest"
	"github.com/samhoang/modhub/internal/metadata"
	"github.com/samhoang/modhub/internal/metrics"
)

// app is the per-invocation state shared by commands
type app struct {
	cfg      *config.Config
	paths    *config.Paths
	logger   *log.Logger
	closeLog func() error
}

// current is set by the root command before any subcommand runs
var current *app

func loadApp(verbose bool) (*app, error) {
	dataDir, err := config.DataDirFromEnv()
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", config.ConfigFileName, err)
	}

	paths, err := config.ResolvePaths(cfg)
	if err != nil {
		return nil, err
	}

	logger, closeLog := logging.Setup(verbose, paths.LogFile())
	return &app{cfg: cfg, paths: paths, logger: logger, closeLog: closeLog}, nil
}

func (a *app) store() *hub.Store {
	return hub.NewStore(a.paths)
}

func (a *app) detector(m metrics.Metrics) *conflict.Detector {
	opts := []conflict.Option{
		conflict.WithLogger(logging.Component(a.logger, "conflict")),
		conflict.WithMetrics(m),
	}
	if n := a.cfg.Conflicts.Concurrency; n > 0 {
		opts = append(opts, conflict.WithConcurrency(n))
	}
	return conflict.NewDetector(opts...)
}

// ingestService wires the pipeline from the loaded configuration
func (a *app) ingestService(emitter events.Emitter, m metrics.Metrics) *ingest.Service {
	logger := logging.Component(a.logger, "ingest")

	opts := []ingest.Option{
		ingest.WithScheme(a.cfg.LinkScheme),
		ingest.WithDedupeWindow(a.cfg.DedupeWindow.Duration),
		ingest.WithEmitter(emitter),
		ingest.WithLogger(logger),
		ingest.WithMetrics(m),
		ingest.WithDownloader(download.NewManager(
			download.WithEmitter(emitter),
			download.WithLogger(logging.Component(a.logger, "download")),
			download.WithMetrics(m),
		)),
		ingest.WithExtractor(archive.NewExtractor(
			archive.DefaultStrategies(a.cfg.Extract),
			archive.WithLogger(logging.Component(a.logger, "archive")),
			archive.WithMetrics(m),
		)),
		ingest.WithNormalizer(manifest.NewNormalizer(logging.Component(a.logger, "manifest"))),
		ingest.WithInstaller(hub.NewInstaller(a.paths, logging.Component(a.logger, "hub"))),
	}

	if a.cfg.API.BaseURL != "" {
		client := metadata.NewClient(a.cfg.API.BaseURL, &http.Client{Timeout: a.cfg.API.Timeout.Duration})
		opts = append(opts, ingest.WithEnricher(metadata.NewEnricher(client, logging.Component(a.logger, "metadata"))))
	}

	return ingest.NewService(a.paths, opts...)
}

func (a *app) requireInit() error {
	if !a.paths.IsInitialized() {
		return fmt.Errorf("modhub not initialized: run 'modhub init' first")
	}
	return nil
}
