package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/samhoang/modhub/internal/archive"
	"github.com/samhoang/modhub/internal/config"
	"github.com/samhoang/modhub/internal/download"
	errs "github.com/samhoang/modhub/internal/errors"
	"github.com/samhoang/modhub/internal/events"
	"github.com/samhoang/modhub/internal/hub"
	"github.com/samhoang/modhub/internal/logging"
	"github.com/samhoang/modhub/internal/manifest"
	"github.com/samhoang/modhub/internal/metrics"
)

// DefaultDedupeWindow drops repeated dispatches of the same link
const DefaultDedupeWindow = 3 * time.Second

// State is a pending install's position in the pipeline
type State string

const (
	StateAwaitingConfirmation State = "awaiting-confirmation"
	StateDownloading          State = "downloading"
	StateExtracting           State = "extracting"
	StateNormalizing          State = "normalizing"
	StateInstalling           State = "installing"
	StateEnrichingMetadata    State = "enriching-metadata"
	StateSucceeded            State = "succeeded"
	StateFailed               State = "failed"
	StateCancelled            State = "cancelled"
)

// Terminal reports whether s ends the pipeline
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// PendingInstall is one install request tracked by the service
type PendingInstall struct {
	ID            string    `json:"id"`
	SourceURL     string    `json:"source_url"`
	ExternalModID string    `json:"external_mod_id,omitempty"`
	State         State     `json:"state"`
	Error         string    `json:"error,omitempty"`
	PackageName   string    `json:"package_name,omitempty"`
	PackagePath   string    `json:"package_path,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Result is the terminal outcome of a pipeline run
type Result struct {
	ID          string `json:"id"`
	State       State  `json:"state"`
	PackageName string `json:"package_name,omitempty"`
	PackagePath string `json:"package_path,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Downloader fetches archives and cancels them by install id
type Downloader interface {
	Download(ctx context.Context, rawURL, id, destDir string) (string, error)
	Cancel(id string) download.CancelResult
}

// Extractor unpacks an archive into a directory
type Extractor interface {
	Extract(ctx context.Context, archivePath, targetDir string) error
}

// Normalizer rearranges an extracted tree
type Normalizer interface {
	Normalize(ctx context.Context, root string) error
}

// Installer places a tree into the content root
type Installer interface {
	Install(ctx context.Context, extractedDir string) (*hub.Placement, error)
	InstallDir(ctx context.Context, dir string) (*hub.Placement, error)
}

// Enricher adds metadata to an installed package
type Enricher interface {
	Enrich(ctx context.Context, externalID, packagePath string) error
}

type entry struct {
	info      PendingInstall
	cancel    context.CancelFunc
	cancelled bool
}

// Service owns the pending-install registry
type Service struct {
	paths        *config.Paths
	scheme       string
	dedupeWindow time.Duration

	downloader Downloader
	extractor  Extractor
	normalizer Normalizer
	installer  Installer
	enricher   Enricher

	emitter events.Emitter
	logger  *log.Logger
	metrics metrics.Metrics
	now     func() time.Time

	mu       sync.Mutex
	installs map[string]*entry
	recent   map[string]time.Time
}

// Option configures a Service
type Option func(*Service)

func WithScheme(scheme string) Option {
	return func(s *Service) {
		if scheme != "" {
			s.scheme = scheme
		}
	}
}

func WithDedupeWindow(d time.Duration) Option {
	return func(s *Service) { s.dedupeWindow = d }
}

func WithDownloader(d Downloader) Option {
	return func(s *Service) { s.downloader = d }
}

func WithExtractor(e Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

func WithNormalizer(n Normalizer) Option {
	return func(s *Service) { s.normalizer = n }
}

func WithInstaller(i Installer) Option {
	return func(s *Service) { s.installer = i }
}

// WithEnricher sets the metadata enricher. Without one, enrichment is skipped.
func WithEnricher(e Enricher) Option {
	return func(s *Service) { s.enricher = e }
}

func WithEmitter(e events.Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates an ingest service. Unset collaborators get the
// package defaults built from paths.
func NewService(paths *config.Paths, opts ...Option) *Service {
	s := &Service{
		paths:        paths,
		scheme:       DefaultScheme,
		dedupeWindow: DefaultDedupeWindow,
		emitter:      events.Discard,
		logger:       log.Default(),
		metrics:      metrics.Noop{},
		now:          time.Now,
		installs:     make(map[string]*entry),
		recent:       make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.downloader == nil {
		s.downloader = download.NewManager(
			download.WithEmitter(s.emitter),
			download.WithLogger(s.logger),
			download.WithMetrics(s.metrics),
		)
	}
	if s.extractor == nil {
		s.extractor = archive.NewExtractor(
			archive.DefaultStrategies(config.ExtractConfig{}),
			archive.WithLogger(s.logger),
			archive.WithMetrics(s.metrics),
		)
	}
	if s.normalizer == nil {
		s.normalizer = manifest.NewNormalizer(s.logger)
	}
	if s.installer == nil {
		s.installer = hub.NewInstaller(paths, s.logger)
	}
	return s
}

// HandleLink parses a deep link and registers a pending install awaiting
// confirmation. A link identical to one seen within the dedupe window
// returns (nil, nil).
func (s *Service) HandleLink(ctx context.Context, raw string) (*PendingInstall, error) {
	if s.duplicate(raw) {
		logging.FromContext(ctx).Debug("dropping duplicate link", "link", raw)
		return nil, nil
	}

	link, err := ParseLink(raw, s.scheme)
	if err != nil {
		return nil, err
	}

	e := &entry{info: PendingInstall{
		ID:            uuid.NewString(),
		SourceURL:     link.URL,
		ExternalModID: link.ExternalID,
		State:         StateAwaitingConfirmation,
		CreatedAt:     s.now(),
	}}

	s.mu.Lock()
	s.installs[e.info.ID] = e
	info := e.info
	s.mu.Unlock()

	s.logger.Info("link received", "id", info.ID, "url", info.SourceURL, "mod", info.ExternalModID)
	s.emitter.Emit(events.Event{Type: events.ConfirmationRequest, ID: info.ID, URL: info.SourceURL})
	return &info, nil
}

func (s *Service) duplicate(raw string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, seen := range s.recent {
		if now.Sub(seen) >= s.dedupeWindow {
			delete(s.recent, k)
		}
	}
	if _, ok := s.recent[raw]; ok {
		return true
	}
	if s.dedupeWindow > 0 {
		s.recent[raw] = now
	}
	return false
}

// Get returns a snapshot of a live pending install
func (s *Service) Get(id string) (*PendingInstall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.installs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrInstallNotFound, id)
	}
	info := e.info
	return &info, nil
}

// List returns snapshots of all live pending installs, oldest first
func (s *Service) List() []PendingInstall {
	s.mu.Lock()
	out := make([]PendingInstall, 0, len(s.installs))
	for _, e := range s.installs {
		out = append(out, e.info)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Confirm runs the pipeline for an install awaiting confirmation and blocks
// until it reaches a terminal state.
func (s *Service) Confirm(ctx context.Context, id string) (*Result, error) {
	_, run, err := s.Start(ctx, id)
	if err != nil {
		return nil, err
	}
	return run()
}

// Start claims an install awaiting confirmation and returns its snapshot
// together with the function that drives it to a terminal state. Only one
// caller can claim a given install; the others get ErrInvalidState. The
// returned run func must be called.
func (s *Service) Start(ctx context.Context, id string) (*PendingInstall, func() (*Result, error), error) {
	s.mu.Lock()
	e, ok := s.installs[id]
	if !ok {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %s", errs.ErrInstallNotFound, id)
	}
	if e.info.State != StateAwaitingConfirmation {
		state := e.info.State
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %s is %s", errs.ErrInvalidState, id, state)
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.info.State = StateDownloading
	info := e.info
	s.mu.Unlock()

	run := func() (*Result, error) {
		defer cancel()

		s.metrics.IncInstallsStarted("link")
		s.emitter.Emit(events.Event{Type: events.Start, ID: id, URL: info.SourceURL})

		logger := s.logger.With("id", id)
		ctx := logging.WithLogger(ctx, logger)

		placement, err := s.runLink(ctx, e)
		return s.finish(ctx, e, placement, err)
	}
	return &info, run, nil
}

// InstallLocal installs an archive file or a package directory from disk.
// Directories are moved into the content root; archives are left in place.
func (s *Service) InstallLocal(ctx context.Context, path string) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, errs.NewPathError(abs, "install", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e := &entry{
		cancel: cancel,
		info: PendingInstall{
			ID:        uuid.NewString(),
			SourceURL: abs,
			State:     StateExtracting,
			CreatedAt: s.now(),
		},
	}
	if fi.IsDir() {
		e.info.State = StateNormalizing
	}

	s.mu.Lock()
	s.installs[e.info.ID] = e
	s.mu.Unlock()

	s.metrics.IncInstallsStarted("local")
	s.emitter.Emit(events.Event{Type: events.Start, ID: e.info.ID, URL: abs})

	logger := s.logger.With("id", e.info.ID)
	ctx = logging.WithLogger(ctx, logger)

	var placement *hub.Placement
	if fi.IsDir() {
		placement, err = s.runDir(ctx, e, abs)
	} else {
		placement, err = s.runArchive(ctx, e, abs)
	}
	return s.finish(ctx, e, placement, err)
}

// Cancel terminates a live pending install. A download in progress is
// cancelled through the download manager; any other stage is told to stop
// and the install ends as cancelled.
func (s *Service) Cancel(id string) download.CancelResult {
	s.mu.Lock()
	e, ok := s.installs[id]
	if !ok {
		s.mu.Unlock()
		return download.CancelResult{Success: false, Error: "not found"}
	}
	e.cancelled = true
	state := e.info.State
	cancel := e.cancel

	if state == StateAwaitingConfirmation {
		delete(s.installs, id)
		s.mu.Unlock()
		s.logger.Info("install cancelled before confirmation", "id", id)
		s.metrics.IncInstallsFinished(string(StateCancelled))
		s.emitter.Emit(events.Event{Type: events.Cancelled, ID: id})
		return download.CancelResult{Success: true}
	}
	s.mu.Unlock()

	if state == StateDownloading {
		if res := s.downloader.Cancel(id); !res.Success {
			s.logger.Debug("download not active at cancel", "id", id, "reason", res.Error)
		}
	}
	if cancel != nil {
		cancel()
	}
	return download.CancelResult{Success: true}
}

func (s *Service) runLink(ctx context.Context, e *entry) (*hub.Placement, error) {
	id := e.info.ID
	stagingDir := s.paths.StagingDir(id)
	defer s.cleanup(ctx, stagingDir)

	var archivePath string
	err := s.stage(ctx, e, StateDownloading, func() error {
		var err error
		archivePath, err = s.downloader.Download(ctx, e.info.SourceURL, id, s.paths.DownloadDir(id))
		return err
	})
	if err != nil {
		return nil, err
	}

	placement, err := s.extractAndPlace(ctx, e, archivePath, stagingDir)
	if err != nil {
		return nil, err
	}

	s.enrich(ctx, e, placement)

	if err := os.RemoveAll(s.paths.DownloadDir(id)); err != nil {
		logging.FromContext(ctx).Warn("failed to remove downloaded archive", "path", archivePath, "err", err)
	}
	return placement, nil
}

func (s *Service) runArchive(ctx context.Context, e *entry, archivePath string) (*hub.Placement, error) {
	stagingDir := s.paths.StagingDir(e.info.ID)
	defer s.cleanup(ctx, stagingDir)
	return s.extractAndPlace(ctx, e, archivePath, stagingDir)
}

func (s *Service) runDir(ctx context.Context, e *entry, dir string) (*hub.Placement, error) {
	s.normalize(ctx, e, dir)

	var placement *hub.Placement
	err := s.stage(ctx, e, StateInstalling, func() error {
		var err error
		placement, err = s.installer.InstallDir(ctx, dir)
		return err
	})
	return placement, err
}

func (s *Service) extractAndPlace(ctx context.Context, e *entry, archivePath, stagingDir string) (*hub.Placement, error) {
	id := e.info.ID

	err := s.stage(ctx, e, StateExtracting, func() error {
		s.emitter.Emit(events.Event{Type: events.ExtractStart, ID: id})
		if err := os.MkdirAll(stagingDir, 0755); err != nil {
			return err
		}
		if err := s.extractor.Extract(ctx, archivePath, stagingDir); err != nil {
			return err
		}
		s.emitter.Emit(events.Event{Type: events.ExtractComplete, ID: id})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.normalize(ctx, e, stagingDir)

	var placement *hub.Placement
	err = s.stage(ctx, e, StateInstalling, func() error {
		var err error
		placement, err = s.installer.Install(ctx, stagingDir)
		return err
	})
	return placement, err
}

// normalize is best effort; a failure leaves the tree as extracted
func (s *Service) normalize(ctx context.Context, e *entry, root string) {
	err := s.stage(ctx, e, StateNormalizing, func() error {
		return s.normalizer.Normalize(ctx, root)
	})
	if err != nil && !errors.Is(err, errs.ErrInstallCancelled) {
		logging.FromContext(ctx).Warn("normalization failed, installing tree as extracted", "err", err)
	}
}

// enrich is best effort
func (s *Service) enrich(ctx context.Context, e *entry, placement *hub.Placement) {
	if s.enricher == nil || e.info.ExternalModID == "" {
		return
	}
	err := s.stage(ctx, e, StateEnrichingMetadata, func() error {
		return s.enricher.Enrich(ctx, e.info.ExternalModID, placement.PackagePath)
	})
	if err != nil {
		logging.FromContext(ctx).Warn("metadata enrichment failed", "package", placement.PackageName, "err", err)
	}
}

// stage moves e into state and runs fn, timing it. A cancelled install
// refuses to enter a new stage.
func (s *Service) stage(ctx context.Context, e *entry, state State, fn func() error) error {
	s.mu.Lock()
	if e.cancelled {
		s.mu.Unlock()
		return errs.ErrInstallCancelled
	}
	e.info.State = state
	s.mu.Unlock()

	logging.FromContext(ctx).Debug("stage started", "stage", state)
	start := time.Now()
	err := fn()
	s.metrics.ObserveStage(string(state), time.Since(start).Seconds())
	if err != nil {
		return errs.NewStageError(e.info.ID, string(state), err)
	}
	return nil
}

// finish resolves the terminal state, drops the record from the registry and
// emits the final event. Cancellation wins over any late outcome and discards
// the downloaded archive; a failed install keeps it.
func (s *Service) finish(ctx context.Context, e *entry, placement *hub.Placement, err error) (*Result, error) {
	logger := logging.FromContext(ctx)

	s.mu.Lock()
	cancelled := e.cancelled || errors.Is(err, errs.ErrDownloadCancelled) || errors.Is(err, errs.ErrInstallCancelled)
	res := &Result{ID: e.info.ID}
	switch {
	case cancelled:
		res.State = StateCancelled
	case err != nil:
		res.State = StateFailed
		res.Error = err.Error()
	default:
		res.State = StateSucceeded
		res.PackageName = placement.PackageName
		res.PackagePath = placement.PackagePath
	}
	e.info.State = res.State
	e.info.Error = res.Error
	e.info.PackageName = res.PackageName
	e.info.PackagePath = res.PackagePath
	delete(s.installs, e.info.ID)
	s.mu.Unlock()

	s.metrics.IncInstallsFinished(string(res.State))

	switch res.State {
	case StateCancelled:
		if err := os.RemoveAll(s.paths.DownloadDir(res.ID)); err != nil {
			logger.Warn("failed to remove downloaded archive", "path", s.paths.DownloadDir(res.ID), "err", err)
		}
		logger.Info("install cancelled")
		s.emitter.Emit(events.Event{Type: events.Cancelled, ID: res.ID})
		return res, fmt.Errorf("%w: %s", errs.ErrInstallCancelled, res.ID)
	case StateFailed:
		logger.Error("install failed", "err", err)
		s.emitter.Emit(events.Event{Type: events.Error, ID: res.ID, Message: res.Error})
		return res, err
	default:
		logger.Info("installed", "package", res.PackageName, "path", res.PackagePath)
		s.emitter.Emit(events.Event{
			Type:        events.Success,
			ID:          res.ID,
			PackageName: res.PackageName,
			PackagePath: res.PackagePath,
		})
		return res, nil
	}
}

func (s *Service) cleanup(ctx context.Context, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logging.FromContext(ctx).Warn("failed to remove staging directory", "path", dir, "err", err)
	}
}
