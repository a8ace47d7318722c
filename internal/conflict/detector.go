// Package conflict finds files that more than one enabled package provides.
package conflict

import (
	"context"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/samhoang/modhub/internal/hub"
	"github.com/samhoang/modhub/internal/metrics"
)

// BuiltinWhitelist holds substrings of files every package is expected to ship
var BuiltinWhitelist = []string{
	"info.toml",
	"preview.webp",
	"config.json",
	"plugin.nro",
	"readme",
	"README",
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
}

// Owner is one package claiming a path
type Owner struct {
	PackageName string `json:"package_name" yaml:"package_name"`
	PackagePath string `json:"package_path" yaml:"package_path"`
}

// Conflict is a relative path provided by two or more packages
type Conflict struct {
	FilePath string  `json:"file_path" yaml:"file_path"`
	Owners   []Owner `json:"owners" yaml:"owners"`
}

// Detector scans package trees for overlapping files
type Detector struct {
	logger      *log.Logger
	metrics     metrics.Metrics
	concurrency int
}

// Option configures a Detector
type Option func(*Detector)

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m metrics.Metrics) Option {
	return func(d *Detector) { d.metrics = m }
}

// WithConcurrency bounds the number of packages walked at once. n <= 0 keeps the default.
func WithConcurrency(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// NewDetector creates a detector
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		logger:      log.Default(),
		metrics:     metrics.Noop{},
		concurrency: runtime.GOMAXPROCS(0) * 2,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Whitelist returns the built-in patterns plus the non-empty extras
func Whitelist(extra []string) []string {
	out := make([]string, 0, len(BuiltinWhitelist)+len(extra))
	out = append(out, BuiltinWhitelist...)
	for _, p := range extra {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func whitelisted(rel string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(rel, p) {
			return true
		}
	}
	return false
}

// Detect walks every package and returns the paths owned by more than one
// of them, sorted by path. Owners are listed in the order of packages.
// A package whose tree cannot be read is skipped with a warning.
func (d *Detector) Detect(ctx context.Context, packages []hub.Package, extra []string) ([]Conflict, error) {
	start := time.Now()
	patterns := Whitelist(extra)

	files := make([][]string, len(packages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, pkg := range packages {
		g.Go(func() error {
			paths, err := d.walk(gctx, pkg.Path, patterns)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				d.logger.Warn("skipping unreadable package", "package", pkg.Name, "path", pkg.Path, "err", err)
				return nil
			}
			files[i] = paths
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	owners := make(map[string][]Owner)
	for i, pkg := range packages {
		for _, rel := range files[i] {
			owners[rel] = append(owners[rel], Owner{PackageName: pkg.Name, PackagePath: pkg.Path})
		}
	}

	var conflicts []Conflict
	for rel, list := range owners {
		if len(list) > 1 {
			conflicts = append(conflicts, Conflict{FilePath: rel, Owners: list})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].FilePath < conflicts[j].FilePath
	})

	d.metrics.ObserveConflictScan(len(packages), len(conflicts), time.Since(start).Seconds())
	d.logger.Debug("conflict scan finished", "packages", len(packages), "conflicts", len(conflicts), "took", time.Since(start))
	return conflicts, nil
}

// walk lists the regular files under root, relative and slash-separated
func (d *Detector) walk(ctx context.Context, root string, patterns []string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if whitelisted(rel, patterns) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	return paths, err
}
