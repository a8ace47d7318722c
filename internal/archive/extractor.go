// Package archive unpacks downloaded mod archives.
//
// Extraction runs an ordered chain of strategies: an external 7-Zip binary,
// the platform's own tools, then an in-process implementation. The first
// strategy that leaves files in the target directory wins; every failure is
// recorded and returned when the whole chain is exhausted.
package archive

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	errs "github.com/samhoang/modhub/internal/errors"
	"github.com/samhoang/modhub/internal/metrics"
)

// Strategy is one way of unpacking an archive
type Strategy struct {
	Name     string
	Supports func(Family) bool
	Run      func(ctx context.Context, archivePath, targetDir string) error
}

// Extractor runs strategies in order until one succeeds
type Extractor struct {
	strategies []Strategy
	logger     *log.Logger
	metrics    metrics.Metrics
}

// Option configures an Extractor
type Option func(*Extractor)

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m metrics.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// NewExtractor creates an extractor over the given strategies
func NewExtractor(strategies []Strategy, opts ...Option) *Extractor {
	e := &Extractor{
		strategies: strategies,
		logger:     log.Default(),
		metrics:    metrics.Noop{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Strategies returns the names of the configured strategies in order
func (e *Extractor) Strategies() []string {
	names := make([]string, 0, len(e.strategies))
	for _, s := range e.strategies {
		names = append(names, s.Name)
	}
	return names
}

// Extract unpacks archivePath into targetDir. targetDir is created if
// missing and is never removed between attempts.
func (e *Extractor) Extract(ctx context.Context, archivePath, targetDir string) error {
	if _, err := os.Stat(archivePath); err != nil {
		return errs.NewPathError(archivePath, "extract", err)
	}

	family, err := DetectFamily(archivePath)
	if err != nil {
		return errs.NewPathError(archivePath, "detect archive type", err)
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return errs.NewPathError(targetDir, "create extraction dir", err)
	}

	var attempts []errs.Attempt
	for _, s := range e.strategies {
		if s.Supports != nil && !s.Supports(family) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		e.logger.Debug("trying extraction strategy", "strategy", s.Name, "archive", archivePath, "family", family)

		err := s.Run(ctx, archivePath, targetDir)
		if err == nil {
			err = validateNonEmpty(targetDir)
		}
		if err == nil {
			e.metrics.IncExtractAttempt(s.Name, "ok")
			e.logger.Info("extracted archive", "strategy", s.Name, "archive", archivePath)
			return nil
		}

		e.metrics.IncExtractAttempt(s.Name, "error")
		e.logger.Warn("extraction strategy failed", "strategy", s.Name, "err", err)
		attempts = append(attempts, errs.Attempt{Strategy: s.Name, Err: err})
	}

	return &errs.ExtractionError{Archive: archivePath, Attempts: attempts}
}

func validateNonEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("validate output: %w", err)
	}
	if len(entries) == 0 {
		return errs.ErrNoFilesAfterExtraction
	}
	return nil
}
