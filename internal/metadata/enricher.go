// Package metadata fills in preview images and info.toml descriptors for
// installed packages from the remote metadata API.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	errs "github.com/samhoang/modhub/internal/errors"
)

// PreviewFile is the conventional preview image name at the package root
const PreviewFile = "preview.webp"

// Enricher adds missing metadata to installed packages
type Enricher struct {
	client *Client
	logger *log.Logger
}

// NewEnricher creates an enricher backed by client
func NewEnricher(client *Client, logger *log.Logger) *Enricher {
	if logger == nil {
		logger = log.Default()
	}
	return &Enricher{client: client, logger: logger}
}

// Enrich fetches metadata for externalID and writes whatever the package is
// missing. Existing files are never overwritten. Every failure is wrapped in
// ErrMetadataEnrichment.
func (e *Enricher) Enrich(ctx context.Context, externalID, packagePath string) error {
	if externalID == "" {
		return nil
	}

	previewPath := filepath.Join(packagePath, PreviewFile)
	descriptorPath := filepath.Join(packagePath, DescriptorFile)
	hasPreview := fileExists(previewPath)
	hasDescriptor := fileExists(descriptorPath)

	if hasPreview && hasDescriptor {
		e.logger.Debug("metadata already present", "package", packagePath)
		return nil
	}

	info, err := e.client.Get(ctx, externalID)
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrMetadataEnrichment, err)
	}

	var failures []error

	if !hasPreview && info.PreviewURL != "" {
		if err := e.client.Fetch(ctx, info.PreviewURL, previewPath); err != nil {
			failures = append(failures, fmt.Errorf("preview: %w", err))
		} else {
			e.logger.Debug("saved preview", "package", packagePath)
		}
	}

	if !hasDescriptor && (info.Author != "" || info.Version != "" || info.Category != "") {
		d := &Descriptor{
			DisplayName: info.Name,
			Authors:     info.Author,
			Version:     info.Version,
			Category:    info.Category,
		}
		if err := WriteDescriptor(descriptorPath, d); err != nil {
			failures = append(failures, fmt.Errorf("descriptor: %w", err))
		} else {
			e.logger.Debug("wrote descriptor", "package", packagePath)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("%w: %w", errs.ErrMetadataEnrichment, errors.Join(failures...))
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
