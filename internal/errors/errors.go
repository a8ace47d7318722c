package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors
var (
	ErrInvalidLinkFormat      = errors.New("invalid link format")
	ErrDownloadCancelled      = errors.New("download cancelled")
	ErrInstallCancelled       = errors.New("install cancelled")
	ErrTooManyRedirects       = errors.New("too many redirects")
	ErrExtractionFailed       = errors.New("extraction failed")
	ErrNoFilesAfterExtraction = errors.New("no files after extraction")
	ErrMetadataEnrichment     = errors.New("metadata enrichment failed")
	ErrInvalidState           = errors.New("invalid install state")
	ErrInstallNotFound        = errors.New("pending install not found")
	ErrPackageNotFound        = errors.New("package not found")
	ErrPackageExists          = errors.New("package already exists")
)

// StageError wraps a pipeline failure with the install id and stage it happened in
type StageError struct {
	ID    string
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("install %s: %s: %v", e.ID, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a new stage error
func NewStageError(id, stage string, err error) *StageError {
	return &StageError{ID: id, Stage: stage, Err: err}
}

// DownloadHTTPError is returned when the server answers with a non-2xx status
type DownloadHTTPError struct {
	URL        string
	StatusCode int
}

func (e *DownloadHTTPError) Error() string {
	return fmt.Sprintf("download %s: http status %d", e.URL, e.StatusCode)
}

// Attempt records one extraction strategy run
type Attempt struct {
	Strategy string
	Err      error
}

// ExtractionError lists every failed strategy. It matches ErrExtractionFailed.
type ExtractionError struct {
	Archive  string
	Attempts []Attempt
}

func (e *ExtractionError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("extract %s: no strategy supports this archive", e.Archive)
	}
	return fmt.Sprintf("extract %s: all strategies failed (%s)", e.Archive, strings.Join(parts, "; "))
}

func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtractionFailed
}

// PlacementConflictError means the target package directory exists and could not be removed
type PlacementConflictError struct {
	Name string
	Path string
	Err  error
}

func (e *PlacementConflictError) Error() string {
	return fmt.Sprintf("place %s: cannot replace %s: %v", e.Name, e.Path, e.Err)
}

func (e *PlacementConflictError) Unwrap() error {
	return e.Err
}

// PathError wraps errors with path context
type PathError struct {
	Path string
	Op   string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// NewPathError creates a new path error
func NewPathError(path, op string, err error) *PathError {
	return &PathError{Path: path, Op: op, Err: err}
}
