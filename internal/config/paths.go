package config

import (
	"os"
	"path/filepath"
)

// Paths holds all resolved paths for modhub operations
type Paths struct {
	DataDir     string // ~/.modhub (modhub data directory)
	ContentRoot string // enabled packages live here
	DisabledDir string // sibling of ContentRoot holding disabled packages
}

// ResolvePaths resolves all paths based on environment and defaults.
// The content root comes from MODHUB_CONTENT_ROOT, then from cfg, then
// defaults to <data>/mods.
func ResolvePaths(cfg *Config) (*Paths, error) {
	dataDir := os.Getenv("MODHUB_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dataDir = filepath.Join(home, ".modhub")
	}

	contentRoot := os.Getenv("MODHUB_CONTENT_ROOT")
	if contentRoot == "" && cfg != nil {
		contentRoot = cfg.ContentRoot
	}
	if contentRoot == "" {
		contentRoot = filepath.Join(dataDir, "mods")
	}

	return NewPaths(dataDir, contentRoot), nil
}

// NewPaths builds Paths for an explicit data directory and content root.
func NewPaths(dataDir, contentRoot string) *Paths {
	return &Paths{
		DataDir:     dataDir,
		ContentRoot: contentRoot,
		DisabledDir: filepath.Join(filepath.Dir(contentRoot), "disabled"),
	}
}

// DataDirFromEnv returns the data directory without resolving the content root.
// Used to locate modhub.toml before the config is loaded.
func DataDirFromEnv() (string, error) {
	if dir := os.Getenv("MODHUB_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".modhub"), nil
}

// ConfigPath returns the path to modhub.toml
func (p *Paths) ConfigPath() string {
	return filepath.Join(p.DataDir, ConfigFileName)
}

// DownloadsDir returns the directory holding in-progress downloads
func (p *Paths) DownloadsDir() string {
	return filepath.Join(p.DataDir, "downloads")
}

// DownloadDir returns the download directory for one install
func (p *Paths) DownloadDir(id string) string {
	return filepath.Join(p.DownloadsDir(), id)
}

// StagingRoot returns the directory holding per-install staging directories
func (p *Paths) StagingRoot() string {
	return filepath.Join(p.DataDir, "staging")
}

// StagingDir returns the extraction staging directory for one install
func (p *Paths) StagingDir(id string) string {
	return filepath.Join(p.StagingRoot(), id)
}

// LogFile returns the path of the log file
func (p *Paths) LogFile() string {
	return filepath.Join(p.DataDir, "modhub.log")
}

// PackagePath returns the path of an enabled package
func (p *Paths) PackagePath(name string) string {
	return filepath.Join(p.ContentRoot, name)
}

// DisabledPackagePath returns the path of a disabled package
func (p *Paths) DisabledPackagePath(name string) string {
	return filepath.Join(p.DisabledDir, name)
}

// EnsureDirs creates the content root and disabled directory if missing
func (p *Paths) EnsureDirs() error {
	for _, dir := range []string{p.DataDir, p.ContentRoot, p.DisabledDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// IsInitialized checks if the content root exists
func (p *Paths) IsInitialized() bool {
	info, err := os.Stat(p.ContentRoot)
	if err != nil {
		return false
	}
	return info.IsDir()
}
