package hub

import (
	"os"
	"path/filepath"
)

// Scanner scans the content root and disabled directory for packages
type Scanner struct{}

// NewScanner creates a new Scanner
func NewScanner() *Scanner {
	return &Scanner{}
}

// Scan scans both package directories and returns a populated Hub
func (s *Scanner) Scan(contentRoot, disabledDir string) (*Hub, error) {
	hub := New(contentRoot, disabledDir)

	for _, dir := range []struct {
		path    string
		enabled bool
	}{
		{contentRoot, true},
		{disabledDir, false},
	} {
		pkgs, err := s.scanDir(dir.path, dir.enabled)
		if err != nil {
			if os.IsNotExist(err) {
				// Directory doesn't exist yet, nothing installed
				continue
			}
			return nil, err
		}
		hub.Packages = append(hub.Packages, pkgs...)
	}

	hub.Sort()
	return hub, nil
}

// scanDir lists the package directories directly under dir
func (s *Scanner) scanDir(dir string, enabled bool) ([]Package, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var pkgs []Package
	for _, entry := range entries {
		// Skip hidden entries and staging dirs
		if entry.Name()[0] == '.' {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if !entry.IsDir() {
			info, err := os.Stat(path)
			if err != nil || !info.IsDir() {
				continue
			}
		}

		pkgs = append(pkgs, Package{
			Name:    entry.Name(),
			Path:    path,
			Enabled: enabled,
		})
	}

	return pkgs, nil
}
