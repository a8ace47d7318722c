package hub

import (
	"fmt"
	"os"
	"strings"

	"github.com/samhoang/modhub/internal/config"
	errs "github.com/samhoang/modhub/internal/errors"
)

// Store manages the enabled and disabled package sets on disk
type Store struct {
	paths   *config.Paths
	scanner *Scanner
}

// NewStore creates a store over the resolved paths
func NewStore(paths *config.Paths) *Store {
	return &Store{paths: paths, scanner: NewScanner()}
}

// Paths returns the resolved paths
func (s *Store) Paths() *config.Paths {
	return s.paths
}

// Scan returns a snapshot of all packages
func (s *Store) Scan() (*Hub, error) {
	return s.scanner.Scan(s.paths.ContentRoot, s.paths.DisabledDir)
}

// List returns all packages sorted by name
func (s *Store) List() ([]Package, error) {
	h, err := s.Scan()
	if err != nil {
		return nil, err
	}
	return h.Packages, nil
}

// Enabled returns the packages under the content root
func (s *Store) Enabled() ([]Package, error) {
	h, err := s.Scan()
	if err != nil {
		return nil, err
	}
	return h.Enabled(), nil
}

// Disabled returns the packages under the disabled directory
func (s *Store) Disabled() ([]Package, error) {
	h, err := s.Scan()
	if err != nil {
		return nil, err
	}
	return h.Disabled(), nil
}

// Get returns one package by name
func (s *Store) Get(name string) (*Package, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if isDir(s.paths.PackagePath(name)) {
		return &Package{Name: name, Path: s.paths.PackagePath(name), Enabled: true}, nil
	}
	if isDir(s.paths.DisabledPackagePath(name)) {
		return &Package{Name: name, Path: s.paths.DisabledPackagePath(name), Enabled: false}, nil
	}
	return nil, fmt.Errorf("%w: %s", errs.ErrPackageNotFound, name)
}

// Enable moves a disabled package back under the content root
func (s *Store) Enable(name string) (*Package, error) {
	return s.toggle(name, true)
}

// Disable moves an enabled package to the disabled directory
func (s *Store) Disable(name string) (*Package, error) {
	return s.toggle(name, false)
}

func (s *Store) toggle(name string, enable bool) (*Package, error) {
	pkg, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	if pkg.Enabled == enable {
		return pkg, nil
	}

	src, dst := s.paths.DisabledPackagePath(name), s.paths.PackagePath(name)
	if !enable {
		src, dst = dst, src
	}

	if _, err := os.Lstat(dst); err == nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrPackageExists, dst)
	}
	if err := s.paths.EnsureDirs(); err != nil {
		return nil, err
	}
	if err := os.Rename(src, dst); err != nil {
		return nil, errs.NewPathError(src, "move package", err)
	}

	return &Package{Name: name, Path: dst, Enabled: enable}, nil
}

// Remove deletes a package from whichever set holds it
func (s *Store) Remove(name string) error {
	pkg, err := s.Get(name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(pkg.Path); err != nil {
		return errs.NewPathError(pkg.Path, "remove package", err)
	}
	return nil
}

// ValidateName rejects names that would escape the package directories
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid package name %q", name)
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
