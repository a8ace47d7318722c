package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/samhoang/modhub/internal/config"
	errs "github.com/samhoang/modhub/internal/errors"
)

// Placement describes where a package was installed
type Placement struct {
	PackageName string `json:"package_name"`
	PackagePath string `json:"package_path"`
}

// Installer places extracted trees into the content root
type Installer struct {
	paths  *config.Paths
	locks  *keyedMutex
	logger *log.Logger
	now    func() time.Time
}

// NewInstaller creates a new installer
func NewInstaller(paths *config.Paths, logger *log.Logger) *Installer {
	if logger == nil {
		logger = log.Default()
	}
	return &Installer{
		paths:  paths,
		locks:  newKeyedMutex(),
		logger: logger,
		now:    time.Now,
	}
}

// ResolveName applies the naming rule to an extracted tree: a single
// top-level directory names the package and supplies its contents; anything
// else gets a generated mod_<unix millis> name and the whole tree.
func (i *Installer) ResolveName(extractedDir string) (name, contentDir string, err error) {
	entries, err := os.ReadDir(extractedDir)
	if err != nil {
		return "", "", errs.NewPathError(extractedDir, "read extracted tree", err)
	}
	if len(entries) == 0 {
		return "", "", errs.ErrNoFilesAfterExtraction
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return entries[0].Name(), filepath.Join(extractedDir, entries[0].Name()), nil
	}
	return fmt.Sprintf("mod_%d", i.now().UnixMilli()), extractedDir, nil
}

// Install copies an extracted tree into the content root, replacing any
// existing package of the same name.
func (i *Installer) Install(ctx context.Context, extractedDir string) (*Placement, error) {
	name, contentDir, err := i.ResolveName(extractedDir)
	if err != nil {
		return nil, err
	}
	return i.place(ctx, name, contentDir, false)
}

// InstallDir moves a local package directory into the content root. The
// directory's own name becomes the package name.
func (i *Installer) InstallDir(ctx context.Context, dir string) (*Placement, error) {
	dir = filepath.Clean(dir)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errs.NewPathError(dir, "install", err)
	}
	if !info.IsDir() {
		return nil, errs.NewPathError(dir, "install", fmt.Errorf("not a directory"))
	}
	return i.place(ctx, filepath.Base(dir), dir, true)
}

func (i *Installer) place(ctx context.Context, name, src string, move bool) (*Placement, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	unlock := i.locks.Lock(name)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := i.paths.EnsureDirs(); err != nil {
		return nil, err
	}

	dst := i.paths.PackagePath(name)
	if move && filepath.Clean(src) == filepath.Clean(dst) {
		return &Placement{PackageName: name, PackagePath: dst}, nil
	}

	var staged string
	if !move {
		// copy next to the destination first so the swap is a rename
		tmp, err := os.MkdirTemp(i.paths.ContentRoot, "."+name+".staging-")
		if err != nil {
			return nil, errs.NewPathError(i.paths.ContentRoot, "stage package", err)
		}
		if err := copyDir(src, tmp); err != nil {
			os.RemoveAll(tmp)
			return nil, errs.NewPathError(src, "copy package", err)
		}
		staged = tmp
	}

	for _, existing := range []string{dst, i.paths.DisabledPackagePath(name)} {
		if _, err := os.Lstat(existing); err != nil {
			continue
		}
		if err := os.RemoveAll(existing); err != nil {
			if staged != "" {
				os.RemoveAll(staged)
			}
			return nil, &errs.PlacementConflictError{Name: name, Path: existing, Err: err}
		}
		i.logger.Debug("replaced existing package", "name", name, "path", existing)
	}

	if move {
		if err := moveDir(src, dst); err != nil {
			return nil, errs.NewPathError(src, "move package", err)
		}
	} else if err := os.Rename(staged, dst); err != nil {
		os.RemoveAll(staged)
		return nil, errs.NewPathError(dst, "place package", err)
	}

	i.logger.Info("installed package", "name", name, "path", dst)
	return &Placement{PackageName: name, PackagePath: dst}, nil
}

// moveDir renames src to dst, copying when they sit on different devices
func moveDir(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return err
	}
	if err := copyDir(src, dst); err != nil {
		os.RemoveAll(dst)
		return err
	}
	return os.RemoveAll(src)
}

func copyDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
		} else if entry.Type().IsRegular() {
			if err := copyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return err
	}
	return dstFile.Close()
}

// keyedMutex serializes work per key. Entries are dropped once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock acquires the lock for key and returns its unlock func
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
