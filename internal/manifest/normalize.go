// Package manifest repairs incorrectly nested mod archives using an optional
// layout manifest (*.fpt) shipped inside the archive.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	errs "github.com/samhoang/modhub/internal/errors"
)

// Ext is the manifest file extension
const Ext = ".fpt"

// Normalizer rewrites an extracted tree to match its manifest
type Normalizer struct {
	logger *log.Logger
}

// NewNormalizer creates a normalizer. A nil logger uses the default logger.
func NewNormalizer(logger *log.Logger) *Normalizer {
	if logger == nil {
		logger = log.Default()
	}
	return &Normalizer{logger: logger}
}

// Find returns the first manifest in depth-first lexical order, or "" if
// the tree has none.
func Find(root string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), Ext) {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return found, nil
}

type move struct {
	from string // absolute
	to   string // absolute
}

// Normalize reorganizes root according to its manifest. Without a manifest
// it does nothing. When a declared file cannot be found anywhere the tree is
// left as extracted and nil is returned.
func (n *Normalizer) Normalize(ctx context.Context, root string) error {
	manifestPath, err := Find(root)
	if err != nil {
		return errs.NewPathError(root, "find manifest", err)
	}
	if manifestPath == "" {
		return nil
	}

	f, err := os.Open(manifestPath)
	if err != nil {
		return errs.NewPathError(manifestPath, "open manifest", err)
	}
	entries, err := Parse(f)
	f.Close()
	if err != nil {
		return errs.NewPathError(manifestPath, "parse manifest", err)
	}

	manifestDir := filepath.Dir(manifestPath)
	moves, missing, err := n.plan(root, manifestPath, manifestDir, Files(entries))
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		n.logger.Warn("manifest lists files missing from archive, leaving layout as extracted",
			"manifest", manifestPath, "missing", missing)
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := applyMoves(root, moves); err != nil {
		return err
	}
	for _, m := range moves {
		pruneEmptyParents(filepath.Dir(m.from), root)
	}

	if err := os.Remove(manifestPath); err != nil {
		return errs.NewPathError(manifestPath, "remove manifest", err)
	}
	n.logger.Debug("normalized layout", "manifest", manifestPath, "moves", len(moves))

	rel, err := filepath.Rel(root, manifestDir)
	if err != nil {
		return err
	}
	switch depth := segments(rel); {
	case depth == 1:
		if err := promote(root, manifestDir); err != nil {
			return err
		}
	case depth > 1:
		n.logger.Warn("manifest nested too deep to promote", "manifest", manifestPath, "depth", depth)
	}
	return nil
}

func segments(rel string) int {
	if rel == "." || rel == "" {
		return 0
	}
	return len(strings.Split(filepath.ToSlash(rel), "/"))
}

// plan matches every file entry with a file in the tree by base name. A
// candidate sharing more trailing path segments with the entry wins; ties go
// to the lexically first path.
func (n *Normalizer) plan(root, manifestPath, manifestDir string, files []Entry) ([]move, []string, error) {
	byName := make(map[string][]string)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || p == manifestPath {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		byName[path.Base(rel)] = append(byName[path.Base(rel)], rel)
		return nil
	})
	if err != nil {
		return nil, nil, errs.NewPathError(root, "scan extracted tree", err)
	}

	dirRel, err := filepath.Rel(root, manifestDir)
	if err != nil {
		return nil, nil, err
	}
	dirRel = filepath.ToSlash(dirRel)

	used := make(map[string]bool)
	var (
		moves   []move
		missing []string
	)
	for _, e := range files {
		want := path.Join(dirRel, e.Path)

		candidates := byName[path.Base(e.Path)]
		best, bestScore := "", -1
		for _, c := range candidates {
			if used[c] {
				continue
			}
			score := sharedSuffix(c, e.Path)
			if c == want {
				score = 1 << 20
			}
			if score > bestScore {
				best, bestScore = c, score
			}
		}
		if best == "" {
			missing = append(missing, e.Path)
			continue
		}
		used[best] = true
		if best == want {
			continue
		}
		moves = append(moves, move{
			from: filepath.Join(root, filepath.FromSlash(best)),
			to:   filepath.Join(root, filepath.FromSlash(want)),
		})
	}
	return moves, missing, nil
}

// sharedSuffix counts trailing path segments a and b have in common
func sharedSuffix(a, b string) int {
	as := strings.Split(a, "/")
	bs := strings.Split(b, "/")
	n := 0
	for i, j := len(as)-1, len(bs)-1; i >= 0 && j >= 0 && as[i] == bs[j]; i, j = i-1, j-1 {
		n++
	}
	return n
}

// applyMoves stages every source under a scratch directory first so that a
// destination which is also another move's source is not clobbered. On error
// every entry is put back where it was before the scratch dir goes away.
func applyMoves(root string, moves []move) (err error) {
	if len(moves) == 0 {
		return nil
	}

	scratch, err := os.MkdirTemp(root, ".normalize-")
	if err != nil {
		return errs.NewPathError(root, "create scratch dir", err)
	}
	defer os.RemoveAll(scratch)

	var (
		staged    []string
		displaced = make(map[int]string)
		placed    int
	)
	defer func() {
		if err != nil {
			rollback(moves, staged, displaced, placed)
		}
	}()

	for i, m := range moves {
		p := filepath.Join(scratch, fmt.Sprintf("%d", i))
		if err := os.Rename(m.from, p); err != nil {
			return errs.NewPathError(m.from, "stage move", err)
		}
		staged = append(staged, p)
	}

	for i, m := range moves {
		if err := os.MkdirAll(filepath.Dir(m.to), 0755); err != nil {
			return errs.NewPathError(m.to, "create parent", err)
		}
		if _, err := os.Lstat(m.to); err == nil {
			d := filepath.Join(scratch, fmt.Sprintf("displaced-%d", i))
			if err := os.Rename(m.to, d); err != nil {
				return errs.NewPathError(m.to, "overwrite", err)
			}
			displaced[i] = d
		}
		if err := os.Rename(staged[i], m.to); err != nil {
			return errs.NewPathError(m.to, "move", err)
		}
		placed = i + 1
	}
	return nil
}

// rollback undoes a partial applyMoves, newest first
func rollback(moves []move, staged []string, displaced map[int]string, placed int) {
	for i := len(staged) - 1; i >= 0; i-- {
		m := moves[i]
		if i < placed {
			os.Rename(m.to, staged[i])
		}
		if d, ok := displaced[i]; ok {
			os.Rename(d, m.to)
		}
		os.MkdirAll(filepath.Dir(m.from), 0755)
		os.Rename(staged[i], m.from)
	}
}

// pruneEmptyParents removes dir and its ancestors while they are empty,
// stopping at root.
func pruneEmptyParents(dir, root string) {
	root = filepath.Clean(root)
	for dir = filepath.Clean(dir); dir != root && strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}

// promote lifts the contents of nested up into root. nested is removed only
// when it ends up empty.
func promote(root, nested string) error {
	entries, err := os.ReadDir(nested)
	if err != nil {
		return errs.NewPathError(nested, "read nested dir", err)
	}

	nestedName := filepath.Base(nested)
	var deferred string

	for _, e := range entries {
		from := filepath.Join(nested, e.Name())
		if e.Name() == nestedName {
			// same name as its parent, park it until the parent is gone
			deferred = filepath.Join(root, ".promote-"+nestedName)
			if err := os.Rename(from, deferred); err != nil {
				return errs.NewPathError(from, "promote", err)
			}
			continue
		}

		to := filepath.Join(root, e.Name())
		if err := os.RemoveAll(to); err != nil {
			return errs.NewPathError(to, "overwrite", err)
		}
		if err := os.Rename(from, to); err != nil {
			return errs.NewPathError(from, "promote", err)
		}
	}

	if err := os.Remove(nested); err != nil && !errors.Is(err, fs.ErrNotExist) {
		if deferred != "" {
			os.Rename(deferred, filepath.Join(nested, nestedName))
		}
		return nil
	}

	if deferred != "" {
		if err := os.Rename(deferred, nested); err != nil {
			return errs.NewPathError(deferred, "promote", err)
		}
	}
	return nil
}
