package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

func extractNative(ctx context.Context, family Family, archivePath, targetDir string) error {
	switch family {
	case Zip:
		return extractZip(ctx, archivePath, targetDir)
	case Tar, TarGz, TarXz:
		f, err := os.Open(archivePath)
		if err != nil {
			return err
		}
		defer f.Close()

		var r io.Reader = f
		switch family {
		case TarGz:
			gzr, err := gzip.NewReader(f)
			if err != nil {
				return err
			}
			defer gzr.Close()
			r = gzr
		case TarXz:
			xzr, err := xz.NewReader(f)
			if err != nil {
				return err
			}
			r = xzr
		}
		return extractTar(ctx, r, targetDir)
	}
	return fmt.Errorf("native extraction does not support %q archives", family)
}

// safeJoin resolves name under root and rejects entries escaping it
func safeJoin(root, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	target := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal path in archive: %s", name)
	}
	return target, nil
}

func extractTar(ctx context.Context, r io.Reader, destPath string) error {
	tr := tar.NewReader(r)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		target, err := safeJoin(destPath, header.Name)
		if err != nil {
			return err
		}
		if target == destPath {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(header.Mode)); err != nil {
				return err
			}
		}
	}

	return nil
}

func extractZip(ctx context.Context, zipPath, destPath string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, err := safeJoin(destPath, f.Name)
		if err != nil {
			return err
		}
		if target == destPath {
			continue
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = writeFile(target, rc, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	if mode.Perm() == 0 {
		mode = 0644
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
