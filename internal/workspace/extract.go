package workspace

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// maxEntrySize caps a single extracted file
var maxEntrySize int64 = 256 << 20

// ErrEntryTooLarge is returned when a bundle entry exceeds maxEntrySize
var ErrEntryTooLarge = errors.New("bundle entry too large")

// Extract copies a report bundle into the workspace reports directory.
// The bundle may be a directory, a .tar.gz/.tgz archive, or a .zip archive.
// Returns the extracted file paths, sorted.
func (w *Workspace) Extract(bundle string) ([]string, error) {
	info, err := os.Stat(bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle: %w", err)
	}

	lower := strings.ToLower(bundle)
	switch {
	case info.IsDir():
		err = w.copyDir(bundle)
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		err = w.extractTarGz(bundle)
	case strings.HasSuffix(lower, ".zip"):
		err = w.extractZip(bundle)
	default:
		err = w.copyFile(bundle, filepath.Join(w.ReportsDir, filepath.Base(bundle)), info.Mode())
	}
	if err != nil {
		return nil, err
	}

	files, err := w.Files()
	if err != nil {
		return nil, err
	}
	w.logger.Info().Str("bundle", bundle).Int("files", len(files)).Msg("bundle extracted")
	return files, nil
}

// target resolves an archive entry name inside the reports directory
func (w *Workspace) target(name string) (string, error) {
	target := filepath.Join(w.ReportsDir, filepath.FromSlash(name))
	if !within(w.ReportsDir, target) || !within(w.root, target) {
		return "", fmt.Errorf("invalid file path in archive: %s", name)
	}
	return target, nil
}

func (w *Workspace) copyDir(src string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		dest, err := w.target(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return w.copyFile(p, dest, info.Mode())
	})
}

func (w *Workspace) copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	return writeEntry(dest, in, mode)
}

func (w *Workspace) extractTarGz(archive string) error {
	file, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("failed to open tar.gz: %w", err)
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tar read error: %w", err)
		}

		target, err := w.target(header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, 0640); err != nil {
				return err
			}
		default:
			w.logger.Warn().Str("entry", header.Name).Msg("ignoring unsupported archive entry type")
		}
	}
	return nil
}

func (w *Workspace) extractZip(archive string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		target, err := w.target(entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}
		if !entry.Mode().IsRegular() {
			w.logger.Warn().Str("entry", entry.Name).Msg("ignoring unsupported archive entry type")
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("failed to open zip entry %s: %w", entry.Name, err)
		}
		err = writeEntry(target, rc, 0640)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(dest string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0600)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	n, err := io.Copy(out, io.LimitReader(r, maxEntrySize+1))
	if err == nil && n > maxEntrySize {
		err = fmt.Errorf("%w: %s exceeds %d bytes", ErrEntryTooLarge, filepath.Base(dest), maxEntrySize)
	} else if err != nil {
		err = fmt.Errorf("failed to write file: %w", err)
	}
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return err
	}
	return out.Close()
}
