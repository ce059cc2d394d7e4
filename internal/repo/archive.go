package repo

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"

	"codewiki/internal/logging"
	"codewiki/internal/wiki"
	"codewiki/internal/wikierr"
)

// ArchiveMaterializer extracts an uploaded archive into the repository's
// local path. Supported formats: .zip, .tar, .tar.gz/.tgz/.gz, .tar.br/.br.
// A single top-level directory, common in provider-generated downloads, is
// flattened away.
type ArchiveMaterializer struct {
	ArchivePath string
}

func (m *ArchiveMaterializer) Materialize(ctx context.Context, repo *wiki.Repository) error {
	timer := logging.StartTimer(logging.CategoryBoot, "ArchiveMaterialize")
	defer timer.Stop()

	if err := os.MkdirAll(repo.LocalPath, 0o755); err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "create extraction directory")
	}

	lower := strings.ToLower(m.ArchivePath)
	var err error
	switch {
	case strings.HasSuffix(lower, ".zip"):
		err = extractZip(m.ArchivePath, repo.LocalPath)
	case strings.HasSuffix(lower, ".tar"):
		err = withArchiveReader(m.ArchivePath, repo.LocalPath, func(r io.Reader) io.Reader { return r })
	case strings.HasSuffix(lower, ".gz") || strings.HasSuffix(lower, ".tgz"):
		err = withArchiveReader(m.ArchivePath, repo.LocalPath, nil)
	case strings.HasSuffix(lower, ".br"):
		err = withArchiveReader(m.ArchivePath, repo.LocalPath, func(r io.Reader) io.Reader {
			return brotli.NewReader(r)
		})
	default:
		return wikierr.New(wikierr.KindValidation, "unsupported archive format: %s", filepath.Base(m.ArchivePath))
	}
	if err != nil {
		os.RemoveAll(repo.LocalPath)
		return err
	}
	if err := flattenSingleDir(repo.LocalPath); err != nil {
		return err
	}
	logging.Boot("extracted %s into %s", filepath.Base(m.ArchivePath), repo.LocalPath)
	return nil
}

// withArchiveReader opens the archive, optionally wraps the stream in a
// decompressor, and untars it. A nil wrap means gzip.
func withArchiveReader(archivePath, dest string, wrap func(io.Reader) io.Reader) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "open archive")
	}
	defer f.Close()

	var stream io.Reader = f
	if wrap == nil {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return wikierr.Wrap(wikierr.KindIO, err, "open gzip stream")
		}
		defer gz.Close()
		stream = gz
	} else {
		stream = wrap(f)
	}
	return extractTar(stream, dest)
}

func extractTar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return wikierr.Wrap(wikierr.KindIO, err, "read tar entry")
		}
		target, err := securePath(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return wikierr.Wrap(wikierr.KindIO, err, "create directory %s", hdr.Name)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		}
	}
}

func extractZip(archivePath, dest string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "open zip archive")
	}
	defer zr.Close()

	for _, entry := range zr.File {
		target, err := securePath(dest, entry.Name)
		if err != nil {
			return err
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return wikierr.Wrap(wikierr.KindIO, err, "create directory %s", entry.Name)
			}
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return wikierr.Wrap(wikierr.KindIO, err, "open zip entry %s", entry.Name)
		}
		err = writeEntry(target, rc, entry.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// securePath rejects entries that would escape the destination.
func securePath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return "", wikierr.New(wikierr.KindValidation, "archive entry %q escapes extraction directory", name)
	}
	return target, nil
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "create parent directory")
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0o600)
	if err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "create file %s", target)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "write file %s", target)
	}
	return nil
}

// flattenSingleDir moves the contents of a lone top-level directory up one
// level, the shape produced by GitHub/Gitee archive downloads.
func flattenSingleDir(dest string) error {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "read extraction directory")
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}
	inner := filepath.Join(dest, entries[0].Name())
	children, err := os.ReadDir(inner)
	if err != nil {
		return wikierr.Wrap(wikierr.KindIO, err, "read nested directory")
	}
	for _, child := range children {
		from := filepath.Join(inner, child.Name())
		to := filepath.Join(dest, child.Name())
		if err := os.Rename(from, to); err != nil {
			return wikierr.Wrap(wikierr.KindIO, err, "flatten %s", child.Name())
		}
	}
	return os.Remove(inner)
}
