// Package scanner produces a traversable model of a repository on disk.
// The scan honors the root .gitignore, skips dot-directories, and drops
// files of one mebibyte or larger.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"codewiki/internal/logging"
	"codewiki/internal/wikierr"
)

// MaxFileSize is the strict upper bound on scanned file size. Files whose
// size is greater than or equal to this are never returned.
const MaxFileSize = 1 << 20

// PathInfo describes one scanned entry. Directories carry Size 0.
type PathInfo struct {
	Path  string // absolute path
	Name  string // base name
	IsDir bool
	Size  int64
}

// Scanner walks a repository root.
type Scanner struct {
	root    string
	ignores *GitignoreMatcher
}

// New creates a scanner for root, loading the root .gitignore.
func New(root string) (*Scanner, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "repository path %s", root)
	}
	if !info.IsDir() {
		return nil, wikierr.New(wikierr.KindValidation, "repository path %s is not a directory", root)
	}
	ignores, err := LoadGitignore(root)
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "loading .gitignore under %s", root)
	}
	return &Scanner{root: root, ignores: ignores}, nil
}

// Ignores exposes the compiled gitignore rules so other components (the
// dependency analyzer) can reuse them without re-parsing.
func (s *Scanner) Ignores() *GitignoreMatcher { return s.ignores }

// Root returns the scan root.
func (s *Scanner) Root() string { return s.root }

// Scan returns the flat PathInfo list for the repository. Rules, in order of
// precedence with short-circuit on first match:
//  1. dot-directories are skipped and not descended into
//  2. files >= 1 MiB are skipped
//  3. .gitignore patterns are applied
func (s *Scanner) Scan(ctx context.Context) ([]PathInfo, error) {
	timer := logging.StartTimer(logging.CategoryScanner, "Scan")
	defer timer.Stop()

	var out []PathInfo
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return err
		}
		if path == s.root {
			return nil
		}

		name := info.Name()
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return relErr
		}

		if info.IsDir() {
			if strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if s.ignores.Match(rel, true) {
				return filepath.SkipDir
			}
			out = append(out, PathInfo{Path: path, Name: name, IsDir: true})
			return nil
		}

		if info.Size() >= MaxFileSize {
			logging.ScannerDebug("skipping oversized file %s (%d bytes)", rel, info.Size())
			return nil
		}
		if s.ignores.Match(rel, false) {
			return nil
		}

		out = append(out, PathInfo{Path: path, Name: name, Size: info.Size()})
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, wikierr.Wrap(wikierr.KindCanceled, err, "scan canceled")
		}
		return nil, wikierr.Wrap(wikierr.KindIO, err, "walking %s", s.root)
	}

	logging.Scanner("scanned %s: %d entries", s.root, len(out))
	return out, nil
}

// SourceFiles returns only non-directory entries from a scan.
func SourceFiles(infos []PathInfo) []PathInfo {
	files := make([]PathInfo, 0, len(infos))
	for _, p := range infos {
		if !p.IsDir {
			files = append(files, p)
		}
	}
	return files
}
