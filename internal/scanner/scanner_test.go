package scanner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func scannedNames(t *testing.T, root string) []string {
	t.Helper()
	s, err := New(root)
	require.NoError(t, err)
	infos, err := s.Scan(context.Background())
	require.NoError(t, err)

	var names []string
	for _, p := range infos {
		rel, err := filepath.Rel(root, p.Path)
		require.NoError(t, err)
		names = append(names, filepath.ToSlash(rel))
	}
	sort.Strings(names)
	return names
}

func TestScanBasic(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"main.go":        "package main",
		"pkg/util.go":    "package pkg",
		".git/config":    "ignored",
		".github/ci.yml": "ignored",
	})

	got := scannedNames(t, root)
	assert.Equal(t, []string{"main.go", "pkg", "pkg/util.go"}, got)
}

func TestScanGitignoreNegation(t *testing.T) {
	root := writeRepo(t, map[string]string{
		".gitignore": "*.log\n!keep.log\n",
		"a.log":      "x",
		"keep.log":   "x",
		"main.go":    "package main",
	})

	got := scannedNames(t, root)
	assert.Equal(t, []string{".gitignore", "keep.log", "main.go"}, got)
}

func TestScanGitignoreDirectory(t *testing.T) {
	root := writeRepo(t, map[string]string{
		".gitignore":             "node_modules/\n/dist\n",
		"node_modules/x/a.js":    "x",
		"src/node_modules/b.js":  "x",
		"dist/out.js":            "x",
		"src/dist/keep.js":       "x", // only /dist is anchored
		"src/index.js":           "x",
		"docs/node_modules.md":   "x", // file, dir-only pattern must not match
	})

	got := scannedNames(t, root)
	assert.Equal(t, []string{
		".gitignore",
		"docs",
		"docs/node_modules.md",
		"src",
		"src/dist",
		"src/dist/keep.js",
		"src/index.js",
	}, got)
}

func TestScanSkipsOversizedFiles(t *testing.T) {
	root := writeRepo(t, map[string]string{"small.txt": "ok"})
	big := bytes.Repeat([]byte("a"), MaxFileSize)
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.bin"), big, 0o644))
	almost := bytes.Repeat([]byte("a"), MaxFileSize-1)
	require.NoError(t, os.WriteFile(filepath.Join(root, "almost.bin"), almost, 0o644))

	got := scannedNames(t, root)
	assert.Equal(t, []string{"almost.bin", "small.txt"}, got)
}

func TestScanCanceled(t *testing.T) {
	root := writeRepo(t, map[string]string{"main.go": "package main"})
	s, err := New(root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Scan(ctx)
	require.Error(t, err)
}

func TestNewRejectsFiles(t *testing.T) {
	root := writeRepo(t, map[string]string{"f.txt": "x"})
	_, err := New(filepath.Join(root, "f.txt"))
	require.Error(t, err)
}

func TestGitignoreMatcher(t *testing.T) {
	cases := []struct {
		name     string
		patterns []string
		path     string
		isDir    bool
		want     bool
	}{
		{"star suffix", []string{"*.log"}, "deep/nested/x.log", false, true},
		{"case insensitive", []string{"*.LOG"}, "x.log", false, true},
		{"question mark", []string{"?.txt"}, "a.txt", false, true},
		{"question mark no slash", []string{"?.txt"}, "ab.txt", false, false},
		{"anchored", []string{"/build"}, "build", true, true},
		{"anchored deep", []string{"/build"}, "src/build", true, false},
		{"middle slash anchors", []string{"docs/api"}, "docs/api/x.md", false, true},
		{"middle slash anchors deep", []string{"docs/api"}, "x/docs/api", true, false},
		{"double star", []string{"a/**/b"}, "a/x/y/b", true, true},
		{"double star collapses", []string{"a/**/b"}, "a/b", true, true},
		{"dir only ignores children", []string{"vendor/"}, "vendor/pkg/a.go", false, true},
		{"dir only spares file", []string{"vendor/"}, "vendor", false, false},
		{"negation wins later", []string{"*.log", "!keep.log"}, "keep.log", false, false},
		{"negation order matters", []string{"!keep.log", "*.log"}, "keep.log", false, true},
		{"comment ignored", []string{"# *.log"}, "x.log", false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewGitignoreMatcher(tc.patterns)
			assert.Equal(t, tc.want, m.Match(tc.path, tc.isDir))
		})
	}
}

func TestSourceFiles(t *testing.T) {
	infos := []PathInfo{
		{Path: "/r/a", IsDir: true},
		{Path: "/r/a/f.go", Size: 3},
	}
	files := SourceFiles(infos)
	require.Len(t, files, 1)
	assert.Equal(t, "/r/a/f.go", files[0].Path)
}
