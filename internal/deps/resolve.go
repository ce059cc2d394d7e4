package deps

import (
	"os"
	"path/filepath"
	"strings"
)

// projectMarkers identify a project root when climbing from a source file.
var projectMarkers = []string{"go.mod", "pyproject.toml", "package.json", "Cargo.toml", "setup.py"}

// sourceExtensions tried when an import names a module rather than a file.
var sourceExtensions = []string{".go", ".py", ".js", ".jsx", ".ts", ".tsx", ".rs", ".java", ".c", ".h", ".cpp", ".hpp"}

// resolveImports maps import strings to files on disk. Relative imports are
// resolved against the importing file's directory; bare module paths against
// the project root. Imports that resolve to nothing (stdlib, third-party)
// are dropped.
func resolveImports(base, fromFile string, imports []string) []string {
	dir := filepath.Dir(fromFile)
	root := projectRoot(dir, base)

	var resolved []string
	for _, imp := range imports {
		if imp == "" {
			continue
		}
		if path, ok := resolveOne(dir, root, imp); ok {
			resolved = append(resolved, path)
		}
	}
	return resolved
}

func resolveOne(dir, root, imp string) (string, bool) {
	// Relative: ./foo, ../foo, or python-style leading dots.
	if strings.HasPrefix(imp, "./") || strings.HasPrefix(imp, "../") {
		return probe(filepath.Join(dir, filepath.FromSlash(imp)))
	}
	if strings.HasPrefix(imp, ".") {
		up := 0
		for up < len(imp) && imp[up] == '.' {
			up++
		}
		target := dir
		for i := 1; i < up; i++ {
			target = filepath.Dir(target)
		}
		rest := strings.ReplaceAll(imp[up:], ".", string(filepath.Separator))
		return probe(filepath.Join(target, rest))
	}

	// Dotted module path (python, java) or slash path (go, js).
	candidate := strings.ReplaceAll(imp, ".", string(filepath.Separator))
	if strings.Contains(imp, "/") {
		candidate = filepath.FromSlash(imp)
	}
	if path, ok := probe(filepath.Join(dir, candidate)); ok {
		return path, true
	}
	return probe(filepath.Join(root, candidate))
}

// probe checks whether target names a source file directly, with a known
// extension appended, or as a package directory (index/init file).
func probe(target string) (string, bool) {
	if fi, err := os.Stat(target); err == nil && !fi.IsDir() {
		return target, true
	}
	for _, ext := range sourceExtensions {
		if fi, err := os.Stat(target + ext); err == nil && !fi.IsDir() {
			return target + ext, true
		}
	}
	for _, entry := range []string{"__init__.py", "index.js", "index.ts", "mod.rs"} {
		p := filepath.Join(target, entry)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, true
		}
	}
	return "", false
}

// projectRoot climbs from dir looking for a project marker, stopping at
// base. Without a marker, base is the root.
func projectRoot(dir, base string) string {
	for {
		for _, marker := range projectMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		if dir == base || dir == filepath.Dir(dir) {
			return base
		}
		dir = filepath.Dir(dir)
	}
}
