package deps

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"codewiki/internal/logging"
	"codewiki/internal/scanner"
)

// SemanticAnalyzer owns the full parse for one language. It produces richer
// results than the regex fallback.
type SemanticAnalyzer interface {
	Extensions() []string
	Analyze(path string, content []byte) (imports []string, functions []FunctionInfo, err error)
}

// Analyzer indexes source files under a base path.
type Analyzer struct {
	base    string
	ignores *scanner.GitignoreMatcher

	mu             sync.RWMutex
	fileDeps       map[string]map[string]bool
	fileFunctions  map[string][]FunctionInfo
	functionToFile map[string]string

	semantic map[string]SemanticAnalyzer // keyed by extension
}

// NewAnalyzer creates an analyzer rooted at base, reusing the scanner's
// gitignore rules. The Go semantic analyzer is registered by default;
// everything else falls back to regex parsing.
func NewAnalyzer(base string, ignores *scanner.GitignoreMatcher) *Analyzer {
	a := &Analyzer{
		base:           base,
		ignores:        ignores,
		fileDeps:       map[string]map[string]bool{},
		fileFunctions:  map[string][]FunctionInfo{},
		functionToFile: map[string]string{},
		semantic:       map[string]SemanticAnalyzer{},
	}
	a.RegisterSemantic(&goSemanticAnalyzer{base: base})
	return a
}

// RegisterSemantic installs a semantic analyzer for its extensions.
func (a *Analyzer) RegisterSemantic(sa SemanticAnalyzer) {
	for _, ext := range sa.Extensions() {
		a.semantic[ext] = sa
	}
}

// AnalyzeFiles indexes the given source files. Ignored and unreadable files
// are skipped silently.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, files []string) error {
	timer := logging.StartTimer(logging.CategoryDeps, "AnalyzeFiles")
	defer timer.Stop()

	for _, path := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rel, err := filepath.Rel(a.base, path)
		if err == nil && a.ignores != nil && a.ignores.Match(rel, false) {
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			logging.DepsDebug("skipping unreadable file %s: %v", path, err)
			continue
		}
		a.analyzeOne(path, content)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	logging.Deps("indexed %d files, %d functions", len(a.fileFunctions), len(a.functionToFile))
	return nil
}

func (a *Analyzer) analyzeOne(path string, content []byte) {
	ext := strings.ToLower(filepath.Ext(path))

	var imports []string
	var functions []FunctionInfo
	var err error

	if sa, ok := a.semantic[ext]; ok {
		imports, functions, err = sa.Analyze(path, content)
		if err != nil {
			logging.DepsDebug("semantic parse failed for %s, using regex fallback: %v", path, err)
			imports, functions = regexParse(ext, path, content)
		}
	} else {
		imports, functions = regexParse(ext, path, content)
	}
	if len(functions) == 0 {
		// Tree-sitter backs function extraction for languages whose regex
		// parser found nothing.
		functions = treeSitterFunctions(ext, path, content)
	}

	resolved := resolveImports(a.base, path, imports)

	a.mu.Lock()
	defer a.mu.Unlock()
	deps := map[string]bool{}
	for _, r := range resolved {
		deps[r] = true
	}
	a.fileDeps[path] = deps
	a.fileFunctions[path] = functions
	for _, fn := range functions {
		a.functionToFile[fn.FullName] = path
	}
}

// FileDependencies returns the resolved dependencies of one file, sorted.
func (a *Analyzer) FileDependencies(path string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	deps := a.fileDeps[path]
	out := make([]string, 0, len(deps))
	for d := range deps {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Functions returns the functions found in one file.
func (a *Analyzer) Functions(path string) []FunctionInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.fileFunctions[path]
}

// FunctionFile returns the file defining fullName.
func (a *Analyzer) FunctionFile(fullName string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	path, ok := a.functionToFile[fullName]
	return path, ok
}

// FileTree builds the file-level dependency tree for root, depth-first with
// a per-branch visited set. Cycles are flagged, not descended.
func (a *Analyzer) FileTree(root string, maxDepth int) *TreeNode {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	visited := map[string]bool{}
	return a.fileTree(root, maxDepth, visited)
}

func (a *Analyzer) fileTree(path string, depth int, visited map[string]bool) *TreeNode {
	node := &TreeNode{Name: a.relName(path), Kind: NodeFile}
	if visited[path] {
		node.IsCyclic = true
		return node
	}
	if depth == 0 {
		return node
	}
	visited[path] = true
	defer delete(visited, path)

	for _, dep := range a.FileDependencies(path) {
		node.Children = append(node.Children, a.fileTree(dep, depth-1, visited))
	}
	return node
}

// FunctionTree builds the call tree of fullName. Call resolution order:
// same file, then direct file dependencies, then a global project scan.
func (a *Analyzer) FunctionTree(fullName string, maxDepth int) *TreeNode {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	visited := map[string]bool{}
	return a.functionTree(fullName, maxDepth, visited)
}

func (a *Analyzer) functionTree(fullName string, depth int, visited map[string]bool) *TreeNode {
	node := &TreeNode{Name: fullName, Kind: NodeFunction}
	if visited[fullName] {
		node.IsCyclic = true
		return node
	}
	if depth == 0 {
		return node
	}
	visited[fullName] = true
	defer delete(visited, fullName)

	fn, ok := a.lookupFunction(fullName)
	if !ok {
		return node
	}
	for _, call := range fn.Calls {
		target, found := a.resolveCall(fn.FilePath, call)
		if !found {
			continue
		}
		node.Children = append(node.Children, a.functionTree(target, depth-1, visited))
	}
	return node
}

func (a *Analyzer) lookupFunction(fullName string) (FunctionInfo, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	path, ok := a.functionToFile[fullName]
	if !ok {
		return FunctionInfo{}, false
	}
	for _, fn := range a.fileFunctions[path] {
		if fn.FullName == fullName {
			return fn, true
		}
	}
	return FunctionInfo{}, false
}

// resolveCall finds the definition a call site refers to.
func (a *Analyzer) resolveCall(fromFile, call string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	// Same file first.
	for _, fn := range a.fileFunctions[fromFile] {
		if fn.Name == call || fn.FullName == call {
			return fn.FullName, true
		}
	}
	// Then direct file dependencies.
	for dep := range a.fileDeps[fromFile] {
		for _, fn := range a.fileFunctions[dep] {
			if fn.Name == call || fn.FullName == call {
				return fn.FullName, true
			}
		}
	}
	// Finally the whole project.
	if _, ok := a.functionToFile[call]; ok {
		return call, true
	}
	for full := range a.functionToFile {
		if strings.HasSuffix(full, "."+call) {
			return full, true
		}
	}
	return "", false
}

func (a *Analyzer) relName(path string) string {
	rel, err := filepath.Rel(a.base, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
