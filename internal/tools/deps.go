package tools

import (
	"context"
	"path/filepath"
	"sync"

	"codewiki/internal/deps"
	"codewiki/internal/llm"
	"codewiki/internal/scanner"
	"codewiki/internal/wikierr"
)

// DepsTool answers dependency queries over the working directory: the file
// import tree of one source file, or the call tree of one function. The
// index is built lazily on first use and reused for the tool's lifetime.
type DepsTool struct {
	workingDir string

	once     sync.Once
	buildErr error
	analyzer *deps.Analyzer
}

// NewDepsTool creates the dependency tool for dir.
func NewDepsTool(dir string) *DepsTool {
	return &DepsTool{workingDir: filepath.Clean(dir)}
}

func (t *DepsTool) Declarations() []llm.Tool {
	return []llm.Tool{
		{
			Name:        "file_dependency_tree",
			Description: "Show which repository files a source file imports, transitively, as a tree.",
			Params: map[string]llm.ToolParam{
				"path": {Type: "string", Description: "Relative path of the source file"},
			},
			Required: []string{"path"},
		},
		{
			Name:        "function_call_tree",
			Description: "Show the call tree of a function, e.g. 'pkg.Func' or 'module.func'.",
			Params: map[string]llm.ToolParam{
				"function": {Type: "string", Description: "Qualified function name"},
			},
			Required: []string{"function"},
		},
	}
}

// index builds the analyzer over every scanned source file, once.
func (t *DepsTool) index(ctx context.Context) (*deps.Analyzer, error) {
	t.once.Do(func() {
		sc, err := scanner.New(t.workingDir)
		if err != nil {
			t.buildErr = err
			return
		}
		infos, err := sc.Scan(ctx)
		if err != nil {
			t.buildErr = err
			return
		}
		files := scanner.SourceFiles(infos)
		paths := make([]string, 0, len(files))
		for _, f := range files {
			paths = append(paths, f.Path)
		}
		a := deps.NewAnalyzer(t.workingDir, sc.Ignores())
		if err := a.AnalyzeFiles(ctx, paths); err != nil {
			t.buildErr = err
			return
		}
		t.analyzer = a
	})
	return t.analyzer, t.buildErr
}

func (t *DepsTool) Execute(ctx context.Context, name, args string) (string, error) {
	a, err := t.index(ctx)
	if err != nil {
		return "", err
	}
	switch name {
	case "file_dependency_tree":
		var params struct {
			Path string `json:"path"`
		}
		if err := decodeArgs(args, &params); err != nil {
			return "", err
		}
		abs := filepath.Join(t.workingDir, filepath.FromSlash(params.Path))
		return deps.RenderTree(a.FileTree(abs, 0)), nil
	case "function_call_tree":
		var params struct {
			Function string `json:"function"`
		}
		if err := decodeArgs(args, &params); err != nil {
			return "", err
		}
		if _, ok := a.FunctionFile(params.Function); !ok {
			return "", wikierr.New(wikierr.KindNotFound, "function %q not found in the repository", params.Function)
		}
		return deps.RenderTree(a.FunctionTree(params.Function, 0)), nil
	}
	return "", wikierr.New(wikierr.KindValidation, "unsupported tool %q", name)
}
