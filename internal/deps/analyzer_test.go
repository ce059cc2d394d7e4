package deps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func analyzeAll(t *testing.T, root string, names ...string) *Analyzer {
	t.Helper()
	a := NewAnalyzer(root, nil)
	files := make([]string, 0, len(names))
	for _, n := range names {
		files = append(files, filepath.Join(root, filepath.FromSlash(n)))
	}
	require.NoError(t, a.AnalyzeFiles(context.Background(), files))
	return a
}

func TestPythonFileDependencies(t *testing.T) {
	root := writeProject(t, map[string]string{
		"app.py":   "from util import helper\n\ndef main():\n    helper()\n",
		"util.py":  "def helper():\n    return 1\n",
		"other.py": "x = 1\n",
	})
	a := analyzeAll(t, root, "app.py", "util.py", "other.py")

	deps := a.FileDependencies(filepath.Join(root, "app.py"))
	require.Len(t, deps, 1)
	assert.Equal(t, filepath.Join(root, "util.py"), deps[0])
	assert.Empty(t, a.FileDependencies(filepath.Join(root, "util.py")))
}

func TestPythonRelativeImport(t *testing.T) {
	root := writeProject(t, map[string]string{
		"pkg/a.py": "from .b import thing\n",
		"pkg/b.py": "def thing():\n    pass\n",
	})
	a := analyzeAll(t, root, "pkg/a.py", "pkg/b.py")

	deps := a.FileDependencies(filepath.Join(root, "pkg", "a.py"))
	require.Len(t, deps, 1)
	assert.Equal(t, filepath.Join(root, "pkg", "b.py"), deps[0])
}

func TestJSRequireAndIndexResolution(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/main.js":      "const lib = require('./lib')\nlib.run()\n",
		"src/lib/index.js": "function run() { return 1 }\nmodule.exports = { run }\n",
	})
	a := analyzeAll(t, root, "src/main.js", "src/lib/index.js")

	deps := a.FileDependencies(filepath.Join(root, "src", "main.js"))
	require.Len(t, deps, 1)
	assert.Equal(t, filepath.Join(root, "src", "lib", "index.js"), deps[0])
}

func TestThirdPartyImportsDropped(t *testing.T) {
	root := writeProject(t, map[string]string{
		"app.py": "import os\nimport requests\nfrom util import x\n",
		"util.py": "x = 1\n",
	})
	a := analyzeAll(t, root, "app.py", "util.py")

	deps := a.FileDependencies(filepath.Join(root, "app.py"))
	require.Len(t, deps, 1)
	assert.Equal(t, filepath.Join(root, "util.py"), deps[0])
}

func TestFunctionExtraction(t *testing.T) {
	root := writeProject(t, map[string]string{
		"calc.py": "def add(a, b):\n    return a + b\n\ndef total(xs):\n    s = 0\n    for x in xs:\n        s = add(s, x)\n    return s\n",
	})
	a := analyzeAll(t, root, "calc.py")

	path := filepath.Join(root, "calc.py")
	fns := a.Functions(path)
	require.Len(t, fns, 2)
	assert.Equal(t, "add", fns[0].Name)
	assert.Equal(t, "calc.add", fns[0].FullName)
	assert.Equal(t, 1, fns[0].LineNumber)
	assert.Equal(t, "total", fns[1].Name)
	assert.Contains(t, fns[1].Calls, "add")

	got, ok := a.FunctionFile("calc.total")
	require.True(t, ok)
	assert.Equal(t, path, got)
}

func TestFunctionTreeResolvesAcrossFiles(t *testing.T) {
	root := writeProject(t, map[string]string{
		"app.py":  "from util import helper\n\ndef main():\n    helper()\n",
		"util.py": "def helper():\n    leaf()\n\ndef leaf():\n    return 1\n",
	})
	a := analyzeAll(t, root, "app.py", "util.py")

	tree := a.FunctionTree("app.main", 0)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, "util.helper", tree.Children[0].Name)
	require.Len(t, tree.Children[0].Children, 1)
	assert.Equal(t, "util.leaf", tree.Children[0].Children[0].Name)
}

func TestFunctionTreeFlagsCycles(t *testing.T) {
	root := writeProject(t, map[string]string{
		"m.py": "def ping():\n    pong()\n\ndef pong():\n    ping()\n",
	})
	a := analyzeAll(t, root, "m.py")

	tree := a.FunctionTree("m.ping", 0)
	require.Len(t, tree.Children, 1)
	pong := tree.Children[0]
	assert.Equal(t, "m.pong", pong.Name)
	require.Len(t, pong.Children, 1)
	assert.Equal(t, "m.ping", pong.Children[0].Name)
	assert.True(t, pong.Children[0].IsCyclic)
	assert.Empty(t, pong.Children[0].Children)
}

func TestFileTreeDepthLimit(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.py": "from b import x\n",
		"b.py": "from c import y\n",
		"c.py": "y = 1\n",
	})
	a := analyzeAll(t, root, "a.py", "b.py", "c.py")

	tree := a.FileTree(filepath.Join(root, "a.py"), 1)
	assert.Equal(t, "a.py", tree.Name)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, "b.py", tree.Children[0].Name)
	assert.Empty(t, tree.Children[0].Children)
}

func TestGoSemanticAnalyzer(t *testing.T) {
	root := writeProject(t, map[string]string{
		"go.mod":         "module example.com/demo\n\ngo 1.24\n",
		"main.go":        "package main\n\nimport \"example.com/demo/pkg\"\n\nfunc main() {\n\tpkg.Run()\n}\n",
		"pkg/runner.go":  "package pkg\n\nfunc Run() {\n\thelp()\n}\n\nfunc help() {}\n",
	})
	a := analyzeAll(t, root, "main.go", "pkg/runner.go")

	fns := a.Functions(filepath.Join(root, "pkg", "runner.go"))
	names := make([]string, 0, len(fns))
	for _, fn := range fns {
		names = append(names, fn.Name)
	}
	assert.Contains(t, names, "Run")
	assert.Contains(t, names, "help")
}

func TestRenderTree(t *testing.T) {
	root := &TreeNode{Name: "a.py", Kind: NodeFile, Children: []*TreeNode{
		{Name: "b.py", Kind: NodeFile},
		{Name: "c.py", Kind: NodeFile, Children: []*TreeNode{
			{Name: "a.py", Kind: NodeFile, IsCyclic: true},
		}},
	}}
	got := RenderTree(root)
	want := "a.py\n" +
		"├── b.py\n" +
		"└── c.py\n" +
		"    └── a.py (cycle)\n"
	assert.Equal(t, want, got)
}

func TestRenderDOT(t *testing.T) {
	root := &TreeNode{Name: "f", Kind: NodeFunction, Children: []*TreeNode{
		{Name: "g", Kind: NodeFunction, IsCyclic: true},
	}}
	got := RenderDOT(root)
	assert.True(t, strings.HasPrefix(got, "digraph dependencies {"))
	assert.Contains(t, got, "n0 -> n1;")
	assert.Contains(t, got, "salmon")
	assert.Contains(t, got, "lightgreen")
}
