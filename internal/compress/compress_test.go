package compress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"src/main.go", "go"},
		{"app/Main.PY", "python"},
		{"web/index.tsx", "typescript"},
		{"Dockerfile", "bash"},
		{"ci/Makefile", "bash"},
		{"Gemfile", "ruby"},
		{"notes.unknownext", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectLanguage(tc.path, nil), tc.path)
	}
}

func TestForFallsBackToGeneric(t *testing.T) {
	c := For("nosuchlang")
	got := c.Compress("a\n\n\nb\n")
	assert.Equal(t, "a\nb", got)
}

func TestCompressEmptyFile(t *testing.T) {
	assert.Equal(t, "", CompressFile("x.go", nil))
	assert.Equal(t, "", CompressFile("x.py", []byte("")))
}

func TestGoCompressor(t *testing.T) {
	src := `package demo

// Worker runs jobs.
type Worker struct {
	queue chan job
	limit int
}

const defaultLimit = 8

func (w *Worker) Run() error {
	for j := range w.queue {
		if err := j.do(); err != nil {
			return err
		}
	}
	return nil
}
`
	got := For("go").Compress(src)

	assert.Contains(t, got, "package demo")
	assert.Contains(t, got, "// Worker runs jobs.")
	assert.Contains(t, got, "type Worker struct {")
	assert.Contains(t, got, "queue chan job")
	assert.Contains(t, got, "func (w *Worker) Run() error { }")
	assert.Contains(t, got, "const defaultLimit")
	// Initializer and function body are gone.
	assert.NotContains(t, got, "= 8")
	assert.NotContains(t, got, "j.do()")
}

func TestGoCompressorKeepsImportBlock(t *testing.T) {
	src := "package demo\n\nimport (\n\t\"fmt\"\n\t\"os\"\n)\n"
	got := For("go").Compress(src)
	assert.Contains(t, got, "\"fmt\"")
	assert.Contains(t, got, "\"os\"")
}

func TestPythonCompressor(t *testing.T) {
	src := `import os
from typing import List

class Loader:
    """Reads config files."""

    def load(self, path: str) -> List[str]:
        with open(path) as f:
            return f.readlines()

x = compute()
`
	got := For("python").Compress(src)

	assert.Contains(t, got, "import os")
	assert.Contains(t, got, "from typing import List")
	assert.Contains(t, got, "class Loader:")
	assert.Contains(t, got, `"""Reads config files."""`)
	assert.Contains(t, got, "def load(self, path: str) -> List[str]:")
	// Each declaration gets a pass body at the next indent.
	assert.Contains(t, got, "    pass")
	assert.NotContains(t, got, "f.readlines()")
	assert.NotContains(t, got, "x = compute()")
}

func TestMarkdownCompressor(t *testing.T) {
	src := "# Title\n\nSome prose that should vanish.\n\n- first item with detail\n- [link](https://example.com)\n\n```go\ncode body\n```\n"
	got := For("markdown").Compress(src)

	assert.Contains(t, got, "# Title")
	assert.Contains(t, got, "- …")
	assert.Contains(t, got, "- [link](https://example.com)")
	assert.Contains(t, got, "```")
	assert.NotContains(t, got, "Some prose")
	assert.NotContains(t, got, "code body")
}

func TestJSONCompressorStripsValues(t *testing.T) {
	src := `{"name": "demo", "deps": ["a", "b", "c"], "nested": {"port": 8080}}`
	got := For("json").Compress(src)

	assert.Contains(t, got, `"name"`)
	assert.Contains(t, got, `"nested"`)
	assert.Contains(t, got, `"port"`)
	assert.NotContains(t, got, "demo")
	assert.NotContains(t, got, "8080")
	// Sequences keep a single exemplar element.
	assert.Contains(t, got, "\"deps\": [\n    null\n  ]")
}

func TestJSONCompressorFallsBackOnParseError(t *testing.T) {
	got := For("json").Compress("{not json\n\n}")
	assert.Equal(t, "{not json\n}", got)
}

func TestYAMLCompressorStripsValues(t *testing.T) {
	src := "name: demo\nitems:\n  - one\n  - two\nnested:\n  key: value\n"
	got := For("yaml").Compress(src)

	assert.Contains(t, got, "name:")
	assert.Contains(t, got, "nested:")
	assert.Contains(t, got, "key:")
	assert.NotContains(t, got, "demo")
	assert.NotContains(t, got, "two")
}

func TestMarkupCompressorKeepsElementSkeleton(t *testing.T) {
	src := `<config version="2"><server host="x">text content</server></config>`
	got := For("xml").Compress(src)

	assert.Contains(t, got, `<config version="">`)
	assert.Contains(t, got, `<server host="">`)
	assert.Contains(t, got, "</config>")
	assert.NotContains(t, got, "text content")
	assert.NotContains(t, got, `"2"`)
}

func TestCompressFileRoutesByExtension(t *testing.T) {
	src := "package p\n\nfunc f() {\n\tdoWork()\n}\n"
	got := CompressFile("internal/p/p.go", []byte(src))
	require.Contains(t, got, "func f() { }")
	assert.NotContains(t, got, "doWork")
}
