package filetree

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codewiki/internal/scanner"
)

func sampleTree() *Node {
	root := NewRoot()
	root.AddPath("src/")
	root.AddPath("src/app/main.go")
	root.AddPath("src/app/util.go")
	root.AddPath("docs/guide/intro.md")
	root.AddPath("README.md")
	return root
}

func TestBuildFromScan(t *testing.T) {
	base := filepath.FromSlash("/repo")
	infos := []scanner.PathInfo{
		{Path: filepath.Join(base, "src"), Name: "src", IsDir: true},
		{Path: filepath.Join(base, "src", "main.go"), Name: "main.go"},
		{Path: filepath.Join(base, "README.md"), Name: "README.md"},
	}
	tree := Build(base, infos)

	assert.Equal(t, 3, tree.Count())
	require.Contains(t, tree.Children, "src")
	assert.Equal(t, Directory, tree.Children["src"].Kind)
	assert.Equal(t, File, tree.Children["src"].Children["main.go"].Kind)
	assert.Equal(t, File, tree.Children["README.md"].Kind)
}

func TestBuildPromotesImplicitDirectories(t *testing.T) {
	base := filepath.FromSlash("/repo")
	// No explicit directory entry for "a".
	infos := []scanner.PathInfo{
		{Path: filepath.Join(base, "a", "b.go"), Name: "b.go"},
	}
	tree := Build(base, infos)
	require.Contains(t, tree.Children, "a")
	assert.Equal(t, Directory, tree.Children["a"].Kind)
}

func TestEncodeCompact(t *testing.T) {
	got := EncodeCompact(sampleTree())
	want := "/\n" +
		"docs/D\n" +
		"  guide/D\n" +
		"    intro.md/F\n" +
		"src/D\n" +
		"  app/D\n" +
		"    main.go/F\n" +
		"    util.go/F\n" +
		"README.md/F"
	assert.Equal(t, want, got)
}

func TestEncodeUnix(t *testing.T) {
	got := EncodeUnix(sampleTree())
	want := ".\n" +
		"├── docs\n" +
		"│   └── guide\n" +
		"│       └── intro.md\n" +
		"├── src\n" +
		"│   └── app\n" +
		"│       ├── main.go\n" +
		"│       └── util.go\n" +
		"└── README.md"
	assert.Equal(t, want, got)
}

func TestEncodePathListCollapsesChains(t *testing.T) {
	got := EncodePathList(sampleTree())
	want := "docs/guide/intro.md\n" +
		"src/app/\n" +
		"src/app/main.go\n" +
		"src/app/util.go\n" +
		"README.md"
	assert.Equal(t, want, got)
}

func TestPathListRoundTrip(t *testing.T) {
	tree := sampleTree()
	parsed := ParsePathList(EncodePathList(tree))
	// Collapsed single-child directories reappear, so the trees are equal.
	assert.True(t, tree.Equal(parsed))
}

func TestJSONRoundTrip(t *testing.T) {
	tree := sampleTree()
	encoded, err := EncodeJSON(tree)
	require.NoError(t, err)
	parsed, err := ParseJSON(encoded)
	require.NoError(t, err)
	assert.True(t, tree.Equal(parsed))
}

func TestParseJSONRejectsBadShapes(t *testing.T) {
	_, err := ParseJSON(`"F"`)
	require.Error(t, err)
	_, err = ParseJSON(`{"a": "X"}`)
	require.Error(t, err)
	_, err = ParseJSON(`{"a": 3}`)
	require.Error(t, err)
	_, err = ParseJSON(`not json`)
	require.Error(t, err)
}

func TestEncodeUnknownFormat(t *testing.T) {
	_, err := Encode(sampleTree(), Format("yaml"))
	require.Error(t, err)
}

func TestCount(t *testing.T) {
	assert.Equal(t, 0, NewRoot().Count())
	// docs, guide, intro.md, src, app, main.go, util.go, README.md
	assert.Equal(t, 8, sampleTree().Count())
}
