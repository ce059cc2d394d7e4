package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codewiki/internal/config"
	"codewiki/internal/docctx"
	"codewiki/internal/llm"
)

func newRepoDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "util.go"), []byte("package src\n"), 0o644))
	return dir
}

func TestFileToolReadRecordsContext(t *testing.T) {
	tool := NewFileTool(newRepoDir(t))
	dc := docctx.New()
	ctx := docctx.Attach(context.Background(), dc)

	out, err := tool.Execute(ctx, "read_file", `{"path":"main.go"}`)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", out)
	assert.Equal(t, []string{"main.go"}, dc.Files())
}

func TestFileToolRejectsEscape(t *testing.T) {
	tool := NewFileTool(newRepoDir(t))
	for _, path := range []string{"../secret", "../../etc/passwd", "src/../../x"} {
		_, err := tool.Execute(context.Background(), "read_file", `{"path":"`+path+`"}`)
		assert.Error(t, err, "path %q must be rejected", path)
	}
}

func TestFileToolList(t *testing.T) {
	tool := NewFileTool(newRepoDir(t))
	out, err := tool.Execute(context.Background(), "list_files", `{"path":""}`)
	require.NoError(t, err)

	var parsed struct {
		Entries []string `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Contains(t, parsed.Entries, "main.go")
	assert.Contains(t, parsed.Entries, "src/")
}

func TestFileToolSearch(t *testing.T) {
	tool := NewFileTool(newRepoDir(t))
	out, err := tool.Execute(context.Background(), "search_files", `{"keyword":"util"}`)
	require.NoError(t, err)

	var parsed struct {
		Matches []string `json:"matches"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, []string{"src/util.go"}, parsed.Matches)
}

func TestFileToolCompressesOversizedReads(t *testing.T) {
	dir := newRepoDir(t)
	var sb strings.Builder
	sb.WriteString("package big\n\n")
	for i := 0; sb.Len() < maxReadBytes+1024; i++ {
		fmt.Fprintf(&sb, "func f%d() {\n\tdoWork%d()\n}\n\n", i, i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.go"), []byte(sb.String()), 0o644))

	tool := NewFileTool(dir)
	out, err := tool.Execute(context.Background(), "read_file", `{"path":"big.go"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "package big")
	assert.Contains(t, out, "func f0() { }")
	assert.NotContains(t, out, "doWork0()")
}

func TestDepsTool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"),
		[]byte("from util import helper\n\ndef main():\n    helper()\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.py"),
		[]byte("def helper():\n    return 1\n"), 0o644))

	tool := NewDepsTool(dir)
	ctx := context.Background()

	out, err := tool.Execute(ctx, "file_dependency_tree", `{"path":"app.py"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "app.py")
	assert.Contains(t, out, "util.py")

	out, err = tool.Execute(ctx, "function_call_tree", `{"function":"app.main"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "app.main")
	assert.Contains(t, out, "util.helper")

	_, err = tool.Execute(ctx, "function_call_tree", `{"function":"no.such"}`)
	require.Error(t, err)
}

func TestRagToolDisabledPayload(t *testing.T) {
	tool := NewRagTool(config.Mem0Config{})
	out, err := tool.Execute(context.Background(), "rag_search", `{"query":"anything"}`)
	require.NoError(t, err)

	var parsed struct {
		Results []interface{} `json:"results"`
		Error   string        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Empty(t, parsed.Results)
	assert.Contains(t, parsed.Error, "not enabled")
}

func TestRegistryDispatch(t *testing.T) {
	registry := NewRegistry(NewFileTool(newRepoDir(t)), NewRagTool(config.Mem0Config{}))

	decls := registry.Declarations()
	names := map[string]bool{}
	for _, d := range decls {
		names[d.Name] = true
	}
	assert.True(t, names["read_file"])
	assert.True(t, names["rag_search"])

	out := registry.Dispatch(context.Background(), llm.ToolInfo{Name: "read_file", Args: `{"path":"main.go"}`})
	assert.Equal(t, "package main\n", out)

	out = registry.Dispatch(context.Background(), llm.ToolInfo{Name: "no_such_tool"})
	assert.Contains(t, out, "unknown tool")
}

func TestIssueSearchURLs(t *testing.T) {
	gh := NewGithubTool("tok", "acme", "widget")
	assert.Contains(t, gh.searchURL("panic", 5), "api.github.com/search/issues")
	assert.Contains(t, gh.searchURL("panic", 5), "repo%3Aacme%2Fwidget")

	ge := NewGiteeTool("tok", "acme", "widget")
	assert.Contains(t, ge.searchURL("panic", 5), "gitee.com/api/v5/search/issues")
	assert.Contains(t, ge.searchURL("panic", 5), "access_token=tok")
	assert.Contains(t, ge.commentsURL(12, 5), "/issues/12/comments")
}
