package outparse

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestExtractPrimaryTag(t *testing.T) {
	resp := "noise before <readme>\n# Project\nhello\n</readme> noise after"
	assert.Equal(t, "# Project\nhello", Extract(resp, "readme"))
}

func TestExtractTagCaseInsensitive(t *testing.T) {
	resp := "<README>content</README>"
	assert.Equal(t, "content", Extract(resp, "readme"))
}

func TestExtractFencedFallback(t *testing.T) {
	resp := "Here you go:\n```json\n{\"a\": 1}\n```\ndone"
	assert.Equal(t, `{"a": 1}`, Extract(resp, "response_file"))

	resp = "```markdown\n# Title\n```"
	assert.Equal(t, "# Title", Extract(resp, "blog"))
}

func TestExtractRawFallback(t *testing.T) {
	assert.Equal(t, "just plain text", Extract("  just plain text \n", "readme"))
}

func TestExtractTagWinsOverFence(t *testing.T) {
	resp := "```json\nwrong\n```\n<blog>right</blog>"
	assert.Equal(t, "right", Extract(resp, "blog"))
}

func TestExtractJSONPrefersJSONFence(t *testing.T) {
	resp := "<response_file>\n```json\n{\"files\": []}\n```\n</response_file>"
	assert.Equal(t, `{"files": []}`, ExtractJSON(resp, "response_file"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		resp string
		want string
	}{
		{"tagged", "<classify>classifyName: Applications</classify>", "Applications"},
		{"bare", "classifyName: CLITools", "CLITools"},
		{"case insensitive value", "<classify>classifyName: frameworks</classify>", "Frameworks"},
		{"bare value only", "Libraries", "Libraries"},
		{"unknown value", "classifyName: NotAThing", ""},
		{"empty", "", ""},
		{"prose", "this repository is probably a web app", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.resp))
		})
	}
}

func TestParseMiniMap(t *testing.T) {
	resp := `<minimap>
# Core: src/core
## Engine: src/core/engine.go
## Utils
# Docs: docs/readme.md
</minimap>`

	got := ParseMiniMap(resp)
	want := &MiniMapNode{
		Title: "root",
		Nodes: []*MiniMapNode{
			{
				Title: "Core",
				URL:   "src/core",
				Nodes: []*MiniMapNode{
					{Title: "Engine", URL: "src/core/engine.go"},
					{Title: "Utils"},
				},
			},
			{Title: "Docs", URL: "docs/readme.md"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("minimap mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMiniMapLastColonWins(t *testing.T) {
	got := ParseMiniMap("# API: Reference: api/v2")
	assert.Equal(t, "API: Reference", got.Nodes[0].Title)
	assert.Equal(t, "api/v2", got.Nodes[0].URL)
}

func TestParseMiniMapSkipsProse(t *testing.T) {
	got := ParseMiniMap("intro text\n# Only\nmore prose\n")
	assert.Len(t, got.Nodes, 1)
	assert.Equal(t, "Only", got.Nodes[0].Title)
}

func TestParseMiniMapEmpty(t *testing.T) {
	got := ParseMiniMap("")
	assert.Empty(t, got.Nodes)
}

func TestParseMiniMapNoSkippedSiblings(t *testing.T) {
	// Three siblings after a nested child must all survive.
	resp := "# A\n## A1\n# B\n# C"
	got := ParseMiniMap(resp)
	assert.Len(t, got.Nodes, 3)
	assert.Equal(t, "B", got.Nodes[1].Title)
	assert.Equal(t, "C", got.Nodes[2].Title)
}
