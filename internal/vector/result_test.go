package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
	"hits": {
		"total": {"value": 2},
		"hits": [
			{"_id": "a", "_score": 1.5, "_source": {"title": "Alpha", "content": "The alpha module parses input. It is small."}},
			{"_id": "b", "_score": 0.5, "_source": {"title": "Beta", "content": "Beta handles output."},
			 "highlight": {"content": ["Beta handles <em>output</em>."]}}
		]
	},
	"aggregations": {
		"agg_kind": {"buckets": [{"key": "content", "doc_count": 2}, {"key": "overview", "doc_count": 1}]}
	}
}`

func TestResultBasics(t *testing.T) {
	r, err := ParseResult([]byte(sampleResponse))
	require.NoError(t, err)

	assert.Equal(t, 2, r.Total())
	assert.Equal(t, []string{"a", "b"}, r.ChunkIDs())
	assert.Equal(t, "Alpha", r.Source("a")["title"])
	assert.Nil(t, r.Source("missing"))

	fields := r.Fields([]string{"title"})
	assert.Equal(t, "Beta", fields["b"]["title"])
}

func TestResultHighlightPrefersBackend(t *testing.T) {
	r, err := ParseResult([]byte(sampleResponse))
	require.NoError(t, err)

	hl := r.Highlight("content", []string{"alpha"})
	// b has a backend snippet; a gets a synthesized one.
	assert.Equal(t, "Beta handles <em>output</em>.", hl["b"])
	assert.Contains(t, hl["a"], "<em>alpha</em>")
	// Only the matching sentence survives.
	assert.NotContains(t, hl["a"], "It is small")
}

func TestSynthesizeHighlight(t *testing.T) {
	got := synthesizeHighlight("First point here. Second about parsing. Third point.", []string{"parsing"})
	assert.Equal(t, "Second about <em>parsing</em>.", got)

	assert.Empty(t, synthesizeHighlight("no match here", []string{"absent"}))
	assert.Empty(t, synthesizeHighlight("anything", nil))
}

func TestResultAggregation(t *testing.T) {
	r, err := ParseResult([]byte(sampleResponse))
	require.NoError(t, err)

	agg := r.Aggregation("kind")
	assert.Equal(t, 2, agg["content"])
	assert.Equal(t, 1, agg["overview"])
	assert.Nil(t, r.Aggregation("missing"))
}

func TestRewriteSQL(t *testing.T) {
	got := RewriteSQL("SELECT * FROM t WHERE title_tks = 'alpha beta'", nil)
	assert.Equal(t,
		"SELECT * FROM t WHERE MATCH(title_tks, 'alpha beta', 'operator=OR;minimum_should_match=30%')", got)

	got = RewriteSQL("WHERE content_tks like '%parse%'", nil)
	assert.Equal(t,
		"WHERE MATCH(content_tks, 'parse', 'operator=OR;minimum_should_match=30%')", got)

	// Non-tokenized columns pass through untouched.
	unchanged := "WHERE title = 'alpha'"
	assert.Equal(t, unchanged, RewriteSQL(unchanged, nil))

	// A custom tokenizer transforms the value.
	got = RewriteSQL("WHERE title_tks = 'Alpha'", func(s string) string { return "alpha" })
	assert.Contains(t, got, "'alpha'")
}
