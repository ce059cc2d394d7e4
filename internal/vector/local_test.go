package vector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLocalSpaceLifecycle(t *testing.T) {
	s := newLocalStore(t)
	ctx := context.Background()

	exists, err := s.SpaceExists(ctx, "wiki_x")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.CreateSpace(ctx, "wiki_x", 2))
	exists, err = s.SpaceExists(ctx, "wiki_x")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.DeleteSpace(ctx, "wiki_x"))
	exists, err = s.SpaceExists(ctx, "wiki_x")
	require.NoError(t, err)
	assert.False(t, exists)
}

func seedRecords(t *testing.T, s *LocalStore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateSpace(ctx, "wiki_x", 2))
	require.NoError(t, s.InsertRecords(ctx, "wiki_x", []Record{
		{"id": "1", "title_tks": "alpha", "content": "alpha module", "embedding": []interface{}{1.0, 0.0}},
		{"id": "2", "title_tks": "beta", "content": "beta module", "embedding": []interface{}{0.0, 1.0}},
	}))
}

func TestLocalFusedSearchSingleHit(t *testing.T) {
	s := newLocalStore(t)
	seedRecords(t, s)

	res, err := s.Search(context.Background(), []string{"wiki_x"}, SearchRequest{
		Limit: 10,
		MatchExprs: []MatchExpr{
			MatchTextExpr{Fields: []string{"title_tks"}, Text: "alpha", TopN: 10},
			MatchDenseExpr{Column: "embedding", Vector: []float32{1, 0}, TopN: 10},
			FusionExpr{Method: "weighted_sum", TopN: 10, Params: map[string]string{"weights": "0.3,0.7"}},
		},
	})
	require.NoError(t, err)
	// "beta" neither matches the text nor points the same way.
	require.Equal(t, []string{"1"}, res.ChunkIDs())
	assert.Equal(t, 1, res.Total())
}

func TestLocalSearchRanksByScore(t *testing.T) {
	s := newLocalStore(t)
	seedRecords(t, s)

	res, err := s.Search(context.Background(), []string{"wiki_x"}, SearchRequest{
		MatchExprs: []MatchExpr{
			MatchDenseExpr{Column: "embedding", Vector: []float32{0.9, 0.1}, TopN: 10},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.ChunkIDs(), 2)
	assert.Equal(t, "1", res.ChunkIDs()[0])
}

func TestLocalGetUpdateDelete(t *testing.T) {
	s := newLocalStore(t)
	seedRecords(t, s)
	ctx := context.Background()

	rec, err := s.GetRecord(ctx, []string{"wiki_x"}, "1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "alpha module", rec["content"])

	n, err := s.UpdateRecords(ctx, "wiki_x", Condition{ID: "1"}, UpdateSpec{
		Set:      map[string]interface{}{"kind": "content"},
		ArrayAdd: map[string]interface{}{"tags": "core"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err = s.GetRecord(ctx, []string{"wiki_x"}, "1")
	require.NoError(t, err)
	assert.Equal(t, "content", rec["kind"])
	assert.Equal(t, []interface{}{"core"}, rec["tags"])

	n, err = s.DeleteRecords(ctx, "wiki_x", Condition{Terms: map[string]interface{}{"title_tks": "beta"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	missing, err := s.GetRecord(ctx, []string{"wiki_x"}, "2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLocalConditionMatching(t *testing.T) {
	rec := Record{"id": "1", "kind": "content", "tags": []interface{}{"a"}}

	assert.True(t, conditionMatches(rec, nil))
	assert.True(t, conditionMatches(rec, &Condition{ID: "1"}))
	assert.False(t, conditionMatches(rec, &Condition{ID: "2"}))
	assert.True(t, conditionMatches(rec, &Condition{Terms: map[string]interface{}{"kind": "content"}}))
	assert.False(t, conditionMatches(rec, &Condition{Terms: map[string]interface{}{"kind": "overview"}}))
	assert.True(t, conditionMatches(rec, &Condition{Exists: []string{"tags"}}))
	assert.False(t, conditionMatches(rec, &Condition{MustNotExists: []string{"kind"}}))
}

func TestMarkdownToText(t *testing.T) {
	got := MarkdownToText("# Title\n\nSome *emphasis* here.\n\n```go\ncode block\n```\n")
	assert.Contains(t, got, "Title")
	assert.Contains(t, got, "Some emphasis here.")
	assert.Contains(t, got, "code block")
	assert.NotContains(t, got, "#")
	assert.NotContains(t, got, "*")
	assert.NotContains(t, got, "```")
}
