package vector

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"codewiki/internal/embedding"
	"codewiki/internal/logging"
	"codewiki/internal/wiki"
)

// Indexer embeds a completed document's articles into the vector store so
// they become searchable. One space per document, named wiki_<doc_id>.
type Indexer struct {
	store    Store
	engine   embedding.Engine
	wikiDB   *wiki.Store
	docSpace func(docID string) string
}

// NewIndexer builds the indexer over a vector backend and embedding engine.
func NewIndexer(store Store, engine embedding.Engine, wikiDB *wiki.Store) *Indexer {
	return &Indexer{
		store:  store,
		engine: engine,
		wikiDB: wikiDB,
		docSpace: func(docID string) string {
			return "wiki_" + strings.ToLower(docID)
		},
	}
}

// Space returns the index space for one document.
func (ix *Indexer) Space(docID string) string { return ix.docSpace(docID) }

// Close releases the underlying vector backend.
func (ix *Indexer) Close() error { return ix.store.Close() }

// IndexDocument embeds the overview and every article of a document,
// replacing any prior index, then flips the document's embedded flag.
func (ix *Indexer) IndexDocument(ctx context.Context, docID string) error {
	timer := logging.StartTimer(logging.CategoryVector, "IndexDocument")
	defer timer.Stop()

	space := ix.docSpace(docID)
	exists, err := ix.store.SpaceExists(ctx, space)
	if err != nil {
		return err
	}
	if exists {
		if err := ix.store.DeleteSpace(ctx, space); err != nil {
			return err
		}
	}
	if err := ix.store.CreateSpace(ctx, space, ix.engine.Dimensions()); err != nil {
		return err
	}

	var texts []string
	var records []Record
	add := func(id, title, body, kind, sourcePath string) {
		plain := MarkdownToText(body)
		if strings.TrimSpace(plain) == "" {
			return
		}
		texts = append(texts, plain)
		records = append(records, Record{
			"id":          id,
			"doc_id":      docID,
			"kind":        kind,
			"title":       title,
			"title_tks":   strings.ToLower(title),
			"content":     plain,
			"source_path": sourcePath,
		})
	}

	if ov, err := ix.wikiDB.GetOverview(docID); err == nil {
		add("overview_"+docID, ov.Title, ov.Content, "overview", "")
	}
	contents, err := ix.wikiDB.ListContents(docID)
	if err != nil {
		return err
	}
	for _, c := range contents {
		add("content_"+c.ID, c.Title, c.Body, "content", "")
		sources, err := ix.wikiDB.ListContentSources(c.ID)
		if err != nil {
			continue
		}
		for i, src := range sources {
			add(fmt.Sprintf("source_%s_%d", c.ID, i), src.DisplayName, src.SourcePath, "source", src.SourcePath)
		}
	}
	if len(records) == 0 {
		logging.Vector("document %s has nothing to index", docID)
		return ix.wikiDB.SetDocumentEmbedded(docID, true)
	}

	vectors, err := ix.engine.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	for i := range records {
		if i < len(vectors) {
			records[i]["embedding"] = toFloat64s(vectors[i])
		}
	}
	if err := ix.store.InsertRecords(ctx, space, records); err != nil {
		return err
	}
	logging.Vector("indexed %d records for document %s", len(records), docID)
	return ix.wikiDB.SetDocumentEmbedded(docID, true)
}

// DeleteDocument removes a document's index space.
func (ix *Indexer) DeleteDocument(ctx context.Context, docID string) error {
	return ix.store.DeleteSpace(ctx, ix.docSpace(docID))
}

// Query runs a fused text+dense search over one document's space.
func (ix *Indexer) Query(ctx context.Context, docID, query string, limit int) (*Result, error) {
	vec, err := ix.engine.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	req := SearchRequest{
		SelectFields:    []string{"title", "content", "kind", "source_path"},
		HighlightFields: []string{"content"},
		Limit:           limit,
		MatchExprs: []MatchExpr{
			MatchTextExpr{
				Fields: []string{"title", "content"},
				Text:   query,
				TopN:   limit,
				Extra:  map[string]string{"minimum_should_match": "30%"},
			},
			MatchDenseExpr{
				Column: "embedding",
				Vector: vec,
				TopN:   limit,
			},
			FusionExpr{
				Method: "weighted_sum",
				TopN:   limit,
				Params: map[string]string{"weights": "0.3,0.7"},
			},
		},
	}
	return ix.store.Search(ctx, []string{ix.docSpace(docID)}, req)
}

// toFloat64s widens for JSON encoding, which the cluster backends expect.
func toFloat64s(v []float32) []interface{} {
	out := make([]interface{}, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

// MarkdownToText strips Markdown structure, keeping the readable text.
// Parse failures fall back to the raw input.
func MarkdownToText(source string) string {
	md := goldmark.New()
	src := []byte(source)
	doc := md.Parser().Parse(text.NewReader(src))

	var sb strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.FencedCodeBlock:
			var buf bytes.Buffer
			for i := 0; i < v.Lines().Len(); i++ {
				line := v.Lines().At(i)
				buf.Write(line.Value(src))
			}
			sb.Write(buf.Bytes())
			return ast.WalkSkipChildren, nil
		case *ast.Heading, *ast.Paragraph, *ast.ListItem:
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return source
	}
	return strings.TrimSpace(sb.String())
}
