package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codewiki/internal/config"
	"codewiki/internal/docctx"
	"codewiki/internal/kernel"
	"codewiki/internal/llm"
	"codewiki/internal/prompt"
	"codewiki/internal/repo"
	"codewiki/internal/wiki"
)

// fakeInvoker routes by question text, mimicking the model's structured
// responses for each stage.
type fakeInvoker struct {
	mu       sync.Mutex
	asked    []string
	failAll  bool
	respond  func(question string) (llm.ChatResponse, bool)
	touchCtx bool
}

func (f *fakeInvoker) InvokePrompt(ctx context.Context, system, userPrompt, question string, history []llm.Message, choice kernel.FunctionChoice) (llm.ChatResponse, int) {
	f.mu.Lock()
	f.asked = append(f.asked, question)
	f.mu.Unlock()

	if f.failAll {
		return llm.ChatResponse{Success: false, Content: "**ERROR**: rate limit"}, 0
	}
	if f.respond != nil {
		if resp, ok := f.respond(question); ok {
			return resp, 7
		}
	}
	if f.touchCtx && (strings.Contains(question, "wiki article") || strings.Contains(question, "Describe")) {
		if dc := docctx.From(ctx); dc != nil {
			dc.AddFile("main.py")
		}
	}
	switch {
	case strings.Contains(question, "Classify"):
		return llm.ChatResponse{Success: true, Content: "<classify>classifyName: Applications</classify>"}, 5
	case strings.Contains(question, "knowledge map"):
		return llm.ChatResponse{Success: true, Content: "<minimap>\n# Entry Point: main.py\n</minimap>"}, 5
	case strings.Contains(question, "project overview"):
		return llm.ChatResponse{Success: true, Content: "<blog># Overview\n\nA tiny program.</blog>"}, 5
	case strings.Contains(question, "wiki catalogue"):
		return llm.ChatResponse{Success: true, Content: `<response_file>{"items":[{"title":"Entry Point","name":"entry-point","prompt":"Describe main.py"}]}</response_file>`}, 5
	case strings.Contains(question, "change log"):
		return llm.ChatResponse{Success: true, Content: `<changelog>[{"date":"2024-05-01","title":"init","description":"first commit"}]</changelog>`}, 5
	default:
		return llm.ChatResponse{Success: true, Content: "<blog>article body</blog>"}, 5
	}
}

func (f *fakeInvoker) calls(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, q := range f.asked {
		if strings.Contains(q, substr) {
			n++
		}
	}
	return n
}

var templateNames = []string{
	"readme", "catalogue", "classify", "minimap",
	"overview", "wiki_catalogue", "wiki_content", "changelog",
}

func writePrompts(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "wiki")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, name := range templateNames {
		body := "Task " + name + "\n{{ catalogue }}\n{% if readme %}{{ readme }}{% endif %}\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".md"), []byte(body), 0o644))
	}
	return root
}

func writeMinimalRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte(`def main(): print("hi")`), 0o644))
	return dir
}

func newTestPipeline(t *testing.T, inv Invoker) (*Pipeline, *wiki.Store, *wiki.Repository) {
	t.Helper()
	store, err := wiki.Open(filepath.Join(t.TempDir(), "wiki.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	r := &wiki.Repository{
		UserID: "u1", Provider: "local", Organization: "local", Name: "mini",
		LocalPath: writeMinimalRepo(t),
	}
	require.NoError(t, store.CreateRepository(r))

	cfg := config.Default().WikiGen
	p := New(store, inv, prompt.NewEngine(writePrompts(t)), cfg, "English")
	p.sleep = func(time.Duration) {}
	p.history = func(string, int) ([]repo.CommitInfo, error) { return nil, nil }
	return p, store, r
}

func TestRunMinimalRepo(t *testing.T) {
	inv := &fakeInvoker{touchCtx: true}
	p, store, r := newTestPipeline(t, inv)

	docID, err := p.Run(context.Background(), r.ID)
	require.NoError(t, err)

	doc, err := store.GetDocument(docID)
	require.NoError(t, err)
	assert.Equal(t, wiki.StatusCompleted, doc.Status)
	assert.Equal(t, 100, doc.Progress)
	// README is read from disk, never generated.
	assert.Equal(t, "hi", doc.Readme)
	assert.Equal(t, "/\nREADME.md/F\nmain.py/F", doc.OptimizedDirectory)
	assert.Equal(t, "Applications", doc.Classify)

	ov, err := store.GetOverview(docID)
	require.NoError(t, err)
	assert.Contains(t, ov.Content, "A tiny program")

	cats, err := store.ListCatalogs(docID)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Entry Point", cats[0].Name)
	assert.Equal(t, "entry-point", cats[0].URL)
	assert.True(t, cats[0].IsCompleted)

	content, err := store.GetContent(cats[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "article body", content.Body)
	assert.Equal(t, len("article body"), content.Size)
	srcs, err := store.ListContentSources(content.ID)
	require.NoError(t, err)
	require.Len(t, srcs, 1)
	assert.Equal(t, "main.py", srcs[0].SourcePath)

	m, err := store.GetMiniMap(docID)
	require.NoError(t, err)
	assert.Contains(t, m.Value, "Entry Point")
	assert.Contains(t, m.Value, "main.py")

	// No remote URL means no change log, and the stage still succeeds.
	recs, err := store.ListCommitRecords(docID)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRunIdempotent(t *testing.T) {
	inv := &fakeInvoker{}
	p, store, r := newTestPipeline(t, inv)

	docID, err := p.Run(context.Background(), r.ID)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), r.ID)
	require.NoError(t, err)

	cats, err := store.ListCatalogs(docID)
	require.NoError(t, err)
	assert.Len(t, cats, 1)
	contents, err := store.ListContents(docID)
	require.NoError(t, err)
	assert.Len(t, contents, 1)
}

func TestRunFailureSetsFailed(t *testing.T) {
	inv := &fakeInvoker{failAll: true}
	p, store, r := newTestPipeline(t, inv)

	docID, err := p.Run(context.Background(), r.ID)
	require.Error(t, err)

	doc, err := store.GetDocument(docID)
	require.NoError(t, err)
	assert.Equal(t, wiki.StatusFailed, doc.Status)
	// README and catalogue need no model call here, so the classify stage
	// is the first to fail; progress stays at the catalogue value.
	assert.Equal(t, 25, doc.Progress)
	assert.NotEmpty(t, doc.ProcessingMessage)
	// Transient failures consume the full retry budget.
	assert.Equal(t, 3, inv.calls("Classify"))
}

func TestRunCanceled(t *testing.T) {
	inv := &fakeInvoker{}
	p, store, r := newTestPipeline(t, inv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	docID, err := p.Run(ctx, r.ID)
	require.Error(t, err)

	doc, err := store.GetDocument(docID)
	require.NoError(t, err)
	assert.Equal(t, wiki.StatusCanceled, doc.Status)
}

func TestChangelogWithRemote(t *testing.T) {
	inv := &fakeInvoker{}
	p, store, _ := newTestPipeline(t, inv)

	r2 := &wiki.Repository{
		UserID: "u1", Provider: "github", Organization: "acme", Name: "remote",
		RemoteURL: "https://github.com/acme/remote.git",
		LocalPath: writeMinimalRepo(t),
	}
	require.NoError(t, store.CreateRepository(r2))
	p.history = func(string, int) ([]repo.CommitInfo, error) {
		return []repo.CommitInfo{{Hash: "abc", Author: "dev", Date: time.Now(), Message: "init"}}, nil
	}

	docID, err := p.Run(context.Background(), r2.ID)
	require.NoError(t, err)

	recs, err := store.ListCommitRecords(docID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "init", recs[0].Title)
	assert.Equal(t, "2024-05-01", recs[0].CommitDate.Format("2006-01-02"))
}

func TestSmartFilterDelegatesLargeTrees(t *testing.T) {
	inv := &fakeInvoker{respond: func(q string) (llm.ChatResponse, bool) {
		if strings.Contains(q, "Reduce this directory") {
			return llm.ChatResponse{Success: true, Content: "<response_file>trimmed listing</response_file>"}, true
		}
		return llm.ChatResponse{}, false
	}}
	p, store, r := newTestPipeline(t, inv)
	p.cfg.EnableSmartFilter = true
	p.cfg.SmartFilterThreshold = 1

	docID, err := p.Run(context.Background(), r.ID)
	require.NoError(t, err)

	doc, err := store.GetDocument(docID)
	require.NoError(t, err)
	assert.Equal(t, "trimmed listing", doc.OptimizedDirectory)
	assert.Equal(t, 1, inv.calls("Reduce this directory"))
}

func TestSmartFilterBelowThreshold(t *testing.T) {
	inv := &fakeInvoker{}
	p, store, r := newTestPipeline(t, inv)
	p.cfg.EnableSmartFilter = true
	p.cfg.SmartFilterThreshold = 800

	docID, err := p.Run(context.Background(), r.ID)
	require.NoError(t, err)
	doc, err := store.GetDocument(docID)
	require.NoError(t, err)
	assert.Equal(t, "/\nREADME.md/F\nmain.py/F", doc.OptimizedDirectory)
	assert.Zero(t, inv.calls("Reduce this directory"))
}
