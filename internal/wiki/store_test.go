package wiki

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codewiki/internal/wikierr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "wiki.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestRepo(t *testing.T, s *Store) *Repository {
	t.Helper()
	repo := &Repository{
		UserID:       "u1",
		Provider:     "github",
		Organization: "acme",
		Name:         "widget",
		LocalPath:    "/tmp/acme/widget",
	}
	require.NoError(t, s.CreateRepository(repo))
	return repo
}

func TestCreateRepositoryConflict(t *testing.T) {
	s := newTestStore(t)
	newTestRepo(t, s)

	dup := &Repository{UserID: "u1", Provider: "github", Organization: "acme", Name: "widget"}
	err := s.CreateRepository(dup)
	require.Error(t, err)
	assert.True(t, wikierr.Is(err, wikierr.KindConflict))

	// Same repo under a different user registers fine.
	other := &Repository{UserID: "u2", Provider: "github", Organization: "acme", Name: "widget"}
	assert.NoError(t, s.CreateRepository(other))
}

func TestFindRepository(t *testing.T) {
	s := newTestStore(t)
	repo := newTestRepo(t, s)

	got, err := s.FindRepository("u1", "github", "acme", "widget")
	require.NoError(t, err)
	assert.Equal(t, repo.ID, got.ID)

	_, err = s.FindRepository("u1", "github", "acme", "missing")
	assert.True(t, wikierr.Is(err, wikierr.KindNotFound))
}

func TestDocumentLifecycle(t *testing.T) {
	s := newTestStore(t)
	repo := newTestRepo(t, s)

	doc, err := s.CreateDocument(repo.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, doc.Status)

	// One document per repository.
	_, err = s.CreateDocument(repo.ID)
	assert.True(t, wikierr.Is(err, wikierr.KindConflict))

	require.NoError(t, s.UpdateDocumentStatus(doc.ID, StatusProcessing, 25, "generating catalogue"))
	require.NoError(t, s.SetDocumentReadme(doc.ID, "# Widget"))
	require.NoError(t, s.SetDocumentClassify(doc.ID, "Libraries"))

	got, err := s.GetDocumentByRepo(repo.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.Equal(t, 25, got.Progress)
	assert.Equal(t, "# Widget", got.Readme)
	assert.Equal(t, "Libraries", got.Classify)
	assert.False(t, got.IsEmbedded)

	require.NoError(t, s.SetDocumentEmbedded(doc.ID, true))
	got, err = s.GetDocument(doc.ID)
	require.NoError(t, err)
	assert.True(t, got.IsEmbedded)
}

func TestDeleteRepositoryCascades(t *testing.T) {
	s := newTestStore(t)
	repo := newTestRepo(t, s)
	doc, err := s.CreateDocument(repo.ID)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceOverview(doc.ID, "Widget", "overview body"))

	require.NoError(t, s.DeleteRepository(repo.ID))

	_, err = s.GetDocument(doc.ID)
	assert.True(t, wikierr.Is(err, wikierr.KindNotFound))
	_, err = s.GetOverview(doc.ID)
	assert.True(t, wikierr.Is(err, wikierr.KindNotFound))
}

func TestReplaceCatalogTree(t *testing.T) {
	s := newTestStore(t)
	repo := newTestRepo(t, s)
	doc, err := s.CreateDocument(repo.ID)
	require.NoError(t, err)

	roots := []*CatalogNode{
		{
			Name: "Getting Started",
			URL:  "getting-started",
			Children: []*CatalogNode{
				{Name: "Install", URL: "getting-started-install"},
				{Name: "Configure", URL: "getting-started-configure"},
			},
		},
		{Name: "Architecture", URL: "architecture"},
	}
	flat, err := s.ReplaceCatalogTree(doc.ID, roots)
	require.NoError(t, err)
	require.Len(t, flat, 4)

	all, err := s.ListCatalogs(doc.ID)
	require.NoError(t, err)
	require.Len(t, all, 4)
	// Depth-first traversal order survives the round trip.
	assert.Equal(t, "Getting Started", all[0].Name)
	assert.Equal(t, "Install", all[1].Name)
	assert.Equal(t, "Configure", all[2].Name)
	assert.Equal(t, "Architecture", all[3].Name)
	assert.Equal(t, all[0].ID, all[1].ParentID)
	assert.Empty(t, all[3].ParentID)

	// Replacing again discards the previous tree.
	_, err = s.ReplaceCatalogTree(doc.ID, []*CatalogNode{{Name: "Only", URL: "only"}})
	require.NoError(t, err)
	all, err = s.ListCatalogs(doc.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Only", all[0].Name)
}

func TestLeafCatalogs(t *testing.T) {
	all := []*Catalog{
		{ID: "a"},
		{ID: "b", ParentID: "a"},
		{ID: "c", ParentID: "a"},
		{ID: "d"},
	}
	leaves := LeafCatalogs(all)
	require.Len(t, leaves, 3)
	assert.Equal(t, "b", leaves[0].ID)
	assert.Equal(t, "d", leaves[2].ID)
}

func TestUpsertContent(t *testing.T) {
	s := newTestStore(t)
	repo := newTestRepo(t, s)
	doc, err := s.CreateDocument(repo.ID)
	require.NoError(t, err)
	flat, err := s.ReplaceCatalogTree(doc.ID, []*CatalogNode{{Name: "API", URL: "api"}})
	require.NoError(t, err)
	catalogID := flat[0].ID

	content := &Content{Title: "API", Body: "hello world"}
	sources := []ContentSource{
		{SourcePath: "src/api.go", DisplayName: "api.go"},
		{SourcePath: "src/handler.go", DisplayName: "handler.go"},
	}
	require.NoError(t, s.UpsertContent(catalogID, content, sources))
	assert.Equal(t, len("hello world"), content.Size)

	got, err := s.GetContent(catalogID)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got.Body)

	srcs, err := s.ListContentSources(got.ID)
	require.NoError(t, err)
	assert.Len(t, srcs, 2)

	cats, err := s.ListCatalogs(doc.ID)
	require.NoError(t, err)
	assert.True(t, cats[0].IsCompleted)

	// Re-running the stage replaces the article and its sources.
	require.NoError(t, s.UpsertContent(catalogID, &Content{Title: "API", Body: "v2"}, sources[:1]))
	got, err = s.GetContent(catalogID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Body)
	assert.Equal(t, 2, got.Size)
	srcs, err = s.ListContentSources(got.ID)
	require.NoError(t, err)
	assert.Len(t, srcs, 1)
}

func TestFindContentsBySourcePath(t *testing.T) {
	s := newTestStore(t)
	repo := newTestRepo(t, s)
	doc, err := s.CreateDocument(repo.ID)
	require.NoError(t, err)
	flat, err := s.ReplaceCatalogTree(doc.ID, []*CatalogNode{
		{Name: "A", URL: "a"}, {Name: "B", URL: "b"},
	})
	require.NoError(t, err)

	require.NoError(t, s.UpsertContent(flat[0].ID, &Content{Title: "A", Body: "a"},
		[]ContentSource{{SourcePath: "src/shared.go"}}))
	require.NoError(t, s.UpsertContent(flat[1].ID, &Content{Title: "B", Body: "b"},
		[]ContentSource{{SourcePath: "src/other.go"}}))

	hits, err := s.FindContentsBySourcePath("src/shared.go")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "A", hits[0].Title)

	require.NoError(t, s.ResetCatalogCompletion([]string{flat[0].ID}))
	cats, err := s.ListCatalogs(doc.ID)
	require.NoError(t, err)
	assert.False(t, cats[0].IsCompleted)
	assert.True(t, cats[1].IsCompleted)
}

func TestReplaceMiniMap(t *testing.T) {
	s := newTestStore(t)
	repo := newTestRepo(t, s)
	doc, err := s.CreateDocument(repo.ID)
	require.NoError(t, err)

	require.NoError(t, s.ReplaceMiniMap(doc.ID, `{"title":"root"}`))
	require.NoError(t, s.ReplaceMiniMap(doc.ID, `{"title":"root","nodes":[]}`))

	m, err := s.GetMiniMap(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"root","nodes":[]}`, m.Value)
}

func TestReplaceCommitRecords(t *testing.T) {
	s := newTestStore(t)
	repo := newTestRepo(t, s)
	doc, err := s.CreateDocument(repo.ID)
	require.NoError(t, err)

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.ReplaceCommitRecords(doc.ID, []*CommitRecord{
		{CommitDate: old, Title: "init"},
		{CommitDate: recent, Title: "add feature"},
	}))

	recs, err := s.ListCommitRecords(doc.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "add feature", recs[0].Title)

	require.NoError(t, s.ReplaceCommitRecords(doc.ID, []*CommitRecord{{CommitDate: recent, Title: "only"}}))
	recs, err = s.ListCommitRecords(doc.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
