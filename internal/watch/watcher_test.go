package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"codewiki/internal/wiki"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func setupWatchedRepo(t *testing.T) (*wiki.Store, *wiki.Repository, string, string) {
	t.Helper()
	store, err := wiki.Open(filepath.Join(t.TempDir(), "wiki.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	repoDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "main.go"), []byte("package main"), 0o644))

	r := &wiki.Repository{UserID: "u1", Provider: "local", Organization: "local", Name: "w", LocalPath: repoDir}
	require.NoError(t, store.CreateRepository(r))
	doc, err := store.CreateDocument(r.ID)
	require.NoError(t, err)
	flat, err := store.ReplaceCatalogTree(doc.ID, []*wiki.CatalogNode{{Name: "Core", URL: "core"}})
	require.NoError(t, err)
	require.NoError(t, store.UpsertContent(flat[0].ID, &wiki.Content{Title: "Core", Body: "body"},
		[]wiki.ContentSource{{SourcePath: "main.go", DisplayName: "main.go"}}))
	return store, r, doc.ID, flat[0].ID
}

func TestInvalidateMarksCatalogsStale(t *testing.T) {
	store, r, docID, catalogID := setupWatchedRepo(t)
	w := New(store, zap.NewNop())

	w.invalidate(r, filepath.Join(r.LocalPath, "main.go"))

	cats, err := store.ListCatalogs(docID)
	require.NoError(t, err)
	assert.False(t, cats[0].IsCompleted)

	content, err := store.GetContent(catalogID)
	require.NoError(t, err)
	select {
	case id := <-w.Stale:
		assert.Equal(t, content.ID, id)
	default:
		t.Fatal("expected a stale notification")
	}
}

func TestInvalidateIgnoresUnknownFiles(t *testing.T) {
	store, r, docID, _ := setupWatchedRepo(t)
	w := New(store, zap.NewNop())

	w.invalidate(r, filepath.Join(r.LocalPath, "other.go"))

	cats, err := store.ListCatalogs(docID)
	require.NoError(t, err)
	assert.True(t, cats[0].IsCompleted)
	assert.Empty(t, w.Stale)
}

func TestRunDetectsWrites(t *testing.T) {
	store, r, docID, _ := setupWatchedRepo(t)
	w := New(store, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx, r)
		close(done)
	}()
	// Give the watcher time to register before touching the file.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(r.LocalPath, "main.go"), []byte("package main // v2"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		cats, err := store.ListCatalogs(docID)
		require.NoError(t, err)
		if !cats[0].IsCompleted {
			break
		}
		select {
		case <-deadline:
			t.Fatal("watcher did not invalidate the article in time")
		case <-time.After(50 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestIsHidden(t *testing.T) {
	assert.True(t, isHidden("/repo", "/repo/.git/config"))
	assert.False(t, isHidden("/repo", "/repo/src/main.go"))
}
