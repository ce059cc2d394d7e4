package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codewiki/internal/wiki"
	"codewiki/internal/wikierr"
)

func newTestService(t *testing.T) (*Service, *wiki.Store) {
	t.Helper()
	store, err := wiki.Open(filepath.Join(t.TempDir(), "wiki.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(store, t.TempDir()), store
}

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		remote string
		org    string
		name   string
		ok     bool
	}{
		{"https://github.com/acme/widget.git", "acme", "widget", true},
		{"https://github.com/acme/widget", "acme", "widget", true},
		{"https://gitee.com/deep/nested/acme/widget.git", "acme", "widget", true},
		{"git@github.com:acme/widget.git", "acme", "widget", true},
		{"https://github.com/acme/widget/", "acme", "widget", true},
		{"https://github.com/", "", "", false},
		{"garbage", "", "", false},
	}
	for _, tt := range tests {
		org, name, err := ParseRemoteURL(tt.remote)
		if !tt.ok {
			assert.Error(t, err, tt.remote)
			continue
		}
		require.NoError(t, err, tt.remote)
		assert.Equal(t, tt.org, org, tt.remote)
		assert.Equal(t, tt.name, name, tt.remote)
	}
}

func TestRegisterLocalPath(t *testing.T) {
	svc, store := newTestService(t)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.go"), []byte("package main"), 0o644))

	repo, err := svc.Register(context.Background(), RegisterRequest{
		UserID:    "u1",
		LocalPath: src,
	})
	require.NoError(t, err)
	assert.Equal(t, src, repo.LocalPath)
	assert.Equal(t, "local", repo.Provider)
	assert.True(t, repo.IsCloned)

	// The wiki document is reserved at registration time.
	doc, err := store.GetDocumentByRepo(repo.ID)
	require.NoError(t, err)
	assert.Equal(t, wiki.StatusPending, doc.Status)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{UserID: "u1"})
	assert.True(t, wikierr.Is(err, wikierr.KindValidation))

	_, err = svc.Register(ctx, RegisterRequest{
		UserID:    "u1",
		RemoteURL: "https://x.test/a/b",
		LocalPath: "/tmp",
	})
	assert.True(t, wikierr.Is(err, wikierr.KindValidation))

	_, err = svc.Register(ctx, RegisterRequest{RemoteURL: "https://x.test/a/b"})
	assert.True(t, wikierr.Is(err, wikierr.KindValidation))

	_, err = svc.Register(ctx, RegisterRequest{UserID: "u1", LocalPath: "/definitely/not/here"})
	assert.True(t, wikierr.Is(err, wikierr.KindValidation))
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _ := newTestService(t)
	src := t.TempDir()

	_, err := svc.Register(context.Background(), RegisterRequest{UserID: "u1", LocalPath: src})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{UserID: "u1", LocalPath: src})
	assert.True(t, wikierr.Is(err, wikierr.KindConflict))
}

func TestLocalPathLayout(t *testing.T) {
	svc, _ := newTestService(t)

	p := svc.localPath(RegisterRequest{Organization: "acme", Name: "widget"})
	assert.Equal(t, filepath.Join(svc.storagePath, "acme", "widget"), p)

	p = svc.localPath(RegisterRequest{UserID: "u1", Name: "widget", ArchivePath: "/tmp/widget.zip"})
	assert.Equal(t, filepath.Join(svc.storagePath, "uploads", "u1", "widget"), p)
}
