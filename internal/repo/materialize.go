package repo

import (
	"context"
	"os"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"codewiki/internal/logging"
	"codewiki/internal/wiki"
	"codewiki/internal/wikierr"
)

// Materializer puts a repository's source tree at repo.LocalPath.
type Materializer interface {
	Materialize(ctx context.Context, repo *wiki.Repository) error
}

// GitMaterializer clones a remote repository.
type GitMaterializer struct {
	// Depth limits clone history. Zero means full history, which the
	// change-log stage needs; callers that skip the change log may pass a
	// shallow depth.
	Depth int
}

func (m *GitMaterializer) Materialize(ctx context.Context, repo *wiki.Repository) error {
	timer := logging.StartTimer(logging.CategoryBoot, "GitMaterialize")
	defer timer.Stop()

	opts := &git.CloneOptions{
		URL:   repo.RemoteURL,
		Depth: m.Depth,
	}
	if repo.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(repo.Branch)
		opts.SingleBranch = true
	}
	logging.Boot("cloning %s into %s", repo.RemoteURL, repo.LocalPath)
	if _, err := git.PlainCloneContext(ctx, repo.LocalPath, false, opts); err != nil {
		os.RemoveAll(repo.LocalPath)
		return wikierr.Wrap(wikierr.KindIO, err, "clone %s", repo.RemoteURL)
	}
	return nil
}

// localMaterializer handles pre-existing local paths. Registration already
// verified the directory exists.
type localMaterializer struct{}

func (localMaterializer) Materialize(ctx context.Context, repo *wiki.Repository) error {
	return nil
}

// CommitInfo is one entry of a repository's history.
type CommitInfo struct {
	Hash    string
	Author  string
	Date    time.Time
	Message string
}

// History reads up to limit commits from the repository at path, newest
// first. Repositories without a .git directory yield an empty history.
func History(path string, limit int) ([]CommitInfo, error) {
	r, err := git.PlainOpen(path)
	if err == git.ErrRepositoryNotExists {
		return nil, nil
	}
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "open git repository at %s", path)
	}
	head, err := r.Head()
	if err != nil {
		return nil, nil
	}
	iter, err := r.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindIO, err, "read git log")
	}
	defer iter.Close()

	var out []CommitInfo
	for len(out) < limit {
		c, err := iter.Next()
		if err != nil {
			break
		}
		out = append(out, CommitInfo{
			Hash:    c.Hash.String(),
			Author:  c.Author.Name,
			Date:    c.Author.When,
			Message: c.Message,
		})
	}
	return out, nil
}
