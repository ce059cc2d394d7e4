// Package watch observes a materialized repository for source edits and
// flags the wiki articles grounded on the changed files, so the next
// generation run rebuilds only what went stale.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"codewiki/internal/wiki"
)

const debounceWindow = 500 * time.Millisecond

// Watcher marks contents stale when their source files change.
type Watcher struct {
	store *wiki.Store
	log   *zap.Logger

	// Stale receives the ids of contents invalidated by an edit. Buffered;
	// consumers that fall behind lose notifications, not correctness, since
	// the catalog completion flags are already persisted.
	Stale chan string
}

// New builds a watcher over the wiki store.
func New(store *wiki.Store, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		store: store,
		log:   log,
		Stale: make(chan string, 64),
	}
}

// Run watches one repository until the context is done. Edits inside the
// debounce window collapse into one invalidation pass.
func (w *Watcher) Run(ctx context.Context, repo *wiki.Repository) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addRecursive(fw, repo.LocalPath); err != nil {
		return err
	}
	w.log.Info("watching repository",
		zap.String("repo", repo.Organization+"/"+repo.Name),
		zap.String("path", repo.LocalPath))

	pending := map[string]bool{}
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		for path := range pending {
			w.invalidate(repo, path)
		}
		pending = map[string]bool{}
		timerC = nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timerC:
			flush()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if isHidden(repo.LocalPath, event.Name) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					addRecursive(fw, event.Name)
				}
			}
			pending[event.Name] = true
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				timer.Reset(debounceWindow)
			}
			timerC = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

// invalidate flags every article grounded on the changed file.
func (w *Watcher) invalidate(repo *wiki.Repository, absPath string) {
	rel, err := filepath.Rel(repo.LocalPath, absPath)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	contents, err := w.store.FindContentsBySourcePath(rel)
	if err != nil {
		w.log.Warn("source lookup failed", zap.String("path", rel), zap.Error(err))
		return
	}
	if len(contents) == 0 {
		return
	}

	catalogIDs := make([]string, 0, len(contents))
	for _, c := range contents {
		catalogIDs = append(catalogIDs, c.CatalogID)
	}
	if err := w.store.ResetCatalogCompletion(catalogIDs); err != nil {
		w.log.Warn("failed to reset catalog completion", zap.Error(err))
		return
	}
	w.log.Info("source change invalidated articles",
		zap.String("path", rel), zap.Int("articles", len(contents)))

	for _, c := range contents {
		select {
		case w.Stale <- c.ID:
		default:
		}
	}
}

func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func isHidden(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
